// Package grpc serves the standard gRPC health service for the executor.
package grpc

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/autopeer-io/roverpilot/pkg/log"
	"github.com/autopeer-io/roverpilot/pkg/options"
)

// NavService is reported SERVING while the navigation subsystem is active.
const NavService = "roverpilot.nav"

const defaultProbeInterval = 2 * time.Second

// Probe returns nil when the checked component is ready.
type Probe func(ctx context.Context) error

type Server struct {
	server  *grpc.Server
	health  *health.Server
	options *options.GrpcOptions

	probe    Probe
	interval time.Duration
}

func NewServer(opts *options.GrpcOptions, navProbe Probe) *Server {
	s := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if opts.EnableReflection {
		reflection.Register(s)
	}

	hs.SetServingStatus(NavService, healthpb.HealthCheckResponse_NOT_SERVING)

	interval := opts.ProbeInterval
	if interval <= 0 {
		interval = defaultProbeInterval
	}

	return &Server{
		server:   s,
		health:   hs,
		options:  opts,
		probe:    navProbe,
		interval: interval,
	}
}

func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen(s.options.Network, s.options.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is done.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	log.Info("Starting gRPC Server", "addr", lis.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	go wait.UntilWithContext(ctx, s.refresh, s.interval)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.health.Shutdown()
		s.server.GracefulStop()
		return nil
	}
}

func (s *Server) refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if s.probe != nil {
		if err := s.probe(ctx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus(NavService, status)
}

package server

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/autopeer-io/roverpilot/internal/autonomy/server/grpc"
	"github.com/autopeer-io/roverpilot/internal/autonomy/server/http"
	"github.com/autopeer-io/roverpilot/pkg/log"
	"github.com/autopeer-io/roverpilot/pkg/options"
)

// Server is a listener whose lifetime is bound to ctx.
type Server interface {
	Start(ctx context.Context) error
}

// Config selects the listeners of the executor process.
type Config struct {
	HttpOptions *options.HttpOptions
	GrpcOptions *options.GrpcOptions
}

// Deps are the components the listeners expose.
type Deps struct {
	Missions http.Missions
	Reports  http.Reports

	// Ready backs /readyz; NavActive backs the roverpilot.nav health service.
	Ready     func(ctx context.Context) error
	NavActive func(ctx context.Context) error
}

// Manager manages the lifecycle of all protocol servers.
type Manager struct {
	servers []Server
}

func NewManager(cfg *Config, deps Deps) *Manager {
	return &Manager{
		servers: []Server{
			http.NewServer(cfg.HttpOptions, deps.Missions, deps.Reports, deps.Ready),
			grpc.NewServer(cfg.GrpcOptions, deps.NavActive),
		},
	}
}

// Add appends a background worker that shares the servers' lifetime.
func (m *Manager) Add(s Server) {
	m.servers = append(m.servers, s)
}

// Start launches all servers in parallel and waits for termination. The first failure stops the rest.
func (m *Manager) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, s := range m.servers {
		g.Go(func() error {
			return s.Start(ctx)
		})
	}

	log.Info("All servers starting...")
	return g.Wait()
}

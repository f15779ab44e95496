// Package http serves the task gateway, health probes and metrics.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/autopeer-io/roverpilot/internal/autonomy/core"
	"github.com/autopeer-io/roverpilot/internal/autonomy/gateway"
	"github.com/autopeer-io/roverpilot/internal/pkg/metrics"
	"github.com/autopeer-io/roverpilot/pkg/log"
	"github.com/autopeer-io/roverpilot/pkg/options"
)

const (
	shutdownTimeout = 5 * time.Second
	reportURLExpiry = 15 * time.Minute
)

// Missions is the task gateway as seen by HTTP clients.
type Missions interface {
	Submit(req gateway.Request) (string, error)
	Cancel(id string) error
	Current() (gateway.Snapshot, bool)
	Get(id string) (gateway.Snapshot, error)
	Feedback(id string, since int) ([]core.Feedback, bool, error)
}

// Reports links archived mission reports.
type Reports interface {
	PresignedURL(ctx context.Context, id string, finished time.Time, expiry time.Duration) (string, error)
}

// Probe returns nil when the component it checks is ready.
type Probe func(ctx context.Context) error

type Server struct {
	server  *http.Server
	options *options.HttpOptions

	missions Missions
	reports  Reports
	ready    Probe
}

func NewServer(opts *options.HttpOptions, missions Missions, reports Reports, ready Probe) *Server {
	s := &Server{
		options:  opts,
		missions: missions,
		reports:  reports,
		ready:    ready,
	}
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: opts.Timeout,
		WriteTimeout:      opts.Timeout,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(accessLog)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/readyz", s.readyz).Methods(http.MethodGet)

	if s.options.EnableMetrics {
		r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}

	v1 := r.PathPrefix("/v1/missions").Subrouter()
	v1.HandleFunc("", s.submit).Methods(http.MethodPost)
	v1.HandleFunc("/current", s.current).Methods(http.MethodGet)
	v1.HandleFunc("/{id}", s.get).Methods(http.MethodGet)
	v1.HandleFunc("/{id}/feedback", s.feedback).Methods(http.MethodGet)
	v1.HandleFunc("/{id}/cancel", s.cancel).Methods(http.MethodPost)
	v1.HandleFunc("/{id}/report", s.report).Methods(http.MethodGet)

	return r
}

func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen(s.options.Network, s.options.Addr)
	if err != nil {
		return err
	}

	log.Info("Starting HTTP Server", "addr", s.options.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		log.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Package server exposes the workflow catalog over HTTP.
//
// Routes:
//
//	GET    /healthz
//	GET    /metrics
//	GET    /api/workflows
//	GET    /api/workflows/{name}
//	POST   /api/workflows/{name}/runs
//	GET    /api/threads
//	GET    /api/threads/{id}            ?q=<query>&arg=<arg>
//	POST   /api/threads/{id}/signal
//	DELETE /api/threads/{id}
//
// Every request addresses a thread in the checkpoint store; the server
// keeps no run state of its own.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/randalmurphal/stepgraph/internal/workflows"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/query"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/signal"
)

// ErrNoStore is returned by New when the runner has no checkpoint store.
var ErrNoStore = errors.New("server requires a checkpoint store")

// Server serves the workflow API.
type Server struct {
	runner   *workflows.Runner
	signals  *signal.Dispatcher
	queries  *query.Executor
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *httpMetrics
	router   chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and signal logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSignalStore replaces the in-memory signal history.
func WithSignalStore(store signal.Store) Option {
	return func(s *Server) {
		s.signals = signal.NewDispatcher(store)
	}
}

// New builds a server around runner, whose store holds the threads.
func New(runner *workflows.Runner, opts ...Option) (*Server, error) {
	if runner.Store == nil {
		return nil, ErrNoStore
	}
	s := &Server{
		runner:   runner,
		logger:   slog.Default(),
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.signals == nil {
		s.signals = signal.NewDispatcher(signal.NewMemoryStore())
	}
	s.signals.WithLogger(s.logger)
	if err := runner.HandleSignals(s.signals); err != nil {
		return nil, err
	}
	s.queries = query.NewExecutor(query.StoreLoader(runner.Store))

	m, err := newHTTPMetrics(s.registry)
	if err != nil {
		return nil, err
	}
	s.metrics = m
	s.router = s.routes()
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Registry returns the prometheus registry served on /metrics.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/workflows", s.listWorkflows)
		r.Get("/workflows/{name}", s.getWorkflow)
		r.Post("/workflows/{name}/runs", s.startRun)

		r.Get("/threads", s.listThreads)
		r.Get("/threads/{id}", s.getThread)
		r.Post("/threads/{id}/signal", s.sendSignal)
		r.Delete("/threads/{id}", s.deleteThread)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

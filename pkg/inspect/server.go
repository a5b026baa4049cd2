// Package inspect serves a read-only debug view of a live atomik graph:
// a JSON snapshot of every node, a websocket stream of committed change
// events, and Prometheus metrics. It is development tooling layered on the
// graph's public observer tap; it contains no graph logic of its own and
// shares no state between processes.
package inspect

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/atomik-dev/atomik/pkg/atomik"
)

// Server exposes one graph over HTTP.
type Server struct {
	graph  *atomik.Graph
	hub    *hub
	logger *slog.Logger
	gather prometheus.Gatherer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithGatherer serves /metrics from the given gatherer. Pair it with the
// registry handed to atomik.WithMetrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gather = g }
}

// NewServer creates an inspect server for g. Pass the server's Observer to
// atomik.New(atomik.WithObserver(...)) to feed the websocket stream.
func NewServer(g *atomik.Graph, opts ...Option) *Server {
	s := &Server{graph: g}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.hub = newHub(s.logger)
	return s
}

// Observer returns the change-event tap feeding connected websocket
// clients. It never blocks the dispatch path.
func (s *Server) Observer() func(atomik.Event) {
	return s.hub.broadcast
}

// Handler returns the HTTP routes:
//
//	GET /healthz  liveness probe
//	GET /graph    JSON snapshot of every live node
//	GET /ws       websocket stream of change events
//	GET /metrics  Prometheus metrics (when a gatherer is configured)
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/graph", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		snap := s.graph.Snapshot()
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			s.logger.Warn("inspect: encode snapshot", "err", err)
		}
	})

	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Warn("inspect: websocket upgrade", "err", err)
			return
		}
		c := s.hub.add(conn)
		s.logger.Info("inspect: client connected", "client", c.id)
	})

	if s.gather != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gather, promhttp.HandlerOpts{}))
	}

	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		s.logger.Info("inspect: listening", "addr", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		s.hub.closeAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}

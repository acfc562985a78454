// Package web provides the optional HTTP status server of an ingestion run.
//
// It reports the run only: per-phase file counters, per-family totals and
// limiter slots. Stored rows are never read.
package web

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/fgbm/exchange-log-parser/internal/config"
	"github.com/fgbm/exchange-log-parser/internal/core"
	"github.com/fgbm/exchange-log-parser/internal/logging"
	weblog "github.com/fgbm/exchange-log-parser/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const pingTimeout = 2 * time.Second

// RunSource provides the live run summary. *core.Tally implements it.
type RunSource interface {
	Snapshot() core.Summary
}

// Pinger checks store reachability. core.Store implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Run states reported by /status.
const (
	StateRunning   = "running"
	StateFinished  = "finished"
	StateCancelled = "cancelled"
)

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	RunID    string             `json:"run_id"`
	State    string             `json:"state"`
	InFlight int                `json:"in_flight"`
	Limiter  core.LimiterStatus `json:"limiter"`
	Summary  core.Summary       `json:"summary"`
}

// Server is the status HTTP server.
type Server struct {
	run     RunSource
	limiter *core.Limiter
	store   Pinger
	done    atomic.Bool
	router  *chi.Mux
	server  *http.Server
	cfg     config.StatusConfig
}

// NewServer creates a status server for one run.
func NewServer(cfg config.StatusConfig, run RunSource, limiter *core.Limiter, store Pinger) *Server {
	s := &Server{
		run:     run,
		limiter: limiter,
		store:   store,
		router:  chi.NewRouter(),
		cfg:     cfg,
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(s.withRun)
	s.router.Use(middleware.RealIP)
	s.router.Use(weblog.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(10 * time.Second))
	s.router.Use(noStore)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.With(weblog.APIKeyAuth(s.cfg.APIKeys)).Get("/status", s.handleStatus)
}

// MarkFinished switches the reported state from running to finished.
func (s *Server) MarkFinished() {
	s.done.Store(true)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		respondError(w, r, err, http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sum := s.run.Snapshot()

	state := StateRunning
	switch {
	case sum.Cancelled:
		state = StateCancelled
	case s.done.Load():
		state = StateFinished
	}

	writeJSON(w, StatusResponse{
		RunID:    sum.RunID,
		State:    state,
		InFlight: sum.FilesSeen - sum.FilesProcessed - sum.FilesRejected,
		Limiter:  s.limiter.Status(),
		Summary:  sum,
	})
}

// Start listens on the configured address. It returns nil after Shutdown.
func (s *Server) Start() error {
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// withRun tags request contexts with the run ID for logging.
func (s *Server) withRun(next http.Handler) http.Handler {
	runID := s.run.Snapshot().RunID
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(logging.WithRun(r.Context(), runID)))
	})
}

// noStore marks every response uncacheable and unsniffable.
func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}

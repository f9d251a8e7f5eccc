// Package api serves the local control API: root inspection, relocation
// jobs, orphan cleanup and a server-sent event stream of progress.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/events"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/ledger"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/reaper"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/relocate"
)

// Relocator defines the coordinator operations driven by the API
type Relocator interface {
	Relocate(ctx context.Context, req relocate.Request) (*relocate.Result, error)
	ReclaimOrphans(ctx context.Context) ([]reaper.Reclamation, error)
	Running() bool
}

// RootReader defines the interface for reading the path ledger
type RootReader interface {
	CurrentRoot() ledger.Root
	Orphans() []ledger.Orphan
}

// EventSource defines the interface for the progress event hub
type EventSource interface {
	SnapshotSince(lastID int64) []events.Event
	Subscribe() (<-chan events.Event, func())
}

// Config holds API server configuration
type Config struct {
	Listen string
	APIKey string
	// MaxJobs bounds how many finished relocation results are kept.
	MaxJobs int
}

// Server represents the HTTP API server
type Server struct {
	config    Config
	relocator Relocator
	roots     RootReader
	events    EventSource
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
	jobs      *jobTable
	newJobID  func() string
	inflight  sync.WaitGroup
}

// New creates a new API server instance
func New(config Config, relocator Relocator, roots RootReader, events EventSource, logger *slog.Logger) *Server {
	if config.MaxJobs <= 0 {
		config.MaxJobs = 32
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:    config,
		relocator: relocator,
		roots:     roots,
		events:    events,
		logger:    logger,
		startedAt: time.Now(),
		jobs:      newJobTable(config.MaxJobs),
		newJobID:  uuid.NewString,
	}
}

// Start starts the HTTP server (blocking). A relocation still running when
// ctx is cancelled is allowed to finish before Start returns.
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:        s.config.Listen,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: /events streams until the client leaves.
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := s.server.Shutdown(shutdownCtx)
		s.inflight.Wait()
		if err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoint.
	r.Get("/healthz", s.handleHealthz)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/root", s.handleRoot)
		r.Post("/relocations", s.handleCreateRelocation)
		r.Get("/relocations/{jobID}", s.handleGetRelocation)
		r.Post("/reclaim", s.handleReclaim)
		r.Get("/events", s.handleEvents)
	})

	return r
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

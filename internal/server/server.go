package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mdddj/blog-new/internal/blogmigrate"
	"github.com/mdddj/blog-new/internal/config"
	"github.com/mdddj/blog-new/internal/httputil"
	"github.com/mdddj/blog-new/internal/migrate"
	"github.com/mdddj/blog-new/internal/sqlscript"
)

// DataService runs the bulk data operations behind /api/admin/data.
// exchange.Service implements it.
type DataService interface {
	Export(ctx context.Context) (*blogmigrate.Bundle, error)
	ImportBundle(ctx context.Context, b *blogmigrate.Bundle, progress migrate.ProgressReporter) (*migrate.Report, error)
	ImportSQL(ctx context.Context, script string) sqlscript.Result
}

// Server is the admin HTTP server.
type Server struct {
	cfg       *config.Config
	router    *chi.Mux
	http      *http.Server
	logger    *slog.Logger
	data      DataService // nil when no database is configured
	adminAuth *adminAuth  // nil when server.admin_password is not set
	bodyLimit int64
	startTime time.Time
}

// New creates a Server with middleware and routes configured.
func New(cfg *config.Config, logger *slog.Logger, data DataService) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	s := &Server{
		cfg:       cfg,
		router:    r,
		logger:    logger,
		data:      data,
		bodyLimit: cfg.Server.BodyLimitBytes(),
		startTime: time.Now(),
	}
	s.http = &http.Server{
		Addr:              cfg.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.Server.AdminPassword != "" {
		s.adminAuth = newAdminAuth(cfg.Server.AdminPassword, cfg.Server.JWTSecret,
			time.Duration(cfg.Server.TokenTTL)*time.Second)
	} else {
		logger.Warn("server.admin_password is not set, data endpoints are unauthenticated")
	}

	r.Get("/health", s.handleHealth)

	r.Route("/api/admin", func(r chi.Router) {
		r.Get("/status", s.handleAdminStatus)
		r.Post("/auth", s.handleAdminLogin)

		if data == nil {
			logger.Warn("no data service, skipping data routes")
			return
		}
		r.Route("/data", func(r chi.Router) {
			r.Use(s.requireAdminToken)
			r.Get("/export", s.handleExport)
			r.Group(func(r chi.Router) {
				r.Use(middleware.AllowContentType("application/json"))
				r.Post("/import", s.handleImport)
				r.Post("/import-sql", s.handleImportSQL)
			})
		})
	})

	return s
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// StartWithReady begins listening. It closes the ready channel once the
// listener is bound, then blocks serving requests.
func (s *Server) StartWithReady(ready chan<- struct{}) error {
	ln, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.logger.Info("server starting", "address", s.cfg.Address())
	if ready != nil {
		close(ready)
	}

	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	return s.StartWithReady(nil)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	timeout := time.Duration(s.cfg.Server.ShutdownTimeout) * time.Second
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.logger.Info("shutting down server", "timeout", timeout)
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"uptime_sec": int64(time.Since(s.startTime).Seconds()),
	})
}

package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/blkout/ivor-core/internal/core/ports/driven"
	"github.com/blkout/ivor-core/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// RequestRecorder observes served requests
type RequestRecorder interface {
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	handler    http.Handler
	version    string
	logger     *slog.Logger
	validate   *validator.Validate

	// Services
	intake  driving.IntakeService
	events  driving.EventCoordinator
	metrics driving.MetricsService
	tokens  driven.TokenVerifier

	// Infrastructure
	metricsHandler http.Handler // Prometheus exposition (optional)
	recorder       RequestRecorder
	checks         map[string]Pinger
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:    "0.0.0.0",
		Port:    8080,
		Version: "dev",
	}
}

// Deps are the services and probes the server routes to
type Deps struct {
	Intake  driving.IntakeService
	Events  driving.EventCoordinator
	Metrics driving.MetricsService
	Tokens  driven.TokenVerifier

	MetricsHandler http.Handler    // Optional
	Recorder       RequestRecorder // Optional
	// Checks are pinged by /ready, keyed by dependency name
	Checks map[string]Pinger
	Logger *slog.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:         http.NewServeMux(),
		version:        cfg.Version,
		logger:         logger,
		validate:       validator.New(),
		intake:         deps.Intake,
		events:         deps.Events,
		metrics:        deps.Metrics,
		tokens:         deps.Tokens,
		metricsHandler: deps.MetricsHandler,
		recorder:       deps.Recorder,
		checks:         deps.Checks,
	}

	s.setupRoutes()

	var handler http.Handler = s.router
	handler = NewLoggingMiddleware(logger, deps.Recorder).Handler(handler)
	if len(cfg.AllowedOrigins) > 0 {
		handler = NewCORSMiddleware(cfg.AllowedOrigins).Handler(handler)
	}
	handler = NewRecoveryMiddleware(logger).Handler(handler)
	s.handler = handler

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.tokens)

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	s.router.HandleFunc("GET /swagger/doc.json", s.handleSwaggerDoc)
	if s.metricsHandler != nil {
		s.router.Handle("GET /metrics", s.metricsHandler)
	}

	// Intake endpoints
	s.router.Handle("POST /api/v1/intake",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleIntake)))
	s.router.Handle("POST /api/v1/intake/batch",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleIntakeBatch)))

	// Event endpoints
	s.router.Handle("POST /api/v1/events",
		authMiddleware.Authenticate(http.HandlerFunc(s.handlePublishEvent)))
	s.router.Handle("GET /api/v1/events/{id}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetEvent)))

	// Operational data (admin-only)
	s.router.Handle("GET /api/v1/coordination/metrics",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleCoordinationMetrics))))
}

// Handler returns the fully wrapped handler (used by tests)
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

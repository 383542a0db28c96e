// Package server provides the HTTP server for the diet job API
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/alchemorsel/dietgen/internal/domain/shared"
	"github.com/alchemorsel/dietgen/internal/infrastructure/ai"
	"github.com/alchemorsel/dietgen/internal/infrastructure/config"
	"github.com/alchemorsel/dietgen/internal/infrastructure/http/handlers"
	"github.com/alchemorsel/dietgen/internal/infrastructure/http/middleware"
	"github.com/alchemorsel/dietgen/internal/infrastructure/monitoring"
	"github.com/alchemorsel/dietgen/internal/infrastructure/security"
	"github.com/alchemorsel/dietgen/internal/ports/inbound"
	apperrors "github.com/alchemorsel/dietgen/pkg/errors"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Deps groups what the server routes to.
type Deps struct {
	Service  inbound.DietJobService
	Events   shared.EventDispatcher
	Auth     *security.AuthService
	Database handlers.Pinger
	AIHealth *ai.HealthChecker
	Metrics  *monitoring.PipelineMetrics
}

// Server represents the HTTP server
type Server struct {
	config config.Config
	logger *zap.Logger
	deps   Deps
	router *chi.Mux
	server *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(cfg config.Config, deps Deps, logger *zap.Logger) *Server {
	s := &Server{
		config: cfg,
		logger: logger.Named("http"),
		deps:   deps,
	}
	s.router = s.setupRouter()

	s.server = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.Port)),
		Handler:           otelhttp.NewHandler(s.router, "dietgen-api"),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// setupRouter configures the HTTP router with middleware and routes
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	if s.deps.Metrics != nil {
		r.Use(s.deps.Metrics.Middleware)
	}
	r.Use(middleware.Security())
	r.Use(middleware.CORS(s.config.Server.AllowedOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, r, apperrors.NewNotFoundError(""))
	})

	healthPath := s.config.Monitoring.HealthPath
	if healthPath == "" {
		healthPath = "/health"
	}
	r.Method(http.MethodGet, healthPath, handlers.NewHealthHandler(s.deps.Database, s.deps.AIHealth, s.config.App.Version))

	if s.deps.Metrics != nil && s.config.Monitoring.EnableMetrics {
		metricsPath := s.config.Monitoring.MetricsPath
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
		r.Method(http.MethodGet, metricsPath, s.deps.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.AuthenticateAPI(s.deps.Auth))
		s.setupAPIRoutes(r)
	})

	return r
}

// setupAPIRoutes configures the REST and streaming routes
func (s *Server) setupAPIRoutes(r chi.Router) {
	jobs := handlers.NewDietJobHandlers(s.deps.Service, s.logger)
	stream := handlers.NewJobStream(s.deps.Service, s.deps.Events, s.config.Server.AllowedOrigins, s.logger).
		WithReload(s.config.Server.StreamReloadInterval)

	// The stream outlives any request timeout.
	r.Get("/diet-jobs/{id}/stream", stream.Serve)

	r.Group(func(r chi.Router) {
		timeout := s.config.Server.WriteTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		r.Use(chimiddleware.Timeout(timeout))
		r.Use(middleware.JSONOnly())

		r.Get("/diet-jobs/{id}", jobs.GetJob)
		r.Get("/diets/{id}", jobs.GetDiet)

		// Writes that start pipeline work are throttled per user.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(middleware.NewUserRateLimiter(
				s.config.Server.RateLimitPerMinute, s.config.Server.RateLimitBurst)))
			r.Post("/diet-jobs", jobs.CreateJob)
			r.Post("/diets/{id}/recalculate", jobs.RecalculateDiet)
		})
		r.Post("/diet-jobs/{id}/cancel", jobs.CancelJob)
	})
}

// Start starts the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server",
		zap.String("address", s.server.Addr),
		zap.String("environment", s.config.App.Environment),
	)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve accepts connections on l. It returns nil after Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("Starting HTTP server", zap.String("address", l.Addr().String()))
	if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

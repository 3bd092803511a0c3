// Package api provides the HTTP API for the air quality service.
package api

import (
	"context"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/yevgetman/air-quality-api/internal/adapter"
	"github.com/yevgetman/air-quality-api/internal/api/handler"
	"github.com/yevgetman/air-quality-api/internal/api/middleware"
	"github.com/yevgetman/air-quality-api/internal/auth"
	"github.com/yevgetman/air-quality-api/internal/fusion"
	"github.com/yevgetman/air-quality-api/internal/orchestrator"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version      string
	BuildTime    string
	Logger       zerolog.Logger
	ServiceName  string
	Metrics      *middleware.Metrics
	JWTService   *auth.JWTService
	Orchestrator *orchestrator.Orchestrator
	Adapters     []adapter.Adapter
	Tracker      *adapter.Tracker
	Engine       *fusion.Engine

	// Ready reports readiness of backing dependencies; nil skips the check.
	Ready func(ctx context.Context) error
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "air-quality-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	airQualityHandler := handler.NewAirQualityHandler(cfg.Orchestrator)
	adviceHandler := handler.NewAdviceHandler()
	sourcesHandler := handler.NewSourcesHandler(cfg.Adapters, cfg.Tracker)
	adminHandler := handler.NewAdminHandler(cfg.Adapters, cfg.Tracker, cfg.Engine)
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Ready)

	adminAuth := middleware.AdminAuth(cfg.JWTService)

	// Rate limit tiers per endpoint category
	adminRateLimit := middleware.RateLimitBySubject(middleware.AuthRateLimit) // 10 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min

	r.Route("/api/v1", func(r chi.Router) {
		// Ops endpoints (public, unthrottled for probes)
		r.Get("/health", opsHandler.HealthCheck)
		r.Get("/ready", opsHandler.ReadinessCheck)

		// Query endpoints (public) - standard rate limiting
		r.Group(func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/air-quality", airQualityHandler.GetAirQuality)
			r.Get("/health-advice", adviceHandler.GetHealthAdvice)
			r.Get("/sources", sourcesHandler.ListSources)
		})

		// Admin endpoints (authenticated) - for internal operations
		r.Route("/admin", func(r chi.Router) {
			r.Use(adminAuth)
			r.Use(adminRateLimit)
			r.Post("/sources/{code}/reset", adminHandler.ResetSource)
			r.Post("/cache/invalidate", adminHandler.InvalidateCache)
		})
	})

	return r
}

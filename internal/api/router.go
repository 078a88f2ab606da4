// Package api provides the HTTP API for Give and Get.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/giveandget/giveandget/internal/api/handler"
	"github.com/giveandget/giveandget/internal/api/middleware"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version             string
	BuildTime           string
	Logger              zerolog.Logger
	ServiceName         string
	Metrics             *middleware.Metrics
	TokenValidator      middleware.TokenValidator
	Matcher             handler.Matcher
	OrganizationService handler.OrganizationService
	Health              handler.HealthSource
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "giveandget-api"
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

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Health)
	matchHandler := handler.NewMatchHandler(cfg.Matcher, cfg.Logger)
	orgHandler := handler.NewOrganizationHandler(cfg.OrganizationService, cfg.Logger)

	authMiddleware := middleware.Auth(cfg.TokenValidator)

	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min
	writeRateLimit := middleware.RateLimitByOperator(middleware.WriteRateLimit)   // 60 req/min per operator

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RequireJSON)

		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
		})

		// Matching - expensive compute, strict rate limiting
		r.Route("/matches", func(r chi.Router) {
			r.Use(expensiveRateLimit)
			r.Post("/people", matchHandler.MatchPeople)
			r.Post("/supplies", matchHandler.MatchSupplies)
		})

		r.Route("/organizations", func(r chi.Router) {
			// Public reads
			r.With(standardRateLimit).Post("/search", orgHandler.Search)
			r.With(standardRateLimit).Get("/{orgId}", orgHandler.Get)

			// Operator writes
			r.Group(func(r chi.Router) {
				r.Use(authMiddleware)
				r.Use(writeRateLimit)
				r.Post("/", orgHandler.Create)
				r.Put("/{orgId}", orgHandler.Update)
				r.Patch("/{orgId}/needs/{item}", orgHandler.SetNeed)
				r.Delete("/{orgId}/needs/{item}", orgHandler.RemoveNeed)
			})
		})
	})

	return r
}

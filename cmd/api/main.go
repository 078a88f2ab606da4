// Package main provides the entrypoint for the Give and Get API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/giveandget/giveandget/internal/api"
	"github.com/giveandget/giveandget/internal/api/middleware"
	"github.com/giveandget/giveandget/internal/auth"
	"github.com/giveandget/giveandget/internal/cache"
	"github.com/giveandget/giveandget/internal/database"
	"github.com/giveandget/giveandget/internal/matching"
	"github.com/giveandget/giveandget/internal/organization"
	"github.com/giveandget/giveandget/internal/resilience"
	"github.com/giveandget/giveandget/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "giveandget-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting Give and Get API")

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryConfig := telemetry.ConfigFromEnv(serviceName, Version)
	tp, err := telemetry.Init(ctx, telemetryConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryConfig.Enabled {
		log.Info().
			Str("otlp_endpoint", telemetryConfig.OTLPEndpoint).
			Float64("sample_ratio", telemetryConfig.SampleRatio).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	dependencyMetrics, err := telemetry.NewDependencyMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize dependency metrics")
	}

	// Organization store
	var repo organization.Repository
	switch backend := os.Getenv("STORE_BACKEND"); backend {
	case "memory":
		repo = organization.NewInMemoryRepository()
		log.Warn().Msg("using in-memory organization store - data is lost on restart")
	case "", "postgres":
		dbConfig := database.ConfigFromEnv()
		pool, err := database.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		if err := database.EnsureSchema(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("failed to ensure database schema")
		}
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("database connected")
		repo = organization.NewPostgresRepository(pool)
	default:
		log.Fatal().Str("backend", backend).Msg("unknown STORE_BACKEND, expected memory or postgres")
	}

	// Optional Redis read-through cache
	cacheConfig := cache.ConfigFromEnv()
	if cacheConfig.Enabled() {
		client, err := cache.Connect(ctx, cacheConfig)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cacheConfig.Addr).Msg("failed to connect to redis")
		}
		defer func() { _ = client.Close() }()
		repo = organization.NewCachedRepository(organization.CachedRepositoryConfig{
			Next:    repo,
			Client:  client,
			TTL:     cacheConfig.TTL,
			Metrics: dependencyMetrics,
			Logger:  log,
		})
		log.Info().
			Str("addr", cacheConfig.Addr).
			Dur("ttl", cacheConfig.TTL).
			Msg("organization cache enabled")
	}

	orgService := organization.NewService(organization.ServiceConfig{
		Repository: repo,
		Metrics:    dependencyMetrics,
		Logger:     log,
	})

	registry := resilience.NewRegistry()
	registry.Register(orgService.Guard())

	// Matching engine
	concurrency, _ := strconv.Atoi(os.Getenv("MATCH_SCORING_CONCURRENCY"))
	engine := matching.NewEngine(matching.EngineConfig{
		Fetcher:     orgService,
		Logger:      log,
		Concurrency: concurrency,
	})

	// Operator tokens
	jwtConfig := auth.JWTConfigFromEnv()
	if jwtConfig.UsesDefaultKey() {
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}
	authService := auth.NewService(auth.ServiceConfig{
		JWTService: auth.NewJWTService(jwtConfig),
	})
	log.Info().Msg("auth service initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:             Version,
		BuildTime:           BuildTime,
		Logger:              log,
		ServiceName:         serviceName,
		Metrics:             metrics,
		TokenValidator:      authService,
		Matcher:             engine,
		OrganizationService: orgService,
		Health:              registry,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}

// Package main provides the entrypoint for the Give and Get inventory worker.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/giveandget/giveandget/internal/api/handler"
	"github.com/giveandget/giveandget/internal/api/middleware"
	"github.com/giveandget/giveandget/internal/api/response"
	"github.com/giveandget/giveandget/internal/cache"
	"github.com/giveandget/giveandget/internal/database"
	"github.com/giveandget/giveandget/internal/organization"
	"github.com/giveandget/giveandget/internal/resilience"
	"github.com/giveandget/giveandget/internal/telemetry"
	"github.com/giveandget/giveandget/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "giveandget-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting Give and Get worker")

	// Worker also exposes health endpoints for Cloud Run
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.ConfigFromEnv(serviceName, Version))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	dependencyMetrics, err := telemetry.NewDependencyMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize dependency metrics")
	}

	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure database schema")
	}

	var repo organization.Repository = organization.NewPostgresRepository(pool)

	// Writes must evict the API's cached copies.
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
	}

	orgService := organization.NewService(organization.ServiceConfig{
		Repository: repo,
		Metrics:    dependencyMetrics,
		Logger:     log,
	})
	registry := resilience.NewRegistry()
	registry.Register(orgService.Guard())

	cfg := worker.ConfigFromEnv()
	applier := worker.NewApplier(worker.ApplierConfig{
		Store:       orgService,
		Concurrency: cfg.Concurrency,
		Timeout:     cfg.Timeout,
		Logger:      log,
	})
	consumer := worker.NewConsumer(worker.ConsumerConfig{
		Applier:       applier,
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
		Logger:        log,
	})

	pubsubHandler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		ProjectID:        cfg.ProjectID,
		SubscriptionName: cfg.Subscription,
		Consumer:         consumer,
		Logger:           log,
		MaxOutstanding:   cfg.BatchSize * 2,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create pubsub handler")
	}
	defer func() { _ = pubsubHandler.Close() }()

	// Health endpoints
	opsHandler := handler.NewOpsHandler(Version, BuildTime, registry)
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Get("/health", opsHandler.HealthCheck)
	r.Get("/ready", opsHandler.ReadinessCheck)
	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, applier.StatsSnapshot())
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	receiveErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("subscription", cfg.Subscription).
			Int("concurrency", cfg.Concurrency).
			Int("batch_size", cfg.BatchSize).
			Msg("worker started, waiting for messages")
		receiveErr <- pubsubHandler.Start(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("shutting down worker")
	case err := <-receiveErr:
		log.Error().Err(err).Msg("pubsub receive stopped")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

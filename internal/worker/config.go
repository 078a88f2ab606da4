// Package worker consumes organization inventory events and applies them to
// the organization store.
package worker

import (
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the inventory worker.
type Config struct {
	// ProjectID is the Google Cloud project hosting the subscription.
	ProjectID string

	// Subscription is the Pub/Sub subscription to receive from.
	// Default: inventory-events
	Subscription string

	// Concurrency is the number of organizations updated in parallel within
	// one batch.
	// Default: 4
	Concurrency int

	// BatchSize is the number of events collected before a batch is applied.
	// Default: 50
	BatchSize int

	// FlushInterval bounds how long a partial batch waits.
	// Default: 1 second
	FlushInterval time.Duration

	// Timeout is the timeout for each store operation.
	// Default: 10 seconds
	Timeout time.Duration
}

// DefaultConfig returns the default worker configuration.
func DefaultConfig() Config {
	return Config{
		Subscription:  "inventory-events",
		Concurrency:   4,
		BatchSize:     50,
		FlushInterval: time.Second,
		Timeout:       10 * time.Second,
	}
}

// ConfigFromEnv creates a Config from environment variables, falling back to
// DefaultConfig for anything unset or invalid.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.ProjectID = os.Getenv("PUBSUB_PROJECT_ID")
	cfg.Subscription = getEnvOrDefault("PUBSUB_SUBSCRIPTION", cfg.Subscription)
	if n, err := strconv.Atoi(os.Getenv("WORKER_CONCURRENCY")); err == nil && n > 0 {
		cfg.Concurrency = n
	}
	if n, err := strconv.Atoi(os.Getenv("WORKER_BATCH_SIZE")); err == nil && n > 0 {
		cfg.BatchSize = n
	}
	if d, err := time.ParseDuration(os.Getenv("WORKER_FLUSH_INTERVAL")); err == nil && d > 0 {
		cfg.FlushInterval = d
	}
	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/giveandget/giveandget/internal/telemetry"

// DependencyMetrics records calls to backing stores and caches.
type DependencyMetrics struct {
	callDuration metric.Float64Histogram
	callTotal    metric.Int64Counter
	cacheHits    metric.Int64Counter
	cacheMisses  metric.Int64Counter
}

// NewDependencyMetrics creates the instruments on the global meter provider.
func NewDependencyMetrics() (*DependencyMetrics, error) {
	meter := otel.Meter(meterName)

	callDuration, err := meter.Float64Histogram(
		"dependency.call.duration",
		metric.WithDescription("Duration of calls to backing dependencies in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	callTotal, err := meter.Int64Counter(
		"dependency.call.total",
		metric.WithDescription("Total number of calls to backing dependencies"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"dependency.cache.hit",
		metric.WithDescription("Number of cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"dependency.cache.miss",
		metric.WithDescription("Number of cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	return &DependencyMetrics{
		callDuration: callDuration,
		callTotal:    callTotal,
		cacheHits:    cacheHits,
		cacheMisses:  cacheMisses,
	}, nil
}

// RecordCall records one call. A nil receiver is a no-op.
func (m *DependencyMetrics) RecordCall(ctx context.Context, dependency, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("dependency.name", dependency),
		attribute.String("dependency.operation", operation),
	}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	// Detach from request cancellation so the measurement is always recorded.
	ctx = context.WithoutCancel(ctx)
	m.callDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.callTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCacheHit records a cache hit. A nil receiver is a no-op.
func (m *DependencyMetrics) RecordCacheHit(ctx context.Context, cache string) {
	if m == nil {
		return
	}
	m.cacheHits.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attribute.String("cache.name", cache)))
}

// RecordCacheMiss records a cache miss. A nil receiver is a no-op.
func (m *DependencyMetrics) RecordCacheMiss(ctx context.Context, cache string) {
	if m == nil {
		return
	}
	m.cacheMisses.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attribute.String("cache.name", cache)))
}

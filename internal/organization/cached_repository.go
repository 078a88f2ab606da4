package organization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/giveandget/giveandget/internal/geo"
	"github.com/giveandget/giveandget/internal/telemetry"
)

const (
	cacheName      = "organization"
	cacheKeyPrefix = "org:"
)

// CachedRepositoryConfig holds configuration for CachedRepository.
type CachedRepositoryConfig struct {
	// Next is the repository being cached.
	Next Repository

	// Client is the Redis client.
	Client redis.UniversalClient

	// TTL bounds how long a cached organization is served (default: 2 minutes).
	TTL time.Duration

	// Metrics records hits and misses. Optional.
	Metrics *telemetry.DependencyMetrics

	// Logger for cache errors.
	Logger zerolog.Logger
}

// CachedRepository is a read-through Redis cache in front of another
// Repository. Single-organization reads are cached; every write invalidates
// the organization's entry. Radius queries always go to the next repository.
//
// Redis failures never fail a call: reads fall through and writes still
// reach the next repository.
type CachedRepository struct {
	next    Repository
	client  redis.UniversalClient
	ttl     time.Duration
	metrics *telemetry.DependencyMetrics
	logger  zerolog.Logger
}

// NewCachedRepository creates a cached repository.
func NewCachedRepository(cfg CachedRepositoryConfig) *CachedRepository {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &CachedRepository{
		next:    cfg.Next,
		client:  cfg.Client,
		ttl:     ttl,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
}

func cacheKey(id string) string {
	return cacheKeyPrefix + id
}

// Get serves from Redis when possible and populates it on a miss.
func (r *CachedRepository) Get(ctx context.Context, id string) (*Organization, error) {
	data, err := r.client.Get(ctx, cacheKey(id)).Bytes()
	switch {
	case err == nil:
		var org Organization
		if jsonErr := json.Unmarshal(data, &org); jsonErr == nil {
			r.metrics.RecordCacheHit(ctx, cacheName)
			return &org, nil
		}
		r.logger.Warn().Str("organization_id", id).Msg("discarding undecodable cache entry")
	case !errors.Is(err, redis.Nil):
		r.logger.Warn().Err(err).Str("organization_id", id).Msg("organization cache read failed")
	}
	r.metrics.RecordCacheMiss(ctx, cacheName)

	org, err := r.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(org); err == nil {
		if err := r.client.Set(ctx, cacheKey(id), data, r.ttl).Err(); err != nil {
			r.logger.Warn().Err(err).Str("organization_id", id).Msg("organization cache write failed")
		}
	}
	return org, nil
}

// Create stores a new organization.
func (r *CachedRepository) Create(ctx context.Context, org *Organization) error {
	if err := r.next.Create(ctx, org); err != nil {
		return err
	}
	r.invalidate(ctx, org.ID)
	return nil
}

// Update replaces an organization and drops its cache entry.
func (r *CachedRepository) Update(ctx context.Context, org *Organization) error {
	if err := r.next.Update(ctx, org); err != nil {
		return err
	}
	r.invalidate(ctx, org.ID)
	return nil
}

// Upsert creates or replaces an organization and drops its cache entry.
func (r *CachedRepository) Upsert(ctx context.Context, org *Organization) error {
	if err := r.next.Upsert(ctx, org); err != nil {
		return err
	}
	r.invalidate(ctx, org.ID)
	return nil
}

// ApplyNeeds applies an inventory update and drops the cache entry.
func (r *CachedRepository) ApplyNeeds(ctx context.Context, id string, change NeedsChange) (*Organization, error) {
	org, err := r.next.ApplyNeeds(ctx, id, change)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, id)
	return org, nil
}

// WithinRadius is not cached.
func (r *CachedRepository) WithinRadius(ctx context.Context, center geo.Point, radiusMiles float64, filter TypeFilter) ([]Candidate, error) {
	return r.next.WithinRadius(ctx, center, radiusMiles, filter)
}

// Evict drops the cached copy of an organization so the next read goes to the
// next repository.
func (r *CachedRepository) Evict(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, cacheKey(id)).Err(); err != nil {
		return fmt.Errorf("evict organization %s: %w", id, err)
	}
	return nil
}

func (r *CachedRepository) invalidate(ctx context.Context, id string) {
	if err := r.client.Del(context.WithoutCancel(ctx), cacheKey(id)).Err(); err != nil {
		r.logger.Warn().Err(err).Str("organization_id", id).Msg("organization cache invalidation failed")
	}
}

// Ensure CachedRepository implements Repository interface.
var _ Repository = (*CachedRepository)(nil)

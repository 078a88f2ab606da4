package organization_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giveandget/giveandget/internal/organization"
)

type countingRepository struct {
	organization.Repository
	gets atomic.Int32
}

func (r *countingRepository) Get(ctx context.Context, id string) (*organization.Organization, error) {
	r.gets.Add(1)
	return r.Repository.Get(ctx, id)
}

func newCachedRepo(t *testing.T) (*organization.CachedRepository, *countingRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	backing := &countingRepository{Repository: organization.NewInMemoryRepository()}
	repo := organization.NewCachedRepository(organization.CachedRepositoryConfig{
		Next:   backing,
		Client: client,
		TTL:    time.Minute,
		Logger: zerolog.Nop(),
	})
	return repo, backing, mr
}

func TestCachedRepository_ReadThrough(t *testing.T) {
	ctx := context.Background()
	repo, backing, mr := newCachedRepo(t)
	require.NoError(t, repo.Create(ctx, testOrg("org_1", mission, organization.Type{Shelter: true})))

	first, err := repo.Get(ctx, "org_1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), backing.gets.Load())
	assert.True(t, mr.Exists("org:org_1"))
	assert.Equal(t, time.Minute, mr.TTL("org:org_1"))

	second, err := repo.Get(ctx, "org_1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), backing.gets.Load(), "second read is served from redis")
	assert.Equal(t, first.Name, second.Name)
	assert.Equal(t, first.Needs, second.Needs)
	assert.Equal(t, first.Location, second.Location)
}

func TestCachedRepository_MissIsNotCached(t *testing.T) {
	ctx := context.Background()
	repo, _, mr := newCachedRepo(t)

	_, err := repo.Get(ctx, "org_missing")
	assert.ErrorIs(t, err, organization.ErrNotFound)
	assert.False(t, mr.Exists("org:org_missing"))
}

func TestCachedRepository_WritesInvalidate(t *testing.T) {
	ctx := context.Background()
	repo, backing, mr := newCachedRepo(t)
	org := testOrg("org_1", mission, organization.Type{Charity: true})
	require.NoError(t, repo.Create(ctx, org))

	_, err := repo.Get(ctx, "org_1")
	require.NoError(t, err)
	require.True(t, mr.Exists("org:org_1"))

	org.Name = "Renamed"
	require.NoError(t, repo.Update(ctx, org))
	assert.False(t, mr.Exists("org:org_1"))

	got, err := repo.Get(ctx, "org_1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, int32(2), backing.gets.Load())

	_, err = repo.ApplyNeeds(ctx, "org_1", organization.NeedsChange{Remove: []string{"rice"}})
	require.NoError(t, err)
	assert.False(t, mr.Exists("org:org_1"))

	got, err = repo.Get(ctx, "org_1")
	require.NoError(t, err)
	assert.Empty(t, got.Needs)

	require.NoError(t, repo.Upsert(ctx, org))
	assert.False(t, mr.Exists("org:org_1"))
}

func TestCachedRepository_RedisDownFallsThrough(t *testing.T) {
	ctx := context.Background()
	repo, backing, mr := newCachedRepo(t)
	require.NoError(t, repo.Create(ctx, testOrg("org_1", mission, organization.Type{Shelter: true})))

	mr.Close()

	got, err := repo.Get(ctx, "org_1")
	require.NoError(t, err)
	assert.Equal(t, "org_1", got.ID)
	assert.Equal(t, int32(1), backing.gets.Load())

	require.NoError(t, repo.Update(ctx, got))
}

func TestCachedRepository_CorruptEntryIsReplaced(t *testing.T) {
	ctx := context.Background()
	repo, backing, mr := newCachedRepo(t)
	require.NoError(t, repo.Create(ctx, testOrg("org_1", mission, organization.Type{Shelter: true})))
	require.NoError(t, mr.Set("org:org_1", "{not json"))

	got, err := repo.Get(ctx, "org_1")
	require.NoError(t, err)
	assert.Equal(t, "org_1", got.ID)
	assert.Equal(t, int32(1), backing.gets.Load())
}

func TestCachedRepository_WithinRadiusPassesThrough(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newCachedRepo(t)
	require.NoError(t, repo.Create(ctx, testOrg("org_1", north(0.01), organization.Type{Shelter: true})))

	candidates, err := repo.WithinRadius(ctx, mission, 5, organization.AllTypes)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "org_1", candidates[0].Organization.ID)
}

func TestCachedRepository_Evict(t *testing.T) {
	ctx := context.Background()
	repo, backing, mr := newCachedRepo(t)
	require.NoError(t, repo.Create(ctx, testOrg("org_1", mission, organization.Type{Shelter: true})))

	_, err := repo.Get(ctx, "org_1")
	require.NoError(t, err)
	require.True(t, mr.Exists("org:org_1"))

	require.NoError(t, repo.Evict(ctx, "org_1"))
	assert.False(t, mr.Exists("org:org_1"))

	_, err = repo.Get(ctx, "org_1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), backing.gets.Load())
}

func TestService_RefreshEvictsCachedCopy(t *testing.T) {
	ctx := context.Background()
	repo, backing, mr := newCachedRepo(t)
	svc := newService(repo)
	require.NoError(t, repo.Create(ctx, testOrg("org_1", mission, organization.Type{Charity: true})))

	_, err := svc.Get(ctx, "org_1")
	require.NoError(t, err)
	_, err = svc.Get(ctx, "org_1")
	require.NoError(t, err)
	require.Equal(t, int32(1), backing.gets.Load())

	org, err := svc.Refresh(ctx, "org_1")
	require.NoError(t, err)
	assert.Equal(t, "org_1", org.ID)
	assert.Equal(t, int32(2), backing.gets.Load(), "refresh reads through to the store")
	assert.True(t, mr.Exists("org:org_1"), "refresh repopulates the cache")

	_, err = svc.Refresh(ctx, "org_missing")
	assert.ErrorIs(t, err, organization.ErrNotFound)
}

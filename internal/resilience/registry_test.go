package resilience_test

import (
	"context"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giveandget/giveandget/internal/resilience"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	registry := resilience.NewRegistry()
	g := resilience.NewGuard(resilience.DefaultGuardConfig("organization-store"))
	registry.Register(g)

	assert.Equal(t, 1, registry.Len())

	health, ok := registry.Get("organization-store")
	require.True(t, ok)
	assert.Equal(t, gobreaker.StateClosed, health.CircuitState)
	assert.True(t, health.IsHealthy())
	assert.False(t, health.IsDegraded())
	assert.False(t, health.IsUnhealthy())
}

func TestRegistry_Unregister(t *testing.T) {
	registry := resilience.NewRegistry()
	registry.Register(resilience.NewGuard(resilience.DefaultGuardConfig("cache")))

	registry.Unregister("cache")

	assert.Equal(t, 0, registry.Len())
	_, ok := registry.Get("cache")
	assert.False(t, ok)
}

func TestRegistry_AllSortedAndLive(t *testing.T) {
	registry := resilience.NewRegistry()
	store := resilience.NewGuard(resilience.DefaultGuardConfig("store"))
	registry.Register(store)
	registry.Register(resilience.NewGuard(resilience.DefaultGuardConfig("cache")))

	_, err := resilience.Execute(context.Background(), store, func(context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)

	all := registry.All()
	require.Len(t, all, 2)
	assert.Equal(t, "cache", all[0].Name)
	assert.Equal(t, "store", all[1].Name)
	assert.NotNil(t, all[1].LastSuccessAt)
	assert.Nil(t, all[0].LastSuccessAt)
}

package organization_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giveandget/giveandget/internal/geo"
	"github.com/giveandget/giveandget/internal/organization"
)

var mission = geo.Point{Lat: 37.7599, Lng: -122.4148}

// north returns a point offset due north of mission by deg degrees
// (about 69 miles per degree).
func north(deg float64) geo.Point {
	return geo.Point{Lat: mission.Lat + deg, Lng: mission.Lng}
}

func testOrg(id string, loc geo.Point, typ organization.Type) *organization.Organization {
	return &organization.Organization{
		ID:        id,
		Name:      "Org " + id,
		Type:      typ,
		Location:  loc,
		Amenities: organization.DefaultAmenities(),
		Needs: map[string]organization.NeedItem{
			"rice": {Category: "food", Needed: 100, Have: 20, Urgency: "high"},
		},
	}
}

func TestInMemoryRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := organization.NewInMemoryRepository()

	org := testOrg("org_1", mission, organization.Type{Shelter: true})
	require.NoError(t, repo.Create(ctx, org))
	assert.ErrorIs(t, repo.Create(ctx, org), organization.ErrAlreadyExists)

	got, err := repo.Get(ctx, "org_1")
	require.NoError(t, err)
	assert.Equal(t, "Org org_1", got.Name)

	// returned values are copies
	got.Needs["rice"] = organization.NeedItem{Category: "food", Needed: 1}
	again, err := repo.Get(ctx, "org_1")
	require.NoError(t, err)
	assert.Equal(t, 100, again.Needs["rice"].Needed)

	org.Name = "Renamed"
	require.NoError(t, repo.Update(ctx, org))
	got, err = repo.Get(ctx, "org_1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)

	assert.ErrorIs(t, repo.Update(ctx, testOrg("org_missing", mission, organization.Type{Charity: true})), organization.ErrNotFound)

	_, err = repo.Get(ctx, "org_missing")
	assert.ErrorIs(t, err, organization.ErrNotFound)

	require.NoError(t, repo.Upsert(ctx, testOrg("org_2", mission, organization.Type{Charity: true})))
	_, err = repo.Get(ctx, "org_2")
	require.NoError(t, err)
}

func TestInMemoryRepository_ApplyNeeds(t *testing.T) {
	ctx := context.Background()
	repo := organization.NewInMemoryRepository()
	require.NoError(t, repo.Create(ctx, testOrg("org_1", mission, organization.Type{Charity: true})))

	updated, err := repo.ApplyNeeds(ctx, "org_1", organization.NeedsChange{
		Set: map[string]organization.NeedItem{
			"coats": {Category: "clothing", Needed: 30, Have: 5, Urgency: "medium"},
		},
		Remove: []string{"rice"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"coats"}, updated.NeedNames())
	assert.False(t, updated.UpdatedAt.IsZero())

	stored, err := repo.Get(ctx, "org_1")
	require.NoError(t, err)
	assert.Equal(t, updated.Needs, stored.Needs)

	_, err = repo.ApplyNeeds(ctx, "org_missing", organization.NeedsChange{Remove: []string{"x"}})
	assert.ErrorIs(t, err, organization.ErrNotFound)
}

func TestInMemoryRepository_WithinRadius(t *testing.T) {
	ctx := context.Background()
	repo := organization.NewInMemoryRepository()

	for _, org := range []*organization.Organization{
		testOrg("org_far", north(0.30), organization.Type{Shelter: true}),
		testOrg("org_near", north(0.01), organization.Type{Shelter: true}),
		testOrg("org_mid", north(0.10), organization.Type{Charity: true}),
		testOrg("org_both", north(0.05), organization.Type{Shelter: true, Charity: true}),
		testOrg("org_out", north(1.00), organization.Type{Shelter: true}),
	} {
		require.NoError(t, repo.Create(ctx, org))
	}

	tests := []struct {
		name   string
		radius float64
		filter organization.TypeFilter
		want   []string
	}{
		{"all types", 25, organization.AllTypes, []string{"org_near", "org_both", "org_mid", "org_far"}},
		{"shelters", 25, organization.TypeFilter{Shelter: true}, []string{"org_near", "org_both", "org_far"}},
		{"charities", 25, organization.TypeFilter{Charity: true}, []string{"org_both", "org_mid"}},
		{"small radius", 5, organization.AllTypes, []string{"org_near", "org_both"}},
		{"no types", 25, organization.TypeFilter{}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidates, err := repo.WithinRadius(ctx, mission, tt.radius, tt.filter)
			require.NoError(t, err)

			got := make([]string, 0, len(candidates))
			for i, c := range candidates {
				got = append(got, c.Organization.ID)
				assert.Less(t, c.DistanceMiles, tt.radius)
				if i > 0 {
					assert.GreaterOrEqual(t, c.DistanceMiles, candidates[i-1].DistanceMiles)
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInMemoryRepository_WithinRadiusIsStrict(t *testing.T) {
	ctx := context.Background()
	repo := organization.NewInMemoryRepository()
	edge := north(0.05)
	require.NoError(t, repo.Create(ctx, testOrg("org_edge", edge, organization.Type{Charity: true})))

	d := geo.DistanceMiles(mission, edge)

	candidates, err := repo.WithinRadius(ctx, mission, d, organization.AllTypes)
	require.NoError(t, err)
	assert.Empty(t, candidates)

	candidates, err = repo.WithinRadius(ctx, mission, d+1e-6, organization.AllTypes)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.InDelta(t, d, candidates[0].DistanceMiles, 1e-9)
}

package matching_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giveandget/giveandget/internal/geo"
	"github.com/giveandget/giveandget/internal/matching"
	"github.com/giveandget/giveandget/internal/organization"
)

type fakeFetcher struct {
	candidates []organization.Candidate
	err        error
	filters    []organization.TypeFilter
}

func (f *fakeFetcher) FetchCandidates(_ context.Context, _ geo.Point, _ float64, filter organization.TypeFilter) ([]organization.Candidate, error) {
	f.filters = append(f.filters, filter)
	if f.err != nil {
		return nil, f.err
	}
	var out []organization.Candidate
	for _, c := range f.candidates {
		if filter.Matches(c.Organization.Type) {
			out = append(out, c)
		}
	}
	return out, nil
}

var downtown = geo.Point{Lat: 37.7749, Lng: -122.4194}

func newEngine(f matching.CandidateFetcher, concurrency int) *matching.Engine {
	return matching.NewEngine(matching.EngineConfig{
		Fetcher:     f,
		Logger:      zerolog.Nop(),
		Concurrency: concurrency,
	})
}

func candidate(id string, distance float64, typ organization.Type, a organization.Amenities) organization.Candidate {
	return organization.Candidate{
		DistanceMiles: distance,
		Organization: &organization.Organization{
			ID:        id,
			Name:      "Org " + id,
			Type:      typ,
			Amenities: a,
		},
	}
}

var (
	shelterType = organization.Type{Shelter: true}
	charityType = organization.Type{Charity: true}
)

func ids(r matching.Ranking) []string {
	out := make([]string, len(r))
	for i, m := range r {
		out[i] = m.Organization.ID
	}
	return out
}

func assertContiguousRanks(t *testing.T, r matching.Ranking) {
	t.Helper()
	for i, m := range r {
		assert.Equal(t, i+1, m.Rank)
		assert.GreaterOrEqual(t, m.Score, 0)
		assert.LessOrEqual(t, m.Score, 100)
	}
}

func TestEngine_RankPeople_NoProfile(t *testing.T) {
	f := &fakeFetcher{candidates: []organization.Candidate{
		candidate("org_a", 0.5, shelterType, organization.Amenities{}),
		candidate("org_b", 1.5, charityType, organization.Amenities{}),
		candidate("org_c", 4.0, organization.Type{Shelter: true, Charity: true}, organization.Amenities{}),
	}}

	ranking, err := newEngine(f, 0).RankPeople(context.Background(), downtown, 25, nil)
	require.NoError(t, err)

	assert.Equal(t, []organization.TypeFilter{organization.AllTypes}, f.filters)
	assert.Equal(t, []string{"org_a", "org_b", "org_c"}, ids(ranking))
	assertContiguousRanks(t, ranking)
	for _, m := range ranking {
		assert.Equal(t, 100, m.Score)
	}
}

func TestEngine_RankPeople_HousingFiltersInfeasible(t *testing.T) {
	f := &fakeFetcher{candidates: []organization.Candidate{
		candidate("org_small", 0.5, shelterType, organization.Amenities{BedsAvailable: 15}),
		candidate("org_large", 3.0, shelterType, organization.Amenities{BedsAvailable: 30}),
		candidate("org_pantry", 0.1, charityType, organization.Amenities{}),
	}}

	p := matching.DefaultRequesterProfile()
	p.NeedsHousing = true
	p.BedsNeeded = 20

	ranking, err := newEngine(f, 0).RankPeople(context.Background(), downtown, 25, &p)
	require.NoError(t, err)

	assert.Equal(t, []organization.TypeFilter{{Shelter: true}}, f.filters)
	assert.Equal(t, []string{"org_large"}, ids(ranking))
	assertContiguousRanks(t, ranking)
}

func TestEngine_RankPeople_SortsByScore(t *testing.T) {
	f := &fakeFetcher{candidates: []organization.Candidate{
		candidate("org_near_full", 0.5, shelterType, organization.Amenities{BedsAvailable: 1, Fees: 40}),
		candidate("org_mid", 2.0, shelterType, organization.Amenities{BedsAvailable: 10}),
		candidate("org_far_roomy", 6.0, shelterType, organization.Amenities{BedsAvailable: 40}),
	}}

	p := matching.DefaultRequesterProfile()
	p.NeedsHousing = true

	ranking, err := newEngine(f, 0).RankPeople(context.Background(), downtown, 25, &p)
	require.NoError(t, err)
	require.Len(t, ranking, 3)
	assertContiguousRanks(t, ranking)

	for i := 1; i < len(ranking); i++ {
		assert.GreaterOrEqual(t, ranking[i-1].Score, ranking[i].Score)
	}
	assert.Equal(t, "org_near_full", ranking[2].Organization.ID)
}

func TestEngine_RankPeople_CharityMode(t *testing.T) {
	f := &fakeFetcher{candidates: []organization.Candidate{
		candidate("org_shelter", 0.2, shelterType, organization.Amenities{BedsAvailable: 10}),
		candidate("org_pantry", 1.0, charityType, organization.Amenities{}),
	}}

	p := matching.DefaultRequesterProfile()
	p.NeedsFood = true

	ranking, err := newEngine(f, 0).RankPeople(context.Background(), downtown, 25, &p)
	require.NoError(t, err)

	assert.Equal(t, []organization.TypeFilter{{Charity: true}}, f.filters)
	assert.Equal(t, []string{"org_pantry"}, ids(ranking))
}

func TestEngine_TiesKeepDistanceOrder(t *testing.T) {
	f := &fakeFetcher{candidates: []organization.Candidate{
		candidate("org_b", 2.0, charityType, organization.Amenities{}),
		candidate("org_a", 2.0, charityType, organization.Amenities{}),
		candidate("org_c", 2.0, charityType, organization.Amenities{}),
	}}

	p := matching.DefaultRequesterProfile()

	ranking, err := newEngine(f, 2).RankPeople(context.Background(), downtown, 25, &p)
	require.NoError(t, err)
	assert.Equal(t, []string{"org_b", "org_a", "org_c"}, ids(ranking))
}

func TestEngine_RankSupplies(t *testing.T) {
	needy := candidate("org_needy", 10, charityType, organization.Amenities{})
	needy.Organization.Needs = map[string]organization.NeedItem{
		"rice": {Category: "food", Needed: 200, Have: 150, Urgency: "high"},
	}
	stocked := candidate("org_stocked", 1, shelterType, organization.Amenities{})
	stocked.Organization.Needs = map[string]organization.NeedItem{
		"rice": {Category: "food", Needed: 100, Have: 100, Urgency: "high"},
	}
	clothes := candidate("org_clothes", 2, charityType, organization.Amenities{})
	clothes.Organization.Needs = map[string]organization.NeedItem{
		"coats": {Category: "clothing", Needed: 50, Have: 0, Urgency: "high"},
	}
	f := &fakeFetcher{candidates: []organization.Candidate{stocked, clothes, needy}}

	manifest := matching.DonorManifest{{Category: "food", Item: "canned soup", Quantity: 100}}
	ranking, err := newEngine(f, 0).RankSupplies(context.Background(), downtown, 50, manifest)
	require.NoError(t, err)

	assert.Equal(t, []organization.TypeFilter{organization.AllTypes}, f.filters)
	require.Len(t, ranking, 1)
	assert.Equal(t, "org_needy", ranking[0].Organization.ID)
	assert.Equal(t, 79, ranking[0].Score)
	assert.Equal(t, 1, ranking[0].Rank)
}

func TestEngine_RankSupplies_HalfPointScoreRoundsToEven(t *testing.T) {
	pantry := candidate("org_pantry", 0, charityType, organization.Amenities{})
	pantry.Organization.Needs = map[string]organization.NeedItem{
		"rice": {Category: "food", Needed: 100, Have: 50, Urgency: "low"},
	}
	manifest := matching.DonorManifest{{Category: "food", Item: "rice", Quantity: 25}}
	require.InDelta(t, 54.5, matching.ScoreSupply(manifest, pantry.Organization, 0), 1e-9)

	f := &fakeFetcher{candidates: []organization.Candidate{pantry}}
	ranking, err := newEngine(f, 0).RankSupplies(context.Background(), downtown, 50, manifest)
	require.NoError(t, err)

	require.Len(t, ranking, 1)
	assert.Equal(t, 54, ranking[0].Score)
}

func TestEngine_RankSupplies_EmptyManifest(t *testing.T) {
	f := &fakeFetcher{candidates: []organization.Candidate{
		candidate("org_a", 1, charityType, organization.Amenities{}),
		candidate("org_b", 2, shelterType, organization.Amenities{}),
	}}

	for _, manifest := range []matching.DonorManifest{nil, {}} {
		ranking, err := newEngine(f, 0).RankSupplies(context.Background(), downtown, 50, manifest)
		require.NoError(t, err)
		assert.Equal(t, []string{"org_a", "org_b"}, ids(ranking))
		for _, m := range ranking {
			assert.Equal(t, 100, m.Score)
		}
	}
}

func TestEngine_FetchErrorFailsRanking(t *testing.T) {
	errStore := errors.New("store unavailable")
	f := &fakeFetcher{err: errStore}
	engine := newEngine(f, 0)

	p := matching.DefaultRequesterProfile()
	_, err := engine.RankPeople(context.Background(), downtown, 25, &p)
	require.ErrorIs(t, err, matching.ErrFetchCandidates)
	require.ErrorIs(t, err, errStore)

	_, err = engine.RankSupplies(context.Background(), downtown, 25, nil)
	require.ErrorIs(t, err, matching.ErrFetchCandidates)
}

func TestEngine_CancelledContext(t *testing.T) {
	f := &fakeFetcher{candidates: []organization.Candidate{
		candidate("org_a", 1, shelterType, organization.Amenities{BedsAvailable: 5}),
		candidate("org_b", 2, shelterType, organization.Amenities{BedsAvailable: 5}),
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := matching.DefaultRequesterProfile()
	p.NeedsHousing = true

	_, err := newEngine(f, 0).RankPeople(ctx, downtown, 25, &p)
	require.ErrorIs(t, err, context.Canceled)
}

func TestEngine_ResultsAreCopies(t *testing.T) {
	c := candidate("org_a", 1, charityType, organization.Amenities{Languages: []string{"english"}})
	f := &fakeFetcher{candidates: []organization.Candidate{c}}

	ranking, err := newEngine(f, 0).RankSupplies(context.Background(), downtown, 50, nil)
	require.NoError(t, err)
	require.Len(t, ranking, 1)

	ranking[0].Organization.Name = "changed"
	ranking[0].Organization.Amenities.Languages[0] = "changed"
	assert.Equal(t, "Org org_a", c.Organization.Name)
	assert.Equal(t, "english", c.Organization.Amenities.Languages[0])
}

func TestEngine_ParallelMatchesSequential(t *testing.T) {
	var candidates []organization.Candidate
	for i := 0; i < 40; i++ {
		c := candidate(fmt.Sprintf("org_%02d", i), float64(i)*0.6, charityType, organization.Amenities{})
		c.Organization.Needs = map[string]organization.NeedItem{
			"rice":  {Category: "food", Needed: 100 + i, Have: (i * 7) % 90, Urgency: []string{"high", "medium", "low"}[i%3]},
			"socks": {Category: "clothing", Needed: 30, Have: i % 31, Urgency: "medium"},
		}
		candidates = append(candidates, c)
	}
	f := &fakeFetcher{candidates: candidates}
	manifest := matching.DonorManifest{
		{Category: "food", Item: "rice", Quantity: 40},
		{Category: "clothing", Item: "socks", Quantity: 10},
	}

	sequential, err := newEngine(f, 1).RankSupplies(context.Background(), downtown, 50, manifest)
	require.NoError(t, err)
	parallel, err := newEngine(f, 16).RankSupplies(context.Background(), downtown, 50, manifest)
	require.NoError(t, err)

	assert.Equal(t, ids(sequential), ids(parallel))
	for i := range sequential {
		assert.Equal(t, sequential[i].Score, parallel[i].Score)
	}
}

func TestRanking_MarshalJSON(t *testing.T) {
	var candidates []organization.Candidate
	for i := 0; i < 11; i++ {
		candidates = append(candidates, candidate(fmt.Sprintf("org_%02d", i), float64(i), charityType, organization.Amenities{}))
	}
	ranking, err := newEngine(&fakeFetcher{candidates: candidates}, 0).RankPeople(context.Background(), downtown, 25, nil)
	require.NoError(t, err)

	data, err := json.Marshal(ranking)
	require.NoError(t, err)

	raw := string(data)
	assert.True(t, strings.HasPrefix(raw, `{"1":{`))
	assert.Less(t, strings.Index(raw, `"9":`), strings.Index(raw, `"10":`))

	var decoded map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 11)
	assert.Equal(t, "org_00", decoded["1"]["id"])
	assert.Equal(t, float64(100), decoded["1"]["score"])
	assert.Equal(t, "org_10", decoded["11"]["id"])

	empty, err := json.Marshal(matching.Ranking{})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(empty))
}

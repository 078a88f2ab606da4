package organization

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/giveandget/giveandget/internal/geo"
)

// InMemoryRepository is an in-memory implementation of Repository.
// It backs local runs and tests; production uses PostgresRepository.
type InMemoryRepository struct {
	mu   sync.RWMutex
	orgs map[string]*Organization
	now  func() time.Time
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		orgs: make(map[string]*Organization),
		now:  time.Now,
	}
}

// Get retrieves an organization by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Organization, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	org, ok := r.orgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return org.Clone(), nil
}

// Create stores a new organization.
func (r *InMemoryRepository) Create(_ context.Context, org *Organization) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orgs[org.ID]; ok {
		return ErrAlreadyExists
	}
	r.orgs[org.ID] = org.Clone()
	return nil
}

// Update replaces an existing organization.
func (r *InMemoryRepository) Update(_ context.Context, org *Organization) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orgs[org.ID]; !ok {
		return ErrNotFound
	}
	r.orgs[org.ID] = org.Clone()
	return nil
}

// Upsert creates or replaces an organization.
func (r *InMemoryRepository) Upsert(_ context.Context, org *Organization) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.orgs[org.ID] = org.Clone()
	return nil
}

// ApplyNeeds applies a partial need update under the write lock.
func (r *InMemoryRepository) ApplyNeeds(_ context.Context, id string, change NeedsChange) (*Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	org, ok := r.orgs[id]
	if !ok {
		return nil, ErrNotFound
	}

	updated := org.Clone()
	applyNeedsChange(updated, change)
	updated.UpdatedAt = r.now()
	r.orgs[id] = updated

	return updated.Clone(), nil
}

// WithinRadius scans every organization and keeps those inside the radius.
func (r *InMemoryRepository) WithinRadius(_ context.Context, center geo.Point, radiusMiles float64, filter TypeFilter) ([]Candidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	box := geo.BoundingBox(center, radiusMiles)
	candidates := make([]Candidate, 0)
	for _, org := range r.orgs {
		if !filter.Matches(org.Type) || !box.Contains(org.Location) {
			continue
		}
		d := geo.DistanceMiles(center, org.Location)
		if d < radiusMiles {
			candidates = append(candidates, Candidate{DistanceMiles: d, Organization: org.Clone()})
		}
	}

	sortCandidates(candidates)
	return candidates, nil
}

// applyNeedsChange mutates org in place.
func applyNeedsChange(org *Organization, change NeedsChange) {
	if org.Needs == nil {
		org.Needs = make(map[string]NeedItem, len(change.Set))
	}
	for name, item := range change.Set {
		org.Needs[name] = item
	}
	for _, name := range change.Remove {
		delete(org.Needs, name)
	}
}

// sortCandidates orders by distance, breaking ties by ID so results are stable.
func sortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].DistanceMiles != candidates[j].DistanceMiles {
			return candidates[i].DistanceMiles < candidates[j].DistanceMiles
		}
		return candidates[i].Organization.ID < candidates[j].Organization.ID
	})
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)

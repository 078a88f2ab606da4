package organization

import (
	"context"

	"github.com/giveandget/giveandget/internal/geo"
)

// NeedsChange is a partial update of an organization's need items.
// Set entries replace items by name; Remove lists item names to delete.
type NeedsChange struct {
	Set    map[string]NeedItem
	Remove []string
}

// Empty reports whether the change does nothing.
func (c NeedsChange) Empty() bool {
	return len(c.Set) == 0 && len(c.Remove) == 0
}

// Repository defines the interface for organization persistence.
type Repository interface {
	// Get retrieves an organization by ID.
	// Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, id string) (*Organization, error)

	// Create stores a new organization.
	// Returns ErrAlreadyExists if the ID is taken.
	Create(ctx context.Context, org *Organization) error

	// Update replaces an existing organization.
	// Returns ErrNotFound if it does not exist.
	Update(ctx context.Context, org *Organization) error

	// Upsert creates or replaces an organization.
	Upsert(ctx context.Context, org *Organization) error

	// ApplyNeeds atomically applies a partial update to the need items and
	// returns the updated organization.
	ApplyNeeds(ctx context.Context, id string, change NeedsChange) (*Organization, error)

	// WithinRadius returns organizations strictly closer than radiusMiles to
	// center that match the filter, sorted by ascending distance.
	WithinRadius(ctx context.Context, center geo.Point, radiusMiles float64, filter TypeFilter) ([]Candidate, error)
}

package organization

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/giveandget/giveandget/internal/geo"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

const selectColumns = `
	id, name, ein, address, description, image_url,
	is_shelter, is_charity, lat, lng,
	amenities, needs, hours, contact,
	verified, quality_rating, created_at, updated_at
`

// PostgresRepository is a PostgreSQL implementation of Repository.
// Amenities, needs, hours and contact are stored as JSONB documents.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL organization repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Get retrieves an organization by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Organization, error) {
	query := `SELECT ` + selectColumns + ` FROM organizations WHERE id = $1`

	org, err := scanOrganization(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return org, nil
}

// Create stores a new organization.
func (r *PostgresRepository) Create(ctx context.Context, org *Organization) error {
	query := `
		INSERT INTO organizations (
			id, name, ein, address, description, image_url,
			is_shelter, is_charity, lat, lng,
			amenities, needs, hours, contact,
			verified, quality_rating, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := r.pool.Exec(ctx, query, insertArgs(org)...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

// Update replaces an existing organization.
func (r *PostgresRepository) Update(ctx context.Context, org *Organization) error {
	query := `
		UPDATE organizations SET
			name = $2, ein = $3, address = $4, description = $5, image_url = $6,
			is_shelter = $7, is_charity = $8, lat = $9, lng = $10,
			amenities = $11, needs = $12, hours = $13, contact = $14,
			verified = $15, quality_rating = $16, updated_at = $17
		WHERE id = $1
	`

	args := insertArgs(org)
	args = append(args[:16], org.UpdatedAt)

	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update organization: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Upsert creates or replaces an organization, keeping the original created_at.
func (r *PostgresRepository) Upsert(ctx context.Context, org *Organization) error {
	query := `
		INSERT INTO organizations (
			id, name, ein, address, description, image_url,
			is_shelter, is_charity, lat, lng,
			amenities, needs, hours, contact,
			verified, quality_rating, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, ein = EXCLUDED.ein, address = EXCLUDED.address,
			description = EXCLUDED.description, image_url = EXCLUDED.image_url,
			is_shelter = EXCLUDED.is_shelter, is_charity = EXCLUDED.is_charity,
			lat = EXCLUDED.lat, lng = EXCLUDED.lng,
			amenities = EXCLUDED.amenities, needs = EXCLUDED.needs,
			hours = EXCLUDED.hours, contact = EXCLUDED.contact,
			verified = EXCLUDED.verified, quality_rating = EXCLUDED.quality_rating,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := r.pool.Exec(ctx, query, insertArgs(org)...); err != nil {
		return fmt.Errorf("upsert organization: %w", err)
	}
	return nil
}

// ApplyNeeds locks the row, applies the change and writes the needs back.
func (r *PostgresRepository) ApplyNeeds(ctx context.Context, id string, change NeedsChange) (*Organization, error) {
	var updated *Organization

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		query := `SELECT ` + selectColumns + ` FROM organizations WHERE id = $1 FOR UPDATE`
		org, err := scanOrganization(tx.QueryRow(ctx, query, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		applyNeedsChange(org, change)

		err = tx.QueryRow(ctx,
			`UPDATE organizations SET needs = $2, updated_at = now() WHERE id = $1 RETURNING updated_at`,
			id, org.Needs,
		).Scan(&org.UpdatedAt)
		if err != nil {
			return err
		}

		updated = org
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("apply needs: %w", err)
	}

	return updated, nil
}

// WithinRadius prefilters by bounding box in SQL and computes exact
// haversine distances in Go.
func (r *PostgresRepository) WithinRadius(ctx context.Context, center geo.Point, radiusMiles float64, filter TypeFilter) ([]Candidate, error) {
	box := geo.BoundingBox(center, radiusMiles)

	query := `SELECT ` + selectColumns + `
		FROM organizations
		WHERE lat BETWEEN $1 AND $2
		  AND (($3 AND is_shelter) OR ($4 AND is_charity))`
	args := []any{box.MinLat, box.MaxLat, filter.Shelter, filter.Charity}
	if !box.CrossesAntimeridian() {
		query += ` AND lng BETWEEN $5 AND $6`
		args = append(args, box.MinLng, box.MaxLng)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query organizations within radius: %w", err)
	}
	defer rows.Close()

	candidates := make([]Candidate, 0)
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		if !box.Contains(org.Location) {
			continue
		}
		d := geo.DistanceMiles(center, org.Location)
		if d < radiusMiles {
			candidates = append(candidates, Candidate{DistanceMiles: d, Organization: org})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate organizations: %w", err)
	}

	sortCandidates(candidates)
	return candidates, nil
}

// scanOrganization scans one row selected with selectColumns.
func scanOrganization(row pgx.Row) (*Organization, error) {
	var org Organization
	err := row.Scan(
		&org.ID,
		&org.Name,
		&org.EIN,
		&org.Address,
		&org.Description,
		&org.ImageURL,
		&org.Type.Shelter,
		&org.Type.Charity,
		&org.Location.Lat,
		&org.Location.Lng,
		&org.Amenities,
		&org.Needs,
		&org.Hours,
		&org.Contact,
		&org.Verified,
		&org.QualityRating,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func insertArgs(org *Organization) []any {
	needs := org.Needs
	if needs == nil {
		needs = map[string]NeedItem{}
	}
	return []any{
		org.ID,
		org.Name,
		org.EIN,
		org.Address,
		org.Description,
		org.ImageURL,
		org.Type.Shelter,
		org.Type.Charity,
		org.Location.Lat,
		org.Location.Lng,
		org.Amenities,
		needs,
		org.Hours,
		org.Contact,
		org.Verified,
		org.QualityRating,
		org.CreatedAt,
		org.UpdatedAt,
	}
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)

package organization

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/giveandget/giveandget/internal/api/models"
	"github.com/giveandget/giveandget/internal/geo"
	"github.com/giveandget/giveandget/internal/resilience"
	"github.com/giveandget/giveandget/internal/telemetry"
)

// Validation constants.
const (
	MaxNameLength        = 200
	MaxDescriptionLength = 2000
	MaxQualityRating     = 5.0
)

// Need urgencies.
const (
	UrgencyHigh   = "high"
	UrgencyMedium = "medium"
	UrgencyLow    = "low"
)

// StoreDependency names the organization store in metrics and health reports.
const StoreDependency = "organization-store"

// einRegex accepts nine digit employer identification numbers, with or
// without the dash after the prefix.
var einRegex = regexp.MustCompile(`^\d{2}-?\d{7}$`)

// ValidationError represents validation errors.
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

// ServiceConfig holds configuration for the organization service.
type ServiceConfig struct {
	// Repository stores organizations.
	Repository Repository

	// Guard protects store calls. If nil, a default guard is created.
	Guard *resilience.Guard

	// Metrics records store call outcomes. Optional.
	Metrics *telemetry.DependencyMetrics

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service provides organization operations.
type Service struct {
	repo    Repository
	guard   *resilience.Guard
	metrics *telemetry.DependencyMetrics
	logger  zerolog.Logger
	now     func() time.Time
}

// NewService creates a new organization service.
func NewService(cfg ServiceConfig) *Service {
	guard := cfg.Guard
	if guard == nil {
		gc := resilience.DefaultGuardConfig(StoreDependency)
		gc.ExpectedErrors = StoreExpectedErrors()
		guard = resilience.NewGuard(gc)
	}
	return &Service{
		repo:    cfg.Repository,
		guard:   guard,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		now:     time.Now,
	}
}

// StoreExpectedErrors are store results that are answers, not failures.
func StoreExpectedErrors() []error {
	return []error{ErrNotFound, ErrAlreadyExists, ErrNeedNotFound}
}

// Guard returns the guard protecting the store.
func (s *Service) Guard() *resilience.Guard {
	return s.guard
}

// Get retrieves an organization by ID.
func (s *Service) Get(ctx context.Context, id string) (*Organization, error) {
	return guarded(ctx, s, "get", func(ctx context.Context) (*Organization, error) {
		return s.repo.Get(ctx, id)
	})
}

// Create validates and stores a new organization. An empty ID is replaced
// with a generated one.
func (s *Service) Create(ctx context.Context, org *Organization) (*Organization, error) {
	if fieldErrors := Validate(org); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	created := org.Clone()
	if created.ID == "" {
		created.ID = NewID()
	}
	now := s.now()
	created.CreatedAt = now
	created.UpdatedAt = now
	if created.Needs == nil {
		created.Needs = map[string]NeedItem{}
	}
	normalize(created)

	_, err := guarded(ctx, s, "create", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.repo.Create(ctx, created)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("organization_id", created.ID).
		Bool("shelter", created.Type.Shelter).
		Bool("charity", created.Type.Charity).
		Msg("organization created")

	return created, nil
}

// Update replaces an existing organization, keeping its ID and creation time.
func (s *Service) Update(ctx context.Context, id string, org *Organization) (*Organization, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if fieldErrors := Validate(org); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	updated := org.Clone()
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = s.now()
	if updated.Needs == nil {
		updated.Needs = map[string]NeedItem{}
	}
	normalize(updated)

	_, err = guarded(ctx, s, "update", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.repo.Update(ctx, updated)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetNeed creates or replaces one need item.
func (s *Service) SetNeed(ctx context.Context, id, name string, item NeedItem) (*Organization, error) {
	return s.ApplyNeeds(ctx, id, NeedsChange{Set: map[string]NeedItem{name: item}})
}

// RemoveNeed deletes one need item. Returns ErrNeedNotFound if the
// organization has no item with that name.
func (s *Service) RemoveNeed(ctx context.Context, id, name string) (*Organization, error) {
	org, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, ok := org.Needs[name]; !ok {
		return nil, ErrNeedNotFound
	}
	return s.ApplyNeeds(ctx, id, NeedsChange{Remove: []string{name}})
}

// ApplyNeeds validates and applies a partial inventory update.
func (s *Service) ApplyNeeds(ctx context.Context, id string, change NeedsChange) (*Organization, error) {
	var fieldErrors []models.FieldError
	for name, item := range change.Set {
		fieldErrors = append(fieldErrors, validateNeed("needs."+name, name, item)...)
	}
	for _, name := range change.Remove {
		if strings.TrimSpace(name) == "" {
			fieldErrors = append(fieldErrors, models.FieldError{Field: "remove", Message: "item name cannot be empty"})
		}
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}
	if change.Empty() {
		return s.Get(ctx, id)
	}

	normalized := NeedsChange{Remove: change.Remove, Set: make(map[string]NeedItem, len(change.Set))}
	for name, item := range change.Set {
		normalized.Set[name] = normalizeNeed(item)
	}

	return guarded(ctx, s, "apply_needs", func(ctx context.Context) (*Organization, error) {
		return s.repo.ApplyNeeds(ctx, id, normalized)
	})
}

// Import validates every organization, then upserts them in order, keeping
// IDs and creation times from the input where present. Nothing is written if
// any document is invalid; a store failure stops the import and the number
// already written is returned.
func (s *Service) Import(ctx context.Context, orgs []*Organization) (int, error) {
	for i, org := range orgs {
		if fieldErrors := Validate(org); len(fieldErrors) > 0 {
			return 0, fmt.Errorf("organization %d (%s): %w", i, org.Name, &ValidationError{Errors: fieldErrors})
		}
	}

	now := s.now()
	for i, org := range orgs {
		imported := org.Clone()
		if imported.ID == "" {
			imported.ID = NewID()
		}
		if imported.CreatedAt.IsZero() {
			imported.CreatedAt = now
		}
		imported.UpdatedAt = now
		if imported.Needs == nil {
			imported.Needs = map[string]NeedItem{}
		}
		normalize(imported)

		_, err := guarded(ctx, s, "upsert", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.repo.Upsert(ctx, imported)
		})
		if err != nil {
			return i, fmt.Errorf("import organization %s: %w", imported.ID, err)
		}
	}
	return len(orgs), nil
}

// evicter is implemented by repositories that keep a cached copy.
type evicter interface {
	Evict(ctx context.Context, id string) error
}

// Refresh drops any cached copy of an organization and reloads it from the
// store. A failed eviction is logged and the reload still happens.
func (s *Service) Refresh(ctx context.Context, id string) (*Organization, error) {
	if e, ok := s.repo.(evicter); ok {
		if err := e.Evict(ctx, id); err != nil {
			s.logger.Warn().Err(err).Str("organization_id", id).Msg("organization cache eviction failed")
		}
	}
	return s.Get(ctx, id)
}

// WithinRadius returns organizations matching filter strictly within
// radiusMiles of center, nearest first.
func (s *Service) WithinRadius(ctx context.Context, center geo.Point, radiusMiles float64, filter TypeFilter) ([]Candidate, error) {
	if err := center.Validate(); err != nil {
		return nil, err
	}
	return guarded(ctx, s, "within_radius", func(ctx context.Context) ([]Candidate, error) {
		return s.repo.WithinRadius(ctx, center, radiusMiles, filter)
	})
}

// FetchCandidates supplies the matching engine with candidates.
func (s *Service) FetchCandidates(ctx context.Context, loc geo.Point, radiusMiles float64, filter TypeFilter) ([]Candidate, error) {
	return s.WithinRadius(ctx, loc, radiusMiles, filter)
}

// guarded runs a store call through the guard and records its outcome.
func guarded[T any](ctx context.Context, s *Service, operation string, op func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()
	result, err := resilience.Execute(ctx, s.guard, op)

	recorded := err
	for _, expected := range StoreExpectedErrors() {
		if errors.Is(err, expected) {
			recorded = nil
		}
	}
	s.metrics.RecordCall(ctx, StoreDependency, operation, time.Since(start), recorded)

	if recorded != nil {
		s.logger.Warn().Err(err).Str("operation", operation).Msg("organization store call failed")
	}
	return result, err
}

// NewID generates an organization ID.
func NewID() string {
	return "org_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:24]
}

// Validate checks an organization document and returns every problem found.
func Validate(org *Organization) []models.FieldError {
	var errs []models.FieldError

	name := strings.TrimSpace(org.Name)
	if name == "" {
		errs = append(errs, models.FieldError{Field: "name", Message: "is required"})
	} else if len(name) > MaxNameLength {
		errs = append(errs, models.FieldError{Field: "name", Message: "must be at most 200 characters"})
	}

	if len(org.Description) > MaxDescriptionLength {
		errs = append(errs, models.FieldError{Field: "description", Message: "must be at most 2000 characters"})
	}

	if org.EIN != "" && !einRegex.MatchString(org.EIN) {
		errs = append(errs, models.FieldError{Field: "ein", Message: "must be a 9 digit EIN (XX-XXXXXXX)"})
	}

	if !org.Type.Shelter && !org.Type.Charity {
		errs = append(errs, models.FieldError{Field: "type", Message: "must be a shelter, a charity or both"})
	}

	if org.Location.Lat < -90 || org.Location.Lat > 90 {
		errs = append(errs, models.FieldError{Field: "location.lat", Message: "must be between -90 and 90"})
	}
	if org.Location.Lng < -180 || org.Location.Lng > 180 {
		errs = append(errs, models.FieldError{Field: "location.lng", Message: "must be between -180 and 180"})
	}

	if org.QualityRating != nil && (*org.QualityRating < 0 || *org.QualityRating > MaxQualityRating) {
		errs = append(errs, models.FieldError{Field: "quality_rating", Message: "must be between 0 and 5"})
	}

	if org.Contact.Email != "" && !strings.Contains(org.Contact.Email, "@") {
		errs = append(errs, models.FieldError{Field: "contact.email", Message: "must be an email address"})
	}

	errs = append(errs, validateAmenities(&org.Amenities)...)

	for _, name := range org.NeedNames() {
		errs = append(errs, validateNeed("needs."+name, name, org.Needs[name])...)
	}

	return errs
}

func validateAmenities(a *Amenities) []models.FieldError {
	var errs []models.FieldError

	if a.BedsAvailable < 0 {
		errs = append(errs, models.FieldError{Field: "amenities.beds_available", Message: "cannot be negative"})
	}
	if a.Fees < 0 {
		errs = append(errs, models.FieldError{Field: "amenities.fees", Message: "cannot be negative"})
	}
	if a.AgeMinimum < 0 {
		errs = append(errs, models.FieldError{Field: "amenities.age_minimum", Message: "cannot be negative"})
	}
	if a.AgeMaximum < 0 {
		errs = append(errs, models.FieldError{Field: "amenities.age_maximum", Message: "cannot be negative"})
	}
	if a.AgeMinimum > 0 && a.AgeMaximum > 0 && a.AgeMinimum > a.AgeMaximum {
		errs = append(errs, models.FieldError{Field: "amenities.age_minimum", Message: "cannot exceed age_maximum"})
	}
	if a.MaleOnly && a.FemaleOnly {
		errs = append(errs, models.FieldError{Field: "amenities.male_only", Message: "cannot be combined with female_only"})
	}
	if a.MaxStayDays != nil && *a.MaxStayDays < 1 {
		errs = append(errs, models.FieldError{Field: "amenities.max_stay_days", Message: "must be at least 1"})
	}

	return errs
}

func validateNeed(field, name string, item NeedItem) []models.FieldError {
	var errs []models.FieldError

	if strings.TrimSpace(name) == "" {
		errs = append(errs, models.FieldError{Field: field, Message: "item name cannot be empty"})
	}
	if strings.TrimSpace(item.Category) == "" {
		errs = append(errs, models.FieldError{Field: field + ".category", Message: "is required"})
	}
	if item.Needed < 0 {
		errs = append(errs, models.FieldError{Field: field + ".needed", Message: "cannot be negative"})
	}
	if item.Have < 0 {
		errs = append(errs, models.FieldError{Field: field + ".have", Message: "cannot be negative"})
	}
	switch strings.ToLower(strings.TrimSpace(item.Urgency)) {
	case UrgencyHigh, UrgencyMedium, UrgencyLow:
	default:
		errs = append(errs, models.FieldError{Field: field + ".urgency", Message: "must be one of high, medium, low"})
	}

	return errs
}

// normalize lowercases categories and urgencies so stored documents compare
// cleanly.
func normalize(org *Organization) {
	for name, item := range org.Needs {
		org.Needs[name] = normalizeNeed(item)
	}
}

func normalizeNeed(item NeedItem) NeedItem {
	item.Category = strings.ToLower(strings.TrimSpace(item.Category))
	item.Urgency = strings.ToLower(strings.TrimSpace(item.Urgency))
	return item
}

package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Accepted values for the enumerated person filters.
var (
	UrgencyLevels       = []string{"immediate", "within_week", "within_month"}
	DurationFlexibility = []string{"flexible", "fixed"}
	YesNo               = []string{"yes", "no"}
	ImmigrationStatuses = []string{"citizen", "permanent_resident", "temporary_resident", "refugee", "other"}
)

// MaxTravelDistanceCap bounds max_travel_distance_miles. The value is
// accepted for compatibility and does not affect ranking.
const MaxTravelDistanceCap = 500

// PersonFilters describes a person looking for help. needs_housing, gender
// and urgency_level are required; every other field falls back to its
// documented default when omitted.
type PersonFilters struct {
	NeedsHousing *bool `json:"needs_housing"`

	BedsNeeded             *int    `json:"beds_needed,omitempty"`
	NeedsHandicappedAccess *bool   `json:"needs_handicapped_access,omitempty"`
	OwnsPets               *bool   `json:"owns_pets,omitempty"`
	PreferredDurationDays  *int    `json:"preferred_duration_days,omitempty"`
	DaysHomeless           *int    `json:"days_homeless,omitempty"`
	DurationFlexibility    *string `json:"duration_flexibility,omitempty"`

	PrefersFamilyRooming  *bool `json:"prefers_family_rooming,omitempty"`
	CanPayFees            *bool `json:"can_pay_fees,omitempty"`
	MaxAffordableFee      *int  `json:"max_affordable_fee,omitempty"`
	LGBTQIdentity         *bool `json:"lgbtq_identity,omitempty"`
	PrefersMedicalSupport *bool `json:"prefers_medical_support,omitempty"`
	PrefersCounseling     *bool `json:"prefers_counseling,omitempty"`
	PrefersMealsProvided  *bool `json:"prefers_meals_provided,omitempty"`
	PrefersShowers        *bool `json:"prefers_showers,omitempty"`

	UrgencyLevel           string  `json:"urgency_level"`
	MaxTravelDistanceMiles *int    `json:"max_travel_distance_miles,omitempty"`
	Gender                 string  `json:"gender"`
	Age                    *int    `json:"age,omitempty"`
	Language               *string `json:"language,omitempty"`
	ImmigrationStatus      *string `json:"immigration_status,omitempty"`
	VeteranStatus          *string `json:"veteran_status,omitempty"`
	CriminalRecord         *string `json:"criminal_record,omitempty"`
	Sobriety               *string `json:"sobriety,omitempty"`
	HasID                  *bool   `json:"has_id,omitempty"`

	NeedsFood         *bool `json:"needs_food,omitempty"`
	NeedsClothing     *bool `json:"needs_clothing,omitempty"`
	NeedsMedical      *bool `json:"needs_medical,omitempty"`
	NeedsMentalHealth *bool `json:"needs_mental_health,omitempty"`
}

// Validate returns one FieldError per invalid field.
func (f *PersonFilters) Validate() []FieldError {
	const prefix = "person_filters."
	var errs []FieldError

	required := func(field string) {
		errs = append(errs, FieldError{Field: prefix + field, Message: "is required", Code: CodeRequired})
	}
	atLeast := func(field string, v *int, minimum int) {
		if v != nil && *v < minimum {
			errs = append(errs, FieldError{
				Field:   prefix + field,
				Message: fmt.Sprintf("must be at least %d", minimum),
				Code:    CodeOutOfRange,
			})
		}
	}
	oneOf := func(field string, v *string, allowed []string) {
		if v != nil && !containsFold(allowed, *v) {
			errs = append(errs, FieldError{
				Field:   prefix + field,
				Message: "must be one of " + strings.Join(allowed, ", "),
				Code:    CodeInvalid,
			})
		}
	}

	if f.NeedsHousing == nil {
		required("needs_housing")
	}
	if strings.TrimSpace(f.Gender) == "" {
		required("gender")
	}
	if f.UrgencyLevel == "" {
		required("urgency_level")
	} else {
		oneOf("urgency_level", &f.UrgencyLevel, UrgencyLevels)
	}

	atLeast("beds_needed", f.BedsNeeded, 1)
	atLeast("preferred_duration_days", f.PreferredDurationDays, 1)
	atLeast("days_homeless", f.DaysHomeless, 0)
	atLeast("max_affordable_fee", f.MaxAffordableFee, 0)

	if f.Age != nil && (*f.Age < 0 || *f.Age > 120) {
		errs = append(errs, FieldError{Field: prefix + "age", Message: "must be between 0 and 120", Code: CodeOutOfRange})
	}
	if d := f.MaxTravelDistanceMiles; d != nil && (*d < 1 || *d > MaxTravelDistanceCap) {
		errs = append(errs, FieldError{
			Field:   prefix + "max_travel_distance_miles",
			Message: fmt.Sprintf("must be between 1 and %d", MaxTravelDistanceCap),
			Code:    CodeOutOfRange,
		})
	}

	oneOf("duration_flexibility", f.DurationFlexibility, DurationFlexibility)
	oneOf("immigration_status", f.ImmigrationStatus, ImmigrationStatuses)
	oneOf("veteran_status", f.VeteranStatus, YesNo)
	oneOf("criminal_record", f.CriminalRecord, YesNo)
	oneOf("sobriety", f.Sobriety, YesNo)

	return errs
}

// DonorItem is one item a donor offers.
type DonorItem struct {
	Category string `json:"category"`
	Item     string `json:"item"`
	Quantity int    `json:"quantity"`
}

// DonorItems wraps the donor's list of items.
type DonorItems struct {
	Items []DonorItem `json:"items"`
}

// Validate returns one FieldError per invalid field.
func (d *DonorItems) Validate() []FieldError {
	if len(d.Items) == 0 {
		return []FieldError{{Field: "donor_items.items", Message: "must contain at least one item", Code: CodeRequired}}
	}

	var errs []FieldError
	for i, item := range d.Items {
		field := fmt.Sprintf("donor_items.items[%d]", i)
		if strings.TrimSpace(item.Category) == "" {
			errs = append(errs, FieldError{Field: field + ".category", Message: "is required", Code: CodeRequired})
		}
		if strings.TrimSpace(item.Item) == "" {
			errs = append(errs, FieldError{Field: field + ".item", Message: "is required", Code: CodeRequired})
		}
		if item.Quantity < 1 {
			errs = append(errs, FieldError{Field: field + ".quantity", Message: "must be at least 1", Code: CodeOutOfRange})
		}
	}
	return errs
}

// PeopleMatchRequest is the request body for POST /v1/matches/people.
// Without person_filters every nearby organization is returned by distance.
type PeopleMatchRequest struct {
	Location      *Location      `json:"location"`
	Radius        *float64       `json:"radius,omitempty"`
	PersonFilters *PersonFilters `json:"person_filters,omitempty"`
}

// Validate returns one FieldError per invalid field.
func (r *PeopleMatchRequest) Validate() []FieldError {
	errs := validateLocation("location", r.Location)
	errs = append(errs, validateRadius(r.Radius)...)
	if r.PersonFilters != nil {
		errs = append(errs, r.PersonFilters.Validate()...)
	}
	return errs
}

// RadiusMiles returns the requested radius or the default.
func (r *PeopleMatchRequest) RadiusMiles() float64 {
	return radiusOrDefault(r.Radius)
}

// SupplyMatchRequest is the request body for POST /v1/matches/supplies.
// Without donor_items every nearby organization is returned by distance.
type SupplyMatchRequest struct {
	Location   *Location   `json:"location"`
	Radius     *float64    `json:"radius,omitempty"`
	DonorItems *DonorItems `json:"donor_items,omitempty"`
}

// Validate returns one FieldError per invalid field.
func (r *SupplyMatchRequest) Validate() []FieldError {
	errs := validateLocation("location", r.Location)
	errs = append(errs, validateRadius(r.Radius)...)
	if r.DonorItems != nil {
		errs = append(errs, r.DonorItems.Validate()...)
	}
	return errs
}

// RadiusMiles returns the requested radius or the default.
func (r *SupplyMatchRequest) RadiusMiles() float64 {
	return radiusOrDefault(r.Radius)
}

// MatchResponse is returned by both match endpoints. RankedOrganizations
// encodes as an object keyed by rank.
type MatchResponse struct {
	Success             bool           `json:"success"`
	MatchesFound        int            `json:"matches_found"`
	RankedOrganizations json.Marshaler `json:"ranked_organizations"`
}

func containsFold(values []string, v string) bool {
	v = strings.TrimSpace(v)
	for _, allowed := range values {
		if strings.EqualFold(allowed, v) {
			return true
		}
	}
	return false
}

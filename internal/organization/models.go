// Package organization manages shelter and charity records and the radius
// lookup the matching engine draws its candidates from.
package organization

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/giveandget/giveandget/internal/geo"
)

// Repository errors.
var (
	ErrNotFound      = errors.New("organization not found")
	ErrAlreadyExists = errors.New("organization already exists")
	ErrNeedNotFound  = errors.New("need item not found")
)

// Default amenity values for newly registered organizations.
const (
	DefaultAgeMaximum = 120
	DefaultLanguage   = "english"
)

// Type flags which kinds of service an organization offers. An organization
// can be both a shelter and a charity.
type Type struct {
	Shelter bool `json:"shelter"`
	Charity bool `json:"charity"`
}

// Amenities is the fixed attribute bag of an organization. The zero value
// means "nothing offered, no restrictions".
type Amenities struct {
	Accessible                 bool     `json:"accessible"`
	LGBTQOnly                  bool     `json:"lgbtq_only"`
	MaleOnly                   bool     `json:"male_only"`
	FemaleOnly                 bool     `json:"female_only"`
	AllGender                  bool     `json:"all_gender"`
	PetFriendly                bool     `json:"pet_friendly"`
	Languages                  []string `json:"languages,omitempty"`
	FamilyRooming              bool     `json:"family_rooming"`
	BedsAvailable              int      `json:"beds_available"`
	MedicalSupport             bool     `json:"medical_support"`
	CounselingSupport          bool     `json:"counseling_support"`
	Fees                       int      `json:"fees"`
	AgeMinimum                 int      `json:"age_minimum"`
	AgeMaximum                 int      `json:"age_maximum"`
	VeteranOnly                bool     `json:"veteran_only"`
	ImmigrantOnly              bool     `json:"immigrant_only"`
	RefugeeOnly                bool     `json:"refugee_only"`
	GoodCriminalRecordStanding bool     `json:"good_criminal_record_standing"`
	SobrietyRequired           bool     `json:"sobriety_required"`
	Showers                    bool     `json:"showers"`
	IDRequired                 bool     `json:"id_required"`
	ProvidesMeals              bool     `json:"provides_meals"`
	MaxStayDays                *int     `json:"max_stay_days,omitempty"`
}

// DefaultAmenities returns the amenities a newly registered organization starts with.
func DefaultAmenities() Amenities {
	return Amenities{
		Languages:  []string{DefaultLanguage},
		AgeMaximum: DefaultAgeMaximum,
	}
}

// SupportsLanguage reports whether staff support the given language.
// An empty language list means English only.
func (a Amenities) SupportsLanguage(language string) bool {
	languages := a.Languages
	if len(languages) == 0 {
		languages = []string{DefaultLanguage}
	}
	for _, l := range languages {
		if strings.EqualFold(strings.TrimSpace(l), strings.TrimSpace(language)) {
			return true
		}
	}
	return false
}

// NeedItem is an inventory line: how much of something the organization
// wants and how much it has on hand.
type NeedItem struct {
	Category string `json:"category"`
	Needed   int    `json:"needed"`
	Have     int    `json:"have"`
	Urgency  string `json:"urgency"`
}

// Gap returns the unmet quantity, which may be zero or negative.
func (n NeedItem) Gap() int {
	return n.Needed - n.Have
}

// Hours holds free-form opening hours per weekday.
type Hours struct {
	Monday    string `json:"monday"`
	Tuesday   string `json:"tuesday"`
	Wednesday string `json:"wednesday"`
	Thursday  string `json:"thursday"`
	Friday    string `json:"friday"`
	Saturday  string `json:"saturday"`
	Sunday    string `json:"sunday"`
}

// Contact holds an organization's public contact details.
type Contact struct {
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Website string `json:"website,omitempty"`
}

// Organization is a shelter and/or charity.
type Organization struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	EIN           string              `json:"ein"`
	Address       string              `json:"address"`
	Description   string              `json:"description,omitempty"`
	ImageURL      string              `json:"image_url,omitempty"`
	Type          Type                `json:"type"`
	Location      geo.Point           `json:"location"`
	Amenities     Amenities           `json:"amenities"`
	Needs         map[string]NeedItem `json:"needs"`
	Hours         Hours               `json:"hours"`
	Contact       Contact             `json:"contact"`
	Verified      bool                `json:"verified"`
	QualityRating *float64            `json:"quality_rating,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// Clone returns a deep copy so callers can never mutate shared state.
func (o *Organization) Clone() *Organization {
	if o == nil {
		return nil
	}
	cpy := *o
	if o.Amenities.Languages != nil {
		cpy.Amenities.Languages = append([]string(nil), o.Amenities.Languages...)
	}
	if o.Amenities.MaxStayDays != nil {
		v := *o.Amenities.MaxStayDays
		cpy.Amenities.MaxStayDays = &v
	}
	if o.QualityRating != nil {
		v := *o.QualityRating
		cpy.QualityRating = &v
	}
	if o.Needs != nil {
		cpy.Needs = make(map[string]NeedItem, len(o.Needs))
		for k, v := range o.Needs {
			cpy.Needs[k] = v
		}
	}
	return &cpy
}

// NeedNames returns the need item names in ascending order. Scoring iterates
// needs in this order so that sums are reproducible.
func (o *Organization) NeedNames() []string {
	names := make([]string, 0, len(o.Needs))
	for name := range o.Needs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TypeFilter selects organizations by type. An organization matches when it
// has at least one of the requested types.
type TypeFilter struct {
	Shelter bool `json:"shelter"`
	Charity bool `json:"charity"`
}

// AllTypes matches every shelter and charity.
var AllTypes = TypeFilter{Shelter: true, Charity: true}

// Matches reports whether the organization type passes the filter.
func (f TypeFilter) Matches(t Type) bool {
	return (f.Shelter && t.Shelter) || (f.Charity && t.Charity)
}

// Candidate is an organization annotated with its distance from the query point.
type Candidate struct {
	DistanceMiles float64
	Organization  *Organization
}

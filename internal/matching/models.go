// Package matching ranks shelters and charities for people looking for help
// and for donors looking for somewhere to give.
//
// Scoring is pure: every function takes the full input and returns a value,
// so organizations can be scored concurrently within one request.
package matching

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/giveandget/giveandget/internal/organization"
)

// Urgency levels a person can declare.
const (
	UrgencyImmediate   = "immediate"
	UrgencyWithinWeek  = "within_week"
	UrgencyWithinMonth = "within_month"
)

// Duration flexibility values.
const (
	DurationFlexible = "flexible"
	DurationFixed    = "fixed"
)

// Yes and No are the values of the yes/no profile answers.
const (
	Yes = "yes"
	No  = "no"
)

// RequesterProfile is what a person tells us about their situation.
// Use DefaultRequesterProfile as the starting point so omitted answers carry
// their documented defaults.
type RequesterProfile struct {
	NeedsHousing bool `json:"needs_housing"`

	// Housing
	BedsNeeded             int    `json:"beds_needed"`
	NeedsHandicappedAccess bool   `json:"needs_handicapped_access"`
	OwnsPets               bool   `json:"owns_pets"`
	DaysHomeless           int    `json:"days_homeless"`
	PreferredDurationDays  int    `json:"preferred_duration_days"`
	DurationFlexibility    string `json:"duration_flexibility"`

	// Preferences
	PrefersFamilyRooming  bool `json:"prefers_family_rooming"`
	CanPayFees            bool `json:"can_pay_fees"`
	MaxAffordableFee      int  `json:"max_affordable_fee"`
	LGBTQIdentity         bool `json:"lgbtq_identity"`
	PrefersMedicalSupport bool `json:"prefers_medical_support"`
	PrefersCounseling     bool `json:"prefers_counseling"`
	PrefersMealsProvided  bool `json:"prefers_meals_provided"`
	PrefersShowers        bool `json:"prefers_showers"`

	// Demographics and eligibility
	UrgencyLevel      string `json:"urgency_level"`
	Gender            string `json:"gender"`
	Age               *int   `json:"age,omitempty"`
	Language          string `json:"language"`
	ImmigrationStatus string `json:"immigration_status"`
	VeteranStatus     string `json:"veteran_status"`
	CriminalRecord    string `json:"criminal_record"`
	Sobriety          string `json:"sobriety"`
	HasID             bool   `json:"has_id"`

	// Resource needs
	NeedsFood         bool `json:"needs_food"`
	NeedsClothing     bool `json:"needs_clothing"`
	NeedsMedical      bool `json:"needs_medical"`
	NeedsMentalHealth bool `json:"needs_mental_health"`
}

// DefaultRequesterProfile returns a profile holding the default answer for
// every optional field.
func DefaultRequesterProfile() RequesterProfile {
	return RequesterProfile{
		BedsNeeded:            1,
		PreferredDurationDays: 30,
		DurationFlexibility:   DurationFlexible,
		UrgencyLevel:          UrgencyWithinMonth,
		Language:              organization.DefaultLanguage,
		VeteranStatus:         No,
		CriminalRecord:        No,
		Sobriety:              No,
		HasID:                 true,
	}
}

// DonorItem is one line of what a donor is offering.
type DonorItem struct {
	Category string `json:"category"`
	Item     string `json:"item"`
	Quantity int    `json:"quantity"`
}

// DonorManifest is the ordered list of items a donor offers.
type DonorManifest []DonorItem

// MatchResult is one ranked organization.
type MatchResult struct {
	Rank          int
	DistanceMiles float64
	Organization  *organization.Organization
	Score         int
}

// Ranking is an ordered list of results, rank 1 first.
type Ranking []MatchResult

// scoredOrganization is the wire form of a ranked organization: the
// organization document with a score attached.
type scoredOrganization struct {
	*organization.Organization
	Score int `json:"score"`
}

// MarshalJSON encodes the ranking as an object keyed by rank ("1", "2", ...)
// with keys emitted in rank order.
func (r Ranking) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(strconv.Itoa(m.Rank)))
		buf.WriteByte(':')
		b, err := json.Marshal(scoredOrganization{Organization: m.Organization, Score: m.Score})
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

package matching

import (
	"fmt"
	"strings"

	"github.com/giveandget/giveandget/internal/organization"
)

// Rule names, in evaluation order.
const (
	RulePets              = "pets"
	RuleWheelchairAccess  = "wheelchair_access"
	RuleCapacity          = "capacity"
	RuleGender            = "gender"
	RuleAge               = "age"
	RuleCriminalRecord    = "criminal_record"
	RuleSobriety          = "sobriety"
	RuleIDRequirement     = "id_requirement"
	RuleVeteranPriority   = "veteran_priority"
	RuleImmigrantPriority = "immigrant_priority"
	RuleRefugeePriority   = "refugee_priority"
	RuleLanguageSupport   = "language_support"
)

// FeasibilityResult is the outcome of checking every eligibility rule.
// Each rule name appears in exactly one of Passed and Failed; Reasons holds
// one message per failed rule, in the same order.
type FeasibilityResult struct {
	Feasible bool     `json:"is_feasible"`
	Passed   []string `json:"passed"`
	Failed   []string `json:"failed"`
	Reasons  []string `json:"reasons"`
}

// rule is one hard constraint. A rule that does not apply passes.
type rule struct {
	name      string
	applies   func(p *RequesterProfile, a *organization.Amenities) bool
	satisfied func(p *RequesterProfile, a *organization.Amenities) bool
	reason    func(p *RequesterProfile, a *organization.Amenities) string
}

func fixedReason(msg string) func(*RequesterProfile, *organization.Amenities) string {
	return func(*RequesterProfile, *organization.Amenities) string { return msg }
}

// immigrantStatuses are the statuses counted as non-citizen.
var immigrantStatuses = []string{"permanent_resident", "temporary_resident", "refugee", "other"}

var rules = []rule{
	{
		name: RulePets,
		applies: func(p *RequesterProfile, _ *organization.Amenities) bool {
			return p.NeedsHousing && p.OwnsPets
		},
		satisfied: func(_ *RequesterProfile, a *organization.Amenities) bool { return a.PetFriendly },
		reason:    fixedReason("Shelter does not allow pets"),
	},
	{
		name: RuleWheelchairAccess,
		applies: func(p *RequesterProfile, _ *organization.Amenities) bool {
			return p.NeedsHousing && p.NeedsHandicappedAccess
		},
		satisfied: func(_ *RequesterProfile, a *organization.Amenities) bool { return a.Accessible },
		reason:    fixedReason("Shelter is not wheelchair accessible"),
	},
	{
		name:    RuleCapacity,
		applies: func(p *RequesterProfile, _ *organization.Amenities) bool { return p.NeedsHousing },
		satisfied: func(p *RequesterProfile, a *organization.Amenities) bool {
			return p.BedsNeeded <= a.BedsAvailable
		},
		reason: func(p *RequesterProfile, a *organization.Amenities) string {
			return fmt.Sprintf("Not enough beds (need %d, available %d)", p.BedsNeeded, a.BedsAvailable)
		},
	},
	{
		name: RuleGender,
		applies: func(_ *RequesterProfile, a *organization.Amenities) bool {
			return a.MaleOnly || a.FemaleOnly || a.LGBTQOnly
		},
		satisfied: genderMatches,
		reason: func(_ *RequesterProfile, a *organization.Amenities) string {
			switch {
			case a.MaleOnly:
				return "Shelter is male-only"
			case a.FemaleOnly:
				return "Shelter is female-only"
			default:
				return "Shelter is LGBTQ+ only"
			}
		},
	},
	{
		name: RuleAge,
		applies: func(_ *RequesterProfile, a *organization.Amenities) bool {
			return a.AgeMinimum != 0 || a.AgeMaximum != 0
		},
		satisfied: ageInRange,
		reason: func(_ *RequesterProfile, a *organization.Amenities) string {
			return fmt.Sprintf("Age requirements not met (shelter: %d-%d)", a.AgeMinimum, a.AgeMaximum)
		},
	},
	{
		name: RuleCriminalRecord,
		applies: func(p *RequesterProfile, _ *organization.Amenities) bool {
			return equalFold(p.CriminalRecord, Yes)
		},
		satisfied: func(_ *RequesterProfile, a *organization.Amenities) bool {
			return !a.GoodCriminalRecordStanding
		},
		reason: fixedReason("Shelter requires good criminal record standing"),
	},
	{
		name:    RuleSobriety,
		applies: func(_ *RequesterProfile, a *organization.Amenities) bool { return a.SobrietyRequired },
		satisfied: func(p *RequesterProfile, _ *organization.Amenities) bool {
			return equalFold(p.Sobriety, Yes)
		},
		reason: fixedReason("Shelter requires sobriety"),
	},
	{
		name:      RuleIDRequirement,
		applies:   func(_ *RequesterProfile, a *organization.Amenities) bool { return a.IDRequired },
		satisfied: func(p *RequesterProfile, _ *organization.Amenities) bool { return p.HasID },
		reason:    fixedReason("Shelter requires government-issued ID"),
	},
	{
		name:    RuleVeteranPriority,
		applies: func(_ *RequesterProfile, a *organization.Amenities) bool { return a.VeteranOnly },
		satisfied: func(p *RequesterProfile, _ *organization.Amenities) bool {
			return equalFold(p.VeteranStatus, Yes)
		},
		reason: fixedReason("Shelter is veterans-only"),
	},
	{
		name:    RuleImmigrantPriority,
		applies: func(_ *RequesterProfile, a *organization.Amenities) bool { return a.ImmigrantOnly },
		satisfied: func(p *RequesterProfile, _ *organization.Amenities) bool {
			return oneOf(p.ImmigrationStatus, immigrantStatuses...)
		},
		reason: fixedReason("Shelter is for immigrants only"),
	},
	{
		name:    RuleRefugeePriority,
		applies: func(_ *RequesterProfile, a *organization.Amenities) bool { return a.RefugeeOnly },
		satisfied: func(p *RequesterProfile, _ *organization.Amenities) bool {
			return equalFold(p.ImmigrationStatus, "refugee")
		},
		reason: fixedReason("Shelter is for refugees only"),
	},
	{
		name: RuleLanguageSupport,
		applies: func(p *RequesterProfile, _ *organization.Amenities) bool {
			return p.NeedsHousing && !equalFold(requesterLanguage(p), organization.DefaultLanguage)
		},
		satisfied: func(p *RequesterProfile, a *organization.Amenities) bool {
			return a.SupportsLanguage(requesterLanguage(p))
		},
		reason: func(p *RequesterProfile, _ *organization.Amenities) string {
			return fmt.Sprintf("Shelter does not have %s language support", requesterLanguage(p))
		},
	},
}

// RuleNames returns the names of all eligibility rules in evaluation order.
func RuleNames() []string {
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.name
	}
	return names
}

// CheckFeasibility evaluates every eligibility rule of org against the profile.
func CheckFeasibility(p *RequesterProfile, org *organization.Organization) FeasibilityResult {
	a := &org.Amenities
	res := FeasibilityResult{
		Passed:  make([]string, 0, len(rules)),
		Failed:  []string{},
		Reasons: []string{},
	}
	for _, r := range rules {
		if !r.applies(p, a) || r.satisfied(p, a) {
			res.Passed = append(res.Passed, r.name)
			continue
		}
		res.Failed = append(res.Failed, r.name)
		res.Reasons = append(res.Reasons, r.reason(p, a))
	}
	res.Feasible = len(res.Failed) == 0
	return res
}

func genderMatches(p *RequesterProfile, a *organization.Amenities) bool {
	switch {
	case a.MaleOnly:
		return oneOf(p.Gender, "male", "m")
	case a.FemaleOnly:
		return oneOf(p.Gender, "female", "f")
	case a.LGBTQOnly:
		return p.LGBTQIdentity || oneOf(p.Gender, "non-binary", "other", "lgbtq")
	}
	return true
}

// ageInRange treats a bound of zero or less as unbounded. A missing age
// cannot be verified and fails.
func ageInRange(p *RequesterProfile, a *organization.Amenities) bool {
	if p.Age == nil {
		return false
	}
	age := *p.Age
	if a.AgeMinimum > 0 && age < a.AgeMinimum {
		return false
	}
	if a.AgeMaximum > 0 && age > a.AgeMaximum {
		return false
	}
	return true
}

func requesterLanguage(p *RequesterProfile) string {
	lang := strings.TrimSpace(p.Language)
	if lang == "" {
		return organization.DefaultLanguage
	}
	return lang
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), b)
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if equalFold(v, o) {
			return true
		}
	}
	return false
}

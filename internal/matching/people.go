package matching

import (
	"math"
	"strings"

	"github.com/giveandget/giveandget/internal/organization"
)

var urgencyLevels = map[string]float64{
	UrgencyImmediate:   1.0,
	UrgencyWithinWeek:  0.7,
	UrgencyWithinMonth: 0.4,
}

// neutralScore is used wherever there is nothing to compare.
const neutralScore = 0.5

// ScorePerson scores org for the person on a 0-100 scale, rounded to two
// decimals. Housing requests weigh urgency, distance, shelter fit and
// capacity; resource requests weigh distance, charity fit and stock.
func ScorePerson(p *RequesterProfile, org *organization.Organization, distanceMiles float64) float64 {
	distance := DistanceScore(distanceMiles, PersonMaxDistanceMiles)

	var total float64
	if p.NeedsHousing {
		total = 0.35*personUrgency(p) +
			0.30*distance +
			0.25*shelterFit(p, org) +
			0.10*capacityScore(org.Amenities.BedsAvailable)
	} else {
		total = 0.40*distance +
			0.35*charityFit(p, org) +
			0.25*stockScore(org)
	}
	return round2(total * 100)
}

// personUrgency is the declared urgency plus up to 0.2 for time already spent
// homeless (30 days earns the full bonus), capped at 1.
func personUrgency(p *RequesterProfile) float64 {
	score, ok := urgencyLevels[strings.ToLower(strings.TrimSpace(p.UrgencyLevel))]
	if !ok {
		score = urgencyLevels[UrgencyWithinMonth]
	}
	if p.NeedsHousing && p.DaysHomeless > 0 {
		bonus := math.Min(float64(p.DaysHomeless)/30, 1) * 0.2
		score = math.Min(score+bonus, 1)
	}
	return score
}

// fitScore accumulates weighted preference points.
type fitScore struct {
	points    float64
	maxPoints float64
}

// preference counts a dimension only when the person asked for it.
func (f *fitScore) preference(wanted, offered bool, weight, partial float64) {
	if !wanted {
		return
	}
	f.add(weight, weight, partial, offered)
}

func (f *fitScore) add(weight, full, partial float64, ok bool) {
	f.maxPoints += weight
	if ok {
		f.points += full
	} else {
		f.points += partial
	}
}

func (f *fitScore) value() float64 {
	if f.maxPoints == 0 {
		return neutralScore
	}
	return math.Min(f.points/f.maxPoints, 1)
}

func shelterFit(p *RequesterProfile, org *organization.Organization) float64 {
	a := &org.Amenities
	var f fitScore

	f.preference(p.PrefersFamilyRooming, a.FamilyRooming, 1.0, 0.2)

	f.maxPoints += 1.5
	f.points += feePoints(p, a.Fees)

	f.preference(p.LGBTQIdentity, a.LGBTQOnly || a.AllGender, 0.8, 0.2)
	f.preference(p.PrefersMedicalSupport, a.MedicalSupport, 0.8, 0.1)
	f.preference(p.PrefersCounseling, a.CounselingSupport, 0.8, 0.1)
	f.preference(p.PrefersMealsProvided, a.ProvidesMeals, 1.0, 0.1)
	f.preference(p.PrefersShowers, a.Showers, 0.6, 0.1)

	f.maxPoints += 1.0
	f.points += durationPoints(p, a.MaxStayDays)

	f.maxPoints += 1.5
	f.points += qualityPoints(org.QualityRating, 1.5)

	return f.value()
}

func feePoints(p *RequesterProfile, fee int) float64 {
	budget := float64(p.MaxAffordableFee)
	switch {
	case fee == 0:
		return 1.5
	case p.CanPayFees && float64(fee) <= budget:
		return 1.5
	case p.CanPayFees && float64(fee) <= budget*1.2:
		return 0.8
	case !p.CanPayFees && fee > 0:
		return 0
	default:
		return 0.3
	}
}

// durationPoints grades how well the maximum stay covers the preferred
// duration. A nil maximum means no limit.
func durationPoints(p *RequesterProfile, maxStay *int) float64 {
	if maxStay == nil {
		return 1.0
	}
	stay := float64(*maxStay)
	preferred := float64(p.PreferredDurationDays)
	flexible := !strings.EqualFold(strings.TrimSpace(p.DurationFlexibility), DurationFixed)

	switch {
	case stay >= preferred:
		return 1.0
	case flexible && stay >= preferred*0.5:
		return 0.7
	case flexible:
		return 0.4
	case stay >= preferred*0.8:
		return 0.6
	default:
		return 0.2
	}
}

// qualityPoints scales a 0-5 rating to weight. An unknown or zero rating
// earns half the weight.
func qualityPoints(rating *float64, weight float64) float64 {
	if rating == nil || *rating == 0 {
		return weight / 2
	}
	return (*rating / 5) * weight
}

// charityCategory is a resource category a person can ask for and the
// on-hand quantity that counts as fully stocked.
type charityCategory struct {
	wanted     func(p *RequesterProfile) bool
	categories []string
	weight     float64
	normalizer float64
}

var charityCategories = []charityCategory{
	{wanted: func(p *RequesterProfile) bool { return p.NeedsFood }, categories: []string{"food"}, weight: 1.5, normalizer: 100},
	{wanted: func(p *RequesterProfile) bool { return p.NeedsClothing }, categories: []string{"clothing"}, weight: 1.0, normalizer: 50},
	{wanted: func(p *RequesterProfile) bool { return p.NeedsMedical }, categories: []string{"medical"}, weight: 1.0, normalizer: 30},
	{wanted: func(p *RequesterProfile) bool { return p.NeedsMentalHealth }, categories: []string{"mental_health", "counseling"}, weight: 0.8, normalizer: 20},
}

func charityFit(p *RequesterProfile, org *organization.Organization) float64 {
	onHand := onHandByCategory(org)
	var f fitScore

	for _, c := range charityCategories {
		if !c.wanted(p) {
			continue
		}
		f.maxPoints += c.weight
		stock := 0
		for _, name := range c.categories {
			stock += onHand[name]
		}
		if stock > 0 {
			f.points += c.weight * math.Min(float64(stock)/c.normalizer, 1)
		}
	}

	f.maxPoints += 0.7
	f.points += qualityPoints(org.QualityRating, 0.7)

	return f.value()
}

// onHandByCategory sums the quantity on hand per lowercased category.
func onHandByCategory(org *organization.Organization) map[string]int {
	totals := make(map[string]int)
	for _, name := range org.NeedNames() {
		item := org.Needs[name]
		category := strings.ToLower(strings.TrimSpace(item.Category))
		if category == "" {
			continue
		}
		totals[category] += item.Have
	}
	return totals
}

// stockScore is the average fill level across all need items, rounded to two
// decimals. An item with nothing needed is measured against one unit.
func stockScore(org *organization.Organization) float64 {
	if len(org.Needs) == 0 {
		return neutralScore
	}
	var sum float64
	for _, name := range org.NeedNames() {
		item := org.Needs[name]
		needed := item.Needed
		if needed <= 0 {
			needed = 1
		}
		sum += math.Min(float64(item.Have)/float64(needed), 1)
	}
	return round2(sum / float64(len(org.Needs)))
}

// capacityScore grades bed availability piecewise between 0 and 1.
func capacityScore(beds int) float64 {
	b := float64(beds)
	switch {
	case beds >= 20:
		return 1.0
	case beds >= 10:
		return 0.7 + (b-10)/10*0.3
	case beds >= 5:
		return 0.5 + (b-5)/5*0.2
	case beds >= 1:
		return 0.3 + (b-1)/4*0.2
	default:
		return 0
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

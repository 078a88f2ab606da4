package matching

import (
	"math"
	"strings"

	"github.com/giveandget/giveandget/internal/organization"
)

var needUrgencies = map[string]float64{
	"high":   1.0,
	"medium": 0.6,
	"low":    0.3,
}

const unknownNeedUrgency = 0.3

// NeedsDonation reports whether org has an unmet need (needed > have) in a
// category the donor offers. Organizations that fail this test are left out
// of supply rankings rather than scored zero.
func NeedsDonation(manifest DonorManifest, org *organization.Organization) bool {
	for _, d := range manifest {
		category := normalizeCategory(d.Category)
		for _, item := range org.Needs {
			if normalizeCategory(item.Category) == category && item.Gap() > 0 {
				return true
			}
		}
	}
	return false
}

// ScoreSupply scores org for the donor on a 0-100 scale, rounded to two
// decimals, weighing need urgency, gap coverage and distance.
func ScoreSupply(manifest DonorManifest, org *organization.Organization, distanceMiles float64) float64 {
	total := 0.40*supplyUrgency(manifest, org) +
		0.35*gapScore(manifest, org) +
		0.25*DistanceScore(distanceMiles, DonorMaxDistanceMiles)
	return round2(total * 100)
}

// supplyUrgency is the highest urgency among need items in a category the
// donor offers, whether or not the item still has a gap.
func supplyUrgency(manifest DonorManifest, org *organization.Organization) float64 {
	offered := offeredCategories(manifest)
	highest := 0.0
	for _, name := range org.NeedNames() {
		item := org.Needs[name]
		if _, ok := offered[normalizeCategory(item.Category)]; !ok {
			continue
		}
		u, ok := needUrgencies[strings.ToLower(strings.TrimSpace(item.Urgency))]
		if !ok {
			u = unknownNeedUrgency
		}
		highest = math.Max(highest, u)
	}
	return highest
}

// gapScore averages, over every (donor item, need item) pair sharing a
// category with a positive gap, 0.6 x gap severity + 0.4 x how much of the
// gap the donation fills.
func gapScore(manifest DonorManifest, org *organization.Organization) float64 {
	names := org.NeedNames()
	var sum float64
	var pairs int
	for _, d := range manifest {
		category := normalizeCategory(d.Category)
		for _, name := range names {
			item := org.Needs[name]
			if normalizeCategory(item.Category) != category {
				continue
			}
			gap := item.Gap()
			if gap <= 0 {
				continue
			}
			severity := 0.0
			if item.Needed != 0 {
				severity = float64(gap) / float64(item.Needed)
			}
			fill := math.Min(float64(d.Quantity)/float64(gap), 1)
			sum += 0.6*severity + 0.4*fill
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return sum / float64(pairs)
}

func offeredCategories(manifest DonorManifest) map[string]struct{} {
	out := make(map[string]struct{}, len(manifest))
	for _, d := range manifest {
		out[normalizeCategory(d.Category)] = struct{}{}
	}
	return out
}

func normalizeCategory(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}

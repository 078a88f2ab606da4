package matching

// Reasonable travel distances. People are scored against a tighter radius
// than donors, who can drive or ship further.
const (
	PersonMaxDistanceMiles = 25.0
	DonorMaxDistanceMiles  = 50.0
)

// DistanceScore maps a distance to [0,1] with linear decay: 1 at the
// requester's location, 0 at maxMiles and beyond.
func DistanceScore(distanceMiles, maxMiles float64) float64 {
	if distanceMiles <= 0 {
		return 1.0
	}
	if distanceMiles >= maxMiles {
		return 0.0
	}
	return 1 - distanceMiles/maxMiles
}

// Package geo provides great-circle distance helpers in miles.
package geo

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadiusMiles is the mean Earth radius used for every distance in the service.
const EarthRadiusMiles = 3958.8

// ErrInvalidCoordinate is returned when a latitude or longitude is out of range.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate reports whether the point lies within the WGS84 ranges.
func (p Point) Validate() error {
	if p.Lat < -90 || p.Lat > 90 || math.IsNaN(p.Lat) {
		return fmt.Errorf("%w: latitude %f out of range [-90, 90]", ErrInvalidCoordinate, p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 || math.IsNaN(p.Lng) {
		return fmt.Errorf("%w: longitude %f out of range [-180, 180]", ErrInvalidCoordinate, p.Lng)
	}
	return nil
}

// DistanceMiles returns the haversine distance between a and b in miles.
func DistanceMiles(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMiles * c
}

// Box is a latitude/longitude bounding box.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// BoundingBox returns a box that contains every point within radiusMiles of center.
// It is a coarse prefilter; callers still compare DistanceMiles against the radius.
func BoundingBox(center Point, radiusMiles float64) Box {
	angular := radiusMiles / EarthRadiusMiles
	latDelta := angular * 180 / math.Pi

	box := Box{
		MinLat: math.Max(center.Lat-latDelta, -90),
		MaxLat: math.Min(center.Lat+latDelta, 90),
		MinLng: -180,
		MaxLng: 180,
	}

	// Near the poles the longitude span covers everything.
	cosLat := math.Cos(center.Lat * math.Pi / 180)
	if cosLat < 1e-6 || box.MinLat == -90 || box.MaxLat == 90 {
		return box
	}

	ratio := math.Sin(angular) / cosLat
	if ratio >= 1 {
		return box
	}
	lngDelta := math.Asin(ratio) * 180 / math.Pi
	box.MinLng = center.Lng - lngDelta
	box.MaxLng = center.Lng + lngDelta
	return box
}

// Contains reports whether p lies inside the box. Boxes that cross the
// antimeridian are handled by wrapping the longitude bounds.
func (b Box) Contains(p Point) bool {
	if p.Lat < b.MinLat || p.Lat > b.MaxLat {
		return false
	}
	switch {
	case b.MinLng < -180:
		return p.Lng >= b.MinLng+360 || p.Lng <= b.MaxLng
	case b.MaxLng > 180:
		return p.Lng >= b.MinLng || p.Lng <= b.MaxLng-360
	default:
		return p.Lng >= b.MinLng && p.Lng <= b.MaxLng
	}
}

// CrossesAntimeridian reports whether the longitude span wraps around ±180.
func (b Box) CrossesAntimeridian() bool {
	return b.MinLng < -180 || b.MaxLng > 180
}

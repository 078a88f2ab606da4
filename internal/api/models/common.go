// Package models provides request and response models for the Give and Get API.
package models

import (
	"fmt"
	"math"
	"time"

	"github.com/giveandget/giveandget/internal/geo"
)

// Search radius bounds in miles.
const (
	DefaultRadiusMiles = 25
	MinRadiusMiles     = 1
	MaxRadiusMiles     = 100
)

// Location is a WGS84 coordinate. Both fields are required; pointers let
// validation tell a missing value from zero.
type Location struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// Point returns the location as a geo.Point. Call Validate first.
func (l Location) Point() geo.Point {
	var p geo.Point
	if l.Lat != nil {
		p.Lat = *l.Lat
	}
	if l.Lng != nil {
		p.Lng = *l.Lng
	}
	return p
}

// validateLocation checks a required location under the given field name.
func validateLocation(field string, l *Location) []FieldError {
	if l == nil {
		return []FieldError{{Field: field, Message: "is required", Code: CodeRequired}}
	}

	var errs []FieldError
	switch {
	case l.Lat == nil:
		errs = append(errs, FieldError{Field: field + ".lat", Message: "is required", Code: CodeRequired})
	case math.IsNaN(*l.Lat) || *l.Lat < -90 || *l.Lat > 90:
		errs = append(errs, FieldError{Field: field + ".lat", Message: "must be between -90 and 90", Code: CodeOutOfRange})
	}
	switch {
	case l.Lng == nil:
		errs = append(errs, FieldError{Field: field + ".lng", Message: "is required", Code: CodeRequired})
	case math.IsNaN(*l.Lng) || *l.Lng < -180 || *l.Lng > 180:
		errs = append(errs, FieldError{Field: field + ".lng", Message: "must be between -180 and 180", Code: CodeOutOfRange})
	}
	return errs
}

// validateRadius checks an optional radius.
func validateRadius(radius *float64) []FieldError {
	if radius == nil {
		return nil
	}
	if math.IsNaN(*radius) || *radius < MinRadiusMiles || *radius > MaxRadiusMiles {
		return []FieldError{{
			Field:   "radius",
			Message: fmt.Sprintf("must be between %d and %d miles", MinRadiusMiles, MaxRadiusMiles),
			Code:    CodeOutOfRange,
		}}
	}
	return nil
}

func radiusOrDefault(radius *float64) float64 {
	if radius == nil {
		return DefaultRadiusMiles
	}
	return *radius
}

// Field error codes.
const (
	CodeRequired   = "REQUIRED"
	CodeOutOfRange = "OUT_OF_RANGE"
	CodeInvalid    = "INVALID"
)

// HealthStatus represents the health status of a service.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// Timestamp is a helper type for time.Time with custom JSON formatting.
type Timestamp time.Time

// MarshalJSON implements json.Marshaler for Timestamp.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).Format(time.RFC3339) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for Timestamp.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 {
		return fmt.Errorf("invalid timestamp %q", data)
	}
	parsed, err := time.Parse(time.RFC3339, string(data[1:len(data)-1]))
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// Time returns the underlying time.Time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

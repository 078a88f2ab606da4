package models_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giveandget/giveandget/internal/api/models"
)

func decode[T any](t *testing.T, body string) *T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return &v
}

func fields(errs []models.FieldError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Field)
	}
	return out
}

func TestPeopleMatchRequest_Validate(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantFields []string
	}{
		{
			name: "location only",
			body: `{"location":{"lat":37.77,"lng":-122.42}}`,
		},
		{
			name:       "missing location",
			body:       `{"radius":10}`,
			wantFields: []string{"location"},
		},
		{
			name:       "zero coordinates are present",
			body:       `{"location":{"lat":0,"lng":0}}`,
			wantFields: nil,
		},
		{
			name:       "missing lng and lat out of range",
			body:       `{"location":{"lat":91}}`,
			wantFields: []string{"location.lat", "location.lng"},
		},
		{
			name:       "radius out of range",
			body:       `{"location":{"lat":1,"lng":1},"radius":150}`,
			wantFields: []string{"radius"},
		},
		{
			name:       "filters missing required fields",
			body:       `{"location":{"lat":1,"lng":1},"person_filters":{}}`,
			wantFields: []string{"person_filters.needs_housing", "person_filters.gender", "person_filters.urgency_level"},
		},
		{
			name: "filters with bad values",
			body: `{"location":{"lat":1,"lng":1},"person_filters":{
				"needs_housing":true,"gender":"female","urgency_level":"someday",
				"beds_needed":0,"preferred_duration_days":0,"days_homeless":-1,
				"max_affordable_fee":-5,"age":130,"max_travel_distance_miles":501,
				"duration_flexibility":"rigid","veteran_status":"maybe"}}`,
			wantFields: []string{
				"person_filters.urgency_level",
				"person_filters.beds_needed",
				"person_filters.preferred_duration_days",
				"person_filters.days_homeless",
				"person_filters.max_affordable_fee",
				"person_filters.age",
				"person_filters.max_travel_distance_miles",
				"person_filters.duration_flexibility",
				"person_filters.veteran_status",
			},
		},
		{
			name: "valid filters, enums are case-insensitive",
			body: `{"location":{"lat":1,"lng":1},"radius":5,"person_filters":{
				"needs_housing":false,"gender":"Male","urgency_level":"Immediate","sobriety":"YES"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := decode[models.PeopleMatchRequest](t, tt.body)
			errs := req.Validate()
			if len(tt.wantFields) == 0 {
				assert.Empty(t, errs)
				return
			}
			assert.Equal(t, tt.wantFields, fields(errs))
		})
	}
}

func TestPeopleMatchRequest_RadiusDefault(t *testing.T) {
	req := decode[models.PeopleMatchRequest](t, `{"location":{"lat":1,"lng":2}}`)
	assert.Equal(t, float64(models.DefaultRadiusMiles), req.RadiusMiles())

	req = decode[models.PeopleMatchRequest](t, `{"location":{"lat":1,"lng":2},"radius":12.5}`)
	assert.Equal(t, 12.5, req.RadiusMiles())
	assert.Equal(t, 1.0, req.Location.Point().Lat)
	assert.Equal(t, 2.0, req.Location.Point().Lng)
}

func TestSupplyMatchRequest_Validate(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantFields []string
	}{
		{
			name: "no donor items",
			body: `{"location":{"lat":1,"lng":1}}`,
		},
		{
			name:       "empty item list",
			body:       `{"location":{"lat":1,"lng":1},"donor_items":{"items":[]}}`,
			wantFields: []string{"donor_items.items"},
		},
		{
			name: "bad items",
			body: `{"location":{"lat":1,"lng":1},"donor_items":{"items":[
				{"category":"food","item":"beans","quantity":3},
				{"category":" ","item":"","quantity":0}]}}`,
			wantFields: []string{
				"donor_items.items[1].category",
				"donor_items.items[1].item",
				"donor_items.items[1].quantity",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := decode[models.SupplyMatchRequest](t, tt.body).Validate()
			if len(tt.wantFields) == 0 {
				assert.Empty(t, errs)
				return
			}
			assert.Equal(t, tt.wantFields, fields(errs))
		})
	}
}

func TestOrganizationSearchRequest(t *testing.T) {
	req := decode[models.OrganizationSearchRequest](t, `{"location":{"lat":1,"lng":1}}`)
	assert.Empty(t, req.Validate())
	assert.Equal(t, models.OrgTypeFilter{Shelter: true, Charity: true}, req.Types())

	req = decode[models.OrganizationSearchRequest](t, `{"location":{"lat":1,"lng":1},"org_type":{"shelter":false,"charity":false}}`)
	assert.Equal(t, []string{"org_type"}, fields(req.Validate()))
}

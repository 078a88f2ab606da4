package models

// OrgTypeFilter selects shelters, charities or both in a radius search.
type OrgTypeFilter struct {
	Shelter bool `json:"shelter"`
	Charity bool `json:"charity"`
}

// OrganizationSearchRequest is the request body for POST /v1/organizations/search.
// A missing org_type searches both shelters and charities.
type OrganizationSearchRequest struct {
	Location *Location      `json:"location"`
	Radius   *float64       `json:"radius,omitempty"`
	OrgType  *OrgTypeFilter `json:"org_type,omitempty"`
}

// Validate returns one FieldError per invalid field.
func (r *OrganizationSearchRequest) Validate() []FieldError {
	errs := validateLocation("location", r.Location)
	errs = append(errs, validateRadius(r.Radius)...)
	if r.OrgType != nil && !r.OrgType.Shelter && !r.OrgType.Charity {
		errs = append(errs, FieldError{Field: "org_type", Message: "must select shelter, charity or both", Code: CodeInvalid})
	}
	return errs
}

// RadiusMiles returns the requested radius or the default.
func (r *OrganizationSearchRequest) RadiusMiles() float64 {
	return radiusOrDefault(r.Radius)
}

// Types returns the requested filter, defaulting to both types.
func (r *OrganizationSearchRequest) Types() OrgTypeFilter {
	if r.OrgType == nil {
		return OrgTypeFilter{Shelter: true, Charity: true}
	}
	return *r.OrgType
}

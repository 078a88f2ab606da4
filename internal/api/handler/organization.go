package handler

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/giveandget/giveandget/internal/api/middleware"
	"github.com/giveandget/giveandget/internal/api/models"
	"github.com/giveandget/giveandget/internal/api/response"
	"github.com/giveandget/giveandget/internal/geo"
	"github.com/giveandget/giveandget/internal/organization"
	"github.com/giveandget/giveandget/internal/resilience"
)

// OrganizationService is the organization store seen by the API.
// Implemented by *organization.Service.
type OrganizationService interface {
	Get(ctx context.Context, id string) (*organization.Organization, error)
	Create(ctx context.Context, org *organization.Organization) (*organization.Organization, error)
	Update(ctx context.Context, id string, org *organization.Organization) (*organization.Organization, error)
	SetNeed(ctx context.Context, id, name string, item organization.NeedItem) (*organization.Organization, error)
	RemoveNeed(ctx context.Context, id, name string) (*organization.Organization, error)
	WithinRadius(ctx context.Context, center geo.Point, radiusMiles float64, filter organization.TypeFilter) ([]organization.Candidate, error)
}

// OrganizationHandler handles organization endpoints.
type OrganizationHandler struct {
	service OrganizationService
	logger  zerolog.Logger
}

// NewOrganizationHandler creates a new OrganizationHandler.
func NewOrganizationHandler(service OrganizationService, logger zerolog.Logger) *OrganizationHandler {
	return &OrganizationHandler{service: service, logger: logger}
}

// SearchResult is one organization in a radius search.
type SearchResult struct {
	DistanceMiles float64                    `json:"distance_miles"`
	Organization  *organization.Organization `json:"organization"`
}

// SearchResponse is the response body for POST /v1/organizations/search.
type SearchResponse struct {
	Count         int            `json:"count"`
	Organizations []SearchResult `json:"organizations"`
}

// Search handles POST /v1/organizations/search.
func (h *OrganizationHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req models.OrganizationSearchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "request validation failed", errs)
		return
	}

	types := req.Types()
	filter := organization.TypeFilter{Shelter: types.Shelter, Charity: types.Charity}

	candidates, err := h.service.WithinRadius(r.Context(), req.Location.Point(), req.RadiusMiles(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	results := make([]SearchResult, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, SearchResult{
			DistanceMiles: math.Round(c.DistanceMiles*1000) / 1000,
			Organization:  c.Organization,
		})
	}
	response.JSON(w, r, http.StatusOK, SearchResponse{Count: len(results), Organizations: results})
}

// Get handles GET /v1/organizations/{orgId}.
func (h *OrganizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	org, err := h.service.Get(r.Context(), chi.URLParam(r, "orgId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, org)
}

// Create handles POST /v1/organizations. Operators create the organization
// named by their token; admins may create any organization and get a
// generated ID when none is supplied.
func (h *OrganizationHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	org := organization.Organization{Amenities: organization.DefaultAmenities()}
	if !decodeJSON(w, r, &org) {
		return
	}
	org.ID = strings.TrimSpace(org.ID)

	if !principal.IsAdmin() {
		if principal.OrgID == "" {
			response.Forbidden(w, r, "token is not bound to an organization")
			return
		}
		if org.ID != "" && org.ID != principal.OrgID {
			response.Forbidden(w, r, "operator may not create this organization")
			return
		}
		org.ID = principal.OrgID
	}

	created, err := h.service.Create(r.Context(), &org)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info().
		Str("organization_id", created.ID).
		Str("operator", principal.Subject).
		Msg("organization created")

	response.Created(w, r, "/v1/organizations/"+created.ID, created)
}

// Update handles PUT /v1/organizations/{orgId}.
func (h *OrganizationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r)
	if !ok {
		return
	}

	org := organization.Organization{Amenities: organization.DefaultAmenities()}
	if !decodeJSON(w, r, &org) {
		return
	}

	updated, err := h.service.Update(r.Context(), id, &org)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, updated)
}

// SetNeed handles PATCH /v1/organizations/{orgId}/needs/{item}.
func (h *OrganizationHandler) SetNeed(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var item organization.NeedItem
	if !decodeJSON(w, r, &item) {
		return
	}

	updated, err := h.service.SetNeed(r.Context(), id, chi.URLParam(r, "item"), item)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, updated)
}

// RemoveNeed handles DELETE /v1/organizations/{orgId}/needs/{item}.
func (h *OrganizationHandler) RemoveNeed(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r)
	if !ok {
		return
	}

	updated, err := h.service.RemoveNeed(r.Context(), id, chi.URLParam(r, "item"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, updated)
}

// authorize checks that the caller may write the organization in the URL.
func (h *OrganizationHandler) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		response.Unauthorized(w, r, "authentication required")
		return "", false
	}

	id := chi.URLParam(r, "orgId")
	if !principal.CanManage(id) {
		response.Forbidden(w, r, "operator may not manage this organization")
		return "", false
	}
	return id, true
}

func (h *OrganizationHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *organization.ValidationError
	switch {
	case errors.As(err, &validationErr):
		response.BadRequest(w, r, "organization validation failed", validationErr.Errors)
	case errors.Is(err, organization.ErrNotFound):
		response.NotFound(w, r, "organization not found")
	case errors.Is(err, organization.ErrNeedNotFound):
		response.NotFound(w, r, "need item not found")
	case errors.Is(err, organization.ErrAlreadyExists):
		response.Conflict(w, r, "organization already exists")
	case errors.Is(err, geo.ErrInvalidCoordinate):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, resilience.ErrCircuitOpen):
		response.ServiceUnavailable(w, r, "organization store is temporarily unavailable")
	case errors.Is(err, context.Canceled):
		return
	default:
		h.logger.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Str("path", r.URL.Path).
			Msg("organization request failed")
		response.InternalError(w, r, "organization request failed")
	}
}

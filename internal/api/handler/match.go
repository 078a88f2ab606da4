package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/giveandget/giveandget/internal/api/middleware"
	"github.com/giveandget/giveandget/internal/api/models"
	"github.com/giveandget/giveandget/internal/api/response"
	"github.com/giveandget/giveandget/internal/geo"
	"github.com/giveandget/giveandget/internal/matching"
	"github.com/giveandget/giveandget/internal/resilience"
)

// Matcher ranks organizations for a request. Implemented by *matching.Engine.
type Matcher interface {
	RankPeople(ctx context.Context, loc geo.Point, radiusMiles float64, profile *matching.RequesterProfile) (matching.Ranking, error)
	RankSupplies(ctx context.Context, loc geo.Point, radiusMiles float64, manifest matching.DonorManifest) (matching.Ranking, error)
}

// MatchHandler handles the matching endpoints.
type MatchHandler struct {
	matcher Matcher
	logger  zerolog.Logger
}

// NewMatchHandler creates a new MatchHandler.
func NewMatchHandler(matcher Matcher, logger zerolog.Logger) *MatchHandler {
	return &MatchHandler{matcher: matcher, logger: logger}
}

// MatchPeople handles POST /v1/matches/people.
func (h *MatchHandler) MatchPeople(w http.ResponseWriter, r *http.Request) {
	var req models.PeopleMatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "request validation failed", errs)
		return
	}

	var profile *matching.RequesterProfile
	if req.PersonFilters != nil {
		profile = profileFromFilters(req.PersonFilters)
	}

	ranking, err := h.matcher.RankPeople(r.Context(), req.Location.Point(), req.RadiusMiles(), profile)
	if err != nil {
		h.writeRankError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.MatchResponse{
		Success:             true,
		MatchesFound:        len(ranking),
		RankedOrganizations: ranking,
	})
}

// MatchSupplies handles POST /v1/matches/supplies.
func (h *MatchHandler) MatchSupplies(w http.ResponseWriter, r *http.Request) {
	var req models.SupplyMatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "request validation failed", errs)
		return
	}

	var manifest matching.DonorManifest
	if req.DonorItems != nil {
		manifest = manifestFromItems(req.DonorItems)
	}

	ranking, err := h.matcher.RankSupplies(r.Context(), req.Location.Point(), req.RadiusMiles(), manifest)
	if err != nil {
		h.writeRankError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.MatchResponse{
		Success:             true,
		MatchesFound:        len(ranking),
		RankedOrganizations: ranking,
	})
}

func (h *MatchHandler) writeRankError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
		return
	case errors.Is(err, resilience.ErrCircuitOpen):
		response.ServiceUnavailable(w, r, "organization store is temporarily unavailable")
	default:
		h.logger.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Str("path", r.URL.Path).
			Msg("ranking failed")
		response.InternalError(w, r, "matching failed")
	}
}

// profileFromFilters overlays the supplied filters on the default profile.
func profileFromFilters(f *models.PersonFilters) *matching.RequesterProfile {
	p := matching.DefaultRequesterProfile()

	setBool(&p.NeedsHousing, f.NeedsHousing)
	setInt(&p.BedsNeeded, f.BedsNeeded)
	setBool(&p.NeedsHandicappedAccess, f.NeedsHandicappedAccess)
	setBool(&p.OwnsPets, f.OwnsPets)
	setInt(&p.DaysHomeless, f.DaysHomeless)
	setInt(&p.PreferredDurationDays, f.PreferredDurationDays)
	setString(&p.DurationFlexibility, f.DurationFlexibility)

	setBool(&p.PrefersFamilyRooming, f.PrefersFamilyRooming)
	setBool(&p.CanPayFees, f.CanPayFees)
	setInt(&p.MaxAffordableFee, f.MaxAffordableFee)
	setBool(&p.LGBTQIdentity, f.LGBTQIdentity)
	setBool(&p.PrefersMedicalSupport, f.PrefersMedicalSupport)
	setBool(&p.PrefersCounseling, f.PrefersCounseling)
	setBool(&p.PrefersMealsProvided, f.PrefersMealsProvided)
	setBool(&p.PrefersShowers, f.PrefersShowers)

	p.UrgencyLevel = strings.ToLower(strings.TrimSpace(f.UrgencyLevel))
	p.Gender = strings.TrimSpace(f.Gender)
	if f.Age != nil {
		age := *f.Age
		p.Age = &age
	}
	setString(&p.Language, f.Language)
	setString(&p.ImmigrationStatus, f.ImmigrationStatus)
	setString(&p.VeteranStatus, f.VeteranStatus)
	setString(&p.CriminalRecord, f.CriminalRecord)
	setString(&p.Sobriety, f.Sobriety)
	setBool(&p.HasID, f.HasID)

	setBool(&p.NeedsFood, f.NeedsFood)
	setBool(&p.NeedsClothing, f.NeedsClothing)
	setBool(&p.NeedsMedical, f.NeedsMedical)
	setBool(&p.NeedsMentalHealth, f.NeedsMentalHealth)

	return &p
}

func manifestFromItems(d *models.DonorItems) matching.DonorManifest {
	manifest := make(matching.DonorManifest, 0, len(d.Items))
	for _, item := range d.Items {
		manifest = append(manifest, matching.DonorItem{
			Category: strings.TrimSpace(item.Category),
			Item:     strings.TrimSpace(item.Item),
			Quantity: item.Quantity,
		})
	}
	return manifest
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.ToLower(strings.TrimSpace(*v))
	}
}

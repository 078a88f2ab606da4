package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giveandget/giveandget/internal/api/models"
)

func TestProblem_Write(t *testing.T) {
	p := models.NewBadRequest("req_test123", "request validation failed", []models.FieldError{
		{Field: "filters.age", Message: "must be between 0 and 120", Code: models.CodeOutOfRange},
		{Field: "location.lat", Message: "is required", Code: models.CodeRequired},
	})
	p.Instance = "/v1/matches/people"

	w := httptest.NewRecorder()
	p.Write(w)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "req_test123", w.Header().Get("X-Request-Id"))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Equal(t, "req_test123", raw["traceId"])

	var result models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, models.ProblemTypeValidation, result.Type)
	assert.Equal(t, "Validation error", result.Title)
	assert.Equal(t, "request validation failed", result.Detail)
	assert.Equal(t, "/v1/matches/people", result.Instance)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "filters.age", result.Errors[0].Field)
	assert.Equal(t, models.CodeRequired, result.Errors[1].Code)
}

func TestProblem_OmitsEmptyOptionalFields(t *testing.T) {
	w := httptest.NewRecorder()
	models.NewProblem(models.ProblemTypeInternal, "Internal server error", http.StatusInternalServerError, "req_1").Write(w)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.NotContains(t, raw, "detail")
	assert.NotContains(t, raw, "instance")
	assert.NotContains(t, raw, "errors")
}

func TestProblemConstructors(t *testing.T) {
	tests := []struct {
		name       string
		problem    *models.Problem
		wantType   string
		wantTitle  string
		wantStatus int
		wantDetail string
	}{
		{
			name:       "unauthorized",
			problem:    models.NewUnauthorized("req_1", "missing bearer token"),
			wantType:   models.ProblemTypeUnauthorized,
			wantTitle:  "Unauthorized",
			wantStatus: http.StatusUnauthorized,
			wantDetail: "missing bearer token",
		},
		{
			name:       "forbidden",
			problem:    models.NewForbidden("req_1", "operator may not manage this organization"),
			wantType:   models.ProblemTypeForbidden,
			wantTitle:  "Forbidden",
			wantStatus: http.StatusForbidden,
			wantDetail: "operator may not manage this organization",
		},
		{
			name:       "tls required",
			problem:    models.NewTLSRequired("req_1"),
			wantType:   models.ProblemTypeTLSRequired,
			wantTitle:  "TLS required",
			wantStatus: http.StatusForbidden,
			wantDetail: "This endpoint requires HTTPS",
		},
		{
			name:       "not found",
			problem:    models.NewNotFound("req_1", "organization not found"),
			wantType:   models.ProblemTypeNotFound,
			wantTitle:  "Not found",
			wantStatus: http.StatusNotFound,
			wantDetail: "organization not found",
		},
		{
			name:       "conflict",
			problem:    models.NewConflict("req_1", "organization already exists"),
			wantType:   models.ProblemTypeConflict,
			wantTitle:  "Conflict",
			wantStatus: http.StatusConflict,
			wantDetail: "organization already exists",
		},
		{
			name:       "unsupported media type",
			problem:    models.NewUnsupportedMediaType("req_1", "expected application/json"),
			wantType:   models.ProblemTypeUnsupportedType,
			wantTitle:  "Unsupported media type",
			wantStatus: http.StatusUnsupportedMediaType,
			wantDetail: "expected application/json",
		},
		{
			name:       "too many requests",
			problem:    models.NewTooManyRequests("req_1", "slow down"),
			wantType:   models.ProblemTypeTooManyRequests,
			wantTitle:  "Too many requests",
			wantStatus: http.StatusTooManyRequests,
			wantDetail: "slow down",
		},
		{
			name:       "internal",
			problem:    models.NewInternalError("req_1", "matching failed"),
			wantType:   models.ProblemTypeInternal,
			wantTitle:  "Internal server error",
			wantStatus: http.StatusInternalServerError,
			wantDetail: "matching failed",
		},
		{
			name:       "unavailable",
			problem:    models.NewServiceUnavailable("req_1", "organization store unavailable"),
			wantType:   models.ProblemTypeUnavailable,
			wantTitle:  "Service unavailable",
			wantStatus: http.StatusServiceUnavailable,
			wantDetail: "organization store unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.problem.Type)
			assert.Equal(t, tt.wantTitle, tt.problem.Title)
			assert.Equal(t, tt.wantStatus, tt.problem.Status)
			assert.Equal(t, tt.wantDetail, tt.problem.Detail)
			assert.Equal(t, "req_1", tt.problem.TraceID)
			assert.Empty(t, tt.problem.Errors)
		})
	}
}

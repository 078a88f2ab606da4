// Package response writes JSON bodies and RFC 7807 problems for handlers.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/giveandget/giveandget/internal/api/middleware"
	"github.com/giveandget/giveandget/internal/api/models"
)

// JSON writes data with the given status. The request ID, when present, is
// echoed in X-Request-Id.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, r, status, "", data)
}

// Created writes a 201 with a Location header pointing at the new resource.
func Created(w http.ResponseWriter, r *http.Request, location string, data any) {
	writeJSON(w, r, http.StatusCreated, location, data)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, location string, data any) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.Header().Set("Content-Type", "application/json")
	if location != "" {
		w.Header().Set("Location", location)
	}
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error writes a problem, scoped to the request path.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// traced builds a problem carrying the request ID as its trace ID.
func traced(w http.ResponseWriter, r *http.Request, build func(traceID string) *models.Problem) {
	Error(w, r, build(middleware.GetRequestID(r.Context())))
}

// BadRequest writes a 400 listing the offending fields.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	traced(w, r, func(traceID string) *models.Problem {
		return models.NewBadRequest(traceID, detail, errors)
	})
}

// Unauthorized writes a 401.
func Unauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	traced(w, r, func(traceID string) *models.Problem {
		return models.NewUnauthorized(traceID, detail)
	})
}

// Forbidden writes a 403 for operators acting outside their organization.
func Forbidden(w http.ResponseWriter, r *http.Request, detail string) {
	traced(w, r, func(traceID string) *models.Problem {
		return models.NewForbidden(traceID, detail)
	})
}

// NotFound writes a 404.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	traced(w, r, func(traceID string) *models.Problem {
		return models.NewNotFound(traceID, detail)
	})
}

// Conflict writes a 409.
func Conflict(w http.ResponseWriter, r *http.Request, detail string) {
	traced(w, r, func(traceID string) *models.Problem {
		return models.NewConflict(traceID, detail)
	})
}

// InternalError writes a 500. Detail must not leak store errors.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	traced(w, r, func(traceID string) *models.Problem {
		return models.NewInternalError(traceID, detail)
	})
}

// ServiceUnavailable writes a 503, used when the organization store circuit
// is open.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	traced(w, r, func(traceID string) *models.Problem {
		return models.NewServiceUnavailable(traceID, detail)
	})
}

package handler

import (
	"net/http"
	"time"

	"github.com/giveandget/giveandget/internal/api/models"
	"github.com/giveandget/giveandget/internal/api/response"
	"github.com/giveandget/giveandget/internal/resilience"
)

// HealthSource lists the health of guarded dependencies.
// Implemented by *resilience.Registry.
type HealthSource interface {
	All() []resilience.Health
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	health    HealthSource
}

// NewOpsHandler creates a new OpsHandler. health may be nil, in which case
// readiness only reports that the process is up.
func NewOpsHandler(version, buildTime string, health HealthSource) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		health:    health,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
			"endpoints": []string{
				"POST /v1/matches/people",
				"POST /v1/matches/supplies",
				"POST /v1/organizations/search",
				"GET /v1/organizations/{orgId}",
				"POST /v1/organizations",
				"PUT /v1/organizations/{orgId}",
				"PATCH /v1/organizations/{orgId}/needs/{item}",
				"DELETE /v1/organizations/{orgId}/needs/{item}",
			},
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready. An open circuit on any guarded
// dependency fails readiness; a half-open one degrades it.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	readiness := models.Readiness{
		Status:       models.HealthStatusOK,
		Time:         models.Timestamp(time.Now()),
		Dependencies: []models.DependencyStatus{},
	}

	if h.health != nil {
		for _, dep := range h.health.All() {
			status := dependencyStatus(dep)
			readiness.Dependencies = append(readiness.Dependencies, status)
			readiness.Status = worse(readiness.Status, status.Status)
		}
	}

	code := http.StatusOK
	if readiness.Status == models.HealthStatusFail {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, readiness)
}

func dependencyStatus(h resilience.Health) models.DependencyStatus {
	status := models.DependencyStatus{
		Name:         h.Name,
		Status:       models.HealthStatusOK,
		CircuitState: h.CircuitState.String(),
	}
	switch {
	case h.IsUnhealthy():
		status.Status = models.HealthStatusFail
	case h.IsDegraded():
		status.Status = models.HealthStatusDegraded
	}
	if h.LastSuccessAt != nil {
		ts := models.Timestamp(*h.LastSuccessAt)
		status.LastSuccessAt = &ts
	}
	if h.LastFailureAt != nil {
		ts := models.Timestamp(*h.LastFailureAt)
		status.LastFailureAt = &ts
	}
	if h.LastError != "" {
		msg := h.LastError
		status.Message = &msg
	}
	return status
}

func worse(a, b models.HealthStatus) models.HealthStatus {
	rank := map[models.HealthStatus]int{
		models.HealthStatusOK:       0,
		models.HealthStatusDegraded: 1,
		models.HealthStatusFail:     2,
	}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

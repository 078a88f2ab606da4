package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giveandget/giveandget/internal/api/middleware"
	"github.com/giveandget/giveandget/internal/api/models"
	"github.com/giveandget/giveandget/internal/auth"
)

// hit sends one request through h from ip, optionally as an operator.
func hit(h http.Handler, ip, operator string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/matches/people", http.NoBody)
	req.RemoteAddr = ip
	if operator != "" {
		req = req.WithContext(middleware.WithPrincipal(req.Context(), auth.Principal{Subject: operator, Role: auth.RoleOperator}))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitByIP(t *testing.T) {
	limited := middleware.RateLimitByIP(middleware.RateLimitConfig{RequestLimit: 3, WindowLength: time.Minute})(okHandler)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(limited, "10.0.0.1:1234", "").Code, "request %d", i+1)
	}
	assert.Equal(t, http.StatusTooManyRequests, hit(limited, "10.0.0.1:1234", "").Code)

	// Another client keeps its own budget.
	assert.Equal(t, http.StatusOK, hit(limited, "10.0.0.2:1234", "").Code)

	// An operator token does not change the key.
	assert.Equal(t, http.StatusTooManyRequests, hit(limited, "10.0.0.1:1234", "ops-a").Code)
}

func TestRateLimitByOperator(t *testing.T) {
	limited := middleware.RateLimitByOperator(middleware.RateLimitConfig{RequestLimit: 2, WindowLength: time.Minute})(okHandler)

	// Same operator from different IPs shares one budget.
	assert.Equal(t, http.StatusOK, hit(limited, "192.168.1.1:1", "ops-a").Code)
	assert.Equal(t, http.StatusOK, hit(limited, "192.168.1.2:1", "ops-a").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(limited, "192.168.1.3:1", "ops-a").Code)

	assert.Equal(t, http.StatusOK, hit(limited, "192.168.1.1:1", "ops-b").Code)

	// Anonymous requests fall back to the IP.
	assert.Equal(t, http.StatusOK, hit(limited, "198.51.100.7:1", "").Code)
	assert.Equal(t, http.StatusOK, hit(limited, "198.51.100.7:1", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(limited, "198.51.100.7:1", "").Code)
}

func TestRateLimit_ExceededProblem(t *testing.T) {
	handler := middleware.RequestID(
		middleware.RateLimitByIP(middleware.RateLimitConfig{RequestLimit: 1, WindowLength: 30 * time.Second})(okHandler),
	)

	require.Equal(t, http.StatusOK, hit(handler, "203.0.113.1:1", "").Code)
	rec := hit(handler, "203.0.113.1:1", "")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))

	var problem models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeTooManyRequests, problem.Type)
	assert.Equal(t, "/v1/matches/people", problem.Instance)
	assert.Contains(t, problem.Detail, "1 requests per 30s")
	assert.NotEmpty(t, problem.TraceID)
}

func TestDefaultRateLimitConfigs(t *testing.T) {
	tests := []struct {
		name string
		cfg  middleware.RateLimitConfig
		want int
	}{
		{name: "matching", cfg: middleware.ExpensiveRateLimit, want: 30},
		{name: "reads", cfg: middleware.StandardRateLimit, want: 100},
		{name: "writes", cfg: middleware.WriteRateLimit, want: 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.RequestLimit)
			assert.Equal(t, time.Minute, tt.cfg.WindowLength)
		})
	}
}

package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/giveandget/giveandget/internal/api/models"
)

// RateLimitConfig is a fixed window budget.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

var (
	// ExpensiveRateLimit covers the matching endpoints, per client IP.
	ExpensiveRateLimit = RateLimitConfig{RequestLimit: 30, WindowLength: time.Minute}

	// StandardRateLimit covers organization reads and search, per client IP.
	StandardRateLimit = RateLimitConfig{RequestLimit: 100, WindowLength: time.Minute}

	// WriteRateLimit covers organization writes, per operator.
	WriteRateLimit = RateLimitConfig{RequestLimit: 60, WindowLength: time.Minute}
)

// RateLimitByIP limits by client IP, honouring True-Client-IP, X-Real-IP and
// X-Forwarded-For.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return limiter(cfg, httprate.KeyByRealIP)
}

// RateLimitByOperator limits by the authenticated operator so one operator
// gets the same budget from any address. Anonymous requests fall back to IP.
func RateLimitByOperator(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return limiter(cfg, keyByOperatorOrIP)
}

func limiter(cfg RateLimitConfig, key httprate.KeyFunc) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(exceededHandler(cfg)),
	)
}

func keyByOperatorOrIP(r *http.Request) (string, error) {
	if p, ok := GetPrincipal(r.Context()); ok && p.Subject != "" {
		return "operator:" + p.Subject, nil
	}
	return httprate.KeyByRealIP(r)
}

// exceededHandler answers with a 429 problem. httprate does not expose the
// window reset, so Retry-After is the full window.
func exceededHandler(cfg RateLimitConfig) http.HandlerFunc {
	retryAfter := strconv.Itoa(int(math.Ceil(cfg.WindowLength.Seconds())))
	detail := fmt.Sprintf("Rate limit exceeded: %d requests per %s. Please try again later.", cfg.RequestLimit, cfg.WindowLength)

	return func(w http.ResponseWriter, r *http.Request) {
		problem := models.NewTooManyRequests(GetRequestID(r.Context()), detail)
		problem.Instance = r.URL.Path
		w.Header().Set("Retry-After", retryAfter)
		problem.Write(w)
	}
}

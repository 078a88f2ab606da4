package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// Predefined errors for guarded operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker rejects a call.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// GuardConfig holds configuration for a Guard.
type GuardConfig struct {
	// Name identifies the guarded dependency.
	Name string

	// AttemptTimeout bounds each individual attempt.
	// Default: 5 seconds
	AttemptTimeout time.Duration

	// MaxRetries is the maximum number of retries after the first attempt.
	// Default: 2
	MaxRetries uint64

	// InitialInterval is the initial retry backoff interval.
	// Default: 50ms
	InitialInterval time.Duration

	// MaxInterval is the maximum retry backoff interval.
	// Default: 1 second
	MaxInterval time.Duration

	// ExpectedErrors are business outcomes (e.g. not found). They are
	// returned unchanged, never retried and do not count as failures.
	ExpectedErrors []error

	// CircuitBreaker is the circuit breaker configuration.
	// If nil, uses DefaultCircuitBreakerConfig(Name).
	CircuitBreaker *CircuitBreakerConfig
}

// DefaultGuardConfig returns sensible defaults for store calls.
func DefaultGuardConfig(name string) GuardConfig {
	cb := DefaultCircuitBreakerConfig(name)
	return GuardConfig{
		Name:            name,
		AttemptTimeout:  5 * time.Second,
		MaxRetries:      2,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
		CircuitBreaker:  &cb,
	}
}

// Guard runs calls to one dependency through a circuit breaker with
// retries. All operations on the dependency share the breaker.
type Guard struct {
	breaker *gobreaker.CircuitBreaker[any]
	config  GuardConfig

	mu            sync.RWMutex
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewGuard creates a Guard, filling zero config values with defaults.
func NewGuard(cfg GuardConfig) *Guard {
	if cfg.AttemptTimeout == 0 {
		cfg.AttemptTimeout = 5 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 50 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = time.Second
	}

	cbConfig := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
	}

	g := &Guard{config: cfg}
	g.breaker = newCircuitBreaker[any](cbConfig, func(err error) bool {
		return err == nil || g.isExpected(err) || errors.Is(err, context.Canceled)
	})
	return g
}

// Name returns the guarded dependency name.
func (g *Guard) Name() string {
	return g.config.Name
}

// Execute runs op through g and returns its typed result.
func Execute[T any](ctx context.Context, g *Guard, op func(ctx context.Context) (T, error)) (T, error) {
	v, err := g.run(ctx, func(ctx context.Context) (any, error) {
		return op(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	result, _ := v.(T)
	return result, nil
}

// Do runs an operation that has no result.
func (g *Guard) Do(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := g.run(ctx, func(ctx context.Context) (any, error) {
		return nil, op(ctx)
	})
	return err
}

// run retries transient failures with exponential backoff. It returns
// ErrCircuitOpen without calling op when the breaker is open.
func (g *Guard) run(ctx context.Context, op func(ctx context.Context) (any, error)) (any, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = g.config.InitialInterval
	bo.MaxInterval = g.config.MaxInterval
	bo.MaxElapsedTime = 0 // retries are bounded by WithMaxRetries

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, g.config.MaxRetries), ctx)

	var result any
	attempt := func() error {
		v, err := g.breaker.Execute(func() (any, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, g.config.AttemptTimeout)
			defer cancel()
			return op(attemptCtx)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			if g.isExpected(err) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		result = v
		return nil
	}

	if err := backoff.Retry(attempt, policy); err != nil {
		if !g.isExpected(err) {
			g.recordFailure(err)
		}
		return nil, err
	}

	g.recordSuccess()
	return result, nil
}

// State returns the current circuit breaker state.
func (g *Guard) State() gobreaker.State {
	return g.breaker.State()
}

// Health returns a snapshot of the guard's state.
func (g *Guard) Health() Health {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return Health{
		Name:          g.config.Name,
		CircuitState:  g.breaker.State(),
		Counts:        g.breaker.Counts(),
		LastSuccessAt: g.lastSuccessAt,
		LastFailureAt: g.lastFailureAt,
		LastError:     g.lastError,
	}
}

func (g *Guard) isExpected(err error) bool {
	for _, expected := range g.config.ExpectedErrors {
		if errors.Is(err, expected) {
			return true
		}
	}
	return false
}

func (g *Guard) recordSuccess() {
	now := time.Now()
	g.mu.Lock()
	g.lastSuccessAt = &now
	g.mu.Unlock()
}

func (g *Guard) recordFailure(err error) {
	now := time.Now()
	g.mu.Lock()
	g.lastFailureAt = &now
	g.lastError = err.Error()
	g.mu.Unlock()
}

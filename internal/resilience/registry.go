package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Health represents the health status of a guarded dependency.
type Health struct {
	// Name is the dependency identifier.
	Name string

	// CircuitState is the current circuit breaker state.
	CircuitState gobreaker.State

	// Counts contains circuit breaker statistics.
	Counts gobreaker.Counts

	// LastSuccessAt is the timestamp of the last successful call.
	LastSuccessAt *time.Time

	// LastFailureAt is the timestamp of the last failed call.
	LastFailureAt *time.Time

	// LastError is the most recent error message, if any.
	LastError string
}

// IsHealthy returns true if the dependency is considered healthy.
func (h Health) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// IsDegraded returns true if the dependency is half-open.
func (h Health) IsDegraded() bool {
	return h.CircuitState == gobreaker.StateHalfOpen
}

// IsUnhealthy returns true if the circuit is open.
func (h Health) IsUnhealthy() bool {
	return h.CircuitState == gobreaker.StateOpen
}

// Monitored is anything that reports dependency health.
type Monitored interface {
	Name() string
	Health() Health
}

// Registry tracks monitored dependencies for readiness reporting.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Monitored
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Monitored)}
}

// Register adds m under its name, replacing any previous entry.
func (r *Registry) Register(m Monitored) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[m.Name()] = m
}

// Unregister removes a dependency from the registry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// Get returns the health of one dependency.
func (r *Registry) Get(name string) (Health, bool) {
	r.mu.RLock()
	m, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return Health{}, false
	}
	return m.Health(), true
}

// All returns health for every registered dependency, ordered by name.
func (r *Registry) All() []Health {
	r.mu.RLock()
	monitored := make([]Monitored, 0, len(r.entries))
	for _, m := range r.entries {
		monitored = append(monitored, m)
	}
	r.mu.RUnlock()

	out := make([]Health, 0, len(monitored))
	for _, m := range monitored {
		out = append(out, m.Health())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered dependencies.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

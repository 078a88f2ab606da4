package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/giveandget/giveandget/internal/organization"
)

const instrumentationName = "github.com/giveandget/giveandget/internal/worker"

// Event types.
const (
	EventInventoryUpdate     = "inventory_update"
	EventOrganizationRefresh = "organization_refresh"
)

// ErrInvalidEvent is returned for messages that cannot be decoded into an event.
var ErrInvalidEvent = errors.New("invalid inventory event")

// NeedUpdate sets one need item.
type NeedUpdate struct {
	Item     string `json:"item"`
	Category string `json:"category"`
	Needed   int    `json:"needed"`
	Have     int    `json:"have"`
	Urgency  string `json:"urgency"`
}

// InventoryEvent is the payload of an inventory-events message.
type InventoryEvent struct {
	EventType      string       `json:"event_type"`
	OrganizationID string       `json:"organization_id"`
	Updates        []NeedUpdate `json:"updates,omitempty"`
	Remove         []string     `json:"remove,omitempty"`
}

// ParseEvent decodes a message body. Events of a known type must name an
// organization; events of unknown type are returned as-is so the caller can
// decide what to do with them.
func ParseEvent(data []byte) (InventoryEvent, error) {
	var event InventoryEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return InventoryEvent{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	event.EventType = strings.TrimSpace(event.EventType)
	event.OrganizationID = strings.TrimSpace(event.OrganizationID)
	if event.Known() && event.OrganizationID == "" {
		return InventoryEvent{}, fmt.Errorf("%w: organization_id is required", ErrInvalidEvent)
	}
	return event, nil
}

// Known reports whether the worker handles this event type.
func (e InventoryEvent) Known() bool {
	return e.EventType == EventInventoryUpdate || e.EventType == EventOrganizationRefresh
}

// Change converts the event into a partial needs update. Later updates to the
// same item win.
func (e InventoryEvent) Change() organization.NeedsChange {
	change := organization.NeedsChange{Remove: e.Remove}
	if len(e.Updates) > 0 {
		change.Set = make(map[string]organization.NeedItem, len(e.Updates))
		for _, u := range e.Updates {
			change.Set[u.Item] = organization.NeedItem{
				Category: u.Category,
				Needed:   u.Needed,
				Have:     u.Have,
				Urgency:  u.Urgency,
			}
		}
	}
	return change
}

// Store is the organization store the worker writes to.
// Implemented by *organization.Service.
type Store interface {
	ApplyNeeds(ctx context.Context, id string, change organization.NeedsChange) (*organization.Organization, error)
	Refresh(ctx context.Context, id string) (*organization.Organization, error)
}

// Outcome is what happened to one event in a batch.
type Outcome int

const (
	// OutcomeApplied means the event was written.
	OutcomeApplied Outcome = iota
	// OutcomeRejected means the store refused the event and retrying cannot help.
	OutcomeRejected
	// OutcomeFailed means the store call failed and the event should be redelivered.
	OutcomeFailed
	// OutcomeSkipped means an earlier event for the same organization failed,
	// so this one was not attempted.
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeRejected:
		return "rejected"
	case OutcomeFailed:
		return "failed"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Redeliver reports whether the message should be nacked.
func (o Outcome) Redeliver() bool {
	return o == OutcomeFailed || o == OutcomeSkipped
}

// EventResult is the outcome of one event.
type EventResult struct {
	Outcome Outcome
	Err     error
}

// BatchResult contains the result of applying a batch. Results[i] belongs to
// the i-th event.
type BatchResult struct {
	StartTime time.Time
	Duration  time.Duration
	Results   []EventResult
	Applied   int
	Rejected  int
	Failed    int
	Skipped   int
}

// ApplierStats tracks totals across batches.
type ApplierStats struct {
	mu sync.RWMutex

	Batches           int64
	Applied           int64
	Rejected          int64
	Failed            int64
	Skipped           int64
	LastBatchAt       time.Time
	LastBatchDuration time.Duration
}

// ApplierConfig holds configuration for creating an Applier.
type ApplierConfig struct {
	Store       Store
	Concurrency int
	Timeout     time.Duration
	Logger      zerolog.Logger
}

// Applier writes batches of inventory events. Different organizations are
// updated in parallel, bounded by Concurrency; events for one organization
// are applied one at a time in batch order.
type Applier struct {
	store       Store
	concurrency int
	timeout     time.Duration
	logger      zerolog.Logger
	stats       *ApplierStats
	events      metric.Int64Counter
}

// NewApplier creates a new Applier.
func NewApplier(cfg ApplierConfig) *Applier {
	def := DefaultConfig()
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = def.Concurrency
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = def.Timeout
	}

	events, err := otel.Meter(instrumentationName).Int64Counter(
		"worker.inventory.events",
		metric.WithDescription("Inventory events processed, by type and outcome"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		cfg.Logger.Warn().Err(err).Msg("failed to create worker event counter")
	}

	return &Applier{
		store:       cfg.Store,
		concurrency: concurrency,
		timeout:     timeout,
		logger:      cfg.Logger,
		stats:       &ApplierStats{},
		events:      events,
	}
}

// Apply writes every event and reports a per-event outcome.
func (a *Applier) Apply(ctx context.Context, events []InventoryEvent) *BatchResult {
	start := time.Now()
	result := &BatchResult{
		StartTime: start,
		Results:   make([]EventResult, len(events)),
	}

	var order []string
	groups := make(map[string][]int)
	for i, e := range events {
		if _, ok := groups[e.OrganizationID]; !ok {
			order = append(order, e.OrganizationID)
		}
		groups[e.OrganizationID] = append(groups[e.OrganizationID], i)
	}

	g := new(errgroup.Group)
	g.SetLimit(a.concurrency)
	for _, id := range order {
		indices := groups[id]
		g.Go(func() error {
			a.applyGroup(ctx, events, indices, result.Results)
			return nil
		})
	}
	_ = g.Wait()

	for i, r := range result.Results {
		switch r.Outcome {
		case OutcomeApplied:
			result.Applied++
		case OutcomeRejected:
			result.Rejected++
		case OutcomeFailed:
			result.Failed++
		case OutcomeSkipped:
			result.Skipped++
		}
		a.record(ctx, events[i].EventType, r.Outcome)
	}
	result.Duration = time.Since(start)
	a.updateStats(result)

	a.logger.Info().
		Int("events", len(events)).
		Int("organizations", len(order)).
		Int("applied", result.Applied).
		Int("rejected", result.Rejected).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Dur("duration", result.Duration).
		Msg("inventory batch applied")

	return result
}

// applyGroup applies one organization's events in order. The first
// redeliverable failure skips the rest so they are retried in order.
func (a *Applier) applyGroup(ctx context.Context, events []InventoryEvent, indices []int, results []EventResult) {
	for n, idx := range indices {
		r := a.applyOne(ctx, events[idx])
		results[idx] = r
		if r.Outcome == OutcomeFailed {
			for _, rest := range indices[n+1:] {
				results[rest] = EventResult{Outcome: OutcomeSkipped, Err: r.Err}
			}
			return
		}
	}
}

func (a *Applier) applyOne(ctx context.Context, event InventoryEvent) EventResult {
	if err := ctx.Err(); err != nil {
		return EventResult{Outcome: OutcomeFailed, Err: err}
	}

	opCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var err error
	switch event.EventType {
	case EventInventoryUpdate:
		_, err = a.store.ApplyNeeds(opCtx, event.OrganizationID, event.Change())
	case EventOrganizationRefresh:
		_, err = a.store.Refresh(opCtx, event.OrganizationID)
	default:
		err = fmt.Errorf("%w: unknown event type %q", ErrInvalidEvent, event.EventType)
	}

	logger := a.logger.With().
		Str("event_type", event.EventType).
		Str("organization_id", event.OrganizationID).
		Logger()

	switch outcome := classify(err); outcome {
	case OutcomeApplied:
		logger.Debug().Msg("inventory event applied")
		return EventResult{Outcome: outcome}
	case OutcomeRejected:
		logger.Warn().Err(err).Msg("inventory event rejected")
		return EventResult{Outcome: outcome, Err: err}
	default:
		logger.Error().Err(err).Msg("inventory event failed")
		return EventResult{Outcome: outcome, Err: err}
	}
}

// classify maps a store result to an outcome. Validation errors and missing
// organizations are permanent; everything else is retried.
func classify(err error) Outcome {
	var validationErr *organization.ValidationError
	switch {
	case err == nil:
		return OutcomeApplied
	case errors.As(err, &validationErr),
		errors.Is(err, organization.ErrNotFound),
		errors.Is(err, organization.ErrNeedNotFound),
		errors.Is(err, ErrInvalidEvent):
		return OutcomeRejected
	default:
		return OutcomeFailed
	}
}

func (a *Applier) record(ctx context.Context, eventType string, outcome Outcome) {
	if a.events == nil {
		return
	}
	a.events.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("outcome", outcome.String()),
	))
}

func (a *Applier) updateStats(result *BatchResult) {
	a.stats.mu.Lock()
	defer a.stats.mu.Unlock()

	a.stats.Batches++
	a.stats.Applied += int64(result.Applied)
	a.stats.Rejected += int64(result.Rejected)
	a.stats.Failed += int64(result.Failed)
	a.stats.Skipped += int64(result.Skipped)
	a.stats.LastBatchAt = result.StartTime.Add(result.Duration)
	a.stats.LastBatchDuration = result.Duration
}

// Stats returns a copy of the current totals.
func (a *Applier) Stats() ApplierStats {
	a.stats.mu.RLock()
	defer a.stats.mu.RUnlock()

	return ApplierStats{
		Batches:           a.stats.Batches,
		Applied:           a.stats.Applied,
		Rejected:          a.stats.Rejected,
		Failed:            a.stats.Failed,
		Skipped:           a.stats.Skipped,
		LastBatchAt:       a.stats.LastBatchAt,
		LastBatchDuration: a.stats.LastBatchDuration,
	}
}

// StatsSnapshot returns the current totals as a map for health output.
func (a *Applier) StatsSnapshot() map[string]interface{} {
	s := a.Stats()
	return map[string]interface{}{
		"batches":             s.Batches,
		"applied":             s.Applied,
		"rejected":            s.Rejected,
		"failed":              s.Failed,
		"skipped":             s.Skipped,
		"last_batch_at":       s.LastBatchAt,
		"last_batch_duration": s.LastBatchDuration.String(),
	}
}

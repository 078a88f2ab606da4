package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Delivery is one received message.
type Delivery interface {
	ID() string
	Data() []byte
	Ack()
	Nack()
}

type queued struct {
	delivery Delivery
	event    InventoryEvent
}

// ConsumerConfig holds configuration for a Consumer.
type ConsumerConfig struct {
	Applier       *Applier
	BatchSize     int
	FlushInterval time.Duration
	Logger        zerolog.Logger
}

// Consumer turns deliveries into batches for the Applier. Handle decides
// what to do with each message; Run collects accepted events and flushes
// them when the batch is full or the flush interval passes.
//
// Malformed messages are nacked. Messages of an unknown type are acked.
// Accepted messages are acked or nacked once their batch is applied.
type Consumer struct {
	applier       *Applier
	batchSize     int
	flushInterval time.Duration
	logger        zerolog.Logger
	queue         chan queued
}

// NewConsumer creates a new Consumer.
func NewConsumer(cfg ConsumerConfig) *Consumer {
	def := DefaultConfig()
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = def.BatchSize
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = def.FlushInterval
	}
	return &Consumer{
		applier:       cfg.Applier,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        cfg.Logger,
		queue:         make(chan queued, batchSize*2),
	}
}

// Handle classifies one delivery and queues it for the next batch.
func (c *Consumer) Handle(ctx context.Context, d Delivery) {
	logger := c.logger.With().Str("message_id", d.ID()).Logger()

	event, err := ParseEvent(d.Data())
	if err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		d.Nack()
		return
	}

	if !event.Known() {
		logger.Warn().Str("event_type", event.EventType).Msg("unknown event type")
		d.Ack()
		return
	}

	select {
	case c.queue <- queued{delivery: d, event: event}:
	case <-ctx.Done():
		d.Nack()
	}
}

// Run applies queued events until ctx is cancelled. Events still queued at
// shutdown are nacked.
func (c *Consumer) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	batch := make([]queued, 0, c.batchSize)
	for {
		select {
		case <-ctx.Done():
			c.drain(batch)
			return ctx.Err()
		case q := <-c.queue:
			batch = append(batch, q)
			if len(batch) >= c.batchSize {
				c.flush(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				c.flush(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

func (c *Consumer) flush(ctx context.Context, batch []queued) {
	events := make([]InventoryEvent, len(batch))
	for i, q := range batch {
		events[i] = q.event
	}

	result := c.applier.Apply(ctx, events)
	for i, r := range result.Results {
		if r.Outcome.Redeliver() {
			batch[i].delivery.Nack()
		} else {
			batch[i].delivery.Ack()
		}
	}
}

func (c *Consumer) drain(batch []queued) {
	pending := len(batch)
	for _, q := range batch {
		q.delivery.Nack()
	}
	for {
		select {
		case q := <-c.queue:
			pending++
			q.delivery.Nack()
		default:
			if pending > 0 {
				c.logger.Info().Int("pending", pending).Msg("nacked pending events on shutdown")
			}
			return
		}
	}
}

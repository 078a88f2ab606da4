package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// PubSubHandler receives inventory events from a Pub/Sub subscription and
// feeds them to a Consumer.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	consumer         *Consumer
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Consumer         *Consumer
	Logger           zerolog.Logger

	// MaxOutstanding bounds unacknowledged messages held by the client.
	// Default: 100
	MaxOutstanding int
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("pubsub project id is required")
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	maxOutstanding := cfg.MaxOutstanding
	if maxOutstanding <= 0 {
		maxOutstanding = 100
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = maxOutstanding
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		consumer:         cfg.Consumer,
		logger:           cfg.Logger,
	}, nil
}

// Start receives messages until ctx is cancelled or receiving fails.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return h.consumer.Run(gctx)
	})
	g.Go(func() error {
		return h.subscriber.Receive(gctx, func(ctx context.Context, msg *pubsub.Message) {
			h.consumer.Handle(ctx, pubsubDelivery{msg: msg})
		})
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

// pubsubDelivery adapts a Pub/Sub message to Delivery.
type pubsubDelivery struct {
	msg *pubsub.Message
}

func (d pubsubDelivery) ID() string   { return d.msg.ID }
func (d pubsubDelivery) Data() []byte { return d.msg.Data }
func (d pubsubDelivery) Ack()         { d.msg.Ack() }
func (d pubsubDelivery) Nack()        { d.msg.Nack() }

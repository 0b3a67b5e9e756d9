package notifications

import (
	"context"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/outbox/registry"
)

const negotiationNotificationConsumer = "negotiation-notifications"

type writer interface {
	CreateBatch(ctx context.Context, rows []models.Notification) error
}

type deduper interface {
	Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (bool, error)
}

// Consumer turns negotiation domain events into in-app notifications.
type Consumer struct {
	repo         writer
	subscription *pubsub.Subscriber
	registry     *registry.EventRegistry
	idempotency  deduper
	logg         *logger.Logger
}

// NewConsumer builds a negotiation notification consumer. subscription may be
// nil when events are fed through Handle directly.
func NewConsumer(repo writer, subscription *pubsub.Subscriber, reg *registry.EventRegistry, manager deduper, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if reg == nil {
		return nil, fmt.Errorf("event registry required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		registry:     reg,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	if c.subscription == nil {
		return fmt.Errorf("notification subscription required")
	}
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		logCtx := c.logg.WithFields(ctx, map[string]any{
			"message_id": msg.ID,
			"event_type": msg.Attributes["event_type"],
		})
		if err := c.Handle(logCtx, msg.Attributes["event_type"], msg.Data); err != nil {
			c.logg.Error(logCtx, "notification handling failed", err)
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Handle processes one published event. Malformed events are logged and
// dropped; only retryable failures are returned.
func (c *Consumer) Handle(ctx context.Context, eventType string, data []byte) error {
	resolved, err := c.registry.Decode(enums.OutboxEventType(eventType), data)
	if err != nil {
		if registry.IsNonRetryable(err) {
			c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "dropping undecodable event")
			return nil
		}
		return err
	}

	eventID, err := uuid.Parse(resolved.Envelope.EventID)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "event_id", resolved.Envelope.EventID), "dropping event with invalid id")
		return nil
	}

	rows := Build(resolved.Payload)
	if len(rows) == 0 {
		return nil
	}

	skipped, err := c.idempotency.Once(ctx, negotiationNotificationConsumer, eventID, func(ctx context.Context) error {
		return c.repo.CreateBatch(ctx, rows)
	})
	if err != nil {
		return err
	}
	if skipped {
		c.logg.Info(ctx, "event already processed")
		return nil
	}
	c.logg.Info(c.logg.WithField(ctx, "notifications", len(rows)), "negotiation notifications created")
	return nil
}

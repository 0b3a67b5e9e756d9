package worker

import (
	"context"
	"errors"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/agromart/agromart-backend/internal/analytics/types"
	"github.com/agromart/agromart-backend/pkg/enums"
	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/outbox/payloads"
	"github.com/agromart/agromart-backend/pkg/outbox/registry"
)

const analyticsConsumerName = "negotiation-analytics"

// Handler defines how to process analytics envelopes.
type Handler interface {
	Supports(eventType enums.OutboxEventType) bool
	Handle(ctx context.Context, envelope types.Envelope) error
}

type decoder interface {
	Decode(eventType enums.OutboxEventType, data []byte) (*registry.ResolvedEvent, error)
}

type idempotencyChecker interface {
	Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (bool, error)
}

// Service consumes negotiation events from Pub/Sub while honoring Redis idempotency.
type Service struct {
	subscription *gcppubsub.Subscriber
	registry     decoder
	handler      Handler
	manager      idempotencyChecker
	logg         *logger.Logger
}

// NewService creates a new analytics worker service. subscription may be nil
// when messages are fed through Handle directly.
func NewService(subscription *gcppubsub.Subscriber, reg decoder, handler Handler, manager idempotencyChecker, logg *logger.Logger) (*Service, error) {
	if reg == nil {
		return nil, errors.New("event registry is required")
	}
	if handler == nil {
		return nil, errors.New("analytics handler is required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	return &Service{
		subscription: subscription,
		registry:     reg,
		handler:      handler,
		manager:      manager,
		logg:         logg,
	}, nil
}

// Run starts consuming analytics messages until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if s.subscription == nil {
		return errors.New("analytics subscription is required")
	}
	return s.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		logCtx := s.logg.WithField(innerCtx, "message_id", msg.ID)
		if err := s.Handle(logCtx, msg.Attributes["event_type"], msg.Data); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Handle processes one published message body. It returns an error only when
// the message should be redelivered.
func (s *Service) Handle(ctx context.Context, eventType string, data []byte) error {
	eventType = strings.TrimSpace(eventType)
	logCtx := s.logg.WithField(ctx, "event_type", eventType)

	parsed, err := enums.ParseOutboxEventType(eventType)
	if err != nil {
		s.logg.Warn(logCtx, "invalid analytics event type")
		return nil
	}
	if !s.handler.Supports(parsed) {
		return nil
	}

	resolved, err := s.registry.Decode(parsed, data)
	if err != nil {
		if registry.IsNonRetryable(err) {
			s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "invalid analytics envelope")
			return nil
		}
		s.logg.Error(logCtx, "decode analytics event", err)
		return err
	}

	envelope := types.Envelope{
		EventID:    resolved.Envelope.EventID,
		EventType:  parsed,
		OccurredAt: resolved.Envelope.OccurredAt.UTC(),
		Payload:    resolved.Payload,
	}
	if snap, ok := resolved.Payload.(payloads.Snapshotter); ok {
		envelope.AggregateID = snap.Snapshot().NegotiationID.String()
	}
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"event_id":    envelope.EventID,
		"occurred_at": envelope.OccurredAt.Format(time.RFC3339Nano),
	})

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		s.logg.Warn(logCtx, "invalid event id")
		return nil
	}

	skipped, err := s.manager.Once(logCtx, analyticsConsumerName, eventID, func(ctx context.Context) error {
		return s.handler.Handle(ctx, envelope)
	})
	if err != nil {
		s.logg.Error(logCtx, "analytics handler error", err)
		return err
	}
	if skipped {
		s.logg.Info(logCtx, "event already processed")
		return nil
	}
	s.logg.Info(logCtx, "analytics event handled")
	return nil
}

// Package registry maps outbox event types to their topic and payload type.
// The publisher uses it to validate rows before sending; consumers use it to
// decode message bodies back into typed payloads.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/agromart/agromart-backend/pkg/config"
	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
	"github.com/agromart/agromart-backend/pkg/outbox"
	"github.com/agromart/agromart-backend/pkg/outbox/payloads"
)

type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is a decoded envelope plus its typed payload.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks failures that will never succeed on redelivery.
// The publisher dead-letters them; consumers ack and drop them.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

// IsNonRetryable reports whether err, or anything it wraps, is terminal.
func IsNonRetryable(err error) bool {
	var target NonRetryableError
	return errors.As(err, &target)
}

func nonRetryable(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// negotiationEvent describes an event on the negotiation aggregate whose
// payload decodes into T.
func negotiationEvent[T any](eventType enums.OutboxEventType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:      eventType,
		AggregateType:  enums.AggregateNegotiation,
		Topic:          topic,
		PayloadFactory: func() any { return new(T) },
	}
}

// NewEventRegistry registers every negotiation lifecycle event on the
// configured topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := cfg.NegotiationTopic
	if topic == "" {
		return nil, errors.New("negotiation topic is required")
	}
	descriptors := []EventDescriptor{
		negotiationEvent[payloads.NegotiationStartedEvent](enums.EventNegotiationStarted, topic),
		negotiationEvent[payloads.NegotiationCounteredEvent](enums.EventNegotiationCountered, topic),
		negotiationEvent[payloads.NegotiationAcceptedEvent](enums.EventNegotiationAccepted, topic),
		negotiationEvent[payloads.NegotiationRejectedEvent](enums.EventNegotiationRejected, topic),
		negotiationEvent[payloads.NegotiationCancelledEvent](enums.EventNegotiationCancelled, topic),
		negotiationEvent[payloads.NegotiationExpiredEvent](enums.EventNegotiationExpired, topic),
		negotiationEvent[payloads.NegotiationExpiryWarningEvent](enums.EventNegotiationExpiryWarning, topic),
		negotiationEvent[payloads.NegotiationCheckedOutEvent](enums.EventNegotiationCheckedOut, topic),
	}
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(descriptors))}
	for _, desc := range descriptors {
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// Types lists the registered event types in sorted order.
func (r *EventRegistry) Types() []enums.OutboxEventType {
	return slices.Sorted(maps.Keys(r.entries))
}

// Resolve checks an outbox row against its descriptor and decodes it.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, nonRetryable("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, nonRetryable("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, nonRetryable("missing aggregate_id")
	}
	return r.Decode(event.EventType, event.Payload)
}

// Decode parses a message body, which is the stored envelope, for the given
// event type. Every failure is non-retryable.
func (r *EventRegistry) Decode(eventType enums.OutboxEventType, data []byte) (*ResolvedEvent, error) {
	desc, ok := r.entries[eventType]
	if !ok {
		return nil, nonRetryable("unsupported event type %s", eventType)
	}
	envelope, err := outbox.DecodeEnvelope(data)
	if err != nil {
		return nil, nonRetryable("%s: %w", eventType, err)
	}
	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, nonRetryable("decode %s payload: %w", eventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}

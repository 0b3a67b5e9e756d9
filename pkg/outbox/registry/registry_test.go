package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agromart/agromart-backend/pkg/config"
	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
	"github.com/agromart/agromart-backend/pkg/outbox"
	"github.com/agromart/agromart-backend/pkg/outbox/payloads"
)

func testRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{NegotiationTopic: "negotiation-events"})
	require.NoError(t, err)
	return reg
}

func envelopeOf(t *testing.T, data string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    outbox.EnvelopeVersion,
		EventID:    uuid.NewString(),
		OccurredAt: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC),
		Data:       json.RawMessage(data),
	})
	require.NoError(t, err)
	return raw
}

func TestResolveDecodesTypedPayload(t *testing.T) {
	reg := testRegistry(t)
	negotiationID := uuid.New()
	data, err := json.Marshal(payloads.NegotiationCounteredEvent{
		NegotiationSnapshot: payloads.NegotiationSnapshot{
			NegotiationID: negotiationID,
			BuyerUID:      "buyer-1",
			SellerUID:     "seller-1",
			Price:         decimal.RequireFromString("85.50"),
			Quantity:      10,
		},
		FromRole: enums.OfferRoleSeller,
	})
	require.NoError(t, err)

	resolved, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventNegotiationCountered,
		AggregateType: enums.AggregateNegotiation,
		AggregateID:   negotiationID,
		Payload:       envelopeOf(t, string(data)),
	})
	require.NoError(t, err)

	assert.Equal(t, "negotiation-events", resolved.Descriptor.Topic)
	assert.NotEmpty(t, resolved.Envelope.EventID)
	payload, ok := resolved.Payload.(*payloads.NegotiationCounteredEvent)
	require.True(t, ok, "payload type %T", resolved.Payload)
	assert.Equal(t, negotiationID, payload.NegotiationID)
	assert.Equal(t, enums.OfferRoleSeller, payload.FromRole)
	assert.True(t, payload.Price.Equal(decimal.RequireFromString("85.5")))
}

func TestResolveRejectsBadRows(t *testing.T) {
	reg := testRegistry(t)
	tests := []struct {
		name  string
		event models.OutboxEvent
	}{
		{
			name:  "unknown type",
			event: models.OutboxEvent{EventType: "listing_created", AggregateType: enums.AggregateNegotiation, AggregateID: uuid.New(), Payload: envelopeOf(t, `{}`)},
		},
		{
			name:  "aggregate mismatch",
			event: models.OutboxEvent{EventType: enums.EventNegotiationAccepted, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: envelopeOf(t, `{}`)},
		},
		{
			name:  "nil aggregate id",
			event: models.OutboxEvent{EventType: enums.EventNegotiationExpired, AggregateType: enums.AggregateNegotiation, Payload: envelopeOf(t, `{}`)},
		},
		{
			name:  "null data",
			event: models.OutboxEvent{EventType: enums.EventNegotiationStarted, AggregateType: enums.AggregateNegotiation, AggregateID: uuid.New(), Payload: envelopeOf(t, `null`)},
		},
		{
			name:  "payload shape",
			event: models.OutboxEvent{EventType: enums.EventNegotiationStarted, AggregateType: enums.AggregateNegotiation, AggregateID: uuid.New(), Payload: envelopeOf(t, `{"quantity":"lots"}`)},
		},
		{
			name:  "not an envelope",
			event: models.OutboxEvent{EventType: enums.EventNegotiationRejected, AggregateType: enums.AggregateNegotiation, AggregateID: uuid.New(), Payload: json.RawMessage(`[1,2]`)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Resolve(tt.event)
			require.Error(t, err)
			assert.True(t, IsNonRetryable(err), "expected non-retryable, got %v", err)
		})
	}
}

func TestTypesListsEveryLifecycleEvent(t *testing.T) {
	assert.Equal(t, []enums.OutboxEventType{
		enums.EventNegotiationAccepted,
		enums.EventNegotiationCancelled,
		enums.EventNegotiationCheckedOut,
		enums.EventNegotiationCountered,
		enums.EventNegotiationExpired,
		enums.EventNegotiationExpiryWarning,
		enums.EventNegotiationRejected,
		enums.EventNegotiationStarted,
	}, testRegistry(t).Types())
}

func TestIsNonRetryable(t *testing.T) {
	assert.True(t, IsNonRetryable(fmt.Errorf("publish: %w", NewNonRetryableError(errors.New("topic deleted")))))
	assert.False(t, IsNonRetryable(errors.New("deadline exceeded")))
	assert.False(t, IsNonRetryable(nil))
	assert.Equal(t, "non-retryable error", NonRetryableError{}.Error())
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{})
	require.Error(t, err)
}

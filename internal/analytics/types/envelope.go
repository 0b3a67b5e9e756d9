package types

import (
	"time"

	"github.com/agromart/agromart-backend/pkg/enums"
)

// Envelope is a decoded negotiation event as seen by analytics handlers.
// Payload holds the typed event from the outbox registry.
type Envelope struct {
	EventID     string
	EventType   enums.OutboxEventType
	AggregateID string
	OccurredAt  time.Time
	Payload     any
}

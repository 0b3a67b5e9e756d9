package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateNegotiation OutboxAggregateType = "negotiation"
	AggregateOrder       OutboxAggregateType = "order"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateNegotiation,
	AggregateOrder,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a domain event written to the outbox.
type OutboxEventType string

const (
	EventNegotiationStarted       OutboxEventType = "negotiation_started"
	EventNegotiationCountered     OutboxEventType = "negotiation_countered"
	EventNegotiationAccepted      OutboxEventType = "negotiation_accepted"
	EventNegotiationRejected      OutboxEventType = "negotiation_rejected"
	EventNegotiationCancelled     OutboxEventType = "negotiation_cancelled"
	EventNegotiationExpired       OutboxEventType = "negotiation_expired"
	EventNegotiationExpiryWarning OutboxEventType = "negotiation_expiry_warning"
	EventNegotiationCheckedOut    OutboxEventType = "negotiation_checked_out"
)

var validOutboxEventTypes = []OutboxEventType{
	EventNegotiationStarted,
	EventNegotiationCountered,
	EventNegotiationAccepted,
	EventNegotiationRejected,
	EventNegotiationCancelled,
	EventNegotiationExpired,
	EventNegotiationExpiryWarning,
	EventNegotiationCheckedOut,
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

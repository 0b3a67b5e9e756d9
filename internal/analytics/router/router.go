package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/agromart/agromart-backend/internal/analytics/types"
	"github.com/agromart/agromart-backend/internal/analytics/writer"
	"github.com/agromart/agromart-backend/pkg/enums"
	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/outbox/payloads"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer delivers BigQuery rows produced by the router.
type Writer interface {
	InsertNegotiationEvent(ctx context.Context, row types.NegotiationEventRow) error
}

type rowBuilder func(envelope types.Envelope) (types.NegotiationEventRow, error)

// Router maps negotiation outcomes onto negotiation_events rows.
type Router struct {
	writer   Writer
	builders map[enums.OutboxEventType]rowBuilder
	logg     *logger.Logger
}

// NewRouter wires the row builders for every tracked negotiation outcome.
func NewRouter(w Writer, logg *logger.Logger) (*Router, error) {
	if w == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Router{
		writer: w,
		builders: map[enums.OutboxEventType]rowBuilder{
			enums.EventNegotiationAccepted:   acceptedRow,
			enums.EventNegotiationCheckedOut: checkedOutRow,
			enums.EventNegotiationRejected:   rejectedRow,
			enums.EventNegotiationCancelled:  snapshotRow,
			enums.EventNegotiationExpired:    snapshotRow,
		},
		logg: logg,
	}, nil
}

// Supports reports whether eventType produces an analytics row.
func (r *Router) Supports(eventType enums.OutboxEventType) bool {
	_, ok := r.builders[eventType]
	return ok
}

// Handle builds and writes the row for envelope.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	build, ok := r.builders[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	row, err := build(envelope)
	if err != nil {
		return err
	}
	if err := r.writer.InsertNegotiationEvent(ctx, row); err != nil {
		return err
	}
	r.logg.Info(r.logg.WithField(ctx, "negotiation_id", row.NegotiationID), "negotiation analytics row written")
	return nil
}

func acceptedRow(envelope types.Envelope) (types.NegotiationEventRow, error) {
	event, ok := envelope.Payload.(*payloads.NegotiationAcceptedEvent)
	if !ok {
		return types.NegotiationEventRow{}, payloadMismatch(envelope)
	}
	row, err := baseRow(envelope, event.NegotiationSnapshot)
	if err != nil {
		return row, err
	}
	row.TotalAmount = strPtr(event.FinalTotalAmount.StringFixed(2))
	return row, nil
}

func checkedOutRow(envelope types.Envelope) (types.NegotiationEventRow, error) {
	event, ok := envelope.Payload.(*payloads.NegotiationCheckedOutEvent)
	if !ok {
		return types.NegotiationEventRow{}, payloadMismatch(envelope)
	}
	row, err := baseRow(envelope, event.NegotiationSnapshot)
	if err != nil {
		return row, err
	}
	row.TotalAmount = strPtr(event.Total.StringFixed(2))
	row.OrderID = strPtr(event.OrderID.String())
	row.OrderNumber = strPtr(event.OrderNumber)
	row.PaymentMethod = strPtr(string(event.PaymentMethod))
	return row, nil
}

func rejectedRow(envelope types.Envelope) (types.NegotiationEventRow, error) {
	event, ok := envelope.Payload.(*payloads.NegotiationRejectedEvent)
	if !ok {
		return types.NegotiationEventRow{}, payloadMismatch(envelope)
	}
	row, err := baseRow(envelope, event.NegotiationSnapshot)
	if err != nil {
		return row, err
	}
	if event.Reason != "" {
		row.Reason = strPtr(event.Reason)
	}
	return row, nil
}

func snapshotRow(envelope types.Envelope) (types.NegotiationEventRow, error) {
	snap, ok := envelope.Payload.(payloads.Snapshotter)
	if !ok {
		return types.NegotiationEventRow{}, payloadMismatch(envelope)
	}
	return baseRow(envelope, snap.Snapshot())
}

func baseRow(envelope types.Envelope, snap payloads.NegotiationSnapshot) (types.NegotiationEventRow, error) {
	payload, err := writer.EncodeJSON(envelope.Payload)
	if err != nil {
		return types.NegotiationEventRow{}, err
	}
	return types.NegotiationEventRow{
		EventID:       envelope.EventID,
		EventType:     string(envelope.EventType),
		OccurredAt:    envelope.OccurredAt.UTC(),
		NegotiationID: snap.NegotiationID.String(),
		BuyerUID:      snap.BuyerUID,
		SellerUID:     snap.SellerUID,
		ProductID:     snap.ProductID.String(),
		ProductName:   snap.ProductName,
		Status:        string(snap.Status),
		OriginalPrice: snap.OriginalPrice.StringFixed(2),
		FinalPrice:    snap.Price.StringFixed(2),
		Quantity:      int64(snap.Quantity),
		DiscountPct:   discountPct(snap.OriginalPrice, snap.Price),
		Rounds:        int64(snap.OfferCount),
		Payload:       payload,
	}, nil
}

// discountPct is the price reduction against the listing price, rounded to
// one decimal. Negative values mean the buyer paid above list.
func discountPct(original, final decimal.Decimal) *float64 {
	if !original.IsPositive() {
		return nil
	}
	pct := original.Sub(final).Div(original).Mul(decimal.NewFromInt(100)).Round(1).InexactFloat64()
	return &pct
}

func payloadMismatch(envelope types.Envelope) error {
	return fmt.Errorf("unexpected payload %T for %s", envelope.Payload, envelope.EventType)
}

func strPtr(v string) *string {
	return &v
}

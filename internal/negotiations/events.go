package negotiations

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
	"github.com/agromart/agromart-backend/pkg/outbox"
	"github.com/agromart/agromart-backend/pkg/outbox/payloads"
)

func snapshotOf(n *models.Negotiation, actorUID string) payloads.NegotiationSnapshot {
	return payloads.NegotiationSnapshot{
		NegotiationID: n.ID,
		BuyerUID:      n.BuyerUID,
		SellerUID:     n.SellerUID,
		ProductID:     n.ProductID,
		ProductName:   n.ProductName,
		Status:        n.Status,
		OriginalPrice: n.OriginalPrice,
		Price:         EffectivePrice(n),
		Quantity:      EffectiveQuantity(n),
		OfferCount:    len(n.Offers),
		ExpiresAt:     n.ExpiresAt,
		ActorUID:      actorUID,
	}
}

// emit queues a negotiation event in tx. actor may be nil for system transitions.
func (s *service) emit(ctx context.Context, tx *gorm.DB, n *models.Negotiation, eventType enums.OutboxEventType, actor *Actor, data any, at time.Time) error {
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateNegotiation,
		AggregateID:   n.ID,
		Data:          data,
		OccurredAt:    at,
	}
	if actor != nil {
		event.Actor = &outbox.ActorRef{UID: actor.UID, Role: actor.Role.String()}
	}
	return s.outbox.Emit(ctx, tx, event)
}

// expireInTx persists expired for a locked or freshly read row and queues the
// matching event. It reports whether the row changed.
func (s *service) expireInTx(ctx context.Context, tx *gorm.DB, n *models.Negotiation, now time.Time) (bool, error) {
	changed, err := s.repo.WithTx(tx).MarkExpired(ctx, n.ID, now)
	if err != nil || !changed {
		return false, err
	}
	n.Status = enums.NegotiationStatusExpired
	n.Version++
	payload := payloads.NegotiationExpiredEvent{NegotiationSnapshot: snapshotOf(n, "")}
	if err := s.emit(ctx, tx, n, enums.EventNegotiationExpired, nil, payload, now); err != nil {
		return false, err
	}
	return true, nil
}

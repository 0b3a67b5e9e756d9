package notifications

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
	"github.com/agromart/agromart-backend/pkg/outbox/payloads"
)

func negotiationLink(id uuid.UUID) *string {
	link := fmt.Sprintf("/negotiations/%s", id)
	return &link
}

// counterparty is the participant that did not act.
func counterparty(s payloads.NegotiationSnapshot) string {
	if s.ActorUID == s.SellerUID {
		return s.BuyerUID
	}
	return s.SellerUID
}

func notify(recipient string, s payloads.NegotiationSnapshot, kind enums.NotificationType, title, message string) models.Notification {
	id := s.NegotiationID
	return models.Notification{
		ID:            uuid.New(),
		RecipientUID:  recipient,
		Type:          kind,
		Title:         title,
		Message:       strings.TrimSpace(message),
		NegotiationID: &id,
		Link:          negotiationLink(id),
	}
}

// Build renders the notifications an event produces. Unknown payloads yield none.
func Build(payload any) []models.Notification {
	switch p := payload.(type) {
	case *payloads.NegotiationStartedEvent:
		s := p.NegotiationSnapshot
		return []models.Notification{notify(s.SellerUID, s, enums.NotificationTypeNewNegotiation,
			"New Price Negotiation",
			fmt.Sprintf("New offer for %s: %s x %d", s.ProductName, s.Price.StringFixed(2), s.Quantity))}
	case *payloads.NegotiationCounteredEvent:
		s := p.NegotiationSnapshot
		return []models.Notification{notify(counterparty(s), s, enums.NotificationTypeCounterOffer,
			"Counter Offer Received",
			fmt.Sprintf("Counter offer for %s: %s x %d", s.ProductName, s.Price.StringFixed(2), s.Quantity))}
	case *payloads.NegotiationAcceptedEvent:
		s := p.NegotiationSnapshot
		return []models.Notification{notify(counterparty(s), s, enums.NotificationTypeOfferAccepted,
			"Offer Accepted!",
			fmt.Sprintf("Your offer for %s was accepted. Final total: %s", s.ProductName, p.FinalTotalAmount.StringFixed(2)))}
	case *payloads.NegotiationRejectedEvent:
		s := p.NegotiationSnapshot
		msg := fmt.Sprintf("Your offer for %s was rejected.", s.ProductName)
		if p.Reason != "" {
			msg += " Reason: " + p.Reason
		}
		return []models.Notification{notify(counterparty(s), s, enums.NotificationTypeOfferRejected, "Offer Rejected", msg)}
	case *payloads.NegotiationCancelledEvent:
		s := p.NegotiationSnapshot
		return []models.Notification{notify(counterparty(s), s, enums.NotificationTypeNegotiationCancelled,
			"Negotiation Cancelled",
			fmt.Sprintf("The negotiation for %s was cancelled.", s.ProductName))}
	case *payloads.NegotiationExpiredEvent:
		s := p.NegotiationSnapshot
		msg := fmt.Sprintf("The negotiation for %s has expired.", s.ProductName)
		return []models.Notification{
			notify(s.BuyerUID, s, enums.NotificationTypeNegotiationExpired, "Negotiation Expired", msg),
			notify(s.SellerUID, s, enums.NotificationTypeNegotiationExpired, "Negotiation Expired", msg),
		}
	case *payloads.NegotiationExpiryWarningEvent:
		s := p.NegotiationSnapshot
		msg := fmt.Sprintf("The negotiation for %s expires soon (%s).", s.ProductName, p.TimeRemaining)
		return []models.Notification{
			notify(s.BuyerUID, s, enums.NotificationTypeNegotiationExpiring, "Negotiation Expiring Soon", msg),
			notify(s.SellerUID, s, enums.NotificationTypeNegotiationExpiring, "Negotiation Expiring Soon", msg),
		}
	case *payloads.NegotiationCheckedOutEvent:
		s := p.NegotiationSnapshot
		return []models.Notification{notify(s.SellerUID, s, enums.NotificationTypeOrderPlaced,
			"New Order Placed",
			fmt.Sprintf("Order %s placed for %s (%s, %s).", p.OrderNumber, s.ProductName, p.PaymentMethod, p.Total.StringFixed(2)))}
	}
	return nil
}

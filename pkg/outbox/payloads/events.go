package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agromart/agromart-backend/pkg/enums"
)

// NegotiationSnapshot is the negotiation state carried by every negotiation
// event. Price and Quantity reflect the latest offer.
type NegotiationSnapshot struct {
	NegotiationID uuid.UUID               `json:"negotiation_id"`
	BuyerUID      string                  `json:"buyer_uid"`
	SellerUID     string                  `json:"seller_uid"`
	ProductID     uuid.UUID               `json:"product_id"`
	ProductName   string                  `json:"product_name"`
	Status        enums.NegotiationStatus `json:"status"`
	OriginalPrice decimal.Decimal         `json:"original_price"`
	Price         decimal.Decimal         `json:"price"`
	Quantity      int                     `json:"quantity"`
	OfferCount    int                     `json:"offer_count"`
	ExpiresAt     time.Time               `json:"expires_at"`
	ActorUID      string                  `json:"actor_uid,omitempty"`
}

// Participants returns buyer and seller uids.
func (s NegotiationSnapshot) Participants() []string {
	return []string{s.BuyerUID, s.SellerUID}
}

// Counterparty returns the participant that is not uid.
func (s NegotiationSnapshot) Counterparty(uid string) string {
	if uid == s.BuyerUID {
		return s.SellerUID
	}
	return s.BuyerUID
}

type NegotiationStartedEvent struct {
	NegotiationSnapshot
	Message string `json:"message,omitempty"`
}

type NegotiationCounteredEvent struct {
	NegotiationSnapshot
	FromRole enums.OfferRole `json:"from_role"`
	Message  string          `json:"message,omitempty"`
}

type NegotiationAcceptedEvent struct {
	NegotiationSnapshot
	FinalTotalAmount decimal.Decimal `json:"final_total_amount"`
	AcceptedAt       time.Time       `json:"accepted_at"`
}

type NegotiationRejectedEvent struct {
	NegotiationSnapshot
	Reason string `json:"reason,omitempty"`
}

type NegotiationCancelledEvent struct {
	NegotiationSnapshot
}

// NegotiationExpiredEvent has no actor; both participants are notified.
type NegotiationExpiredEvent struct {
	NegotiationSnapshot
}

type NegotiationExpiryWarningEvent struct {
	NegotiationSnapshot
	TimeRemaining string `json:"time_remaining"`
}

type NegotiationCheckedOutEvent struct {
	NegotiationSnapshot
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	DeliveryFee   decimal.Decimal     `json:"delivery_fee"`
	Total         decimal.Decimal     `json:"total"`
}

// Snapshotter is implemented by every negotiation payload.
type Snapshotter interface {
	Snapshot() NegotiationSnapshot
}

func (s NegotiationSnapshot) Snapshot() NegotiationSnapshot { return s }

package negotiations

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agromart/agromart-backend/internal/delivery"
	"github.com/agromart/agromart-backend/internal/orders"
	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
)

// Actor is the authenticated caller. It is always passed explicitly.
type Actor struct {
	UID  string
	Role enums.AccountRole
}

type StartInput struct {
	BuyerUID       string
	BuyerRole      enums.AccountRole
	SellerUID      string
	ProductID      uuid.UUID
	Price          decimal.Decimal
	Quantity       int
	Message        string
	ConversationID *uuid.UUID
}

type CounterOfferInput struct {
	FromRole enums.OfferRole
	Price    decimal.Decimal
	Quantity int
	Message  string
}

type CheckoutInput struct {
	PaymentMethod  enums.PaymentMethod
	AddressID      *uuid.UUID
	DeliveryMethod enums.DeliveryMethod
	NegotiatedFee  decimal.Decimal
	Notes          string
	SourceID       string
	IdempotencyKey string
}

type CheckoutResult struct {
	OrderID        uuid.UUID            `json:"order_id"`
	OrderNumber    string               `json:"order_number"`
	PaymentMethod  enums.PaymentMethod  `json:"payment_method"`
	PaymentStatus  enums.PaymentStatus  `json:"payment_status"`
	PaymentID      string               `json:"payment_id,omitempty"`
	DeliveryMethod enums.DeliveryMethod `json:"delivery_method"`
	DeliveryFee    decimal.Decimal      `json:"delivery_fee"`
	Subtotal       decimal.Decimal      `json:"subtotal"`
	Total          decimal.Decimal      `json:"total"`
}

// DeliveryPreview lists the methods available for an accepted negotiation.
type DeliveryPreview struct {
	Options       []delivery.Option    `json:"delivery_methods"`
	Recommended   enums.DeliveryMethod `json:"recommended_method"`
	TotalWeightKg decimal.Decimal      `json:"total_weight_kg"`
	Quantity      int                  `json:"quantity"`
	UnitType      string               `json:"unit_type"`
}

type OfferView struct {
	Seq       int             `json:"seq"`
	FromUID   string          `json:"from_uid"`
	FromRole  enums.OfferRole `json:"from_role"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
	Message   string          `json:"message,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// NegotiationView is a negotiation rendered for one caller.
type NegotiationView struct {
	ID               uuid.UUID               `json:"id"`
	BuyerUID         string                  `json:"buyer_uid"`
	BuyerRole        enums.AccountRole       `json:"buyer_role"`
	BuyerName        string                  `json:"buyer_name,omitempty"`
	SellerUID        string                  `json:"seller_uid"`
	SellerName       string                  `json:"seller_name,omitempty"`
	ProductID        uuid.UUID               `json:"product_id"`
	ProductName      string                  `json:"product_name"`
	Quantity         int                     `json:"quantity"`
	ProposedPrice    decimal.Decimal         `json:"proposed_price"`
	OriginalPrice    decimal.Decimal         `json:"original_price"`
	Status           enums.NegotiationStatus `json:"status"`
	LogicalStatus    enums.NegotiationStatus `json:"logical_status"`
	ConversationID   *uuid.UUID              `json:"conversation_id,omitempty"`
	Offers           []OfferView             `json:"offers"`
	CurrentPrice     decimal.Decimal         `json:"current_price"`
	CurrentQuantity  int                     `json:"current_quantity"`
	CurrentTotal     decimal.Decimal         `json:"current_total"`
	Savings          Savings                 `json:"savings"`
	FinalPrice       *decimal.Decimal        `json:"final_price,omitempty"`
	FinalQuantity    *int                    `json:"final_quantity,omitempty"`
	FinalTotalAmount *decimal.Decimal        `json:"final_total_amount,omitempty"`
	AcceptedAt       *time.Time              `json:"accepted_at,omitempty"`
	AcceptedBy       *string                 `json:"accepted_by,omitempty"`
	OrderID          *uuid.UUID              `json:"order_id,omitempty"`
	ExpiresAt        time.Time               `json:"expires_at"`
	TimeRemaining    string                  `json:"time_remaining"`
	NearExpiry       bool                    `json:"near_expiry"`
	CanCounter       bool                    `json:"can_counter"`
	CanAccept        bool                    `json:"can_accept"`
	CanReject        bool                    `json:"can_reject"`
	CanCheckout      bool                    `json:"can_checkout"`
	Participant      *Participant            `json:"participant,omitempty"`
	CreatedAt        time.Time               `json:"created_at"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

// ListResult is one page of negotiations plus the orders of accepted ones.
type ListResult struct {
	Negotiations  []NegotiationView         `json:"negotiations"`
	OrdersSummary map[string]orders.Summary `json:"orders_summary"`
	NextCursor    string                    `json:"next_cursor,omitempty"`
}

type viewContext struct {
	now        time.Time
	nearWindow time.Duration
	names      map[string]models.Account
}

func (vc viewContext) render(n *models.Negotiation, uid string) NegotiationView {
	current := EffectivePrice(n)
	v := NegotiationView{
		ID:               n.ID,
		BuyerUID:         n.BuyerUID,
		BuyerRole:        n.BuyerRole,
		SellerUID:        n.SellerUID,
		ProductID:        n.ProductID,
		ProductName:      n.ProductName,
		Quantity:         n.Quantity,
		ProposedPrice:    n.ProposedPrice,
		OriginalPrice:    n.OriginalPrice,
		Status:           n.Status,
		LogicalStatus:    LogicalStatus(n, vc.now),
		ConversationID:   n.ConversationID,
		Offers:           make([]OfferView, 0, len(n.Offers)),
		CurrentPrice:     current,
		CurrentQuantity:  EffectiveQuantity(n),
		CurrentTotal:     EffectiveTotal(n),
		Savings:          CalculateSavings(n.OriginalPrice, current),
		FinalPrice:       n.FinalPrice,
		FinalQuantity:    n.FinalQuantity,
		FinalTotalAmount: n.FinalTotalAmount,
		AcceptedAt:       n.AcceptedAt,
		AcceptedBy:       n.AcceptedBy,
		OrderID:          n.OrderID,
		ExpiresAt:        n.ExpiresAt,
		CanCounter:       CanMakeCounterOffer(n, uid, vc.now),
		CanAccept:        CanAcceptOffer(n, uid, vc.now),
		CanReject:        CanRejectOffer(n, uid, vc.now),
		CanCheckout:      n.Status == enums.NegotiationStatusAccepted && n.OrderID == nil && uid == n.BuyerUID,
		CreatedAt:        n.CreatedAt,
		UpdatedAt:        n.UpdatedAt,
	}
	if v.LogicalStatus == enums.NegotiationStatusActive {
		v.TimeRemaining = FormatTimeRemaining(n.ExpiresAt, vc.now)
		v.NearExpiry = IsNearExpiry(n.ExpiresAt, vc.now, vc.nearWindow)
	} else if v.LogicalStatus == enums.NegotiationStatusExpired {
		v.TimeRemaining = "Expired"
	}
	if p, ok := ParticipantInfo(n, uid); ok {
		v.Participant = &p
	}
	if acct, ok := vc.names[n.BuyerUID]; ok {
		v.BuyerName = acct.DisplayName()
	}
	if acct, ok := vc.names[n.SellerUID]; ok {
		v.SellerName = acct.DisplayName()
	}
	for _, o := range n.Offers {
		v.Offers = append(v.Offers, OfferView{
			Seq:       o.Seq,
			FromUID:   o.FromUID,
			FromRole:  o.FromRole,
			Price:     o.Price,
			Quantity:  o.Quantity,
			Total:     o.Price.Mul(decimal.NewFromInt(int64(o.Quantity))).Round(2),
			Message:   o.Message,
			CreatedAt: o.CreatedAt,
		})
	}
	return v
}

package orders

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
)

// CreateInput carries the frozen terms of an accepted negotiation.
type CreateInput struct {
	NegotiationID  uuid.UUID
	BuyerUID       string
	BuyerRole      enums.AccountRole
	SellerUID      string
	ProductID      uuid.UUID
	AddressID      uuid.UUID
	Quantity       int
	UnitPrice      decimal.Decimal
	OriginalPrice  decimal.Decimal
	DeliveryFee    decimal.Decimal
	DeliveryMethod enums.DeliveryMethod
	PaymentMethod  enums.PaymentMethod
	Notes          string
}

// Summary is the order information listings attach to accepted negotiations.
type Summary struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	Status        enums.OrderStatus   `json:"status"`
	Total         decimal.Decimal     `json:"total"`
}

func summaryFromModel(o models.Order) Summary {
	return Summary{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		PaymentMethod: o.PaymentMethod,
		PaymentStatus: o.PaymentStatus,
		Status:        o.Status,
		Total:         o.Total,
	}
}

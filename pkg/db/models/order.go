package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agromart/agromart-backend/pkg/enums"
)

// Order is the purchase created from an accepted negotiation.
type Order struct {
	ID                 uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber        string               `gorm:"column:order_number;not null;uniqueIndex"`
	NegotiationID      uuid.UUID            `gorm:"column:negotiation_id;type:uuid;not null;index"`
	BuyerUID           string               `gorm:"column:buyer_uid;not null"`
	SellerUID          string               `gorm:"column:seller_uid;not null"`
	ProductID          uuid.UUID            `gorm:"column:product_id;type:uuid;not null"`
	AddressID          uuid.UUID            `gorm:"column:address_id;type:uuid;not null"`
	Quantity           int                  `gorm:"column:quantity;not null"`
	UnitPrice          decimal.Decimal      `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Subtotal           decimal.Decimal      `gorm:"column:subtotal;type:numeric(14,2);not null"`
	DeliveryFee        decimal.Decimal      `gorm:"column:delivery_fee;type:numeric(12,2);not null"`
	Total              decimal.Decimal      `gorm:"column:total;type:numeric(14,2);not null"`
	DeliveryMethod     enums.DeliveryMethod `gorm:"column:delivery_method;not null"`
	PaymentMethod      enums.PaymentMethod  `gorm:"column:payment_method;not null"`
	PaymentStatus      enums.PaymentStatus  `gorm:"column:payment_status;not null"`
	PaymentReference   *string              `gorm:"column:payment_reference"`
	Status             enums.OrderStatus    `gorm:"column:status;not null"`
	NegotiatedDeltaPct *decimal.Decimal     `gorm:"column:negotiated_delta_pct;type:numeric(7,2)"`
	Notes              string               `gorm:"column:notes;not null;default:''"`
	PaidAt             *time.Time           `gorm:"column:paid_at"`
	CreatedAt          time.Time            `gorm:"column:created_at"`
	UpdatedAt          time.Time            `gorm:"column:updated_at"`
}

func (Order) TableName() string { return "orders" }

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the catalog listing a negotiation refers to.
type Product struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	VendorUID   string           `gorm:"column:vendor_uid;not null"`
	Name        string           `gorm:"column:name;not null"`
	UnitType    string           `gorm:"column:unit_type;not null;default:'pcs'"`
	UnitPrice   decimal.Decimal  `gorm:"column:unit_price;type:numeric(12,2);not null"`
	OfferPrice  *decimal.Decimal `gorm:"column:offer_price;type:numeric(12,2)"`
	MinOrderQty int              `gorm:"column:min_order_qty;not null;default:1"`
	IsActive    bool             `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }

// ListPrice is the price a negotiation starts from: the offer price when set
// and positive, otherwise the unit price.
func (p Product) ListPrice() decimal.Decimal {
	if p.OfferPrice != nil && p.OfferPrice.IsPositive() {
		return *p.OfferPrice
	}
	return p.UnitPrice
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agromart/agromart-backend/pkg/enums"
)

// Negotiation is a bounded price/quantity exchange between one buyer and one
// seller over a single product.
type Negotiation struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	BuyerUID          string                  `gorm:"column:buyer_uid;not null"`
	BuyerRole         enums.AccountRole       `gorm:"column:buyer_role;not null"`
	SellerUID         string                  `gorm:"column:seller_uid;not null"`
	ProductID         uuid.UUID               `gorm:"column:product_id;type:uuid;not null"`
	ProductName       string                  `gorm:"column:product_name;not null"`
	Quantity          int                     `gorm:"column:quantity;not null"`
	ProposedPrice     decimal.Decimal         `gorm:"column:proposed_price;type:numeric(12,2);not null"`
	OriginalPrice     decimal.Decimal         `gorm:"column:original_price;type:numeric(12,2);not null"`
	Status            enums.NegotiationStatus `gorm:"column:status;not null"`
	ConversationID    *uuid.UUID              `gorm:"column:conversation_id;type:uuid"`
	ExpiresAt         time.Time               `gorm:"column:expires_at;not null"`
	FinalPrice        *decimal.Decimal        `gorm:"column:final_price;type:numeric(12,2)"`
	FinalQuantity     *int                    `gorm:"column:final_quantity"`
	FinalTotalAmount  *decimal.Decimal        `gorm:"column:final_total_amount;type:numeric(14,2)"`
	AcceptedAt        *time.Time              `gorm:"column:accepted_at"`
	AcceptedBy        *string                 `gorm:"column:accepted_by"`
	ExpiryWarningSent bool                    `gorm:"column:expiry_warning_sent;not null;default:false"`
	OrderID           *uuid.UUID              `gorm:"column:order_id;type:uuid"`
	Version           int                     `gorm:"column:version;not null;default:1"`
	CreatedAt         time.Time               `gorm:"column:created_at"`
	UpdatedAt         time.Time               `gorm:"column:updated_at"`

	Offers []NegotiationOffer `gorm:"foreignKey:NegotiationID;references:ID"`
}

func (Negotiation) TableName() string { return "negotiations" }

// NegotiationOffer is one immutable entry of a negotiation history. Seq is the
// zero-based position in the history and is unique per negotiation.
type NegotiationOffer struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	NegotiationID uuid.UUID       `gorm:"column:negotiation_id;type:uuid;not null"`
	Seq           int             `gorm:"column:seq;not null"`
	FromUID       string          `gorm:"column:from_uid;not null"`
	FromRole      enums.OfferRole `gorm:"column:from_role;not null"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Quantity      int             `gorm:"column:quantity;not null"`
	Message       string          `gorm:"column:message;not null;default:''"`
	CreatedAt     time.Time       `gorm:"column:created_at"`
}

func (NegotiationOffer) TableName() string { return "negotiation_offers" }

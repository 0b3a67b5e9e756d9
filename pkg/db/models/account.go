package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/agromart/agromart-backend/pkg/enums"
)

// Account is a marketplace participant (client or vendor) keyed by its
// external uid.
type Account struct {
	ID                 uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	UID                string                   `gorm:"column:uid;not null;uniqueIndex"`
	Role               enums.AccountRole        `gorm:"column:role;not null"`
	Name               string                   `gorm:"column:name;not null"`
	BusinessName       *string                  `gorm:"column:business_name"`
	Email              *string                  `gorm:"column:email"`
	Banned             bool                     `gorm:"column:banned;not null;default:false"`
	VerificationStatus enums.VerificationStatus `gorm:"column:verification_status;not null;default:'none'"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (Account) TableName() string { return "accounts" }

// DisplayName prefers the business name for vendors.
func (a Account) DisplayName() string {
	if a.Role == enums.AccountRoleVendor && a.BusinessName != nil && *a.BusinessName != "" {
		return *a.BusinessName
	}
	return a.Name
}

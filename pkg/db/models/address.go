package models

import (
	"time"

	"github.com/google/uuid"
)

// Address is a delivery address in an account's address book.
type Address struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UID          string    `gorm:"column:uid;not null"`
	Name         string    `gorm:"column:name;not null"`
	Phone        string    `gorm:"column:phone;not null"`
	AddressLine1 string    `gorm:"column:address_line1;not null"`
	City         string    `gorm:"column:city;not null"`
	State        *string   `gorm:"column:state"`
	Zip          *string   `gorm:"column:zip"`
	IsDefault    bool      `gorm:"column:is_default;not null;default:false"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Address) TableName() string { return "addresses" }

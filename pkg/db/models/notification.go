package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/agromart/agromart-backend/pkg/enums"
)

// Notification stores in-app notifications addressed to one account.
type Notification struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	RecipientUID  string                 `gorm:"column:recipient_uid;not null"`
	Type          enums.NotificationType `gorm:"column:type;not null"`
	Title         string                 `gorm:"column:title;not null"`
	Message       string                 `gorm:"column:message;not null"`
	NegotiationID *uuid.UUID             `gorm:"column:negotiation_id;type:uuid"`
	Link          *string                `gorm:"column:link"`
	ReadAt        *time.Time             `gorm:"column:read_at"`
	CreatedAt     time.Time              `gorm:"column:created_at"`
}

func (Notification) TableName() string { return "notifications" }

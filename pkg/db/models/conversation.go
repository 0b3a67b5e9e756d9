package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Conversation is a messaging thread between two marketplace accounts.
// ParticipantA sorts before ParticipantB so a pair maps to one row.
type Conversation struct {
	ID                uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ParticipantA      string     `gorm:"column:participant_a;not null"`
	ParticipantB      string     `gorm:"column:participant_b;not null"`
	LastMessage       *string    `gorm:"column:last_message"`
	LastMessageSender *string    `gorm:"column:last_message_sender"`
	LastMessageAt     *time.Time `gorm:"column:last_message_at"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Conversation) TableName() string { return "conversations" }

// Message is a single entry of a conversation. Negotiation messages carry a
// snapshot of the offer in Data.
type Message struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ConversationID uuid.UUID       `gorm:"column:conversation_id;type:uuid;not null"`
	SenderUID      string          `gorm:"column:sender_uid;not null"`
	SenderName     string          `gorm:"column:sender_name;not null"`
	Content        string          `gorm:"column:content;not null"`
	MessageType    string          `gorm:"column:message_type;not null"`
	NegotiationID  *uuid.UUID      `gorm:"column:negotiation_id;type:uuid"`
	Data           json.RawMessage `gorm:"column:data;type:jsonb"`
	CreatedAt      time.Time       `gorm:"column:created_at"`
}

func (Message) TableName() string { return "messages" }

package conversations

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agromart/agromart-backend/internal/repo"
	"github.com/agromart/agromart-backend/pkg/db/models"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
)

// MessageTypeNegotiation marks messages that mirror a negotiation event.
const MessageTypeNegotiation = "negotiation"

const lastMessagePreviewLen = 120

// NegotiationMessage is a negotiation event rendered into a conversation.
type NegotiationMessage struct {
	ConversationID uuid.UUID
	NegotiationID  uuid.UUID
	SenderUID      string
	SenderName     string
	Content        string
	Data           any
}

// Service links negotiations to messaging threads.
type Service struct {
	repo.Base
	now func() time.Time
}

// NewService binds the messaging store to db.
func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, errors.New("conversations db required")
	}
	return &Service{Base: repo.NewBase(db), now: func() time.Time { return time.Now().UTC() }}, nil
}

// EnsureConversation returns the conversation between two accounts, creating it
// when the pair has never talked.
func (s *Service) EnsureConversation(ctx context.Context, uidA, uidB string) (uuid.UUID, error) {
	a, b := strings.TrimSpace(uidA), strings.TrimSpace(uidB)
	if a == "" || b == "" || a == b {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "conversation requires two distinct participants")
	}
	if b < a {
		a, b = b, a
	}

	now := s.now()
	row := models.Conversation{
		ID:           uuid.New(),
		ParticipantA: a,
		ParticipantB: b,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := s.DB(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "participant_a"}, {Name: "participant_b"}}, DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create conversation")
	}

	var existing models.Conversation
	if err := s.DB(ctx).
		Where("participant_a = ? AND participant_b = ?", a, b).
		First(&existing).Error; err != nil {
		return uuid.Nil, repo.NotFound(err, "conversation")
	}
	return existing.ID, nil
}

// PostNegotiationMessage appends msg to its conversation and refreshes the
// conversation preview.
func (s *Service) PostNegotiationMessage(ctx context.Context, msg NegotiationMessage) error {
	if msg.ConversationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "conversation id required")
	}
	var data json.RawMessage
	if msg.Data != nil {
		raw, err := json.Marshal(msg.Data)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode message data")
		}
		data = raw
	}

	now := s.now()
	negotiationID := msg.NegotiationID
	return s.DB(ctx).Transaction(func(tx *gorm.DB) error {
		row := models.Message{
			ID:             uuid.New(),
			ConversationID: msg.ConversationID,
			SenderUID:      msg.SenderUID,
			SenderName:     msg.SenderName,
			Content:        msg.Content,
			MessageType:    MessageTypeNegotiation,
			NegotiationID:  &negotiationID,
			Data:           data,
			CreatedAt:      now,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		preview := previewOf(msg.Content)
		res := tx.Model(&models.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Updates(map[string]any{
				"last_message":        preview,
				"last_message_sender": msg.SenderUID,
				"last_message_at":     now,
				"updated_at":          now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "conversation not found")
		}
		return nil
	})
}

// Messages returns the messages of a conversation oldest first.
func (s *Service) Messages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	var rows []models.Message
	err := s.DB(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func previewOf(content string) string {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) <= lastMessagePreviewLen {
		return string(runes)
	}
	return string(runes[:lastMessagePreviewLen-3]) + "..."
}

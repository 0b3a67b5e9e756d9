package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
	"github.com/agromart/agromart-backend/pkg/logger"
)

// DomainEvent is a state change to be published once the surrounding
// transaction commits.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

func (e DomainEvent) validate() error {
	switch {
	case !e.EventType.IsValid():
		return fmt.Errorf("invalid outbox event type %q", e.EventType)
	case !e.AggregateType.IsValid():
		return fmt.Errorf("invalid aggregate type %q for %s", e.AggregateType, e.EventType)
	case e.AggregateID == uuid.Nil:
		return fmt.Errorf("%s missing aggregate id", e.EventType)
	}
	return nil
}

// Emitter writes domain events inside the caller's transaction.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, events ...DomainEvent) error
}

type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: func() time.Time { return time.Now().UTC() }}
}

// Emit queues events in tx. Either every event is written or none is, and
// rows share the caller's commit.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, events ...DomainEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if len(events) == 0 {
		return nil
	}

	rows := make([]models.OutboxEvent, 0, len(events))
	for _, event := range events {
		if err := event.validate(); err != nil {
			return err
		}
		if event.OccurredAt.IsZero() {
			event.OccurredAt = s.now()
		}
		id := uuid.New()
		env, err := wrap(id, event)
		if err != nil {
			return err
		}
		body, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("encode envelope: %w", err)
		}
		rows = append(rows, models.OutboxEvent{
			ID:            id,
			EventType:     event.EventType,
			AggregateType: event.AggregateType,
			AggregateID:   event.AggregateID,
			Payload:       body,
			CreatedAt:     event.OccurredAt,
		})
	}

	if err := s.repo.Insert(tx.WithContext(ctx), rows...); err != nil {
		return err
	}
	if s.logg != nil {
		for _, row := range rows {
			logCtx := s.logg.WithNegotiationID(ctx, row.AggregateID.String())
			logCtx = s.logg.WithFields(logCtx, map[string]any{
				"event_id":   row.ID,
				"event_type": row.EventType,
			})
			s.logg.Debug(logCtx, "outbox event queued")
		}
	}
	return nil
}

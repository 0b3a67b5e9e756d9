package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/pkg/db"
	"github.com/agromart/agromart-backend/pkg/db/dbtest"
	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
	"github.com/agromart/agromart-backend/pkg/logger"
)

type offerData struct {
	NegotiationID uuid.UUID `json:"negotiation_id"`
	Price         string    `json:"price"`
}

func newOutbox(t *testing.T) (*db.Client, *Service) {
	t.Helper()
	client := dbtest.Open(t)
	return client, NewService(NewRepository(client.DB()), logger.NewNop())
}

func negotiationEvent(id uuid.UUID, eventType enums.OutboxEventType, at time.Time) DomainEvent {
	return DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateNegotiation,
		AggregateID:   id,
		Actor:         &ActorRef{UID: "buyer-1", Role: "buyer"},
		Data:          offerData{NegotiationID: id, Price: "80.00"},
		OccurredAt:    at,
	}
}

func TestEmitWritesEnvelopesInCallerTx(t *testing.T) {
	client, svc := newOutbox(t)
	ctx := context.Background()
	negotiationID := uuid.New()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx,
			negotiationEvent(negotiationID, enums.EventNegotiationStarted, at),
			negotiationEvent(negotiationID, enums.EventNegotiationCountered, at.Add(time.Second)),
		)
	})
	require.NoError(t, err)

	rows, err := NewRepository(client.DB()).ListByAggregate(ctx, negotiationID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, enums.EventNegotiationStarted, rows[0].EventType)
	assert.Equal(t, enums.EventNegotiationCountered, rows[1].EventType)

	env, err := DecodeEnvelope(rows[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, rows[0].ID.String(), env.EventID)
	assert.Equal(t, EnvelopeVersion, env.Version)
	assert.True(t, env.OccurredAt.Equal(at))
	require.NotNil(t, env.Actor)
	assert.Equal(t, "buyer-1", env.Actor.UID)

	var data offerData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, negotiationID, data.NegotiationID)
	assert.Equal(t, "80.00", data.Price)
}

func TestEmitRollsBackWithCaller(t *testing.T) {
	client, svc := newOutbox(t)
	ctx := context.Background()
	negotiationID := uuid.New()
	boom := errors.New("offer insert failed")

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := svc.Emit(ctx, tx, negotiationEvent(negotiationID, enums.EventNegotiationAccepted, time.Now())); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	rows, err := NewRepository(client.DB()).ListByAggregate(ctx, negotiationID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestEmitRejectsInvalidEvents(t *testing.T) {
	client, svc := newOutbox(t)
	ctx := context.Background()
	id := uuid.New()
	valid := negotiationEvent(id, enums.EventNegotiationRejected, time.Now())

	withType := valid
	withType.EventType = "listing_created"
	withAggregate := valid
	withAggregate.AggregateType = "store"
	withoutID := valid
	withoutID.AggregateID = uuid.Nil
	withoutData := valid
	withoutData.Data = nil

	cases := map[string]DomainEvent{
		"unknown event type": withType,
		"unknown aggregate":  withAggregate,
		"missing aggregate":  withoutID,
		"missing data":       withoutData,
	}
	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			err := client.WithTx(ctx, func(tx *gorm.DB) error {
				return svc.Emit(ctx, tx, valid, event)
			})
			require.Error(t, err)
		})
	}

	rows, err := NewRepository(client.DB()).ListByAggregate(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, rows, "a bad event must not leave its siblings behind")

	assert.Error(t, svc.Emit(ctx, nil, valid))
	assert.NoError(t, svc.Emit(ctx, client.DB()))
}

func TestFetchUnpublishedSkipsSettledRows(t *testing.T) {
	client, _ := newOutbox(t)
	ctx := context.Background()
	repo := NewRepository(client.DB())
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	rows := make([]models.OutboxEvent, 4)
	for i := range rows {
		rows[i] = models.OutboxEvent{
			EventType:     enums.EventNegotiationExpired,
			AggregateType: enums.AggregateNegotiation,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}
	}
	require.NoError(t, repo.Insert(client.DB(), rows...))

	var fetched []models.OutboxEvent
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		require.NoError(t, repo.MarkPublishedTx(tx, rows[0].ID))
		require.NoError(t, repo.MarkTerminalTx(tx, rows[1].ID, errors.New("bad payload"), 10))
		require.NoError(t, repo.MarkFailedTx(tx, rows[3].ID, errors.New("pubsub unavailable")))

		var err error
		fetched, err = repo.FetchUnpublishedForPublish(tx, 10, 10)
		return err
	})
	require.NoError(t, err)
	require.Len(t, fetched, 2)
	assert.Equal(t, rows[2].ID, fetched[0].ID)
	assert.Equal(t, rows[3].ID, fetched[1].ID)
	assert.Equal(t, 1, fetched[1].AttemptCount)
	require.NotNil(t, fetched[1].LastError)
	assert.Equal(t, "pubsub unavailable", *fetched[1].LastError)
}

func TestDeletePublishedBefore(t *testing.T) {
	client, _ := newOutbox(t)
	ctx := context.Background()
	repo := NewRepository(client.DB())
	aggregate := uuid.New()

	rows := make([]models.OutboxEvent, 3)
	for i := range rows {
		rows[i] = models.OutboxEvent{
			EventType:     enums.EventNegotiationCheckedOut,
			AggregateType: enums.AggregateNegotiation,
			AggregateID:   aggregate,
			Payload:       json.RawMessage(`{}`),
			CreatedAt:     time.Now().UTC(),
		}
	}
	require.NoError(t, repo.Insert(client.DB(), rows...))

	old := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).
		Where("id IN ?", []uuid.UUID{rows[0].ID, rows[1].ID}).
		Update("published_at", old).Error)

	deleted, err := repo.DeletePublishedBefore(ctx, time.Now().UTC().Add(-24*time.Hour), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = repo.DeletePublishedBefore(ctx, time.Now().UTC().Add(-24*time.Hour), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	left, err := repo.ListByAggregate(ctx, aggregate)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, rows[2].ID, left[0].ID)
}

func TestDLQInsertClipsErrorAndFinds(t *testing.T) {
	client, _ := newOutbox(t)
	ctx := context.Background()
	dlq := NewDLQRepository(client.DB())
	eventID := uuid.New()
	msg := strings.Repeat("দাম", 600)

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return dlq.InsertTx(tx, models.OutboxDLQ{
			EventID:       eventID,
			EventType:     enums.EventNegotiationAccepted,
			AggregateType: enums.AggregateNegotiation,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
			ErrorMessage:  &msg,
			AttemptCount:  10,
		})
	})
	require.NoError(t, err)

	entry, err := dlq.FindByEventID(ctx, eventID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.NotNil(t, entry.ErrorMessage)
	assert.LessOrEqual(t, len(*entry.ErrorMessage), maxErrorLen)
	assert.True(t, utf8.ValidString(*entry.ErrorMessage))
	assert.False(t, entry.FailedAt.IsZero())

	missing, err := dlq.FindByEventID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.Error(t, dlq.InsertTx(nil, models.OutboxDLQ{}))
}

func TestDecodeEnvelope(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"complete", `{"version":1,"eventId":"e-1","occurredAt":"2026-03-01T09:00:00Z","data":{"price":"80.00"}}`, true},
		{"missing event id", `{"version":1,"data":{}}`, false},
		{"null data", `{"version":1,"eventId":"e-1","data":null}`, false},
		{"absent data", `{"version":1,"eventId":"e-1"}`, false},
		{"not json", `version=1`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeEnvelope([]byte(tc.raw))
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

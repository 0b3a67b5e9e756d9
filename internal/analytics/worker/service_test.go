package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agromart/agromart-backend/internal/analytics/router"
	"github.com/agromart/agromart-backend/internal/analytics/types"
	"github.com/agromart/agromart-backend/pkg/config"
	"github.com/agromart/agromart-backend/pkg/enums"
	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/outbox"
	"github.com/agromart/agromart-backend/pkg/outbox/idempotency"
	"github.com/agromart/agromart-backend/pkg/outbox/payloads"
	"github.com/agromart/agromart-backend/pkg/outbox/registry"
)

func TestHandleWritesRowOnce(t *testing.T) {
	svc, w := newTestService(t)
	negotiationID := uuid.New()
	occurred := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	body := buildBody(t, uuid.NewString(), occurred, payloads.NegotiationAcceptedEvent{
		NegotiationSnapshot: payloads.NegotiationSnapshot{
			NegotiationID: negotiationID,
			BuyerUID:      "buyer-1",
			SellerUID:     "vendor-1",
			Status:        enums.NegotiationStatusAccepted,
			OriginalPrice: decimal.NewFromInt(100),
			Price:         decimal.NewFromInt(90),
			Quantity:      5,
			OfferCount:    2,
		},
		FinalTotalAmount: decimal.NewFromInt(450),
	})

	if err := svc.Handle(context.Background(), string(enums.EventNegotiationAccepted), body); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := svc.Handle(context.Background(), string(enums.EventNegotiationAccepted), body); err != nil {
		t.Fatalf("handle duplicate: %v", err)
	}

	if len(w.rows) != 1 {
		t.Fatalf("expected one row, got %d", len(w.rows))
	}
	row := w.rows[0]
	if row.NegotiationID != negotiationID.String() {
		t.Fatalf("unexpected negotiation id %s", row.NegotiationID)
	}
	if !row.OccurredAt.Equal(occurred) {
		t.Fatalf("unexpected occurred at %v", row.OccurredAt)
	}
}

func TestHandleSkipsUntrackedEvents(t *testing.T) {
	svc, w := newTestService(t)
	body := buildBody(t, uuid.NewString(), time.Now(), payloads.NegotiationCounteredEvent{
		NegotiationSnapshot: payloads.NegotiationSnapshot{NegotiationID: uuid.New()},
		FromRole:            enums.OfferRoleSeller,
	})

	if err := svc.Handle(context.Background(), string(enums.EventNegotiationCountered), body); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := svc.Handle(context.Background(), "order_created", body); err != nil {
		t.Fatalf("unknown event type should ack: %v", err)
	}
	if len(w.rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(w.rows))
	}
}

func TestHandleDropsMalformedMessages(t *testing.T) {
	svc, w := newTestService(t)

	if err := svc.Handle(context.Background(), string(enums.EventNegotiationExpired), []byte("invalid json")); err != nil {
		t.Fatalf("invalid envelope should ack: %v", err)
	}
	body := buildBody(t, "not-a-uuid", time.Now(), payloads.NegotiationExpiredEvent{})
	if err := svc.Handle(context.Background(), string(enums.EventNegotiationExpired), body); err != nil {
		t.Fatalf("invalid event id should ack: %v", err)
	}
	if len(w.rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(w.rows))
	}
}

func TestHandleWriterErrorRetries(t *testing.T) {
	svc, w := newTestService(t)
	w.err = errors.New("bigquery unavailable")
	body := buildBody(t, uuid.NewString(), time.Now(), payloads.NegotiationExpiredEvent{
		NegotiationSnapshot: payloads.NegotiationSnapshot{NegotiationID: uuid.New(), Status: enums.NegotiationStatusExpired},
	})

	if err := svc.Handle(context.Background(), string(enums.EventNegotiationExpired), body); err == nil {
		t.Fatal("expected error so the message is redelivered")
	}

	w.err = nil
	if err := svc.Handle(context.Background(), string(enums.EventNegotiationExpired), body); err != nil {
		t.Fatalf("redelivery should succeed: %v", err)
	}
	if len(w.rows) != 1 {
		t.Fatalf("expected the redelivered event to be written, got %d", len(w.rows))
	}
}

func TestNewServiceValidation(t *testing.T) {
	logg := logger.New(logger.Options{Output: io.Discard})
	if _, err := NewService(nil, nil, nil, nil, logg); err == nil {
		t.Fatal("expected error without registry")
	}
	svc, _ := newTestService(t)
	if err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected error when running without a subscription")
	}
}

type fakeWriter struct {
	mu   sync.Mutex
	rows []types.NegotiationEventRow
	err  error
}

func (f *fakeWriter) InsertNegotiationEvent(_ context.Context, row types.NegotiationEventRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, row)
	return nil
}

type memoryStore struct {
	mu   sync.Mutex
	keys map[string]string
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key], nil
}

func (m *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = fmt.Sprint(value)
	return nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.keys, key)
	}
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeWriter) {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "analytics-test", Output: io.Discard})
	reg, err := registry.NewEventRegistry(config.PubSubConfig{NegotiationTopic: "negotiations"})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	w := &fakeWriter{}
	r, err := router.NewRouter(w, logg)
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	manager, err := idempotency.NewManager(&memoryStore{keys: map[string]string{}}, time.Hour)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	svc, err := NewService(nil, reg, r, manager, logg)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return svc, w
}

func buildBody(t *testing.T, eventID string, occurred time.Time, payload any) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	body, err := json.Marshal(outbox.PayloadEnvelope{Version: 1, EventID: eventID, OccurredAt: occurred, Data: data})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return body
}

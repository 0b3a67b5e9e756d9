package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agromart/agromart-backend/pkg/config"
	"github.com/agromart/agromart-backend/pkg/db/dbtest"
	"github.com/agromart/agromart-backend/pkg/enums"
	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/outbox"
	"github.com/agromart/agromart-backend/pkg/outbox/idempotency"
	"github.com/agromart/agromart-backend/pkg/outbox/payloads"
	"github.com/agromart/agromart-backend/pkg/outbox/registry"
)

type memoryStore struct {
	mu   sync.Mutex
	keys map[string]string
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key], nil
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

func (m *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = fmt.Sprint(value)
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string { return "test:" + scope + ":" + id }

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.keys, key)
	}
	return nil
}

func envelope(t *testing.T, eventID string, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	body, err := json.Marshal(outbox.PayloadEnvelope{Version: 1, EventID: eventID, OccurredAt: time.Now().UTC(), Data: raw})
	require.NoError(t, err)
	return body
}

func snapshot(actor string) payloads.NegotiationSnapshot {
	return payloads.NegotiationSnapshot{
		NegotiationID: uuid.New(),
		BuyerUID:      "buyer-1",
		SellerUID:     "vendor-1",
		ProductName:   "Rice",
		Status:        enums.NegotiationStatusActive,
		Price:         decimal.NewFromInt(90),
		Quantity:      5,
		ActorUID:      actor,
	}
}

func newTestConsumer(t *testing.T) (*Consumer, Repository) {
	t.Helper()
	repo := NewRepository(dbtest.Open(t).DB())
	reg, err := registry.NewEventRegistry(config.PubSubConfig{NegotiationTopic: "negotiations"})
	require.NoError(t, err)
	manager, err := idempotency.NewManager(&memoryStore{keys: map[string]string{}}, time.Hour)
	require.NoError(t, err)
	consumer, err := NewConsumer(repo, nil, reg, manager, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)
	return consumer, repo
}

func TestConsumerNotifiesCounterpartyOnce(t *testing.T) {
	ctx := context.Background()
	consumer, repo := newTestConsumer(t)
	body := envelope(t, uuid.NewString(), payloads.NegotiationCounteredEvent{
		NegotiationSnapshot: snapshot("vendor-1"),
		FromRole:            enums.OfferRoleSeller,
	})

	require.NoError(t, consumer.Handle(ctx, string(enums.EventNegotiationCountered), body))
	require.NoError(t, consumer.Handle(ctx, string(enums.EventNegotiationCountered), body))

	rows, err := repo.List(ctx, listNotificationsParams{RecipientUID: "buyer-1", Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Counter Offer Received", rows[0].Title)
	assert.Equal(t, "Counter offer for Rice: 90.00 x 5", rows[0].Message)

	sellerRows, err := repo.List(ctx, listNotificationsParams{RecipientUID: "vendor-1", Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, sellerRows)
}

func TestConsumerDropsMalformedEvents(t *testing.T) {
	ctx := context.Background()
	consumer, _ := newTestConsumer(t)

	assert.NoError(t, consumer.Handle(ctx, "order_created", []byte(`{}`)))
	assert.NoError(t, consumer.Handle(ctx, string(enums.EventNegotiationStarted), []byte(`not json`)))
	assert.NoError(t, consumer.Handle(ctx, string(enums.EventNegotiationStarted), envelope(t, "bad-id", snapshot("buyer-1"))))
}

func TestBuildTargetsRecipients(t *testing.T) {
	started := Build(&payloads.NegotiationStartedEvent{NegotiationSnapshot: snapshot("buyer-1")})
	require.Len(t, started, 1)
	assert.Equal(t, "vendor-1", started[0].RecipientUID)
	assert.Equal(t, "New Price Negotiation", started[0].Title)

	accepted := Build(&payloads.NegotiationAcceptedEvent{NegotiationSnapshot: snapshot("buyer-1"), FinalTotalAmount: decimal.NewFromInt(450)})
	require.Len(t, accepted, 1)
	assert.Equal(t, "vendor-1", accepted[0].RecipientUID)
	assert.Equal(t, "Offer Accepted!", accepted[0].Title)
	assert.Contains(t, accepted[0].Message, "450.00")

	rejected := Build(&payloads.NegotiationRejectedEvent{NegotiationSnapshot: snapshot("vendor-1"), Reason: "too low"})
	require.Len(t, rejected, 1)
	assert.Equal(t, "buyer-1", rejected[0].RecipientUID)
	assert.Equal(t, "Your offer for Rice was rejected. Reason: too low", rejected[0].Message)

	expired := Build(&payloads.NegotiationExpiredEvent{NegotiationSnapshot: snapshot("")})
	require.Len(t, expired, 2)
	assert.Equal(t, "Negotiation Expired", expired[0].Title)

	cancelled := Build(&payloads.NegotiationCancelledEvent{NegotiationSnapshot: snapshot("buyer-1")})
	require.Len(t, cancelled, 1)
	assert.Equal(t, "Negotiation Cancelled", cancelled[0].Title)
	require.NotNil(t, cancelled[0].Link)
	assert.Equal(t, "/negotiations/"+cancelled[0].NegotiationID.String(), *cancelled[0].Link)

	assert.Nil(t, Build(struct{}{}))
}

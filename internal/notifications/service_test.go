package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agromart/agromart-backend/pkg/db/dbtest"
	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
)

func seed(t *testing.T, repo Repository, recipient string, createdAt time.Time) models.Notification {
	t.Helper()
	row := models.Notification{
		ID:           uuid.New(),
		RecipientUID: recipient,
		Type:         enums.NotificationTypeCounterOffer,
		Title:        "Counter Offer Received",
		Message:      "Counter offer for Rice: 90.00 x 5",
		CreatedAt:    createdAt,
	}
	require.NoError(t, repo.CreateBatch(context.Background(), []models.Notification{row}))
	return row
}

func TestService_ListNotificationsPaginates(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t).DB())
	svc, err := NewService(repo)
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	older := seed(t, repo, "vendor-1", base)
	newer := seed(t, repo, "vendor-1", base.Add(time.Minute))
	seed(t, repo, "buyer-1", base)

	page, err := svc.List(ctx, ListParams{RecipientUID: "vendor-1", Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, newer.ID, page.Items[0].ID)
	require.NotEmpty(t, page.Cursor)

	page, err = svc.List(ctx, ListParams{RecipientUID: "vendor-1", Limit: 1, Cursor: page.Cursor})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, older.ID, page.Items[0].ID)
	assert.Empty(t, page.Cursor)
}

func TestService_ListRequiresCaller(t *testing.T) {
	svc, err := NewService(NewRepository(dbtest.Open(t).DB()))
	require.NoError(t, err)

	_, err = svc.List(context.Background(), ListParams{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = svc.List(context.Background(), ListParams{RecipientUID: "vendor-1", Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestService_MarkRead(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t).DB())
	svc, err := NewService(repo)
	require.NoError(t, err)
	row := seed(t, repo, "vendor-1", time.Now().UTC())

	require.NoError(t, svc.MarkRead(ctx, "vendor-1", row.ID))
	require.NoError(t, svc.MarkRead(ctx, "vendor-1", row.ID))

	err = svc.MarkRead(ctx, "buyer-1", row.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	unread, err := svc.List(ctx, ListParams{RecipientUID: "vendor-1", UnreadOnly: true})
	require.NoError(t, err)
	assert.Empty(t, unread.Items)
}

func TestService_MarkAllRead(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t).DB())
	svc, err := NewService(repo)
	require.NoError(t, err)
	now := time.Now().UTC()
	seed(t, repo, "vendor-1", now)
	seed(t, repo, "vendor-1", now.Add(time.Second))

	count, err := svc.MarkAllRead(ctx, "vendor-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	count, err = svc.MarkAllRead(ctx, "vendor-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRepository_DeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t).DB())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seed(t, repo, "vendor-1", now.Add(-32*24*time.Hour))
	seed(t, repo, "vendor-1", now.Add(-31*24*time.Hour))
	kept := seed(t, repo, "vendor-1", now.Add(-time.Hour))
	cutoff := now.Add(-30 * 24 * time.Hour)

	deleted, err := repo.DeleteOlderThan(ctx, cutoff, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	deleted, err = repo.DeleteOlderThan(ctx, cutoff, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	rows, err := repo.List(ctx, listNotificationsParams{RecipientUID: "vendor-1", Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, kept.ID, rows[0].ID)
}

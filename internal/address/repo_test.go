package address

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/agromart/agromart-backend/pkg/db/dbtest"
	"github.com/agromart/agromart-backend/pkg/db/models"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
)

func TestDefaultAddressFollowsLatestDefault(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t).DB())

	none, err := repo.FindDefault(ctx, "buyer-1")
	require.NoError(t, err)
	require.Nil(t, none)

	first := &models.Address{UID: "buyer-1", Name: "Home", Phone: "017", AddressLine1: "1 Road", City: "Dhaka", IsDefault: true}
	require.NoError(t, repo.Create(ctx, first))
	second := &models.Address{UID: "buyer-1", Name: "Farm", Phone: "018", AddressLine1: "2 Lane", City: "Bogura", IsDefault: true}
	require.NoError(t, repo.Create(ctx, second))

	def, err := repo.FindDefault(ctx, "buyer-1")
	require.NoError(t, err)
	require.Equal(t, second.ID, def.ID)

	reloaded, err := repo.FindByID(ctx, first.ID)
	require.NoError(t, err)
	require.False(t, reloaded.IsDefault)
}

func TestFindByIDMissing(t *testing.T) {
	repo := NewRepository(dbtest.Open(t).DB())
	_, err := repo.FindByID(context.Background(), uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agromart/agromart-backend/pkg/db/dbtest"
	"github.com/agromart/agromart-backend/pkg/enums"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
)

func TestRepositoryLookups(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t).DB())

	_, err := repo.Create(ctx, CreateAccountDTO{UID: "buyer-1", Role: enums.AccountRoleClient, Name: "Rahim", Email: " Rahim@Example.com "})
	require.NoError(t, err)
	vendor, err := repo.Create(ctx, CreateAccountDTO{UID: "vendor-1", Role: enums.AccountRoleVendor, Name: "Karim", BusinessName: "Green Fields"})
	require.NoError(t, err)
	require.Equal(t, "Green Fields", vendor.DisplayName())

	buyer, err := repo.FindByUID(ctx, "buyer-1")
	require.NoError(t, err)
	require.Equal(t, "rahim@example.com", *buyer.Email)
	require.Equal(t, enums.VerificationStatusNone, buyer.VerificationStatus)
	require.Equal(t, "Rahim", buyer.DisplayName())

	byUID, err := repo.FindByUIDs(ctx, []string{"buyer-1", "vendor-1", "ghost"})
	require.NoError(t, err)
	require.Len(t, byUID, 2)

	_, err = repo.FindByUID(ctx, "ghost")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

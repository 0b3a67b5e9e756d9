package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agromart/agromart-backend/pkg/config"
	"github.com/agromart/agromart-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "test-secret", Issuer: "agromart", ExpirationMinutes: 15}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), Identity{UID: "vendor-42", Role: enums.AccountRoleVendor})
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	require.Equal(t, Identity{UID: "vendor-42", Role: enums.AccountRoleVendor}, claims.Identity())
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), Identity{UID: "client-1", Role: enums.AccountRoleClient})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	require.Error(t, err)
}

func TestParseAccessTokenRejectsWrongIssuer(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), Identity{UID: "client-1", Role: enums.AccountRoleClient})
	require.NoError(t, err)

	cfg.Issuer = "someone-else"
	_, err = ParseAccessToken(cfg, token)
	require.Error(t, err)
}

func TestMintAccessTokenValidatesRole(t *testing.T) {
	_, err := MintAccessToken(testJWTConfig(), time.Now(), Identity{UID: "x", Role: "admin"})
	require.Error(t, err)
}

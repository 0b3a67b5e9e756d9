package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/agromart/agromart-backend/pkg/enums"
)

// Identity is the caller resolved from a bearer token.
type Identity struct {
	UID  string
	Role enums.AccountRole
}

// AccessTokenClaims represents the typed JWT presented by clients. The uid
// travels in the standard subject claim.
type AccessTokenClaims struct {
	Role enums.AccountRole `json:"role"`
	Name string            `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Identity extracts the caller identity from validated claims.
func (c AccessTokenClaims) Identity() Identity {
	return Identity{UID: c.Subject, Role: c.Role}
}

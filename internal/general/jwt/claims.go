package jwt

import (
	"time"

	"ride-convoy/internal/domain/user"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Claims is the rider access token payload. Subject is the rider id.
type Claims struct {
	Role        user.Role `json:"role"`
	DisplayName string    `json:"display_name,omitempty"`
	jwtlib.RegisteredClaims
}

// ensure Claims implements jwtlib.Claims interface
var _ jwtlib.Claims = (*Claims)(nil)

// NewRiderClaims constructs claims for one rider.
func NewRiderClaims(riderID, displayName string, role user.Role, ttl time.Duration) *Claims {
	now := time.Now().UTC()
	return &Claims{
		Role:        role,
		DisplayName: displayName,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   riderID,
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}
}

package cli

import (
	"fmt"
	"time"

	"ride-convoy/internal/domain/user"
	"ride-convoy/internal/general/jwt"
)

// GenerateRiderToken mints a JWT for a rider. The relay verifies it with
// the same HS256 secret.
//
// Typical use (dev-only):
//
//	token, _, err := cli.GenerateRiderToken(secret, 12*time.Hour, "u1", "Ana", "RIDER")
//
// Keep this package dev/internal only. Do not call it from production code paths.
func GenerateRiderToken(secret string, ttl time.Duration, riderID, displayName, roleStr string) (string, jwt.Claims, error) {
	role, err := user.ParseRole(roleStr)
	if err != nil {
		return "", jwt.Claims{}, fmt.Errorf("invalid role %q: %w", roleStr, err)
	}

	mgr, err := jwt.NewManager(secret, ttl)
	if err != nil {
		return "", jwt.Claims{}, err
	}

	token, claims, err := mgr.IssueRiderToken(riderID, displayName, role)
	if err != nil {
		return "", jwt.Claims{}, fmt.Errorf("issue token: %w", err)
	}

	return token, *claims, nil
}

package jwt

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"ride-convoy/internal/domain/user"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

var (
	ErrEmptyToken         = errors.New("bearer token missing")
	ErrEmptySecret        = errors.New("jwt: empty secret key")
	ErrInvalidSigningAlgo = errors.New("unexpected signing method")
	ErrRoleForbidden      = errors.New("role not allowed")
	ErrNoSubject          = errors.New("token has no subject")
)

// Manager handles JWT creation and validation.
type Manager struct {
	secret    []byte
	accessTTL time.Duration
}

// NewManager creates a token manager.
func NewManager(secret string, accessTTL time.Duration) (*Manager, error) {
	s := strings.TrimSpace(secret)
	if s == "" {
		return nil, ErrEmptySecret
	}

	return &Manager{
		secret:    []byte(s),
		accessTTL: accessTTL,
	}, nil
}

// IssueRiderToken returns a signed access token for a rider.
func (m *Manager) IssueRiderToken(riderID, displayName string, role user.Role) (string, *Claims, error) {
	// validate role
	if !role.Valid() {
		return "", nil, fmt.Errorf("invalid role: %s", role)
	}
	if strings.TrimSpace(riderID) == "" {
		return "", nil, ErrNoSubject
	}

	// create claims and sign token
	claims := NewRiderClaims(riderID, displayName, role, m.accessTTL)
	tkn := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := tkn.SignedString(m.secret)

	return signed, claims, err
}

// ParseAndValidate verifies signature and standard claims.
func (m *Manager) ParseAndValidate(tokenString string) (*jwtlib.Token, *Claims, error) {
	// create parser with expected signing method
	parser := jwtlib.NewParser(jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}))

	// validate claims and signature
	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwtlib.Token) (any, error) {
		if t.Method != jwtlib.SigningMethodHS256 {
			return nil, ErrInvalidSigningAlgo
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, nil, err
	}

	// ensure token is valid
	if !token.Valid {
		return nil, nil, errors.New("invalid token")
	}

	return token, claims, nil
}

// RoleAllowed asserts the claims' role is one of the allowed.
func RoleAllowed(cl *Claims, allowed ...user.Role) error {
	if len(allowed) == 0 || slices.Contains(allowed, cl.Role) {
		return nil
	}
	return ErrRoleForbidden
}

// Verify checks a configured token against the signing secret and the
// allowed roles. A "Bearer " prefix is accepted.
func (m *Manager) Verify(tokenString string, allowed ...user.Role) (*Claims, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tokenString), "Bearer "))
	if tokenString == "" {
		return nil, ErrEmptyToken
	}

	_, claims, err := m.ParseAndValidate(tokenString)
	if err != nil {
		return nil, err
	}
	if err := RoleAllowed(claims, allowed...); err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrNoSubject
	}
	return claims, nil
}

// PeekClaims decodes a token without verifying its signature. The device
// never holds the signing secret; it only needs to know who it is.
func PeekClaims(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tokenString), "Bearer "))
	if tokenString == "" {
		return nil, ErrEmptyToken
	}

	claims := &Claims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrNoSubject
	}
	return claims, nil
}

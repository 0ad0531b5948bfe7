// Package auth issues and verifies the bearer tokens that carry a caller's
// identity.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/JonMunkholm/assurelog/internal/core"
)

// Issuer is the iss claim of every token minted here.
const Issuer = "assurelog"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

type claims struct {
	jwt.RegisteredClaims
	Username string    `json:"username"`
	Role     core.Role `json:"role"`
}

// Tokens signs and verifies HS256 tokens with a shared secret.
type Tokens struct {
	secret []byte
	now    func() time.Time
}

// NewTokens returns a Tokens for secret.
func NewTokens(secret string) (*Tokens, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret not configured")
	}
	return &Tokens{secret: []byte(secret), now: time.Now}, nil
}

// Issue mints a token for id valid for ttl.
func (t *Tokens) Issue(id core.Identity, ttl time.Duration) (string, error) {
	if id.ID == "" {
		return "", errors.New("identity id required")
	}
	role := id.Role
	if role == "" {
		role = core.RoleUser
	}

	now := t.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Username: id.Username,
		Role:     role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies token and returns the identity it carries.
func (t *Tokens) Parse(token string) (core.Identity, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)

	c := &claims{}
	parsed, err := parser.ParseWithClaims(token, c, func(*jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil {
		return core.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || c.Subject == "" {
		return core.Identity{}, ErrInvalidToken
	}

	switch c.Role {
	case core.RoleUser, core.RoleAdmin:
	default:
		return core.Identity{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, c.Role)
	}

	return core.Identity{ID: c.Subject, Username: c.Username, Role: c.Role}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", ErrMissingToken
	}
	return parts[1], nil
}

package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agentexec/core/pkg/models"
)

// Claims is the subset of a bearer token's claims this core cares about;
// the subject identifies the owning user.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWTValidator validates RS256 bearer tokens against a cached JWKS, per
// spec.md §4.9: "bearer token validated against a JWKS fetched once and
// cached". Token issuance is out of scope for the Core (spec.md §1) —
// the Core only ever verifies tokens minted by an external identity
// provider.
type JWTValidator struct {
	jwks *JWKSCache
}

// NewJWTValidator builds a validator backed by jwks.
func NewJWTValidator(jwks *JWKSCache) *JWTValidator {
	return &JWTValidator{jwks: jwks}
}

// Validate parses and verifies token, returning the user it names.
func (v *JWTValidator) Validate(ctx context.Context, token string) (*models.User, error) {
	if v == nil || v.jwks == nil {
		return nil, ErrAuthDisabled
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		kid, _ := t.Header["kid"].(string)
		return v.jwks.KeyFor(ctx, kid)
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return &models.User{
		ID:    claims.Subject,
		Email: strings.TrimSpace(claims.Email),
		Name:  strings.TrimSpace(claims.Name),
	}, nil
}

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/agentexec/core/pkg/models"
)

var (
	ErrAuthDisabled = errors.New("auth disabled")
	ErrInvalidToken = errors.New("invalid token")
)

// Config configures the bearer-token validator.
type Config struct {
	// JWKSURL is the identity provider's JWKS document; empty disables
	// auth entirely (used by local/dev runs).
	JWKSURL string
	JWKSTTL time.Duration
}

// Service validates bearer tokens against a cached JWKS.
type Service struct {
	validator *JWTValidator
}

// NewService constructs an auth service from static configuration.
func NewService(cfg Config) *Service {
	if cfg.JWKSURL == "" {
		return &Service{}
	}
	return &Service{validator: NewJWTValidator(NewJWKSCache(cfg.JWKSURL, cfg.JWKSTTL))}
}

// Enabled reports whether auth checks should run.
func (s *Service) Enabled() bool {
	return s != nil && s.validator != nil
}

// ValidateJWT validates a bearer token and returns the associated user.
func (s *Service) ValidateJWT(ctx context.Context, token string) (*models.User, error) {
	if s == nil || s.validator == nil {
		return nil, ErrAuthDisabled
	}
	return s.validator.Validate(ctx, token)
}

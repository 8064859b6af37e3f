package websocket

import (
	"context"
	"errors"
	"time"

	"github.com/dafibh/ledgerly/ledgerly-backend/internal/domain"
)

// ErrInvalidToken is returned when the access token can't be resolved to a user
var ErrInvalidToken = errors.New("invalid token")

// tokenLookupTimeout bounds the user lookup performed during the upgrade handshake
const tokenLookupTimeout = 5 * time.Second

// UserResolver resolves a bearer token to its active user
type UserResolver interface {
	ResolveUser(ctx context.Context, token string) (*domain.User, error)
}

// AccessTokenValidator validates access tokens for WebSocket connections
type AccessTokenValidator struct {
	resolver UserResolver
}

// NewAccessTokenValidator creates a new AccessTokenValidator
func NewAccessTokenValidator(resolver UserResolver) *AccessTokenValidator {
	return &AccessTokenValidator{resolver: resolver}
}

// ValidateToken validates a token and returns the owning user's ID
func (v *AccessTokenValidator) ValidateToken(ctx context.Context, token string) (int32, error) {
	ctx, cancel := context.WithTimeout(ctx, tokenLookupTimeout)
	defer cancel()

	user, err := v.resolver.ResolveUser(ctx, token)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return user.ID, nil
}

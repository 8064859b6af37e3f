package middleware

import (
	"context"
	"strings"

	"github.com/dafibh/ledgerly/ledgerly-backend/internal/domain"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// UserIDKey is the context key for the authenticated user's ID
	UserIDKey contextKey = "user_id"
	// UsernameKey is the context key for the authenticated user's username
	UsernameKey contextKey = "username"
)

// credentialsDetail is the uniform detail for every authentication failure
const credentialsDetail = "Could not validate credentials"

// UserResolver resolves a bearer token to an active user
type UserResolver interface {
	ResolveUser(ctx context.Context, token string) (*domain.User, error)
}

// AuthMiddleware authenticates requests carrying a bearer access token
type AuthMiddleware struct {
	resolver UserResolver
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(resolver UserResolver) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver}
}

// Authenticate returns an Echo middleware that validates bearer tokens and
// injects the caller's identity into the request context
func (m *AuthMiddleware) Authenticate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return unauthorizedError(c, credentialsDetail)
			}

			user, err := m.resolver.ResolveUser(c.Request().Context(), token)
			if err != nil {
				log.Debug().Err(err).Msg("Token validation failed")
				return unauthorizedError(c, credentialsDetail)
			}

			ctx := context.WithValue(c.Request().Context(), UserIDKey, user.ID)
			ctx = context.WithValue(ctx, UsernameKey, user.Username)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header
func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// GetUserID extracts the authenticated user ID from the context. It returns
// 0 when the request was not authenticated.
func GetUserID(c echo.Context) int32 {
	if id, ok := c.Request().Context().Value(UserIDKey).(int32); ok {
		return id
	}
	return 0
}

// GetUsername extracts the authenticated username from the context
func GetUsername(c echo.Context) string {
	if username, ok := c.Request().Context().Value(UsernameKey).(string); ok {
		return username
	}
	return ""
}

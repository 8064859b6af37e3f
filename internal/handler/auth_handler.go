package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/dafibh/ledgerly/ledgerly-backend/internal/domain"
	"github.com/dafibh/ledgerly/ledgerly-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// AuthHandler handles registration and token issuance
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenRequest accepts OAuth2 password-flow form fields or the same fields
// as JSON
type TokenRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// TokenResponse represents an issued access token
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Register handles POST /api/v1/register
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	user, err := h.authService.Register(c.Request().Context(), service.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmailTaken):
			return NewConflictError(c, "Email already registered")
		case errors.Is(err, domain.ErrUsernameTaken):
			return NewConflictError(c, "Username already taken")
		case errors.Is(err, domain.ErrInvalidEmail):
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "email", Message: "Must be a valid email address"},
			})
		case errors.Is(err, domain.ErrInvalidUsername):
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "username", Message: "Username must be 3 to 50 characters without spaces"},
			})
		case errors.Is(err, domain.ErrPasswordTooShort):
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "password", Message: "Password must be at least 8 characters"},
			})
		}
		log.Error().Err(err).Msg("Failed to register user")
		return NewInternalError(c, "Failed to register user")
	}

	log.Info().Int32("user_id", user.ID).Str("username", user.Username).Msg("User registered")

	return c.JSON(http.StatusCreated, toUserResponse(user))
}

// Token handles POST /api/v1/token
func (h *AuthHandler) Token(c echo.Context) error {
	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	if req.Username == "" || req.Password == "" {
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "username", Message: "Username and password are required"},
		})
	}

	token, err := h.authService.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidLogin) {
			log.Debug().Str("username", req.Username).Msg("Login rejected")
			return NewUnauthorizedError(c, "Incorrect username or password")
		}
		log.Error().Err(err).Msg("Failed to issue token")
		return NewInternalError(c, "Failed to issue token")
	}

	return c.JSON(http.StatusOK, TokenResponse{
		AccessToken: token.Token,
		TokenType:   token.TokenType,
		ExpiresIn:   int64(time.Until(token.ExpiresAt).Round(time.Second).Seconds()),
	})
}

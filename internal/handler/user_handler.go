package handler

import (
	"errors"
	"net/http"

	"github.com/dafibh/ledgerly/ledgerly-backend/internal/domain"
	"github.com/dafibh/ledgerly/ledgerly-backend/internal/middleware"
	"github.com/dafibh/ledgerly/ledgerly-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// UserHandler handles the authenticated user's profile
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// UpdateUserRequest represents a partial profile update
type UpdateUserRequest struct {
	Email    *string `json:"email"`
	Username *string `json:"username"`
	Password *string `json:"password"`
}

// UserResponse represents a user in API responses
type UserResponse struct {
	ID        int32  `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// GetMe handles GET /api/v1/users/me
func (h *UserHandler) GetMe(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return NewUnauthorizedError(c, credentialsRequired)
	}

	user, err := h.userService.GetMe(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return NewUnauthorizedError(c, credentialsRequired)
		}
		log.Error().Err(err).Int32("user_id", userID).Msg("Failed to get user")
		return NewInternalError(c, "Failed to get user")
	}

	return c.JSON(http.StatusOK, toUserResponse(user))
}

// UpdateMe handles PUT /api/v1/users/me
func (h *UserHandler) UpdateMe(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return NewUnauthorizedError(c, credentialsRequired)
	}

	var req UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	user, err := h.userService.UpdateMe(c.Request().Context(), userID, service.UpdateUserInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			return NewUnauthorizedError(c, credentialsRequired)
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
		log.Error().Err(err).Int32("user_id", userID).Msg("Failed to update user")
		return NewInternalError(c, "Failed to update user")
	}

	log.Info().Int32("user_id", userID).Msg("User updated")

	return c.JSON(http.StatusOK, toUserResponse(user))
}

func toUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		IsActive:  user.IsActive,
		CreatedAt: formatTimestamp(user.CreatedAt),
		UpdatedAt: formatTimestamp(user.UpdatedAt),
	}
}

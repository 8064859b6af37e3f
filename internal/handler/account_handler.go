package handler

import (
	"errors"
	"net/http"

	"github.com/dafibh/ledgerly/ledgerly-backend/internal/domain"
	"github.com/dafibh/ledgerly/ledgerly-backend/internal/middleware"
	"github.com/dafibh/ledgerly/ledgerly-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// AccountHandler handles account-related HTTP requests
type AccountHandler struct {
	accountService *service.AccountService
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(accountService *service.AccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

// CreateAccountRequest represents the create account request body.
// initial_balance accepts a JSON number or a numeric string.
type CreateAccountRequest struct {
	Name           string           `json:"name"`
	InitialBalance *decimal.Decimal `json:"initial_balance"`
}

// UpdateAccountRequest represents a partial account update
type UpdateAccountRequest struct {
	Name           *string          `json:"name"`
	InitialBalance *decimal.Decimal `json:"initial_balance"`
}

// AccountResponse represents an account in API responses
type AccountResponse struct {
	ID             int32  `json:"id"`
	UserID         int32  `json:"user_id"`
	Name           string `json:"name"`
	InitialBalance string `json:"initial_balance"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// CreateAccount handles POST /api/v1/accounts
func (h *AccountHandler) CreateAccount(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return NewUnauthorizedError(c, credentialsRequired)
	}

	var req CreateAccountRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	input := service.CreateAccountInput{
		Name:           req.Name,
		InitialBalance: decimal.Zero,
	}
	if req.InitialBalance != nil {
		input.InitialBalance = *req.InitialBalance
	}

	account, err := h.accountService.CreateAccount(c.Request().Context(), userID, input)
	if err != nil {
		if verr := nameValidationError(c, err); verr != nil {
			return verr
		}
		log.Error().Err(err).Int32("user_id", userID).Msg("Failed to create account")
		return NewInternalError(c, "Failed to create account")
	}

	log.Info().Int32("user_id", userID).Int32("account_id", account.ID).Str("name", account.Name).Msg("Account created")

	return c.JSON(http.StatusCreated, toAccountResponse(account))
}

// GetAccounts handles GET /api/v1/accounts
func (h *AccountHandler) GetAccounts(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return NewUnauthorizedError(c, credentialsRequired)
	}

	accounts, err := h.accountService.GetAccounts(c.Request().Context(), userID)
	if err != nil {
		log.Error().Err(err).Int32("user_id", userID).Msg("Failed to get accounts")
		return NewInternalError(c, "Failed to get accounts")
	}

	response := make([]AccountResponse, len(accounts))
	for i, account := range accounts {
		response[i] = toAccountResponse(account)
	}

	return c.JSON(http.StatusOK, response)
}

// GetAccount handles GET /api/v1/accounts/:id
func (h *AccountHandler) GetAccount(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return NewUnauthorizedError(c, credentialsRequired)
	}

	id, err := pathID(c)
	if err != nil {
		return NewValidationError(c, "Invalid account ID", nil)
	}

	account, err := h.accountService.GetAccountByID(c.Request().Context(), userID, id)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return NewNotFoundError(c, "Account not found")
		}
		log.Error().Err(err).Int32("user_id", userID).Int32("account_id", id).Msg("Failed to get account")
		return NewInternalError(c, "Failed to get account")
	}

	return c.JSON(http.StatusOK, toAccountResponse(account))
}

// UpdateAccount handles PUT /api/v1/accounts/:id
func (h *AccountHandler) UpdateAccount(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return NewUnauthorizedError(c, credentialsRequired)
	}

	id, err := pathID(c)
	if err != nil {
		return NewValidationError(c, "Invalid account ID", nil)
	}

	var req UpdateAccountRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	account, err := h.accountService.UpdateAccount(c.Request().Context(), userID, id, service.UpdateAccountInput{
		Name:           req.Name,
		InitialBalance: req.InitialBalance,
	})
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return NewNotFoundError(c, "Account not found")
		}
		if verr := nameValidationError(c, err); verr != nil {
			return verr
		}
		log.Error().Err(err).Int32("user_id", userID).Int32("account_id", id).Msg("Failed to update account")
		return NewInternalError(c, "Failed to update account")
	}

	log.Info().Int32("user_id", userID).Int32("account_id", account.ID).Msg("Account updated")

	return c.JSON(http.StatusOK, toAccountResponse(account))
}

// DeleteAccount handles DELETE /api/v1/accounts/:id
func (h *AccountHandler) DeleteAccount(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return NewUnauthorizedError(c, credentialsRequired)
	}

	id, err := pathID(c)
	if err != nil {
		return NewValidationError(c, "Invalid account ID", nil)
	}

	if err := h.accountService.DeleteAccount(c.Request().Context(), userID, id); err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return NewNotFoundError(c, "Account not found")
		}
		log.Error().Err(err).Int32("user_id", userID).Int32("account_id", id).Msg("Failed to delete account")
		return NewInternalError(c, "Failed to delete account")
	}

	log.Info().Int32("user_id", userID).Int32("account_id", id).Msg("Account deleted")

	return c.NoContent(http.StatusNoContent)
}

// nameValidationError maps name and balance errors to a 400 response. It
// returns nil for any other error.
func nameValidationError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrNameRequired):
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "name", Message: "Name is required"},
		})
	case errors.Is(err, domain.ErrNameTooLong):
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "name", Message: "Name must be 255 characters or less"},
		})
	case errors.Is(err, domain.ErrAmountOutOfRange):
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "initial_balance", Message: "Initial balance must be less than 1000000000000 in magnitude"},
		})
	}
	return nil
}

func toAccountResponse(account *domain.Account) AccountResponse {
	return AccountResponse{
		ID:             account.ID,
		UserID:         account.UserID,
		Name:           account.Name,
		InitialBalance: account.InitialBalance.StringFixed(2),
		CreatedAt:      formatTimestamp(account.CreatedAt),
		UpdatedAt:      formatTimestamp(account.UpdatedAt),
	}
}

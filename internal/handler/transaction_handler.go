package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dafibh/ledgerly/ledgerly-backend/internal/domain"
	"github.com/dafibh/ledgerly/ledgerly-backend/internal/middleware"
	"github.com/dafibh/ledgerly/ledgerly-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// TransactionHandler handles transaction CRUD requests
type TransactionHandler struct {
	transactionService *service.TransactionService
}

// NewTransactionHandler creates a new TransactionHandler
func NewTransactionHandler(transactionService *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService}
}

// TransactionRequest is the body for create and full replace. Optional
// fields left out are stored as null.
type TransactionRequest struct {
	Amount          *decimal.Decimal `json:"amount"`
	TransactionType string           `json:"transaction_type"`
	Date            string           `json:"date"`
	CategoryID      *int32           `json:"category_id"`
	AccountID       *int32           `json:"account_id"`
	Description     *string          `json:"description"`
	Source          *string          `json:"source"`
}

// PatchTransactionRequest is the body for a partial update. Nullable
// fields distinguish an explicit null from an omitted key.
type PatchTransactionRequest struct {
	Amount          *decimal.Decimal `json:"amount"`
	TransactionType *string          `json:"transaction_type"`
	Date            *string          `json:"date"`
	CategoryID      nullableInt32    `json:"category_id"`
	AccountID       nullableInt32    `json:"account_id"`
	Description     nullableString   `json:"description"`
	Source          nullableString   `json:"source"`
}

// nullableInt32 records whether its key was present in the JSON body
type nullableInt32 struct {
	Set   bool
	Value *int32
}

func (n *nullableInt32) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(data, []byte("null")) {
		n.Value = nil
		return nil
	}
	var v int32
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

type nullableString struct {
	Set   bool
	Value *string
}

func (n *nullableString) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(data, []byte("null")) {
		n.Value = nil
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// TransactionResponse represents a transaction in API responses
type TransactionResponse struct {
	ID              int32   `json:"id"`
	UserID          int32   `json:"user_id"`
	CategoryID      *int32  `json:"category_id"`
	AccountID       *int32  `json:"account_id"`
	Amount          string  `json:"amount"`
	TransactionType string  `json:"transaction_type"`
	Description     *string `json:"description"`
	Source          *string `json:"source"`
	Date            string  `json:"date"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

// CreateTransaction handles POST /api/v1/transactions
func (h *TransactionHandler) CreateTransaction(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return NewUnauthorizedError(c, credentialsRequired)
	}

	var req TransactionRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	input, fieldErrors := req.toInput()
	if len(fieldErrors) > 0 {
		return NewValidationError(c, "Validation failed", fieldErrors)
	}

	transaction, err := h.transactionService.CreateTransaction(c.Request().Context(), userID, input)
	if err != nil {
		if verr := transactionValidationError(c, err); verr != nil {
			return verr
		}
		log.Error().Err(err).Int32("user_id", userID).Msg("Failed to create transaction")
		return NewInternalError(c, "Failed to create transaction")
	}

	log.Info().
		Int32("user_id", userID).
		Int32("transaction_id", transaction.ID).
		Str("type", string(transaction.TransactionType)).
		Msg("Transaction created")

	return c.JSON(http.StatusCreated, toTransactionResponse(transaction))
}

// GetTransactions handles GET /api/v1/transactions
func (h *TransactionHandler) GetTransactions(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return NewUnauthorizedError(c, credentialsRequired)
	}

	transactions, err := h.transactionService.GetTransactions(c.Request().Context(), userID)
	if err != nil {
		log.Error().Err(err).Int32("user_id", userID).Msg("Failed to get transactions")
		return NewInternalError(c, "Failed to get transactions")
	}

	return c.JSON(http.StatusOK, toTransactionResponses(transactions))
}

// GetTransaction handles GET /api/v1/transactions/:id
func (h *TransactionHandler) GetTransaction(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return NewUnauthorizedError(c, credentialsRequired)
	}

	id, err := pathID(c)
	if err != nil {
		return NewValidationError(c, "Invalid transaction ID", nil)
	}

	transaction, err := h.transactionService.GetTransactionByID(c.Request().Context(), userID, id)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return NewNotFoundError(c, "Transaction not found")
		}
		log.Error().Err(err).Int32("user_id", userID).Int32("transaction_id", id).Msg("Failed to get transaction")
		return NewInternalError(c, "Failed to get transaction")
	}

	return c.JSON(http.StatusOK, toTransactionResponse(transaction))
}

// ReplaceTransaction handles PUT /api/v1/transactions/:id
func (h *TransactionHandler) ReplaceTransaction(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return NewUnauthorizedError(c, credentialsRequired)
	}

	id, err := pathID(c)
	if err != nil {
		return NewValidationError(c, "Invalid transaction ID", nil)
	}

	var req TransactionRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	input, fieldErrors := req.toInput()
	if len(fieldErrors) > 0 {
		return NewValidationError(c, "Validation failed", fieldErrors)
	}

	transaction, err := h.transactionService.ReplaceTransaction(c.Request().Context(), userID, id, input)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return NewNotFoundError(c, "Transaction not found")
		}
		if verr := transactionValidationError(c, err); verr != nil {
			return verr
		}
		log.Error().Err(err).Int32("user_id", userID).Int32("transaction_id", id).Msg("Failed to update transaction")
		return NewInternalError(c, "Failed to update transaction")
	}

	log.Info().Int32("user_id", userID).Int32("transaction_id", transaction.ID).Msg("Transaction replaced")

	return c.JSON(http.StatusOK, toTransactionResponse(transaction))
}

// PatchTransaction handles PATCH /api/v1/transactions/:id
func (h *TransactionHandler) PatchTransaction(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return NewUnauthorizedError(c, credentialsRequired)
	}

	id, err := pathID(c)
	if err != nil {
		return NewValidationError(c, "Invalid transaction ID", nil)
	}

	var req PatchTransactionRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	input, fieldErrors := req.toInput()
	if len(fieldErrors) > 0 {
		return NewValidationError(c, "Validation failed", fieldErrors)
	}

	transaction, err := h.transactionService.PatchTransaction(c.Request().Context(), userID, id, input)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return NewNotFoundError(c, "Transaction not found")
		}
		if verr := transactionValidationError(c, err); verr != nil {
			return verr
		}
		log.Error().Err(err).Int32("user_id", userID).Int32("transaction_id", id).Msg("Failed to patch transaction")
		return NewInternalError(c, "Failed to update transaction")
	}

	log.Info().Int32("user_id", userID).Int32("transaction_id", transaction.ID).Msg("Transaction updated")

	return c.JSON(http.StatusOK, toTransactionResponse(transaction))
}

// DeleteTransaction handles DELETE /api/v1/transactions/:id
func (h *TransactionHandler) DeleteTransaction(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return NewUnauthorizedError(c, credentialsRequired)
	}

	id, err := pathID(c)
	if err != nil {
		return NewValidationError(c, "Invalid transaction ID", nil)
	}

	if err := h.transactionService.DeleteTransaction(c.Request().Context(), userID, id); err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return NewNotFoundError(c, "Transaction not found")
		}
		log.Error().Err(err).Int32("user_id", userID).Int32("transaction_id", id).Msg("Failed to delete transaction")
		return NewInternalError(c, "Failed to delete transaction")
	}

	log.Info().Int32("user_id", userID).Int32("transaction_id", id).Msg("Transaction deleted")

	return c.NoContent(http.StatusNoContent)
}

func (r TransactionRequest) toInput() (service.TransactionInput, []ValidationError) {
	var fieldErrors []ValidationError

	input := service.TransactionInput{
		CategoryID:      r.CategoryID,
		AccountID:       r.AccountID,
		Description:     r.Description,
		Source:          r.Source,
		TransactionType: domain.TransactionType(r.TransactionType),
	}

	if r.Amount == nil {
		fieldErrors = append(fieldErrors, ValidationError{Field: "amount", Message: "Amount is required"})
	} else {
		input.Amount = *r.Amount
	}

	if r.Date == "" {
		fieldErrors = append(fieldErrors, ValidationError{Field: "date", Message: "Date is required"})
	} else if date, err := domain.ParseDate(r.Date); err != nil {
		fieldErrors = append(fieldErrors, ValidationError{Field: "date", Message: "Date must be YYYY-MM-DD"})
	} else {
		input.Date = date
	}

	return input, fieldErrors
}

func (r PatchTransactionRequest) toInput() (service.PatchTransactionInput, []ValidationError) {
	var fieldErrors []ValidationError

	input := service.PatchTransactionInput{
		Amount:      r.Amount,
		CategoryID:  service.OptionalID{Set: r.CategoryID.Set, Value: r.CategoryID.Value},
		AccountID:   service.OptionalID{Set: r.AccountID.Set, Value: r.AccountID.Value},
		Description: service.OptionalString{Set: r.Description.Set, Value: r.Description.Value},
		Source:      service.OptionalString{Set: r.Source.Set, Value: r.Source.Value},
	}

	if r.TransactionType != nil {
		t := domain.TransactionType(*r.TransactionType)
		input.TransactionType = &t
	}

	if r.Date != nil {
		date, err := domain.ParseDate(*r.Date)
		if err != nil {
			fieldErrors = append(fieldErrors, ValidationError{Field: "date", Message: "Date must be YYYY-MM-DD"})
		} else {
			input.Date = &date
		}
	}

	return input, fieldErrors
}

// transactionValidationError maps payload errors from the transaction
// service to a 400 response. It returns nil for any other error.
func transactionValidationError(c echo.Context, err error) error {
	var field, message string
	switch {
	case errors.Is(err, domain.ErrInvalidTransactionType):
		field, message = "transaction_type", "Transaction type must be one of: expense, revenue"
	case errors.Is(err, domain.ErrDateRequired):
		field, message = "date", "Date is required"
	case errors.Is(err, domain.ErrAmountOutOfRange):
		field, message = "amount", "Amount must be less than 1000000000000 in magnitude"
	case errors.Is(err, domain.ErrDescriptionTooLong):
		field, message = "description", "Description must be 1000 characters or less"
	case errors.Is(err, domain.ErrNameTooLong):
		field, message = "source", "Source must be 255 characters or less"
	case errors.Is(err, domain.ErrCategoryNotFound):
		field, message = "category_id", "Category not found"
	case errors.Is(err, domain.ErrAccountNotFound):
		field, message = "account_id", "Account not found"
	default:
		return nil
	}
	return NewValidationError(c, "Validation failed", []ValidationError{{Field: field, Message: message}})
}

func toTransactionResponse(t *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:              t.ID,
		UserID:          t.UserID,
		CategoryID:      t.CategoryID,
		AccountID:       t.AccountID,
		Amount:          t.Amount.StringFixed(2),
		TransactionType: string(t.TransactionType),
		Description:     t.Description,
		Source:          t.Source,
		Date:            t.Date.Format(domain.DateLayout),
		CreatedAt:       formatTimestamp(t.CreatedAt),
		UpdatedAt:       formatTimestamp(t.UpdatedAt),
	}
}

func toTransactionResponses(transactions []*domain.Transaction) []TransactionResponse {
	response := make([]TransactionResponse, len(transactions))
	for i, t := range transactions {
		response[i] = toTransactionResponse(t)
	}
	return response
}

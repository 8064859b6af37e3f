package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dafibh/ledgerly/ledgerly-backend/internal/domain"
	"github.com/dafibh/ledgerly/ledgerly-backend/internal/websocket"
	"github.com/shopspring/decimal"
)

// TransactionService handles transaction CRUD
type TransactionService struct {
	transactionRepo domain.TransactionRepository
	accountRepo     domain.AccountRepository
	categoryRepo    domain.CategoryRepository
	eventPublisher  websocket.EventPublisher
}

// NewTransactionService creates a new TransactionService
func NewTransactionService(transactionRepo domain.TransactionRepository, accountRepo domain.AccountRepository, categoryRepo domain.CategoryRepository) *TransactionService {
	return &TransactionService{
		transactionRepo: transactionRepo,
		accountRepo:     accountRepo,
		categoryRepo:    categoryRepo,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *TransactionService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *TransactionService) publishEvent(userID int32, event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(userID, event)
	}
}

// TransactionInput holds every writable transaction field. It is used for
// create and full replace.
type TransactionInput struct {
	Amount          decimal.Decimal
	TransactionType domain.TransactionType
	Date            time.Time
	CategoryID      *int32
	AccountID       *int32
	Description     *string
	Source          *string
}

// OptionalID is a nullable reference in a partial update. Set is false when
// the field was not supplied; Value nil with Set true clears the reference.
type OptionalID struct {
	Set   bool
	Value *int32
}

// OptionalString is the text counterpart of OptionalID
type OptionalString struct {
	Set   bool
	Value *string
}

// PatchTransactionInput holds a partial transaction update
type PatchTransactionInput struct {
	Amount          *decimal.Decimal
	TransactionType *domain.TransactionType
	Date            *time.Time
	CategoryID      OptionalID
	AccountID       OptionalID
	Description     OptionalString
	Source          OptionalString
}

// CreateTransaction validates and stores a new transaction
func (s *TransactionService) CreateTransaction(ctx context.Context, userID int32, input TransactionInput) (*domain.Transaction, error) {
	transaction, err := s.prepare(ctx, userID, input)
	if err != nil {
		return nil, err
	}

	created, err := s.transactionRepo.Create(ctx, transaction)
	if err != nil {
		return nil, err
	}

	s.publishEvent(userID, websocket.TransactionCreated(created))
	return created, nil
}

// GetTransactions retrieves all transactions for a user ordered by id
func (s *TransactionService) GetTransactions(ctx context.Context, userID int32) ([]*domain.Transaction, error) {
	return s.transactionRepo.GetAllByUser(ctx, userID)
}

// GetTransactionByID retrieves a single owned transaction
func (s *TransactionService) GetTransactionByID(ctx context.Context, userID int32, id int32) (*domain.Transaction, error) {
	return s.transactionRepo.GetByID(ctx, userID, id)
}

// ReplaceTransaction overwrites every field of an owned transaction
func (s *TransactionService) ReplaceTransaction(ctx context.Context, userID int32, id int32, input TransactionInput) (*domain.Transaction, error) {
	if _, err := s.transactionRepo.GetByID(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.save(ctx, userID, id, input)
}

// PatchTransaction merges the supplied fields into the stored transaction and
// re-validates the result
func (s *TransactionService) PatchTransaction(ctx context.Context, userID int32, id int32, input PatchTransactionInput) (*domain.Transaction, error) {
	existing, err := s.transactionRepo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	merged := TransactionInput{
		Amount:          existing.Amount,
		TransactionType: existing.TransactionType,
		Date:            existing.Date,
		CategoryID:      existing.CategoryID,
		AccountID:       existing.AccountID,
		Description:     existing.Description,
		Source:          existing.Source,
	}
	if input.Amount != nil {
		merged.Amount = *input.Amount
	}
	if input.TransactionType != nil {
		merged.TransactionType = *input.TransactionType
	}
	if input.Date != nil {
		merged.Date = *input.Date
	}
	if input.CategoryID.Set {
		merged.CategoryID = input.CategoryID.Value
	}
	if input.AccountID.Set {
		merged.AccountID = input.AccountID.Value
	}
	if input.Description.Set {
		merged.Description = input.Description.Value
	}
	if input.Source.Set {
		merged.Source = input.Source.Value
	}

	return s.save(ctx, userID, id, merged)
}

// DeleteTransaction removes an owned transaction
func (s *TransactionService) DeleteTransaction(ctx context.Context, userID int32, id int32) error {
	if err := s.transactionRepo.Delete(ctx, userID, id); err != nil {
		return err
	}

	s.publishEvent(userID, websocket.TransactionDeleted(id))
	return nil
}

func (s *TransactionService) save(ctx context.Context, userID int32, id int32, input TransactionInput) (*domain.Transaction, error) {
	transaction, err := s.prepare(ctx, userID, input)
	if err != nil {
		return nil, err
	}
	transaction.ID = id

	updated, err := s.transactionRepo.Update(ctx, transaction)
	if err != nil {
		return nil, err
	}

	s.publishEvent(userID, websocket.TransactionUpdated(updated))
	return updated, nil
}

// prepare validates input and checks that referenced category and account
// belong to userID. The returned transaction is not persisted.
func (s *TransactionService) prepare(ctx context.Context, userID int32, input TransactionInput) (*domain.Transaction, error) {
	if !input.TransactionType.IsValid() {
		return nil, domain.ErrInvalidTransactionType
	}
	if input.Date.IsZero() {
		return nil, domain.ErrDateRequired
	}
	if err := domain.ValidateAmount(input.Amount); err != nil {
		return nil, err
	}

	description := normalizeText(input.Description)
	if description != nil && len(*description) > domain.MaxDescriptionLength {
		return nil, domain.ErrDescriptionTooLong
	}
	source := normalizeText(input.Source)
	if source != nil && len(*source) > domain.MaxNameLength {
		return nil, domain.ErrNameTooLong
	}

	if input.CategoryID != nil {
		if _, err := s.categoryRepo.GetByID(ctx, userID, *input.CategoryID); err != nil {
			return nil, err
		}
	}
	if input.AccountID != nil {
		if _, err := s.accountRepo.GetByID(ctx, userID, *input.AccountID); err != nil {
			return nil, err
		}
	}

	return &domain.Transaction{
		UserID:          userID,
		CategoryID:      input.CategoryID,
		AccountID:       input.AccountID,
		Amount:          input.Amount,
		TransactionType: input.TransactionType,
		Description:     description,
		Source:          source,
		Date:            domain.TruncateToDate(input.Date),
	}, nil
}

// IsTransactionValidationError reports whether err is caused by the payload
// rather than by storage
func IsTransactionValidationError(err error) bool {
	return errors.Is(err, domain.ErrInvalidTransactionType) ||
		errors.Is(err, domain.ErrDateRequired) ||
		errors.Is(err, domain.ErrAmountOutOfRange) ||
		errors.Is(err, domain.ErrDescriptionTooLong) ||
		errors.Is(err, domain.ErrNameTooLong) ||
		errors.Is(err, domain.ErrCategoryNotFound) ||
		errors.Is(err, domain.ErrAccountNotFound)
}

// normalizeText trims s and turns an empty result into nil
func normalizeText(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

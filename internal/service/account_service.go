package service

import (
	"context"
	"strings"

	"github.com/dafibh/ledgerly/ledgerly-backend/internal/domain"
	"github.com/dafibh/ledgerly/ledgerly-backend/internal/websocket"
	"github.com/shopspring/decimal"
)

// AccountService handles account-related business logic
type AccountService struct {
	accountRepo    domain.AccountRepository
	eventPublisher websocket.EventPublisher
}

// NewAccountService creates a new AccountService
func NewAccountService(accountRepo domain.AccountRepository) *AccountService {
	return &AccountService{accountRepo: accountRepo}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *AccountService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *AccountService) publishEvent(userID int32, event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(userID, event)
	}
}

// CreateAccountInput holds the input for creating an account
type CreateAccountInput struct {
	Name           string
	InitialBalance decimal.Decimal
}

// UpdateAccountInput holds a partial account update. Nil fields keep their
// stored value.
type UpdateAccountInput struct {
	Name           *string
	InitialBalance *decimal.Decimal
}

// CreateAccount creates a new account owned by userID
func (s *AccountService) CreateAccount(ctx context.Context, userID int32, input CreateAccountInput) (*domain.Account, error) {
	name, err := validateName(input.Name)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateAmount(input.InitialBalance); err != nil {
		return nil, err
	}

	account, err := s.accountRepo.Create(ctx, &domain.Account{
		UserID:         userID,
		Name:           name,
		InitialBalance: input.InitialBalance,
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(userID, websocket.AccountCreated(account))
	return account, nil
}

// GetAccounts retrieves all accounts for a user
func (s *AccountService) GetAccounts(ctx context.Context, userID int32) ([]*domain.Account, error) {
	return s.accountRepo.GetAllByUser(ctx, userID)
}

// GetAccountByID retrieves an account by ID for a user
func (s *AccountService) GetAccountByID(ctx context.Context, userID int32, id int32) (*domain.Account, error) {
	return s.accountRepo.GetByID(ctx, userID, id)
}

// UpdateAccount merges the supplied fields into the stored account
func (s *AccountService) UpdateAccount(ctx context.Context, userID int32, id int32, input UpdateAccountInput) (*domain.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name, err := validateName(*input.Name)
		if err != nil {
			return nil, err
		}
		account.Name = name
	}
	if input.InitialBalance != nil {
		if err := domain.ValidateAmount(*input.InitialBalance); err != nil {
			return nil, err
		}
		account.InitialBalance = *input.InitialBalance
	}

	updated, err := s.accountRepo.Update(ctx, account)
	if err != nil {
		return nil, err
	}

	s.publishEvent(userID, websocket.AccountUpdated(updated))
	return updated, nil
}

// DeleteAccount removes an account. Transactions that referenced it keep
// their rows with account_id cleared.
func (s *AccountService) DeleteAccount(ctx context.Context, userID int32, id int32) error {
	if err := s.accountRepo.Delete(ctx, userID, id); err != nil {
		return err
	}

	s.publishEvent(userID, websocket.AccountDeleted(id))
	return nil
}

// validateName trims and bounds an account or category name
func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.ErrNameRequired
	}
	if len(name) > domain.MaxNameLength {
		return "", domain.ErrNameTooLong
	}
	return name, nil
}

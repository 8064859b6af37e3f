package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Account is a money container owned by a user. InitialBalance is stored as-is;
// balances are never derived from transactions.
type Account struct {
	ID             int32           `json:"id"`
	UserID         int32           `json:"user_id"`
	Name           string          `json:"name"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type AccountRepository interface {
	Create(ctx context.Context, account *Account) (*Account, error)
	GetByID(ctx context.Context, userID int32, id int32) (*Account, error)
	GetAllByUser(ctx context.Context, userID int32) ([]*Account, error)
	Update(ctx context.Context, account *Account) (*Account, error)
	Delete(ctx context.Context, userID int32, id int32) error
}

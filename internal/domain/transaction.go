package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeExpense TransactionType = "expense"
	TransactionTypeRevenue TransactionType = "revenue"
)

// DateLayout is the calendar date format used on the wire and in exports
const DateLayout = "2006-01-02"

// IsValid reports whether t is one of the known transaction types
func (t TransactionType) IsValid() bool {
	return t == TransactionTypeExpense || t == TransactionTypeRevenue
}

// ParseTransactionType converts a raw string to a TransactionType
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidTransactionType, s)
	}
	return t, nil
}

type Transaction struct {
	ID              int32           `json:"id"`
	UserID          int32           `json:"user_id"`
	CategoryID      *int32          `json:"category_id"`
	AccountID       *int32          `json:"account_id"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionType TransactionType `json:"transaction_type"`
	Description     *string         `json:"description"`
	Source          *string         `json:"source"`
	Date            time.Time       `json:"date"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TransactionImport is a unit-of-work that persists a batch of transactions
// atomically. Rollback after Commit is a no-op.
type TransactionImport interface {
	Create(ctx context.Context, transaction *Transaction) (*Transaction, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type TransactionRepository interface {
	Create(ctx context.Context, transaction *Transaction) (*Transaction, error)
	GetByID(ctx context.Context, userID int32, id int32) (*Transaction, error)
	GetAllByUser(ctx context.Context, userID int32) ([]*Transaction, error)
	Update(ctx context.Context, transaction *Transaction) (*Transaction, error)
	Delete(ctx context.Context, userID int32, id int32) error
	BeginImport(ctx context.Context) (TransactionImport, error)
}

// maxAmount is the exclusive magnitude bound of a NUMERIC(14,2) column
var maxAmount = decimal.New(1, 12)

// ValidateAmount rejects money values the database cannot store once rounded
// to cents
func ValidateAmount(amount decimal.Decimal) error {
	if amount.Round(2).Abs().GreaterThanOrEqual(maxAmount) {
		return fmt.Errorf("%w: %s", ErrAmountOutOfRange, amount.String())
	}
	return nil
}

// TruncateToDate drops the time component, keeping the calendar date in UTC
func TruncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a calendar date. Full RFC 3339 timestamps are accepted and
// reduced to their date part.
func ParseDate(s string) (time.Time, error) {
	if d, err := time.Parse(DateLayout, s); err == nil {
		return d, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return TruncateToDate(ts), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/dafibh/ledgerly/ledgerly-backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccountRepository implements domain.AccountRepository using PostgreSQL
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

const accountColumns = `id, user_id, name, initial_balance, created_at, updated_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		a       domain.Account
		balance pgtype.Numeric
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.Name, &balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.InitialBalance = pgNumericToDecimal(balance)
	return &a, nil
}

// Create creates a new account
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	initialBalance, err := decimalToPgNumeric(account.InitialBalance)
	if err != nil {
		return nil, fmt.Errorf("invalid initial balance: %w", err)
	}

	created, err := scanAccount(r.pool.QueryRow(ctx, `
		INSERT INTO accounts (user_id, name, initial_balance)
		VALUES ($1, $2, $3)
		RETURNING `+accountColumns,
		account.UserID, account.Name, initialBalance,
	))
	if err != nil {
		return nil, fmt.Errorf("creating account: %w", err)
	}
	return created, nil
}

// GetByID retrieves an account by its ID for its owner
func (r *AccountRepository) GetByID(ctx context.Context, userID int32, id int32) (*domain.Account, error) {
	account, err := scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 AND user_id = $2`, id, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("getting account: %w", err)
	}
	return account, nil
}

// GetAllByUser retrieves all accounts owned by a user in insertion order
func (r *AccountRepository) GetAllByUser(ctx context.Context, userID int32) ([]*domain.Account, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = $1 ORDER BY id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	accounts := []*domain.Account{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// Update writes the account's name and initial balance
func (r *AccountRepository) Update(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	initialBalance, err := decimalToPgNumeric(account.InitialBalance)
	if err != nil {
		return nil, fmt.Errorf("invalid initial balance: %w", err)
	}

	updated, err := scanAccount(r.pool.QueryRow(ctx, `
		UPDATE accounts
		SET name = $3, initial_balance = $4, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING `+accountColumns,
		account.ID, account.UserID, account.Name, initialBalance,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("updating account: %w", err)
	}
	return updated, nil
}

// Delete permanently removes an account. Referencing transactions keep their
// rows with account_id cleared.
func (r *AccountRepository) Delete(ctx context.Context, userID int32, id int32) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

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

// TransactionRepository implements domain.TransactionRepository using PostgreSQL
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

const transactionColumns = `id, user_id, category_id, account_id, amount, transaction_type,
	description, source, date, created_at, updated_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		t           domain.Transaction
		categoryID  pgtype.Int4
		accountID   pgtype.Int4
		amount      pgtype.Numeric
		txType      string
		description pgtype.Text
		source      pgtype.Text
		date        pgtype.Date
	)
	if err := row.Scan(
		&t.ID, &t.UserID, &categoryID, &accountID, &amount, &txType,
		&description, &source, &date, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}

	t.CategoryID = pgInt4ToInt32Ptr(categoryID)
	t.AccountID = pgInt4ToInt32Ptr(accountID)
	t.Amount = pgNumericToDecimal(amount)
	t.TransactionType = domain.TransactionType(txType)
	t.Description = pgTextToStringPtr(description)
	t.Source = pgTextToStringPtr(source)
	t.Date = date.Time
	return &t, nil
}

// Create creates a new transaction
func (r *TransactionRepository) Create(ctx context.Context, transaction *domain.Transaction) (*domain.Transaction, error) {
	return insertTransaction(ctx, r.pool, transaction)
}

// GetByID retrieves a transaction by its ID for its owner
func (r *TransactionRepository) GetByID(ctx context.Context, userID int32, id int32) (*domain.Transaction, error) {
	transaction, err := scanTransaction(r.pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 AND user_id = $2`, id, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("getting transaction: %w", err)
	}
	return transaction, nil
}

// GetAllByUser retrieves all transactions owned by a user in insertion order
func (r *TransactionRepository) GetAllByUser(ctx context.Context, userID int32) ([]*domain.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE user_id = $1 ORDER BY id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	transactions := []*domain.Transaction{}
	for rows.Next() {
		transaction, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		transactions = append(transactions, transaction)
	}
	return transactions, rows.Err()
}

// Update overwrites every mutable column of the transaction
func (r *TransactionRepository) Update(ctx context.Context, transaction *domain.Transaction) (*domain.Transaction, error) {
	amount, err := decimalToPgNumeric(transaction.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	updated, err := scanTransaction(r.pool.QueryRow(ctx, `
		UPDATE transactions
		SET category_id = $3, account_id = $4, amount = $5, transaction_type = $6,
			description = $7, source = $8, date = $9, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING `+transactionColumns,
		transaction.ID,
		transaction.UserID,
		int32PtrToPgInt4(transaction.CategoryID),
		int32PtrToPgInt4(transaction.AccountID),
		amount,
		string(transaction.TransactionType),
		stringPtrToPgText(transaction.Description),
		stringPtrToPgText(transaction.Source),
		timeToPgDate(transaction.Date),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("updating transaction: %w", err)
	}
	return updated, nil
}

// Delete permanently removes a transaction
func (r *TransactionRepository) Delete(ctx context.Context, userID int32, id int32) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

// BeginImport starts a database transaction that batches creates until Commit
func (r *TransactionRepository) BeginImport(ctx context.Context) (domain.TransactionImport, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning import: %w", err)
	}
	return &transactionImport{tx: tx}, nil
}

// transactionImport implements domain.TransactionImport on a pgx.Tx
type transactionImport struct {
	tx pgx.Tx
}

func (b *transactionImport) Create(ctx context.Context, transaction *domain.Transaction) (*domain.Transaction, error) {
	return insertTransaction(ctx, b.tx, transaction)
}

func (b *transactionImport) Commit(ctx context.Context) error {
	if err := b.tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing import: %w", err)
	}
	return nil
}

func (b *transactionImport) Rollback(ctx context.Context) error {
	err := b.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func insertTransaction(ctx context.Context, db DBTX, transaction *domain.Transaction) (*domain.Transaction, error) {
	amount, err := decimalToPgNumeric(transaction.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	created, err := scanTransaction(db.QueryRow(ctx, `
		INSERT INTO transactions (user_id, category_id, account_id, amount, transaction_type, description, source, date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+transactionColumns,
		transaction.UserID,
		int32PtrToPgInt4(transaction.CategoryID),
		int32PtrToPgInt4(transaction.AccountID),
		amount,
		string(transaction.TransactionType),
		stringPtrToPgText(transaction.Description),
		stringPtrToPgText(transaction.Source),
		timeToPgDate(transaction.Date),
	))
	if err != nil {
		return nil, fmt.Errorf("creating transaction: %w", err)
	}
	return created, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/dafibh/ledgerly/ledgerly-backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository implements domain.UserRepository using PostgreSQL
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, email, username, hashed_password, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.HashedPassword, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user. Unique violations map to ErrEmailTaken / ErrUsernameTaken.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, username, hashed_password, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		user.Email, user.Username, user.HashedPassword, user.IsActive,
	)
	created, err := scanUser(row)
	if err != nil {
		return nil, mapUserWriteError(err)
	}
	return created, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int32) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

// Update writes email, username, password hash and active flag
func (r *UserRepository) Update(ctx context.Context, user *domain.User) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users
		SET email = $2, username = $3, hashed_password = $4, is_active = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		user.ID, user.Email, user.Username, user.HashedPassword, user.IsActive,
	)
	updated, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, mapUserWriteError(err)
	}
	return updated, nil
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return user, nil
}

func mapUserWriteError(err error) error {
	switch uniqueConstraint(err) {
	case "users_email_key":
		return domain.ErrEmailTaken
	case "users_username_key":
		return domain.ErrUsernameTaken
	}
	return fmt.Errorf("writing user: %w", err)
}

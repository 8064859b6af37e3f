package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/dafibh/ledgerly/ledgerly-backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CategoryRepository implements domain.CategoryRepository using PostgreSQL
type CategoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository creates a new CategoryRepository
func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{pool: pool}
}

const categoryColumns = `id, user_id, name, created_at, updated_at`

func scanCategory(row pgx.Row) (*domain.Category, error) {
	var c domain.Category
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// Create creates a new category
func (r *CategoryRepository) Create(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	created, err := scanCategory(r.pool.QueryRow(ctx, `
		INSERT INTO categories (user_id, name)
		VALUES ($1, $2)
		RETURNING `+categoryColumns,
		category.UserID, category.Name,
	))
	if err != nil {
		if uniqueConstraint(err) != "" {
			return nil, domain.ErrCategoryNameTaken
		}
		return nil, fmt.Errorf("creating category: %w", err)
	}
	return created, nil
}

// GetByID retrieves a category by its ID for its owner
func (r *CategoryRepository) GetByID(ctx context.Context, userID int32, id int32) (*domain.Category, error) {
	category, err := scanCategory(r.pool.QueryRow(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = $1 AND user_id = $2`, id, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("getting category: %w", err)
	}
	return category, nil
}

// GetAllByUser retrieves all categories owned by a user in insertion order
func (r *CategoryRepository) GetAllByUser(ctx context.Context, userID int32) ([]*domain.Category, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = $1 ORDER BY id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	categories := []*domain.Category{}
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

// Update renames a category
func (r *CategoryRepository) Update(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	updated, err := scanCategory(r.pool.QueryRow(ctx, `
		UPDATE categories
		SET name = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING `+categoryColumns,
		category.ID, category.UserID, category.Name,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCategoryNotFound
		}
		if uniqueConstraint(err) != "" {
			return nil, domain.ErrCategoryNameTaken
		}
		return nil, fmt.Errorf("updating category: %w", err)
	}
	return updated, nil
}

// Delete permanently removes a category
func (r *CategoryRepository) Delete(ctx context.Context, userID int32, id int32) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCategoryNotFound
	}
	return nil
}

package domain

import (
	"context"
	"time"
)

// Category groups transactions. Names are unique per user.
type Category struct {
	ID        int32     `json:"id"`
	UserID    int32     `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CategoryRepository interface {
	Create(ctx context.Context, category *Category) (*Category, error)
	GetByID(ctx context.Context, userID int32, id int32) (*Category, error)
	GetAllByUser(ctx context.Context, userID int32) ([]*Category, error)
	Update(ctx context.Context, category *Category) (*Category, error)
	Delete(ctx context.Context, userID int32, id int32) error
}

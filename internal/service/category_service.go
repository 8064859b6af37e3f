package service

import (
	"context"

	"github.com/dafibh/ledgerly/ledgerly-backend/internal/domain"
	"github.com/dafibh/ledgerly/ledgerly-backend/internal/websocket"
)

// CategoryService handles category-related business logic
type CategoryService struct {
	categoryRepo   domain.CategoryRepository
	eventPublisher websocket.EventPublisher
}

// NewCategoryService creates a new CategoryService
func NewCategoryService(categoryRepo domain.CategoryRepository) *CategoryService {
	return &CategoryService{categoryRepo: categoryRepo}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *CategoryService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *CategoryService) publishEvent(userID int32, event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(userID, event)
	}
}

// UpdateCategoryInput holds a partial category update
type UpdateCategoryInput struct {
	Name *string
}

// CreateCategory creates a category. Names are unique per user.
func (s *CategoryService) CreateCategory(ctx context.Context, userID int32, name string) (*domain.Category, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}

	category, err := s.categoryRepo.Create(ctx, &domain.Category{
		UserID: userID,
		Name:   name,
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(userID, websocket.CategoryCreated(category))
	return category, nil
}

// GetCategories retrieves all categories for a user
func (s *CategoryService) GetCategories(ctx context.Context, userID int32) ([]*domain.Category, error) {
	return s.categoryRepo.GetAllByUser(ctx, userID)
}

// GetCategoryByID retrieves a category by ID for a user
func (s *CategoryService) GetCategoryByID(ctx context.Context, userID int32, id int32) (*domain.Category, error) {
	return s.categoryRepo.GetByID(ctx, userID, id)
}

// UpdateCategory merges the supplied fields into the stored category
func (s *CategoryService) UpdateCategory(ctx context.Context, userID int32, id int32, input UpdateCategoryInput) (*domain.Category, error) {
	category, err := s.categoryRepo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name, err := validateName(*input.Name)
		if err != nil {
			return nil, err
		}
		category.Name = name
	}

	updated, err := s.categoryRepo.Update(ctx, category)
	if err != nil {
		return nil, err
	}

	s.publishEvent(userID, websocket.CategoryUpdated(updated))
	return updated, nil
}

// DeleteCategory removes a category
func (s *CategoryService) DeleteCategory(ctx context.Context, userID int32, id int32) error {
	if err := s.categoryRepo.Delete(ctx, userID, id); err != nil {
		return err
	}

	s.publishEvent(userID, websocket.CategoryDeleted(id))
	return nil
}

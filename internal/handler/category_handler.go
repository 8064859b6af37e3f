package handler

import (
	"errors"
	"net/http"

	"github.com/dafibh/ledgerly/ledgerly-backend/internal/domain"
	"github.com/dafibh/ledgerly/ledgerly-backend/internal/middleware"
	"github.com/dafibh/ledgerly/ledgerly-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// CategoryHandler handles category-related HTTP requests
type CategoryHandler struct {
	categoryService *service.CategoryService
}

// NewCategoryHandler creates a new CategoryHandler
func NewCategoryHandler(categoryService *service.CategoryService) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService}
}

// CreateCategoryRequest represents the create category request body
type CreateCategoryRequest struct {
	Name string `json:"name"`
}

// UpdateCategoryRequest represents a partial category update
type UpdateCategoryRequest struct {
	Name *string `json:"name"`
}

// CategoryResponse represents a category in API responses
type CategoryResponse struct {
	ID        int32  `json:"id"`
	UserID    int32  `json:"user_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// CreateCategory handles POST /api/v1/categories
func (h *CategoryHandler) CreateCategory(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return NewUnauthorizedError(c, credentialsRequired)
	}

	var req CreateCategoryRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	category, err := h.categoryService.CreateCategory(c.Request().Context(), userID, req.Name)
	if err != nil {
		if errors.Is(err, domain.ErrCategoryNameTaken) {
			return NewConflictError(c, "Category name already exists")
		}
		if verr := nameValidationError(c, err); verr != nil {
			return verr
		}
		log.Error().Err(err).Int32("user_id", userID).Msg("Failed to create category")
		return NewInternalError(c, "Failed to create category")
	}

	log.Info().Int32("user_id", userID).Int32("category_id", category.ID).Str("name", category.Name).Msg("Category created")

	return c.JSON(http.StatusCreated, toCategoryResponse(category))
}

// GetCategories handles GET /api/v1/categories
func (h *CategoryHandler) GetCategories(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return NewUnauthorizedError(c, credentialsRequired)
	}

	categories, err := h.categoryService.GetCategories(c.Request().Context(), userID)
	if err != nil {
		log.Error().Err(err).Int32("user_id", userID).Msg("Failed to get categories")
		return NewInternalError(c, "Failed to get categories")
	}

	response := make([]CategoryResponse, len(categories))
	for i, category := range categories {
		response[i] = toCategoryResponse(category)
	}

	return c.JSON(http.StatusOK, response)
}

// GetCategory handles GET /api/v1/categories/:id
func (h *CategoryHandler) GetCategory(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return NewUnauthorizedError(c, credentialsRequired)
	}

	id, err := pathID(c)
	if err != nil {
		return NewValidationError(c, "Invalid category ID", nil)
	}

	category, err := h.categoryService.GetCategoryByID(c.Request().Context(), userID, id)
	if err != nil {
		if errors.Is(err, domain.ErrCategoryNotFound) {
			return NewNotFoundError(c, "Category not found")
		}
		log.Error().Err(err).Int32("user_id", userID).Int32("category_id", id).Msg("Failed to get category")
		return NewInternalError(c, "Failed to get category")
	}

	return c.JSON(http.StatusOK, toCategoryResponse(category))
}

// UpdateCategory handles PUT /api/v1/categories/:id
func (h *CategoryHandler) UpdateCategory(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return NewUnauthorizedError(c, credentialsRequired)
	}

	id, err := pathID(c)
	if err != nil {
		return NewValidationError(c, "Invalid category ID", nil)
	}

	var req UpdateCategoryRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	category, err := h.categoryService.UpdateCategory(c.Request().Context(), userID, id, service.UpdateCategoryInput{Name: req.Name})
	if err != nil {
		if errors.Is(err, domain.ErrCategoryNotFound) {
			return NewNotFoundError(c, "Category not found")
		}
		if errors.Is(err, domain.ErrCategoryNameTaken) {
			return NewConflictError(c, "Category name already exists")
		}
		if verr := nameValidationError(c, err); verr != nil {
			return verr
		}
		log.Error().Err(err).Int32("user_id", userID).Int32("category_id", id).Msg("Failed to update category")
		return NewInternalError(c, "Failed to update category")
	}

	log.Info().Int32("user_id", userID).Int32("category_id", category.ID).Msg("Category updated")

	return c.JSON(http.StatusOK, toCategoryResponse(category))
}

// DeleteCategory handles DELETE /api/v1/categories/:id
func (h *CategoryHandler) DeleteCategory(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return NewUnauthorizedError(c, credentialsRequired)
	}

	id, err := pathID(c)
	if err != nil {
		return NewValidationError(c, "Invalid category ID", nil)
	}

	if err := h.categoryService.DeleteCategory(c.Request().Context(), userID, id); err != nil {
		if errors.Is(err, domain.ErrCategoryNotFound) {
			return NewNotFoundError(c, "Category not found")
		}
		log.Error().Err(err).Int32("user_id", userID).Int32("category_id", id).Msg("Failed to delete category")
		return NewInternalError(c, "Failed to delete category")
	}

	log.Info().Int32("user_id", userID).Int32("category_id", id).Msg("Category deleted")

	return c.NoContent(http.StatusNoContent)
}

func toCategoryResponse(category *domain.Category) CategoryResponse {
	return CategoryResponse{
		ID:        category.ID,
		UserID:    category.UserID,
		Name:      category.Name,
		CreatedAt: formatTimestamp(category.CreatedAt),
		UpdatedAt: formatTimestamp(category.UpdatedAt),
	}
}

package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dafibh/ledgerly/ledgerly-backend/internal/domain"
	"github.com/dafibh/ledgerly/ledgerly-backend/internal/service"
	"github.com/dafibh/ledgerly/ledgerly-backend/internal/testutil"
	"github.com/labstack/echo/v4"
)

func newTestCategoryHandler() (*CategoryHandler, *testutil.MockCategoryRepository) {
	categoryRepo := testutil.NewMockCategoryRepository()
	return NewCategoryHandler(service.NewCategoryService(categoryRepo)), categoryRepo
}

func TestCreateCategory_Success(t *testing.T) {
	e := echo.New()
	handler, _ := newTestCategoryHandler()

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/v1/categories", `{"name":"Groceries"}`), rec)
	setupUserContext(c, 1)

	if err := handler.CreateCategory(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var response CategoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response.Name != "Groceries" || response.UserID != 1 {
		t.Errorf("Unexpected category %+v", response)
	}
}

func TestCreateCategory_Duplicate(t *testing.T) {
	e := echo.New()
	handler, categoryRepo := newTestCategoryHandler()
	categoryRepo.AddCategory(&domain.Category{ID: 1, UserID: 1, Name: "Groceries"})

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/v1/categories", `{"name":"Groceries"}`), rec)
	setupUserContext(c, 1)

	if err := handler.CreateCategory(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rec.Code)
	}
	problem := decodeProblem(t, rec)
	if problem.Type != ErrorTypeConflict || problem.Detail != "Category name already exists" {
		t.Errorf("Expected category conflict, got %+v", problem)
	}
}

func TestCreateCategory_SameNameOtherUser(t *testing.T) {
	e := echo.New()
	handler, categoryRepo := newTestCategoryHandler()
	categoryRepo.AddCategory(&domain.Category{ID: 1, UserID: 2, Name: "Groceries"})

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/v1/categories", `{"name":"Groceries"}`), rec)
	setupUserContext(c, 1)

	if err := handler.CreateCategory(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", rec.Code)
	}
}

func TestGetCategory_NotOwned(t *testing.T) {
	e := echo.New()
	handler, categoryRepo := newTestCategoryHandler()
	categoryRepo.AddCategory(&domain.Category{ID: 1, UserID: 2, Name: "Rent"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/categories/1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("1")
	setupUserContext(c, 1)

	if err := handler.GetCategory(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestUpdateCategory_Rename(t *testing.T) {
	e := echo.New()
	handler, categoryRepo := newTestCategoryHandler()
	categoryRepo.AddCategory(&domain.Category{ID: 1, UserID: 1, Name: "Food"})

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPut, "/api/v1/categories/1", `{"name":"Dining"}`), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")
	setupUserContext(c, 1)

	if err := handler.UpdateCategory(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var response CategoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response.Name != "Dining" {
		t.Errorf("Expected name Dining, got %s", response.Name)
	}
}

func TestUpdateCategory_NameTaken(t *testing.T) {
	e := echo.New()
	handler, categoryRepo := newTestCategoryHandler()
	categoryRepo.AddCategory(&domain.Category{ID: 1, UserID: 1, Name: "Food"})
	categoryRepo.AddCategory(&domain.Category{ID: 2, UserID: 1, Name: "Dining"})

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPut, "/api/v1/categories/1", `{"name":"Dining"}`), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")
	setupUserContext(c, 1)

	if err := handler.UpdateCategory(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestDeleteCategory(t *testing.T) {
	e := echo.New()
	handler, categoryRepo := newTestCategoryHandler()
	categoryRepo.AddCategory(&domain.Category{ID: 1, UserID: 1, Name: "Food"})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/categories/1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("1")
	setupUserContext(c, 1)

	if err := handler.DeleteCategory(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rec.Code)
	}
	if _, ok := categoryRepo.Categories[1]; ok {
		t.Error("Expected category to be removed")
	}
}

package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dafibh/ledgerly/ledgerly-backend/internal/domain"
	"github.com/dafibh/ledgerly/ledgerly-backend/internal/service"
	"github.com/dafibh/ledgerly/ledgerly-backend/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type transactionHandlerFixture struct {
	handler         *TransactionHandler
	service         *service.TransactionService
	transactionRepo *testutil.MockTransactionRepository
}

// newTransactionHandlerFixture seeds account 1 and category 1 for user 1,
// account 2 and category 2 for user 2
func newTransactionHandlerFixture() *transactionHandlerFixture {
	transactionRepo := testutil.NewMockTransactionRepository()
	accountRepo := testutil.NewMockAccountRepository()
	categoryRepo := testutil.NewMockCategoryRepository()
	accountRepo.AddAccount(&domain.Account{ID: 1, UserID: 1, Name: "Wallet"})
	accountRepo.AddAccount(&domain.Account{ID: 2, UserID: 2, Name: "Other wallet"})
	categoryRepo.AddCategory(&domain.Category{ID: 1, UserID: 1, Name: "Food"})
	categoryRepo.AddCategory(&domain.Category{ID: 2, UserID: 2, Name: "Other food"})

	svc := service.NewTransactionService(transactionRepo, accountRepo, categoryRepo)
	return &transactionHandlerFixture{
		handler:         NewTransactionHandler(svc),
		service:         svc,
		transactionRepo: transactionRepo,
	}
}

func (f *transactionHandlerFixture) seed(userID int32) *domain.Transaction {
	categoryID := userID
	accountID := userID
	description := "Lunch"
	transaction := &domain.Transaction{
		ID:              int32(len(f.transactionRepo.Transactions) + 1),
		UserID:          userID,
		CategoryID:      &categoryID,
		AccountID:       &accountID,
		Amount:          decimal.RequireFromString("12.50"),
		TransactionType: domain.TransactionTypeExpense,
		Description:     &description,
		Date:            time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	f.transactionRepo.AddTransaction(transaction)
	return transaction
}

func decodeTransaction(t *testing.T, rec *httptest.ResponseRecorder) TransactionResponse {
	t.Helper()
	var response TransactionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	return response
}

func TestCreateTransaction_Success(t *testing.T) {
	e := echo.New()
	f := newTransactionHandlerFixture()

	body := `{"amount":"42.1","transaction_type":"expense","date":"2024-03-15","category_id":1,"account_id":1,"description":" Groceries ","source":"card"}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/v1/transactions", body), rec)
	setupUserContext(c, 1)

	if err := f.handler.CreateTransaction(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	response := decodeTransaction(t, rec)
	if response.Amount != "42.10" {
		t.Errorf("Expected amount 42.10, got %s", response.Amount)
	}
	if response.Date != "2024-03-15" {
		t.Errorf("Expected date 2024-03-15, got %s", response.Date)
	}
	if response.Description == nil || *response.Description != "Groceries" {
		t.Errorf("Expected trimmed description, got %v", response.Description)
	}
	if response.CategoryID == nil || *response.CategoryID != 1 {
		t.Errorf("Expected category 1, got %v", response.CategoryID)
	}
	if response.UserID != 1 {
		t.Errorf("Expected user_id 1, got %d", response.UserID)
	}
}

func TestCreateTransaction_NumericAmount(t *testing.T) {
	e := echo.New()
	f := newTransactionHandlerFixture()

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/v1/transactions", `{"amount":1500,"transaction_type":"revenue","date":"2024-03-15"}`), rec)
	setupUserContext(c, 1)

	if err := f.handler.CreateTransaction(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	response := decodeTransaction(t, rec)
	if response.Amount != "1500.00" || response.CategoryID != nil || response.AccountID != nil {
		t.Errorf("Unexpected transaction %+v", response)
	}
}

func TestCreateTransaction_Validation(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing amount", `{"transaction_type":"expense","date":"2024-03-15"}`, "amount"},
		{"missing date", `{"amount":"1","transaction_type":"expense"}`, "date"},
		{"bad date", `{"amount":"1","transaction_type":"expense","date":"15/03/2024"}`, "date"},
		{"bad type", `{"amount":"1","transaction_type":"transfer","date":"2024-03-15"}`, "transaction_type"},
		{"foreign category", `{"amount":"1","transaction_type":"expense","date":"2024-03-15","category_id":2}`, "category_id"},
		{"foreign account", `{"amount":"1","transaction_type":"expense","date":"2024-03-15","account_id":2}`, "account_id"},
		{"unknown account", `{"amount":"1","transaction_type":"expense","date":"2024-03-15","account_id":99}`, "account_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			f := newTransactionHandlerFixture()

			rec := httptest.NewRecorder()
			c := e.NewContext(jsonRequest(http.MethodPost, "/api/v1/transactions", tt.body), rec)
			setupUserContext(c, 1)

			if err := f.handler.CreateTransaction(c); err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("Expected status 400, got %d: %s", rec.Code, rec.Body.String())
			}
			problem := decodeProblem(t, rec)
			if len(problem.Errors) != 1 || problem.Errors[0].Field != tt.field {
				t.Errorf("Expected a single %s error, got %+v", tt.field, problem.Errors)
			}
			if len(f.transactionRepo.Transactions) != 0 {
				t.Error("Expected nothing stored")
			}
		})
	}
}

func TestGetTransactions_OnlyOwn(t *testing.T) {
	e := echo.New()
	f := newTransactionHandlerFixture()
	f.seed(1)
	f.seed(2)
	f.seed(1)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	setupUserContext(c, 1)

	if err := f.handler.GetTransactions(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var response []TransactionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if len(response) != 2 {
		t.Fatalf("Expected 2 transactions, got %d", len(response))
	}
	if response[0].ID != 1 || response[1].ID != 3 {
		t.Errorf("Expected ids [1 3] in order, got [%d %d]", response[0].ID, response[1].ID)
	}
}

func TestGetTransaction_NotOwned(t *testing.T) {
	e := echo.New()
	f := newTransactionHandlerFixture()
	other := f.seed(2)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions/1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("1")
	setupUserContext(c, 1)

	if err := f.handler.GetTransaction(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for transaction %d, got %d", other.ID, rec.Code)
	}
}

func TestReplaceTransaction_ClearsOmittedFields(t *testing.T) {
	e := echo.New()
	f := newTransactionHandlerFixture()
	f.seed(1)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPut, "/api/v1/transactions/1", `{"amount":"99","transaction_type":"revenue","date":"2024-04-01"}`), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")
	setupUserContext(c, 1)

	if err := f.handler.ReplaceTransaction(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	response := decodeTransaction(t, rec)
	if response.Amount != "99.00" || response.TransactionType != "revenue" || response.Date != "2024-04-01" {
		t.Errorf("Expected replaced values, got %+v", response)
	}
	if response.CategoryID != nil || response.AccountID != nil || response.Description != nil {
		t.Errorf("Expected omitted fields cleared, got %+v", response)
	}
}

func TestReplaceTransaction_NotFound(t *testing.T) {
	e := echo.New()
	f := newTransactionHandlerFixture()

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPut, "/api/v1/transactions/5", `{"amount":"1","transaction_type":"expense","date":"2024-04-01"}`), rec)
	c.SetParamNames("id")
	c.SetParamValues("5")
	setupUserContext(c, 1)

	if err := f.handler.ReplaceTransaction(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestPatchTransaction_Partial(t *testing.T) {
	e := echo.New()
	f := newTransactionHandlerFixture()
	f.seed(1)

	// category_id null clears it, description omitted keeps it
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPatch, "/api/v1/transactions/1", `{"amount":"20","category_id":null}`), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")
	setupUserContext(c, 1)

	if err := f.handler.PatchTransaction(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	response := decodeTransaction(t, rec)
	if response.Amount != "20.00" {
		t.Errorf("Expected amount 20.00, got %s", response.Amount)
	}
	if response.CategoryID != nil {
		t.Errorf("Expected category cleared, got %v", *response.CategoryID)
	}
	if response.AccountID == nil || *response.AccountID != 1 {
		t.Errorf("Expected account kept, got %v", response.AccountID)
	}
	if response.Description == nil || *response.Description != "Lunch" {
		t.Errorf("Expected description kept, got %v", response.Description)
	}
	if response.TransactionType != "expense" || response.Date != "2024-03-01" {
		t.Errorf("Expected type and date kept, got %+v", response)
	}
}

func TestPatchTransaction_RevalidatesReferences(t *testing.T) {
	e := echo.New()
	f := newTransactionHandlerFixture()
	f.seed(1)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPatch, "/api/v1/transactions/1", `{"account_id":2}`), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")
	setupUserContext(c, 1)

	if err := f.handler.PatchTransaction(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rec.Code)
	}
	if got := f.transactionRepo.Transactions[1].AccountID; got == nil || *got != 1 {
		t.Errorf("Expected stored account unchanged, got %v", got)
	}
}

func TestPatchTransaction_BadDate(t *testing.T) {
	e := echo.New()
	f := newTransactionHandlerFixture()
	f.seed(1)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPatch, "/api/v1/transactions/1", `{"date":"yesterday"}`), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")
	setupUserContext(c, 1)

	if err := f.handler.PatchTransaction(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestDeleteTransaction(t *testing.T) {
	e := echo.New()
	f := newTransactionHandlerFixture()
	f.seed(1)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/transactions/1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("1")
	setupUserContext(c, 1)

	if err := f.handler.DeleteTransaction(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rec.Code)
	}
	if len(f.transactionRepo.Transactions) != 0 {
		t.Error("Expected transaction to be removed")
	}
}

func TestDeleteTransaction_NotOwned(t *testing.T) {
	e := echo.New()
	f := newTransactionHandlerFixture()
	f.seed(2)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/transactions/1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("1")
	setupUserContext(c, 1)

	if err := f.handler.DeleteTransaction(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
	if len(f.transactionRepo.Transactions) != 1 {
		t.Error("Expected transaction to remain")
	}
}

func TestCreateTransaction_AmountOutOfRange(t *testing.T) {
	e := echo.New()

	for _, amount := range []string{`1e13`, `"-1000000000000"`, `"999999999999.995"`} {
		t.Run(amount, func(t *testing.T) {
			f := newTransactionHandlerFixture()
			body := `{"amount":` + amount + `,"transaction_type":"expense","date":"2024-03-15"}`
			rec := httptest.NewRecorder()
			c := e.NewContext(jsonRequest(http.MethodPost, "/api/v1/transactions", body), rec)
			setupUserContext(c, 1)

			if err := f.handler.CreateTransaction(c); err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("Expected status 400, got %d", rec.Code)
			}
			problem := decodeProblem(t, rec)
			if len(problem.Errors) != 1 || problem.Errors[0].Field != "amount" {
				t.Errorf("Expected an amount error, got %+v", problem.Errors)
			}
			if len(f.transactionRepo.Transactions) != 0 {
				t.Errorf("Expected nothing stored, got %d", len(f.transactionRepo.Transactions))
			}
		})
	}
}

func TestTransactionByID_OutOfRangeID(t *testing.T) {
	e := echo.New()
	f := newTransactionHandlerFixture()
	f.seed(1)

	// 4294967297 wraps to 1 when truncated to int32
	for _, id := range []string{"4294967297", "2147483648", "-2147483649"} {
		t.Run(id, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions/"+id, nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetParamNames("id")
			c.SetParamValues(id)
			setupUserContext(c, 1)

			if err := f.handler.GetTransaction(c); err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", rec.Code)
			}
		})
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/transactions/4294967297", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("4294967297")
	setupUserContext(c, 1)

	if err := f.handler.DeleteTransaction(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
	if len(f.transactionRepo.Transactions) != 1 {
		t.Error("Expected transaction 1 to survive")
	}
}

package service

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dafibh/ledgerly/ledgerly-backend/internal/domain"
	"github.com/shopspring/decimal"
)

var exportClock = func() time.Time { return time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC) }

func newTransferFixture(t *testing.T) (*transactionFixture, *TransactionTransferService) {
	t.Helper()
	f := newTransactionFixture()
	svc := NewTransactionTransferService(f.transactionRepo, f.service, t.TempDir())
	svc.SetEventPublisher(f.publisher)
	svc.SetClock(exportClock)
	return f, svc
}

func readArchive(t *testing.T, path string) (string, []byte) {
	t.Helper()
	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("Expected readable zip, got %v", err)
	}
	defer r.Close()

	if len(r.File) != 1 {
		t.Fatalf("Expected exactly 1 entry, got %d", len(r.File))
	}
	rc, err := r.File[0].Open()
	if err != nil {
		t.Fatalf("Expected entry to open, got %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("Expected entry to read, got %v", err)
	}
	return r.File[0].Name, data
}

func writeImportFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "import.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Expected no error writing import file, got %v", err)
	}
	return path
}

func TestExport_Empty(t *testing.T) {
	_, svc := newTransferFixture(t)

	archive, err := svc.Export(context.Background(), 1)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer archive.Cleanup()

	if archive.FileName != "Transactions_20240315.zip" {
		t.Errorf("Expected Transactions_20240315.zip, got %s", archive.FileName)
	}

	name, data := readArchive(t, archive.Path)
	if name != "Transactions_20240315.json" {
		t.Errorf("Expected entry Transactions_20240315.json, got %s", name)
	}
	if string(data) != "[]" {
		t.Errorf("Expected empty array, got %q", data)
	}
}

func TestExport_Records(t *testing.T) {
	f, svc := newTransferFixture(t)
	f.transactionRepo.AddTransaction(&domain.Transaction{
		ID:              1,
		UserID:          1,
		CategoryID:      int32Ptr(1),
		Amount:          decimal.RequireFromString("12.50"),
		TransactionType: domain.TransactionTypeExpense,
		Description:     strPtr("Lunch & coffee"),
		Date:            time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC),
	})
	f.transactionRepo.AddTransaction(&domain.Transaction{
		ID:              2,
		UserID:          2,
		Amount:          decimal.NewFromInt(1),
		TransactionType: domain.TransactionTypeRevenue,
		Date:            time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC),
	})

	archive, err := svc.Export(context.Background(), 1)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer archive.Cleanup()

	_, data := readArchive(t, archive.Path)
	if !strings.Contains(string(data), "\n    {") {
		t.Errorf("Expected 4-space indentation, got %s", data)
	}

	var records []map[string]interface{}
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("Expected valid JSON, got %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected only the caller's transaction, got %d", len(records))
	}

	rec := records[0]
	if rec["amount"] != 12.5 {
		t.Errorf("Expected numeric amount 12.5, got %v", rec["amount"])
	}
	if rec["date"] != "2024-03-14" {
		t.Errorf("Expected date 2024-03-14, got %v", rec["date"])
	}
	if rec["transaction_type"] != "expense" {
		t.Errorf("Expected expense, got %v", rec["transaction_type"])
	}
	if rec["description"] != "Lunch & coffee" {
		t.Errorf("Expected description unescaped, got %v", rec["description"])
	}
	if v, ok := rec["account_id"]; !ok || v != nil {
		t.Errorf("Expected account_id null, got %v", v)
	}
	if v, ok := rec["source"]; !ok || v != nil {
		t.Errorf("Expected source null, got %v", v)
	}
}

func TestExport_Reproducible(t *testing.T) {
	f, svc := newTransferFixture(t)
	f.transactionRepo.AddTransaction(&domain.Transaction{
		ID:              1,
		UserID:          1,
		Amount:          decimal.NewFromInt(3),
		TransactionType: domain.TransactionTypeExpense,
		Date:            time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC),
	})

	first, err := svc.Export(context.Background(), 1)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer first.Cleanup()
	second, err := svc.Export(context.Background(), 1)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer second.Cleanup()

	if first.Dir == second.Dir {
		t.Error("Expected each export in its own directory")
	}

	a, _ := os.ReadFile(first.Path)
	b, _ := os.ReadFile(second.Path)
	if !bytes.Equal(a, b) {
		t.Error("Expected identical archives for identical input")
	}
}

func TestExport_ConcurrentUsersSameDay(t *testing.T) {
	f, svc := newTransferFixture(t)
	for id := int32(1); id <= 6; id++ {
		owner := id%2 + 1
		f.transactionRepo.AddTransaction(&domain.Transaction{
			ID:              id,
			UserID:          owner,
			Amount:          decimal.NewFromInt(int64(owner)),
			TransactionType: domain.TransactionTypeExpense,
			Date:            time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC),
		})
	}

	users := []int32{1, 2}
	archives := make([]*ExportArchive, len(users))
	errs := make([]error, len(users))
	var wg sync.WaitGroup
	for i, userID := range users {
		wg.Add(1)
		go func(i int, userID int32) {
			defer wg.Done()
			archives[i], errs[i] = svc.Export(context.Background(), userID)
		}(i, userID)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Export for user %d failed: %v", users[i], err)
		}
		defer archives[i].Cleanup()
	}

	if archives[0].Path == archives[1].Path {
		t.Fatalf("Expected distinct archive paths, both got %s", archives[0].Path)
	}
	if archives[0].FileName != archives[1].FileName {
		t.Errorf("Expected the same dated file name, got %s and %s", archives[0].FileName, archives[1].FileName)
	}

	for i, userID := range users {
		if _, err := os.Stat(archives[i].Path); err != nil {
			t.Fatalf("Expected archive for user %d to exist, got %v", userID, err)
		}
		_, data := readArchive(t, archives[i].Path)
		var records []ExportRecord
		if err := json.Unmarshal(data, &records); err != nil {
			t.Fatalf("Expected valid JSON for user %d, got %v", userID, err)
		}
		if len(records) != 3 {
			t.Errorf("Expected 3 records for user %d, got %d", userID, len(records))
		}
		for _, rec := range records {
			if rec.UserID != userID || rec.Amount.String() != decimal.NewFromInt(int64(userID)).String() {
				t.Errorf("User %d archive holds a foreign record: %+v", userID, rec)
			}
		}
	}
}

func TestExport_CleanupRemovesDirectory(t *testing.T) {
	_, svc := newTransferFixture(t)

	archive, err := svc.Export(context.Background(), 1)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	entries, err := os.ReadDir(archive.Dir)
	if err != nil {
		t.Fatalf("Expected export dir, got %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected only the zip to remain, got %d entries", len(entries))
	}

	if err := archive.Cleanup(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := os.Stat(archive.Dir); !os.IsNotExist(err) {
		t.Errorf("Expected export dir removed, got %v", err)
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	f, svc := newTransferFixture(t)
	for _, in := range []TransactionInput{
		validInput(),
		{Amount: decimal.NewFromInt(-7), TransactionType: domain.TransactionTypeRevenue, Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	} {
		if _, err := f.service.CreateTransaction(context.Background(), 1, in); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
	}

	archive, err := svc.Export(context.Background(), 1)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer archive.Cleanup()
	_, data := readArchive(t, archive.Path)

	imported, err := svc.Import(context.Background(), 1, writeImportFile(t, string(data)))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(imported) != 2 {
		t.Fatalf("Expected 2 imported transactions, got %d", len(imported))
	}
	if imported[0].ID != 3 || imported[1].ID != 4 {
		t.Errorf("Expected fresh ids 3 and 4, got %d and %d", imported[0].ID, imported[1].ID)
	}
	if !imported[0].Amount.Equal(decimal.NewFromFloat(12.5)) || *imported[0].CategoryID != 1 {
		t.Errorf("Expected first record to round-trip, got %+v", imported[0])
	}
	if !imported[1].Date.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected date to round-trip, got %s", imported[1].Date)
	}
	if len(f.transactionRepo.Transactions) != 4 {
		t.Errorf("Expected 4 stored transactions, got %d", len(f.transactionRepo.Transactions))
	}

	last := f.publisher.Events[len(f.publisher.Events)-1]
	if last.Event.Type != "transaction.imported" {
		t.Errorf("Expected transaction.imported event, got %q", last.Event.Type)
	}
}

func TestImport_FlexibleFields(t *testing.T) {
	_, svc := newTransferFixture(t)
	path := writeImportFile(t, `[
		{"id": 77, "user_id": 9, "amount": "10.25", "transaction_type": "revenue", "date": "2024-03-15T23:30:00+07:00"},
		{"amount": 4, "transaction_type": "expense", "date": "2024-03-16", "description": "  ", "source": "bank"}
	]`)

	imported, err := svc.Import(context.Background(), 1, path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(imported) != 2 {
		t.Fatalf("Expected 2 imported transactions, got %d", len(imported))
	}
	if imported[0].UserID != 1 || imported[0].ID == 77 {
		t.Errorf("Expected id and user_id to be ignored, got %+v", imported[0])
	}
	if !imported[0].Amount.Equal(decimal.RequireFromString("10.25")) {
		t.Errorf("Expected amount 10.25, got %s", imported[0].Amount)
	}
	if !imported[0].Date.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected date part of timestamp, got %s", imported[0].Date)
	}
	if imported[1].Description != nil {
		t.Error("Expected blank description to become nil")
	}
}

func TestImport_Empty(t *testing.T) {
	f, svc := newTransferFixture(t)

	imported, err := svc.Import(context.Background(), 1, writeImportFile(t, "[]"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(imported) != 0 {
		t.Errorf("Expected nothing imported, got %d", len(imported))
	}
	if len(f.transactionRepo.Imports) != 0 {
		t.Error("Expected no import batch for an empty document")
	}
}

func TestImport_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		contains string
		wantErr  error
	}{
		{"malformed json", `{"not": "an array"`, "", nil},
		{"object instead of array", `{"amount": 1}`, "", nil},
		{"null document", `null`, "expected a JSON array", nil},
		{"padded null document", "  null \n", "expected a JSON array", nil},
		{"missing amount", `[{"transaction_type": "expense", "date": "2024-01-01"}]`, "record 1", nil},
		{"bad amount", `[{"amount": "abc", "transaction_type": "expense", "date": "2024-01-01"}]`, "record 1", nil},
		{"bad type in second record", `[
			{"amount": 1, "transaction_type": "expense", "date": "2024-01-01"},
			{"amount": 1, "transaction_type": "gift", "date": "2024-01-01"}
		]`, "record 2", nil},
		{"missing date", `[{"amount": 1, "transaction_type": "expense"}]`, "record 1", domain.ErrDateRequired},
		{"amount too large", `[{"amount": 1e13, "transaction_type": "expense", "date": "2024-01-01"}]`, "record 1", domain.ErrAmountOutOfRange},
		{"bad date", `[{"amount": 1, "transaction_type": "expense", "date": "15/03/2024"}]`, "record 1", nil},
		{"foreign category", `[{"amount": 1, "transaction_type": "expense", "date": "2024-01-01", "category_id": 2}]`, "record 1", domain.ErrCategoryNotFound},
		{"unknown account", `[{"amount": 1, "transaction_type": "expense", "date": "2024-01-01", "account_id": 99}]`, "record 1", domain.ErrAccountNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, svc := newTransferFixture(t)

			_, err := svc.Import(context.Background(), 1, writeImportFile(t, tt.content))
			if !errors.Is(err, domain.ErrInvalidImport) {
				t.Fatalf("Expected ErrInvalidImport, got %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v in chain, got %v", tt.wantErr, err)
			}
			if tt.contains != "" && !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("Expected error to mention %q, got %v", tt.contains, err)
			}
			if len(f.transactionRepo.Transactions) != 0 {
				t.Error("Expected nothing to be stored")
			}
			if len(f.transactionRepo.Imports) != 0 {
				t.Error("Expected validation to finish before any write")
			}
		})
	}
}

func TestImport_RollsBackOnWriteFailure(t *testing.T) {
	f, svc := newTransferFixture(t)
	calls := 0
	f.transactionRepo.ImportCreateFn = func(ctx context.Context, transaction *domain.Transaction) error {
		calls++
		if calls == 2 {
			return errors.New("connection reset")
		}
		return nil
	}

	path := writeImportFile(t, `[
		{"amount": 1, "transaction_type": "expense", "date": "2024-01-01"},
		{"amount": 2, "transaction_type": "expense", "date": "2024-01-02"}
	]`)

	_, err := svc.Import(context.Background(), 1, path)
	if err == nil || errors.Is(err, domain.ErrInvalidImport) {
		t.Fatalf("Expected a storage error, got %v", err)
	}
	if len(f.transactionRepo.Transactions) != 0 {
		t.Errorf("Expected no rows after rollback, got %d", len(f.transactionRepo.Transactions))
	}
	if len(f.transactionRepo.Imports) != 1 || !f.transactionRepo.Imports[0].RolledBack {
		t.Error("Expected the import batch to be rolled back")
	}
}

func TestImport_MissingFile(t *testing.T) {
	_, svc := newTransferFixture(t)

	_, err := svc.Import(context.Background(), 1, filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatal("Expected an error for a missing file")
	}
	if errors.Is(err, domain.ErrInvalidImport) {
		t.Error("Expected an I/O error, not a validation error")
	}
}

type mockArchiveStore struct {
	keys    []string
	sizes   []int64
	failErr error
}

func (m *mockArchiveStore) Upload(ctx context.Context, objectKey string, data io.Reader, size int64) error {
	if m.failErr != nil {
		return m.failErr
	}
	if _, err := io.Copy(io.Discard, data); err != nil {
		return err
	}
	m.keys = append(m.keys, objectKey)
	m.sizes = append(m.sizes, size)
	return nil
}

func (m *mockArchiveStore) GeneratePresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	return "https://bucket.example.com/" + objectKey + "?signed=1", nil
}

func TestExportLink_Disabled(t *testing.T) {
	_, svc := newTransferFixture(t)

	if _, err := svc.ExportLink(context.Background(), 1); !errors.Is(err, domain.ErrRemoteStorageDisabled) {
		t.Errorf("Expected ErrRemoteStorageDisabled, got %v", err)
	}
}

func TestExportLink_Success(t *testing.T) {
	exportDir := t.TempDir()
	f := newTransactionFixture()
	svc := NewTransactionTransferService(f.transactionRepo, f.service, exportDir)
	svc.SetClock(exportClock)
	store := &mockArchiveStore{}
	svc.SetArchiveStore(store, 15*time.Minute)

	link, err := svc.ExportLink(context.Background(), 1)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(store.keys) != 1 {
		t.Fatalf("Expected 1 upload, got %d", len(store.keys))
	}
	if !strings.HasPrefix(store.keys[0], "exports/1/") || !strings.HasSuffix(store.keys[0], "/Transactions_20240315.zip") {
		t.Errorf("Unexpected object key %s", store.keys[0])
	}
	if store.sizes[0] <= 0 {
		t.Error("Expected a non-empty archive")
	}
	if !strings.Contains(link.URL, store.keys[0]) {
		t.Errorf("Expected URL for uploaded key, got %s", link.URL)
	}
	if !link.ExpiresAt.Equal(exportClock().Add(15 * time.Minute)) {
		t.Errorf("Unexpected expiry %s", link.ExpiresAt)
	}

	entries, err := os.ReadDir(exportDir)
	if err != nil {
		t.Fatalf("Expected export dir, got %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected local archive to be cleaned up, got %d entries", len(entries))
	}
}

func TestExportLink_UploadFailure(t *testing.T) {
	_, svc := newTransferFixture(t)
	svc.SetArchiveStore(&mockArchiveStore{failErr: errors.New("access denied")}, time.Minute)

	if _, err := svc.ExportLink(context.Background(), 1); err == nil {
		t.Error("Expected upload error to propagate")
	}
}

package service

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dafibh/ledgerly/ledgerly-backend/internal/domain"
	"github.com/dafibh/ledgerly/ledgerly-backend/internal/repository/storage"
	"github.com/dafibh/ledgerly/ledgerly-backend/internal/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const exportFilePrefix = "Transactions_"

// ArchiveStore is the remote store export archives are mirrored to
type ArchiveStore interface {
	Upload(ctx context.Context, objectKey string, data io.Reader, size int64) error
	GeneratePresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
}

// ExportRecord is one transaction in an export document
type ExportRecord struct {
	ID              int32       `json:"id"`
	UserID          int32       `json:"user_id"`
	CategoryID      *int32      `json:"category_id"`
	AccountID       *int32      `json:"account_id"`
	Amount          json.Number `json:"amount"`
	TransactionType string      `json:"transaction_type"`
	Description     *string     `json:"description"`
	Source          *string     `json:"source"`
	Date            string      `json:"date"`
}

// importRecord is the decode target for one imported transaction. id and
// user_id are accepted but ignored.
type importRecord struct {
	Amount          json.RawMessage `json:"amount"`
	TransactionType *string         `json:"transaction_type"`
	Date            *string         `json:"date"`
	CategoryID      *int32          `json:"category_id"`
	AccountID       *int32          `json:"account_id"`
	Description     *string         `json:"description"`
	Source          *string         `json:"source"`
}

// ExportArchive is a zip archive on local disk. Call Cleanup once the
// archive has been delivered.
type ExportArchive struct {
	Path     string
	FileName string
	Dir      string
}

// Cleanup removes the archive and its directory
func (a *ExportArchive) Cleanup() error {
	return os.RemoveAll(a.Dir)
}

// ExportLink is a presigned download URL for a mirrored archive
type ExportLink struct {
	URL       string
	FileName  string
	ExpiresAt time.Time
}

// TransactionTransferService exports and imports a user's transactions as
// zipped JSON
type TransactionTransferService struct {
	transactionRepo domain.TransactionRepository
	transactions    *TransactionService
	exportDir       string
	archiveStore    ArchiveStore
	presignExpiry   time.Duration
	eventPublisher  websocket.EventPublisher
	now             func() time.Time
}

// NewTransactionTransferService creates a new TransactionTransferService.
// Archives are written below exportDir.
func NewTransactionTransferService(transactionRepo domain.TransactionRepository, transactions *TransactionService, exportDir string) *TransactionTransferService {
	return &TransactionTransferService{
		transactionRepo: transactionRepo,
		transactions:    transactions,
		exportDir:       exportDir,
		now:             time.Now,
	}
}

// SetArchiveStore enables remote export links
func (s *TransactionTransferService) SetArchiveStore(store ArchiveStore, presignExpiry time.Duration) {
	s.archiveStore = store
	s.presignExpiry = presignExpiry
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *TransactionTransferService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

// SetClock overrides the clock used to name archives
func (s *TransactionTransferService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *TransactionTransferService) publishEvent(userID int32, event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(userID, event)
	}
}

// Export writes every transaction owned by userID into a zip archive holding
// a single Transactions_YYYYMMDD.json document
func (s *TransactionTransferService) Export(ctx context.Context, userID int32) (*ExportArchive, error) {
	transactions, err := s.transactionRepo.GetAllByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	records := make([]ExportRecord, 0, len(transactions))
	for _, t := range transactions {
		records = append(records, toExportRecord(t))
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("encoding export: %w", err)
	}

	exportDate := domain.TruncateToDate(s.now().UTC())
	stamp := exportDate.Format("20060102")
	jsonName := exportFilePrefix + stamp + ".json"
	zipName := exportFilePrefix + stamp + ".zip"

	dir := filepath.Join(s.exportDir, uuid.New().String())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}

	archive := &ExportArchive{
		Path:     filepath.Join(dir, zipName),
		FileName: zipName,
		Dir:      dir,
	}

	jsonPath := filepath.Join(dir, jsonName)
	if err := os.WriteFile(jsonPath, bytes.TrimSuffix(buf.Bytes(), []byte("\n")), 0o600); err != nil {
		archive.Cleanup()
		return nil, fmt.Errorf("writing export document: %w", err)
	}

	if err := writeZip(archive.Path, jsonPath, jsonName, exportDate); err != nil {
		archive.Cleanup()
		return nil, err
	}

	if err := os.Remove(jsonPath); err != nil {
		archive.Cleanup()
		return nil, fmt.Errorf("removing export document: %w", err)
	}

	log.Info().
		Int32("user_id", userID).
		Int("count", len(records)).
		Str("file", zipName).
		Msg("Transactions exported")

	return archive, nil
}

// Import reads an export document from path and stores every record for
// userID. Nothing is written unless every record is valid.
func (s *TransactionTransferService) Import(ctx context.Context, userID int32, path string) ([]*domain.Transaction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading import file: %w", err)
	}

	inputs, err := parseImport(data)
	if err != nil {
		return nil, err
	}

	prepared := make([]*domain.Transaction, 0, len(inputs))
	for i, input := range inputs {
		t, err := s.transactions.prepare(ctx, userID, input)
		if err != nil {
			if IsTransactionValidationError(err) {
				return nil, fmt.Errorf("%w: record %d: %w", domain.ErrInvalidImport, i+1, err)
			}
			return nil, err
		}
		prepared = append(prepared, t)
	}

	if len(prepared) == 0 {
		return []*domain.Transaction{}, nil
	}

	batch, err := s.transactionRepo.BeginImport(ctx)
	if err != nil {
		return nil, err
	}
	defer batch.Rollback(ctx)

	created := make([]*domain.Transaction, 0, len(prepared))
	for i, t := range prepared {
		c, err := batch.Create(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("importing record %d: %w", i+1, err)
		}
		created = append(created, c)
	}

	if err := batch.Commit(ctx); err != nil {
		return nil, err
	}

	log.Info().
		Int32("user_id", userID).
		Int("count", len(created)).
		Msg("Transactions imported")

	s.publishEvent(userID, websocket.TransactionsImported(len(created)))
	return created, nil
}

// ExportLink exports, mirrors the archive to the remote store and returns a
// presigned link to it
func (s *TransactionTransferService) ExportLink(ctx context.Context, userID int32) (*ExportLink, error) {
	if s.archiveStore == nil {
		return nil, domain.ErrRemoteStorageDisabled
	}

	archive, err := s.Export(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer archive.Cleanup()

	f, err := os.Open(archive.Path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	key := storage.ExportObjectKey(userID, archive.FileName)
	if err := s.archiveStore.Upload(ctx, key, f, info.Size()); err != nil {
		return nil, err
	}

	url, err := s.archiveStore.GeneratePresignedURL(ctx, key, s.presignExpiry)
	if err != nil {
		return nil, err
	}

	return &ExportLink{
		URL:       url,
		FileName:  archive.FileName,
		ExpiresAt: s.now().Add(s.presignExpiry),
	}, nil
}

func toExportRecord(t *domain.Transaction) ExportRecord {
	return ExportRecord{
		ID:              t.ID,
		UserID:          t.UserID,
		CategoryID:      t.CategoryID,
		AccountID:       t.AccountID,
		Amount:          json.Number(t.Amount.String()),
		TransactionType: string(t.TransactionType),
		Description:     t.Description,
		Source:          t.Source,
		Date:            t.Date.Format(domain.DateLayout),
	}
}

// writeZip stores the file at srcPath as the only entry of a new archive.
// The entry's modification time is pinned so identical input gives identical
// bytes.
func writeZip(zipPath, srcPath, entryName string, modified time.Time) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("opening export document: %w", err)
	}
	defer src.Close()

	out, err := os.OpenFile(zipPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     entryName,
		Method:   zip.Deflate,
		Modified: modified,
	})
	if err != nil {
		return fmt.Errorf("creating archive entry: %w", err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("writing archive entry: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing archive: %w", err)
	}
	return out.Close()
}

// parseImport decodes and validates an export document without touching
// storage
func parseImport(data []byte) ([]TransactionInput, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidImport, err)
	}
	// A top-level null decodes without error
	if raw == nil {
		return nil, fmt.Errorf("%w: expected a JSON array", domain.ErrInvalidImport)
	}

	inputs := make([]TransactionInput, 0, len(raw))
	for i, item := range raw {
		input, err := parseImportRecord(item)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", domain.ErrInvalidImport, i+1, err)
		}
		inputs = append(inputs, input)
	}
	return inputs, nil
}

func parseImportRecord(item json.RawMessage) (TransactionInput, error) {
	var rec importRecord
	if err := json.Unmarshal(item, &rec); err != nil {
		return TransactionInput{}, err
	}

	amount, err := parseAmount(rec.Amount)
	if err != nil {
		return TransactionInput{}, err
	}

	if rec.TransactionType == nil {
		return TransactionInput{}, fmt.Errorf("transaction_type is required")
	}
	txType, err := domain.ParseTransactionType(*rec.TransactionType)
	if err != nil {
		return TransactionInput{}, err
	}

	if rec.Date == nil {
		return TransactionInput{}, domain.ErrDateRequired
	}
	date, err := domain.ParseDate(*rec.Date)
	if err != nil {
		return TransactionInput{}, err
	}

	return TransactionInput{
		Amount:          amount,
		TransactionType: txType,
		Date:            date,
		CategoryID:      rec.CategoryID,
		AccountID:       rec.AccountID,
		Description:     rec.Description,
		Source:          rec.Source,
	}, nil
}

// parseAmount accepts a JSON number or a numeric string
func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Zero, fmt.Errorf("amount is required")
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return decimal.Zero, fmt.Errorf("invalid amount: %v", err)
		}
	}

	amount, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %s", raw)
	}
	return amount, nil
}

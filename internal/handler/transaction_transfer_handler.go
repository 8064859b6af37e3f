package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/dafibh/ledgerly/ledgerly-backend/internal/domain"
	"github.com/dafibh/ledgerly/ledgerly-backend/internal/middleware"
	"github.com/dafibh/ledgerly/ledgerly-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// importFormField is the multipart field carrying the import document
const importFormField = "file"

// TransferHandler handles transaction export and import
type TransferHandler struct {
	transferService *service.TransactionTransferService
	maxImportBytes  int64
}

// NewTransferHandler creates a new TransferHandler. Uploads larger than
// maxImportBytes are rejected.
func NewTransferHandler(transferService *service.TransactionTransferService, maxImportBytes int64) *TransferHandler {
	return &TransferHandler{
		transferService: transferService,
		maxImportBytes:  maxImportBytes,
	}
}

// ExportLinkResponse represents a presigned export download link
type ExportLinkResponse struct {
	URL       string `json:"url"`
	FileName  string `json:"file_name"`
	ExpiresAt string `json:"expires_at"`
}

// Export handles GET /api/v1/transactions/export
func (h *TransferHandler) Export(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return NewUnauthorizedError(c, credentialsRequired)
	}

	archive, err := h.transferService.Export(c.Request().Context(), userID)
	if err != nil {
		log.Error().Err(err).Int32("user_id", userID).Msg("Failed to export transactions")
		return NewInternalError(c, "Failed to export transactions")
	}
	defer func() {
		if err := archive.Cleanup(); err != nil {
			log.Warn().Err(err).Str("dir", archive.Dir).Msg("Failed to clean up export")
		}
	}()

	return c.Attachment(archive.Path, archive.FileName)
}

// ExportLink handles POST /api/v1/transactions/export/link
func (h *TransferHandler) ExportLink(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return NewUnauthorizedError(c, credentialsRequired)
	}

	link, err := h.transferService.ExportLink(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrRemoteStorageDisabled) {
			return NewServiceUnavailableError(c, "Remote export storage is not configured")
		}
		log.Error().Err(err).Int32("user_id", userID).Msg("Failed to create export link")
		return NewInternalError(c, "Failed to create export link")
	}

	log.Info().Int32("user_id", userID).Str("file", link.FileName).Msg("Export link created")

	return c.JSON(http.StatusOK, ExportLinkResponse{
		URL:       link.URL,
		FileName:  link.FileName,
		ExpiresAt: formatTimestamp(link.ExpiresAt),
	})
}

// Import handles POST /api/v1/transactions/import
func (h *TransferHandler) Import(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return NewUnauthorizedError(c, credentialsRequired)
	}

	fileHeader, err := c.FormFile(importFormField)
	if err != nil {
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: importFormField, Message: "An import file is required"},
		})
	}
	if h.maxImportBytes > 0 && fileHeader.Size > h.maxImportBytes {
		return importTooLarge(c, h.maxImportBytes)
	}

	tempPath, err := h.saveUpload(fileHeader)
	if err != nil {
		if errors.Is(err, errImportTooLarge) {
			return importTooLarge(c, h.maxImportBytes)
		}
		log.Error().Err(err).Int32("user_id", userID).Msg("Failed to store import upload")
		return NewInternalError(c, "Failed to read import file")
	}
	defer os.Remove(tempPath)

	transactions, err := h.transferService.Import(c.Request().Context(), userID, tempPath)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidImport) {
			return NewValidationError(c, err.Error(), nil)
		}
		log.Error().Err(err).Int32("user_id", userID).Msg("Failed to import transactions")
		return NewInternalError(c, "Failed to import transactions")
	}

	log.Info().Int32("user_id", userID).Int("count", len(transactions)).Str("file", fileHeader.Filename).Msg("Transactions imported")

	return c.JSON(http.StatusCreated, toTransactionResponses(transactions))
}

var errImportTooLarge = errors.New("import file too large")

// saveUpload copies the uploaded file to a temporary file and returns its
// path. The caller removes the file.
func (h *TransferHandler) saveUpload(fileHeader *multipart.FileHeader) (string, error) {
	src, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("opening upload: %w", err)
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "ledgerly-import-*.json")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}

	var reader io.Reader = src
	if h.maxImportBytes > 0 {
		reader = io.LimitReader(src, h.maxImportBytes+1)
	}

	written, err := io.Copy(dst, reader)
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && h.maxImportBytes > 0 && written > h.maxImportBytes {
		err = errImportTooLarge
	}
	if err != nil {
		os.Remove(dst.Name())
		if errors.Is(err, errImportTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("writing temp file: %w", err)
	}

	return dst.Name(), nil
}

func importTooLarge(c echo.Context, limit int64) error {
	return NewValidationError(c, "Validation failed", []ValidationError{
		{Field: importFormField, Message: fmt.Sprintf("Import file must be %d bytes or less", limit)},
	})
}

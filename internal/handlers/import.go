// internal/handlers/import.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/ammerola/shelfstock-be/internal/core/ports"
	"github.com/ammerola/shelfstock-be/internal/workers"
)

// TaskInspector is the part of *asynq.Inspector used to report import progress.
type TaskInspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
}

// ImportHandler accepts supplier delivery notes for asynchronous restocking
type ImportHandler struct {
	stock       ports.StockService
	storage     ports.ObjectStorage
	events      ports.EventPublisher
	inspector   TaskInspector
	prefix      string
	maxFileSize int64
	logger      *slog.Logger
}

// NewImportHandler creates a new import handler. inspector may be nil.
func NewImportHandler(
	stock ports.StockService,
	storage ports.ObjectStorage,
	events ports.EventPublisher,
	inspector TaskInspector,
	prefix string,
	maxFileSize int64,
	logger *slog.Logger,
) *ImportHandler {
	return &ImportHandler{
		stock:       stock,
		storage:     storage,
		events:      events,
		inspector:   inspector,
		prefix:      prefix,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("handler", "import")),
	}
}

// ImportRestockPDF handles POST /api/v1/import/restock-pdf
func (h *ImportHandler) ImportRestockPDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	productID, err := uuid.Parse(r.FormValue("productId"))
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "productId must be a valid UUID")
		return
	}
	if _, err := h.stock.GetProduct(ctx, productID); err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to queue import")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()

	if header.Size > h.maxFileSize {
		respondError(w, h.logger, http.StatusRequestEntityTooLarge, "File is too large")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Failed to read upload")
		return
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		respondError(w, h.logger, http.StatusBadRequest, "Only PDF files are allowed")
		return
	}

	importID := uuid.NewString()
	key := h.objectKey(importID)

	if _, err := h.storage.Upload(ctx, key, bytes.NewReader(data), "application/pdf"); err != nil {
		h.logger.ErrorContext(ctx, "failed to store delivery note", slog.String("error", err.Error()))
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to save upload")
		return
	}

	if err := h.events.RestockImportRequested(ctx, key, productID.String()); err != nil {
		h.logger.ErrorContext(ctx, "failed to queue delivery note import",
			slog.String("object_key", key),
			slog.String("error", err.Error()))
		if derr := h.storage.Delete(context.WithoutCancel(ctx), key); derr != nil {
			h.logger.WarnContext(ctx, "failed to remove orphaned upload",
				slog.String("object_key", key),
				slog.String("error", derr.Error()))
		}
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to queue import")
		return
	}

	h.logger.InfoContext(ctx, "delivery note import queued",
		slog.String("import_id", importID),
		slog.String("product_id", productID.String()),
		slog.String("filename", header.Filename),
		slog.Int("size", len(data)))

	respondJSON(w, h.logger, http.StatusAccepted, map[string]string{
		"importId":  importID,
		"productId": productID.String(),
		"objectKey": key,
		"status":    "queued",
	})
}

// ImportStatus handles GET /api/v1/import/restock-pdf/{importId}
func (h *ImportHandler) ImportStatus(w http.ResponseWriter, r *http.Request) {
	importID, err := uuid.Parse(r.PathValue("importId"))
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid import ID format")
		return
	}
	if h.inspector == nil {
		respondError(w, h.logger, http.StatusServiceUnavailable, "Import status is unavailable")
		return
	}

	key := h.objectKey(importID.String())
	info, err := h.inspector.GetTaskInfo(workers.QueueDefault, workers.RestockImportTaskID(key))
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			respondError(w, h.logger, http.StatusNotFound, "Import not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to get import status", slog.String("error", err.Error()))
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to get import status")
		return
	}

	status := map[string]interface{}{
		"importId": importID.String(),
		"state":    info.State.String(),
		"retried":  info.Retried,
	}
	if info.LastErr != "" {
		status["lastError"] = info.LastErr
	}
	if !info.CompletedAt.IsZero() {
		status["completedAt"] = info.CompletedAt
	}
	if len(info.Result) > 0 {
		status["result"] = json.RawMessage(info.Result)
	}
	respondJSON(w, h.logger, http.StatusOK, status)
}

func (h *ImportHandler) objectKey(importID string) string {
	return path.Join(h.prefix, fmt.Sprintf("%s.pdf", importID))
}

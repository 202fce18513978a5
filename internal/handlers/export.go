// internal/handlers/export.go
package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ammerola/shelfstock-be/internal/adapters/report"
	"github.com/ammerola/shelfstock-be/internal/core/ports"
	"github.com/ammerola/shelfstock-be/internal/workers"
)

// ExportHandler streams the sales history as a spreadsheet
type ExportHandler struct {
	sales  ports.SaleRepository
	logger *slog.Logger
}

// NewExportHandler creates a new export handler
func NewExportHandler(sales ports.SaleRepository, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		sales:  sales,
		logger: logger.With(slog.String("handler", "export")),
	}
}

// ExportSales handles GET /api/v1/export/sales. It accepts the same filters
// as the sales listing; format=json returns the rows instead of a workbook.
func (h *ExportHandler) ExportSales(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := parseSaleFilter(r)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to export sales")
		return
	}
	filter.PageSize = 500

	sales, err := workers.CollectSales(ctx, h.sales, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to retrieve sales", slog.String("error", err.Error()))
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to retrieve data")
		return
	}

	if r.URL.Query().Get("format") == "json" {
		respondJSON(w, h.logger, http.StatusOK, sales)
		return
	}

	data, err := report.BuildSalesWorkbook(sales)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate workbook", slog.String("error", err.Error()))
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to generate Excel file")
		return
	}

	filename := fmt.Sprintf("sales_export_%s.xlsx", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	if _, err := w.Write(data); err != nil {
		h.logger.ErrorContext(ctx, "failed to write Excel response", slog.String("error", err.Error()))
		return
	}

	h.logger.InfoContext(ctx, "sales export completed",
		slog.Int("sales", len(sales)),
		slog.String("filename", filename))
}

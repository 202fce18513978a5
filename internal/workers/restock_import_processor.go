// internal/workers/restock_import_processor.go
package workers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/ledongthuc/pdf"
	"github.com/shopspring/decimal"

	"github.com/ammerola/shelfstock-be/internal/core/domain"
	"github.com/ammerola/shelfstock-be/internal/core/ports"
)

// A delivery note line reads
//
//	BATCH <number> QTY <n> [EXP <yyyy-mm-dd>] PRICE <amount>
var restockLineRe = regexp.MustCompile(
	`(?i)^\s*BATCH\s+(\S+)\s+QTY\s+(\d+)(?:\s+EXP\s+(\d{4}-\d{2}-\d{2}))?\s+PRICE\s+\$?\s*([\d,]+(?:\.\d+)?)\s*$`)

// RestockImportResult summarises one delivery note import.
type RestockImportResult struct {
	Lines     int      `json:"lines"`
	Restocked int      `json:"restocked"`
	Units     int      `json:"units"`
	Skipped   []string `json:"skipped,omitempty"`
}

// RestockImportProcessor turns an uploaded supplier delivery note into new
// batches on a product.
type RestockImportProcessor struct {
	stock   ports.StockService
	storage ports.ObjectStorage
	logger  *slog.Logger
}

// NewRestockImportProcessor creates a new restock import processor
func NewRestockImportProcessor(stock ports.StockService, storage ports.ObjectStorage, logger *slog.Logger) *RestockImportProcessor {
	return &RestockImportProcessor{
		stock:   stock,
		storage: storage,
		logger:  logger.With(slog.String("processor", "restock_import")),
	}
}

// HandleRestockImport processes an import:restock-pdf task. Lines rejected
// by validation, such as a batch number that was already imported, are
// skipped so a retried task does not restock twice.
func (p *RestockImportProcessor) HandleRestockImport(ctx context.Context, t *asynq.Task) error {
	start := time.Now()

	var payload RestockImportPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}
	productID, err := uuid.Parse(payload.ProductID)
	if err != nil {
		return fmt.Errorf("invalid product id %q: %v: %w", payload.ProductID, err, asynq.SkipRetry)
	}

	log := p.logger.With(
		slog.String("object_key", payload.ObjectKey),
		slog.String("product_id", payload.ProductID))

	data, err := p.storage.Download(ctx, payload.ObjectKey)
	if err != nil {
		return fmt.Errorf("failed to download delivery note: %w", err)
	}

	lines, err := ExtractPDFLines(data)
	if err != nil {
		return fmt.Errorf("failed to read delivery note: %v: %w", err, asynq.SkipRetry)
	}

	batches, skipped := ParseRestockLines(lines)
	result := RestockImportResult{Lines: len(batches) + len(skipped), Skipped: skipped}

	for _, nb := range batches {
		batch, err := p.stock.Restock(ctx, productID, nb)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("product %s: %v: %w", payload.ProductID, err, asynq.SkipRetry)
			}
			if errors.Is(err, domain.ErrValidation) {
				result.Skipped = append(result.Skipped, fmt.Sprintf("%s: %v", nb.BatchNumber, err))
				continue
			}
			return fmt.Errorf("failed to restock batch %s: %w", nb.BatchNumber, err)
		}
		result.Restocked++
		result.Units += batch.Quantity
	}

	log.InfoContext(ctx, "delivery note imported",
		slog.Int("lines", result.Lines),
		slog.Int("restocked", result.Restocked),
		slog.Int("units", result.Units),
		slog.Int("skipped", len(result.Skipped)),
		slog.Duration("duration", time.Since(start)))

	if err := writeResult(t, result); err != nil {
		log.WarnContext(ctx, "failed to record import result", slog.String("error", err.Error()))
	}
	return nil
}

// ExtractPDFLines returns the text lines of every page of a PDF document.
func ExtractPDFLines(data []byte) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	var lines []string
	for pageNum := 1; pageNum <= r.NumPage(); pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		rows, err := page.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", pageNum, err)
		}
		for _, row := range rows {
			var b strings.Builder
			for i, word := range row.Content {
				if i > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(strings.TrimSpace(word.S))
			}
			if line := strings.TrimSpace(b.String()); line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines, nil
}

// ParseRestockLines extracts batches from delivery note lines. Lines that
// look like batch lines but do not parse are returned as skipped; other text
// is ignored.
func ParseRestockLines(lines []string) ([]domain.NewBatch, []string) {
	var batches []domain.NewBatch
	var skipped []string

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if !strings.HasPrefix(strings.ToUpper(line), "BATCH ") {
			continue
		}

		m := restockLineRe.FindStringSubmatch(line)
		if m == nil {
			skipped = append(skipped, line)
			continue
		}

		qty, err := strconv.Atoi(m[2])
		if err != nil || qty <= 0 {
			skipped = append(skipped, line)
			continue
		}

		price, err := decimal.NewFromString(strings.ReplaceAll(m[4], ",", ""))
		if err != nil {
			skipped = append(skipped, line)
			continue
		}

		nb := domain.NewBatch{
			BatchNumber: m[1],
			Quantity:    qty,
			UnitPrice:   price,
		}
		if m[3] != "" {
			expiry, err := time.Parse("2006-01-02", m[3])
			if err != nil {
				skipped = append(skipped, line)
				continue
			}
			nb.ExpiryDate = &expiry
		}
		batches = append(batches, nb)
	}

	return batches, skipped
}

// internal/workers/sales_report_processor.go
package workers

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/shelfstock-be/internal/adapters/report"
	"github.com/ammerola/shelfstock-be/internal/core/domain"
	"github.com/ammerola/shelfstock-be/internal/core/ports"
)

const (
	reportPageSize = 500
	reportLinkTTL  = 24 * time.Hour
)

// SalesReportResult describes an uploaded sales workbook.
type SalesReportResult struct {
	Key   string `json:"key"`
	URL   string `json:"url"`
	Sales int    `json:"sales"`
}

// SalesReportProcessor exports a period of sales to an xlsx workbook in
// object storage.
type SalesReportProcessor struct {
	sales   ports.SaleRepository
	storage ports.ObjectStorage
	prefix  string
	now     func() time.Time
	logger  *slog.Logger
}

// NewSalesReportProcessor creates a new sales report processor
func NewSalesReportProcessor(sales ports.SaleRepository, storage ports.ObjectStorage, prefix string, logger *slog.Logger) *SalesReportProcessor {
	return &SalesReportProcessor{
		sales:   sales,
		storage: storage,
		prefix:  prefix,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger.With(slog.String("processor", "sales_report")),
	}
}

// HandleSalesReport processes a report:sales task
func (p *SalesReportProcessor) HandleSalesReport(ctx context.Context, t *asynq.Task) error {
	var payload SalesReportPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}

	result, err := p.Generate(ctx, payload)
	if err != nil {
		return err
	}

	p.logger.InfoContext(ctx, "sales report uploaded",
		slog.String("key", result.Key),
		slog.String("url", result.URL),
		slog.Int("sales", result.Sales))

	if err := writeResult(t, result); err != nil {
		p.logger.WarnContext(ctx, "failed to record report result", slog.String("error", err.Error()))
	}
	return nil
}

// Generate builds and uploads the workbook and signs a download link for it.
func (p *SalesReportProcessor) Generate(ctx context.Context, payload SalesReportPayload) (*SalesReportResult, error) {
	from, to := p.window(payload)

	filter := domain.SaleFilter{
		PaymentMethod: payload.PaymentMethod,
		From:          &from,
		To:            &to,
		PageSize:      reportPageSize,
	}
	sales, err := CollectSales(ctx, p.sales, filter)
	if err != nil {
		return nil, err
	}

	data, err := report.BuildSalesWorkbook(sales)
	if err != nil {
		return nil, err
	}

	key := path.Join(p.prefix, fmt.Sprintf("sales_%s_%s.xlsx",
		from.Format("20060102T1504"), to.Format("20060102T1504")))
	if _, err := p.storage.Upload(ctx, key, bytes.NewReader(data), report.ContentType); err != nil {
		return nil, fmt.Errorf("failed to upload sales report: %w", err)
	}

	url, err := p.storage.GetPresignedURL(ctx, key, reportLinkTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign sales report link: %w", err)
	}

	return &SalesReportResult{Key: key, URL: url, Sales: len(sales)}, nil
}

// window defaults to the previous UTC day.
func (p *SalesReportProcessor) window(payload SalesReportPayload) (time.Time, time.Time) {
	today := p.now().Truncate(24 * time.Hour)
	from := today.AddDate(0, 0, -1)
	to := today
	if payload.From != nil {
		from = payload.From.UTC()
	}
	if payload.To != nil {
		to = payload.To.UTC()
	}
	return from, to
}

// CollectSales walks every page of a sales listing.
func CollectSales(ctx context.Context, repo ports.SaleRepository, filter domain.SaleFilter) ([]domain.SaleRecord, error) {
	filter.Page = 1
	var all []domain.SaleRecord
	for {
		page, err := repo.List(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to list sales: %w", err)
		}
		all = append(all, page.Sales...)
		if len(page.Sales) == 0 || int64(len(all)) >= page.TotalCount {
			return all, nil
		}
		filter.Page++
	}
}

// internal/workers/expiry_scan_processor.go
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	redis_a "github.com/ammerola/shelfstock-be/internal/adapters/redis_adapter"
	"github.com/ammerola/shelfstock-be/internal/core/domain"
	"github.com/ammerola/shelfstock-be/internal/core/ports"
)

// ExpiryReport lists the stocked batches expiring inside the warning window.
type ExpiryReport struct {
	GeneratedAt time.Time              `json:"generatedAt"`
	Before      time.Time              `json:"before"`
	WarningDays int                    `json:"warningDays"`
	TotalUnits  int                    `json:"totalUnits"`
	Expired     int                    `json:"expired"`
	Batches     []domain.ExpiringBatch `json:"batches"`
}

// ExpiryScanProcessor sweeps the store for batches close to expiry and caches
// the resulting report for the day.
type ExpiryScanProcessor struct {
	store       ports.BatchStore
	cache       ports.CacheRepository
	warningDays int
	now         func() time.Time
	logger      *slog.Logger
}

// NewExpiryScanProcessor creates a new expiry scan processor. cache may be nil.
func NewExpiryScanProcessor(store ports.BatchStore, cache ports.CacheRepository, warningDays int, logger *slog.Logger) *ExpiryScanProcessor {
	return &ExpiryScanProcessor{
		store:       store,
		cache:       cache,
		warningDays: warningDays,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger.With(slog.String("processor", "expiry_scan")),
	}
}

// HandleExpiryScan processes an inventory:expiry-scan task
func (p *ExpiryScanProcessor) HandleExpiryScan(ctx context.Context, t *asynq.Task) error {
	var payload ExpiryScanPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}

	report, err := p.Scan(ctx, payload.WarningDays)
	if err != nil {
		return err
	}

	if p.cache != nil {
		if err := p.cache.SetWithTTL(ctx, redis_a.ExpiryReportKey(report.GeneratedAt), report, 36*time.Hour); err != nil {
			return fmt.Errorf("failed to cache expiry report: %w", err)
		}
	}

	p.logger.InfoContext(ctx, "expiry scan completed",
		slog.Int("batches", len(report.Batches)),
		slog.Int("units", report.TotalUnits),
		slog.Int("expired", report.Expired),
		slog.Time("before", report.Before))
	return nil
}

// Scan builds the report without caching it. Zero warningDays uses the
// configured window.
func (p *ExpiryScanProcessor) Scan(ctx context.Context, warningDays int) (*ExpiryReport, error) {
	if warningDays <= 0 {
		warningDays = p.warningDays
	}
	now := p.now()
	before := now.AddDate(0, 0, warningDays)

	batches, err := p.store.ListExpiringBatches(ctx, before)
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring batches: %w", err)
	}
	if batches == nil {
		batches = []domain.ExpiringBatch{}
	}

	report := &ExpiryReport{
		GeneratedAt: now,
		Before:      before,
		WarningDays: warningDays,
		Batches:     batches,
	}
	for _, b := range batches {
		report.TotalUnits += b.Quantity
		if b.IsExpired(now) {
			report.Expired++
		}
	}
	return report, nil
}

// Latest returns today's cached report, scanning when none is cached.
func (p *ExpiryScanProcessor) Latest(ctx context.Context) (*ExpiryReport, error) {
	if p.cache != nil {
		var cached ExpiryReport
		err := p.cache.Get(ctx, redis_a.ExpiryReportKey(p.now()), &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, redis_a.ErrCacheMiss) {
			p.logger.WarnContext(ctx, "failed to read cached expiry report",
				slog.String("error", err.Error()))
		}
	}
	return p.Scan(ctx, 0)
}

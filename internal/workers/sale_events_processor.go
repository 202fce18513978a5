// internal/workers/sale_events_processor.go
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	redis_a "github.com/ammerola/shelfstock-be/internal/adapters/redis_adapter"
	"github.com/ammerola/shelfstock-be/internal/core/domain"
	"github.com/ammerola/shelfstock-be/internal/core/ports"
)

// SaleEventsProcessor runs the follow-up work of a committed sale. It drops
// cached stock views and expiry reports, counts units sold per day and raises
// a low stock alert at most once per alert window.
type SaleEventsProcessor struct {
	store             ports.BatchStore
	cache             ports.CacheRepository
	invalidator       ports.CacheInvalidator
	lowStockThreshold int
	alertWindow       time.Duration
	logger            *slog.Logger
}

// NewSaleEventsProcessor creates a new sale events processor. cache and
// invalidator may be nil.
func NewSaleEventsProcessor(
	store ports.BatchStore,
	cache ports.CacheRepository,
	invalidator ports.CacheInvalidator,
	lowStockThreshold int,
	logger *slog.Logger,
) *SaleEventsProcessor {
	return &SaleEventsProcessor{
		store:             store,
		cache:             cache,
		invalidator:       invalidator,
		lowStockThreshold: lowStockThreshold,
		alertWindow:       24 * time.Hour,
		logger:            logger.With(slog.String("processor", "sale_events")),
	}
}

// HandleSaleCommitted processes a sale:committed task
func (p *SaleEventsProcessor) HandleSaleCommitted(ctx context.Context, t *asynq.Task) error {
	var payload SaleCommittedPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}

	log := p.logger.With(slog.String("sale_id", payload.SaleID))
	log.InfoContext(ctx, "processing committed sale",
		slog.Int("lines", len(payload.Lines)),
		slog.Int("quantity", payload.TotalQuantity),
		slog.String("amount", payload.TotalAmount.StringFixed(2)))

	for _, line := range payload.Lines {
		if err := p.handleLine(ctx, log, payload, line); err != nil {
			return err
		}
	}

	// sold quantities make cached expiry reports stale
	if p.cache != nil {
		if err := p.cache.DeletePattern(ctx, redis_a.ExpiryReportPattern()); err != nil {
			log.WarnContext(ctx, "failed to drop expiry reports", slog.String("error", err.Error()))
		}
	}
	return nil
}

func (p *SaleEventsProcessor) handleLine(ctx context.Context, log *slog.Logger, sale SaleCommittedPayload, line SoldLine) error {
	productID, err := uuid.Parse(line.ProductID)
	if err != nil {
		return fmt.Errorf("invalid product id %q: %v: %w", line.ProductID, err, asynq.SkipRetry)
	}

	if p.invalidator != nil {
		if err := p.invalidator.InvalidateProduct(ctx, line.ProductID); err != nil {
			log.WarnContext(ctx, "failed to invalidate product cache",
				slog.String("product_id", line.ProductID),
				slog.String("error", err.Error()))
		}
	}

	if p.cache != nil {
		day := sale.CommittedAt
		if day.IsZero() {
			day = time.Now()
		}
		if _, err := p.cache.IncrementBy(ctx, redis_a.SoldCounterKey(line.ProductID, day), int64(line.Quantity)); err != nil {
			log.WarnContext(ctx, "failed to count units sold",
				slog.String("product_id", line.ProductID),
				slog.String("error", err.Error()))
		}
	}

	product, err := p.store.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.WarnContext(ctx, "sold product no longer exists", slog.String("product_id", line.ProductID))
			return nil
		}
		return fmt.Errorf("failed to load product %s: %w", line.ProductID, err)
	}

	if product.TotalQuantity > p.lowStockThreshold {
		return nil
	}

	if p.cache != nil {
		first, err := p.cache.SetNX(ctx, redis_a.LowStockAlertKey(line.ProductID), product.TotalQuantity, p.alertWindow)
		if err != nil {
			log.WarnContext(ctx, "failed to record low stock alert",
				slog.String("product_id", line.ProductID),
				slog.String("error", err.Error()))
		} else if !first {
			return nil
		}
	}

	log.WarnContext(ctx, "product stock is low",
		slog.String("product_id", line.ProductID),
		slog.String("product", product.Name),
		slog.Int("remaining", product.TotalQuantity),
		slog.Int("threshold", p.lowStockThreshold))
	return nil
}

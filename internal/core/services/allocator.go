// internal/core/services/allocator.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ammerola/shelfstock-be/internal/core/domain"
	"github.com/ammerola/shelfstock-be/internal/core/ports"
)

// AllocatorConfig bounds the plan-then-commit retry loop.
type AllocatorConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultAllocatorConfig returns the retry bounds used when none are configured.
func DefaultAllocatorConfig() AllocatorConfig {
	return AllocatorConfig{
		MaxAttempts:    5,
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     200 * time.Millisecond,
	}
}

// AllocateOptions tweaks a single allocation.
type AllocateOptions struct {
	// PriceOverride, when set, is charged for every unit of the line instead
	// of each batch's own price.
	PriceOverride *decimal.Decimal
}

// FefoAllocator plans FEFO deductions for one product and commits them
// through the batch store, re-planning when a concurrent writer wins.
type FefoAllocator struct {
	store  ports.BatchStore
	cfg    AllocatorConfig
	logger *slog.Logger
}

// NewFefoAllocator creates a new allocator
func NewFefoAllocator(store ports.BatchStore, cfg AllocatorConfig, logger *slog.Logger) *FefoAllocator {
	def := DefaultAllocatorConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}

	return &FefoAllocator{
		store:  store,
		cfg:    cfg,
		logger: logger.With(slog.String("service", "allocator")),
	}
}

// Allocate deducts quantity units of productID in FEFO order and returns the
// committed allocation. Nothing is deducted when an error is returned.
func (a *FefoAllocator) Allocate(ctx context.Context, productID uuid.UUID, quantity int, opts AllocateOptions) (*domain.AllocationLine, error) {
	if quantity <= 0 {
		return nil, domain.NewValidationError("quantity", "quantity must be positive")
	}
	if opts.PriceOverride != nil && opts.PriceOverride.IsNegative() {
		return nil, domain.NewValidationError("price", "price cannot be negative")
	}

	var (
		line      *domain.AllocationLine
		attempts  int
		lastCause error
	)

	operation := func() error {
		attempts++

		batches, err := a.store.GetBatchesForProduct(ctx, productID)
		if err != nil {
			return backoff.Permanent(err)
		}

		plan, err := PlanFEFO(productID, batches, quantity, opts.PriceOverride)
		if err != nil {
			return backoff.Permanent(err)
		}

		err = a.store.ApplyDeduction(ctx, productID, plan.Deltas())
		if err == nil {
			line = plan
			return nil
		}

		// A commit rejected for stale versions or stock consumed since the
		// read is retried against fresh state.
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrInsufficientStock) {
			lastCause = err
			a.logger.DebugContext(ctx, "deduction commit rejected, re-planning",
				slog.String("product_id", productID.String()),
				slog.Int("attempt", attempts),
				slog.String("error", err.Error()))
			return err
		}

		return backoff.Permanent(err)
	}

	err := backoff.Retry(operation, a.retryPolicy(ctx))
	if err == nil {
		a.logger.InfoContext(ctx, "allocated stock",
			slog.String("product_id", productID.String()),
			slog.Int("quantity", quantity),
			slog.Int("batches", len(line.Allocations)),
			slog.Int("attempts", attempts),
			slog.String("amount", line.TotalAmount.StringFixed(2)))
		return line, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, &domain.ConflictError{ProductID: productID, Attempts: attempts, Err: ctxErr}
	}

	if lastCause != nil && errors.Is(err, lastCause) {
		a.logger.WarnContext(ctx, "allocation retries exhausted",
			slog.String("product_id", productID.String()),
			slog.Int("attempts", attempts))
		return nil, &domain.ConflictError{
			ProductID: productID,
			Attempts:  attempts,
			Err:       fmt.Errorf("last commit rejected: %s", lastCause.Error()),
		}
	}

	return nil, err
}

func (a *FefoAllocator) retryPolicy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = a.cfg.InitialBackoff
	exp.MaxInterval = a.cfg.MaxBackoff
	exp.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(a.cfg.MaxAttempts-1)), ctx)
}

// PlanFEFO computes the FEFO deduction plan for requested units over
// batches. It does not touch any store. Batches are walked soonest expiry
// first; empty batches are skipped and a shortfall fails the whole plan.
func PlanFEFO(productID uuid.UUID, batches []domain.Batch, requested int, priceOverride *decimal.Decimal) (*domain.AllocationLine, error) {
	if requested <= 0 {
		return nil, domain.NewValidationError("quantity", "quantity must be positive")
	}

	sorted := make([]domain.Batch, len(batches))
	copy(sorted, batches)
	domain.SortFEFO(sorted)

	line := &domain.AllocationLine{
		ProductID:         productID,
		RequestedQuantity: requested,
		Allocations:       make([]domain.BatchAllocation, 0, 2),
		TotalAmount:       decimal.Zero,
	}

	remaining := requested
	for _, b := range sorted {
		if remaining == 0 {
			break
		}
		take := min(b.Quantity, remaining)
		if take <= 0 {
			continue
		}

		price := b.UnitPrice
		if priceOverride != nil {
			price = *priceOverride
		}
		amount := price.Mul(decimal.NewFromInt(int64(take)))

		line.Allocations = append(line.Allocations, domain.BatchAllocation{
			BatchID:     b.ID,
			BatchNumber: b.BatchNumber,
			ExpiryDate:  b.ExpiryDate,
			Quantity:    take,
			UnitPrice:   price,
			BatchPrice:  b.UnitPrice,
			Amount:      amount,
			Version:     b.Version,
		})
		line.TotalAmount = line.TotalAmount.Add(amount)
		remaining -= take
	}

	if remaining > 0 {
		return nil, &domain.InsufficientStockError{
			ProductID: productID,
			Requested: requested,
			Available: requested - remaining,
		}
	}

	return line, nil
}

// internal/core/services/sale_processor.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ammerola/shelfstock-be/internal/core/domain"
	"github.com/ammerola/shelfstock-be/internal/core/ports"
)

// LineAllocator allocates one cart line.
type LineAllocator interface {
	Allocate(ctx context.Context, productID uuid.UUID, quantity int, opts AllocateOptions) (*domain.AllocationLine, error)
}

// SaleProcessorConfig holds the sale level time limits.
type SaleProcessorConfig struct {
	// Timeout bounds the allocation of the whole cart.
	Timeout time.Duration
	// CompensationTimeout bounds the reversal of committed lines.
	CompensationTimeout time.Duration
	// MaxItems caps the number of lines in one cart.
	MaxItems int
}

// DefaultSaleProcessorConfig returns the limits used when none are configured.
func DefaultSaleProcessorConfig() SaleProcessorConfig {
	return SaleProcessorConfig{
		Timeout:             10 * time.Second,
		CompensationTimeout: 30 * time.Second,
		MaxItems:            200,
	}
}

// SaleProcessor turns a multi-line cart into one all-or-nothing sale.
type SaleProcessor struct {
	allocator LineAllocator
	store     ports.BatchStore
	sales     ports.SaleRepository
	events    ports.EventPublisher
	cache     ports.CacheInvalidator
	cfg       SaleProcessorConfig
	logger    *slog.Logger
	now       func() time.Time
}

// Statically assert that *SaleProcessor implements the SaleService interface.
var _ ports.SaleService = (*SaleProcessor)(nil)

// NewSaleProcessor creates a new sale processor. events and cache may be nil.
func NewSaleProcessor(
	allocator LineAllocator,
	store ports.BatchStore,
	sales ports.SaleRepository,
	events ports.EventPublisher,
	cache ports.CacheInvalidator,
	cfg SaleProcessorConfig,
	logger *slog.Logger,
) *SaleProcessor {
	def := DefaultSaleProcessorConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.CompensationTimeout <= 0 {
		cfg.CompensationTimeout = def.CompensationTimeout
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = def.MaxItems
	}

	return &SaleProcessor{
		allocator: allocator,
		store:     store,
		sales:     sales,
		events:    events,
		cache:     cache,
		cfg:       cfg,
		logger:    logger.With(slog.String("service", "sales")),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// saleLine is a validated cart line.
type saleLine struct {
	index     int
	productID uuid.UUID
	quantity  int
	price     *decimal.Decimal
}

// ProcessSale allocates every line of the cart or none of them. When a line
// fails, lines committed earlier in the same call are restored before the
// error is returned.
func (p *SaleProcessor) ProcessSale(ctx context.Context, req domain.SaleRequest) (*domain.SaleRecord, error) {
	lines, paymentMethod, err := p.validate(req)
	if err != nil {
		return nil, err
	}

	sale := &domain.SaleRecord{
		ID:            uuid.New(),
		Status:        domain.SaleReceived,
		PaymentMethod: paymentMethod,
		Lines:         make([]domain.AllocationLine, 0, len(lines)),
		CreatedAt:     p.now(),
	}
	log := p.logger.With(slog.String("sale_id", sale.ID.String()))

	p.transition(ctx, log, sale, domain.SaleAllocating)

	allocCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	for _, l := range lines {
		line, err := p.allocator.Allocate(allocCtx, l.productID, l.quantity, AllocateOptions{PriceOverride: l.price})
		if err != nil {
			if allocCtx.Err() != nil && !errors.Is(err, domain.ErrConflict) {
				err = &domain.ConflictError{ProductID: l.productID, Err: allocCtx.Err()}
			}
			lineErr := &domain.LineError{Index: l.index, ProductID: l.productID.String(), Err: err}
			p.rollback(ctx, log, sale)
			return nil, &domain.SaleError{SaleID: sale.ID, Lines: []*domain.LineError{lineErr}}
		}
		sale.Lines = append(sale.Lines, *line)
	}

	sale.Summarize()

	record := *sale
	record.Status = domain.SaleCommitted
	if err := p.sales.Save(ctx, &record); err != nil {
		p.rollback(ctx, log, sale)
		return nil, fmt.Errorf("failed to persist sale: %w", err)
	}
	p.transition(ctx, log, sale, domain.SaleCommitted)

	log.InfoContext(ctx, "sale committed",
		slog.String("status", string(sale.Status)),
		slog.Int("lines", len(sale.Lines)),
		slog.Int("quantity", sale.TotalQuantity),
		slog.String("amount", sale.TotalAmount.StringFixed(2)),
		slog.String("payment_method", sale.PaymentMethod))

	p.afterCommit(ctx, log, sale)

	return sale, nil
}

// GetSale returns a committed sale with its batch audit.
func (p *SaleProcessor) GetSale(ctx context.Context, saleID uuid.UUID) (*domain.SaleRecord, error) {
	sale, err := p.sales.FindByID(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}
	return sale, nil
}

// ListSales returns a page of the sales history.
func (p *SaleProcessor) ListSales(ctx context.Context, filter domain.SaleFilter) (*domain.SaleList, error) {
	filter.Normalize()
	list, err := p.sales.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	return list, nil
}

func (p *SaleProcessor) validate(req domain.SaleRequest) ([]saleLine, string, error) {
	if len(req.Items) == 0 {
		return nil, "", domain.NewValidationError("items", "sale must contain at least one item")
	}
	if len(req.Items) > p.cfg.MaxItems {
		return nil, "", domain.NewValidationError("items", fmt.Sprintf("sale cannot contain more than %d items", p.cfg.MaxItems))
	}

	paymentMethod := strings.TrimSpace(req.PaymentMethod)
	lines := make([]saleLine, 0, len(req.Items))
	var failures []*domain.LineError

	for i, item := range req.Items {
		fail := func(field, msg string) {
			failures = append(failures, &domain.LineError{
				Index:     i,
				ProductID: item.ProductID,
				Err:       domain.NewValidationError(field, msg),
			})
		}

		productID, err := uuid.Parse(strings.TrimSpace(item.ProductID))
		if err != nil {
			fail("productId", "productId must be a valid UUID")
			continue
		}
		if item.Quantity <= 0 {
			fail("quantity", "quantity must be positive")
			continue
		}
		if item.Price != nil && item.Price.IsNegative() {
			fail("price", "price cannot be negative")
			continue
		}

		if method := strings.TrimSpace(item.PaymentMethod); method != "" {
			switch {
			case paymentMethod == "":
				paymentMethod = method
			case !strings.EqualFold(paymentMethod, method):
				fail("paymentMethod", "all items of a sale must use the same payment method")
				continue
			}
		}

		lines = append(lines, saleLine{index: i, productID: productID, quantity: item.Quantity, price: item.Price})
	}

	if len(failures) > 0 {
		return nil, "", &domain.SaleError{Lines: failures}
	}
	if paymentMethod == "" {
		paymentMethod = domain.DefaultPaymentMethod
	}

	return lines, strings.ToLower(paymentMethod), nil
}

// rollback restores every committed line. It runs on a context detached from
// the caller so a cancelled request still gets its stock back.
func (p *SaleProcessor) rollback(ctx context.Context, log *slog.Logger, sale *domain.SaleRecord) {
	compCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.CompensationTimeout)
	defer cancel()

	for i := len(sale.Lines) - 1; i >= 0; i-- {
		line := sale.Lines[i]
		if err := p.store.RestoreDeduction(compCtx, line.ProductID, line.Deltas()); err != nil {
			log.ErrorContext(compCtx, "failed to compensate sale line",
				slog.String("product_id", line.ProductID.String()),
				slog.Int("quantity", line.AllocatedQuantity()),
				slog.String("error", err.Error()))
			continue
		}
		log.InfoContext(compCtx, "compensated sale line",
			slog.String("product_id", line.ProductID.String()),
			slog.Int("quantity", line.AllocatedQuantity()))
	}

	restored := sale.Lines
	sale.Lines = nil
	p.transition(ctx, log, sale, domain.SaleRolledBack)
	p.invalidate(compCtx, log, restored)
}

func (p *SaleProcessor) afterCommit(ctx context.Context, log *slog.Logger, sale *domain.SaleRecord) {
	p.invalidate(ctx, log, sale.Lines)

	if p.events == nil {
		return
	}
	if err := p.events.SaleCommitted(ctx, sale); err != nil {
		log.WarnContext(ctx, "failed to publish sale committed event",
			slog.String("error", err.Error()))
	}
}

func (p *SaleProcessor) invalidate(ctx context.Context, log *slog.Logger, lines []domain.AllocationLine) {
	if p.cache == nil {
		return
	}
	seen := make(map[uuid.UUID]struct{}, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		if err := p.cache.InvalidateProduct(ctx, l.ProductID.String()); err != nil {
			log.WarnContext(ctx, "failed to invalidate product cache",
				slog.String("product_id", l.ProductID.String()),
				slog.String("error", err.Error()))
		}
	}
}

func (p *SaleProcessor) transition(ctx context.Context, log *slog.Logger, sale *domain.SaleRecord, next domain.SaleStatus) {
	if sale.Status.IsTerminal() {
		log.ErrorContext(ctx, "sale already settled",
			slog.String("status", string(sale.Status)),
			slog.String("to", string(next)))
		return
	}
	if !sale.Status.CanTransition(next) {
		log.ErrorContext(ctx, "invalid sale transition",
			slog.String("from", string(sale.Status)),
			slog.String("to", string(next)))
		return
	}
	log.DebugContext(ctx, "sale transition",
		slog.String("from", string(sale.Status)),
		slog.String("to", string(next)))
	sale.Status = next
}

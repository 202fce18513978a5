// internal/core/services/stock.go
package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ammerola/shelfstock-be/internal/core/domain"
	"github.com/ammerola/shelfstock-be/internal/core/ports"
)

// StockService handles product registration, the batch read path and restocks.
type StockService struct {
	store  ports.BatchStore
	reader ports.BatchStore
	cache  ports.CacheInvalidator
	logger *slog.Logger
}

// Statically assert that *StockService implements the StockService interface.
var _ ports.StockService = (*StockService)(nil)

// NewStockService creates a new stock service. reads are served from reader,
// which is usually a cached view over store; pass nil to read from store.
func NewStockService(store, reader ports.BatchStore, cache ports.CacheInvalidator, logger *slog.Logger) *StockService {
	if reader == nil {
		reader = store
	}
	return &StockService{
		store:  store,
		reader: reader,
		cache:  cache,
		logger: logger.With(slog.String("service", "stock")),
	}
}

// RegisterProduct stores a new product together with any initial batches.
func (s *StockService) RegisterProduct(ctx context.Context, product *domain.Product) error {
	if err := product.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	product.PrepareForStorage()
	for i := range product.Batches {
		if product.Batches[i].Quantity < 0 {
			return domain.NewValidationError("batches", "batch quantity cannot be negative")
		}
		product.Batches[i].ProductID = product.ID
	}

	if err := s.store.CreateProduct(ctx, product); err != nil {
		return fmt.Errorf("failed to register product: %w", err)
	}

	s.logger.InfoContext(ctx, "registered product",
		slog.String("product_id", product.ID.String()),
		slog.String("name", product.Name),
		slog.Int("batches", len(product.Batches)))

	return nil
}

// GetProduct returns a product with its batches in FEFO order.
func (s *StockService) GetProduct(ctx context.Context, productID uuid.UUID) (*domain.Product, error) {
	product, err := s.reader.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

// GetBatches returns the batches of a product in FEFO order.
func (s *StockService) GetBatches(ctx context.Context, productID uuid.UUID) ([]domain.Batch, error) {
	batches, err := s.reader.GetBatchesForProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to get batches: %w", err)
	}
	return batches, nil
}

// Restock appends a new batch to a product.
func (s *StockService) Restock(ctx context.Context, productID uuid.UUID, nb domain.NewBatch) (*domain.Batch, error) {
	if err := nb.Validate(); err != nil {
		return nil, err
	}

	batch, err := s.store.AddBatch(ctx, productID, nb)
	if err != nil {
		return nil, fmt.Errorf("failed to restock product: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.InvalidateProduct(ctx, productID.String()); err != nil {
			s.logger.WarnContext(ctx, "failed to invalidate product cache",
				slog.String("product_id", productID.String()),
				slog.String("error", err.Error()))
		}
	}

	s.logger.InfoContext(ctx, "restocked product",
		slog.String("product_id", productID.String()),
		slog.String("batch_id", batch.ID.String()),
		slog.String("batch_number", batch.BatchNumber),
		slog.Int("quantity", batch.Quantity))

	return batch, nil
}

// internal/core/ports/batch_store.go
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/shelfstock-be/internal/core/domain"
)

// BatchStore is the persistence port for products and their stock batches.
// It is the only writer of batch quantities.
//
// ApplyDeduction is atomic per product: either every delta is applied or none
// is. Each delta is compared against the batch version it was planned from and
// the store answers domain.ErrConflict when a batch moved in between, and
// domain.ErrInsufficientStock when a batch would go negative.
type BatchStore interface {
	CreateProduct(ctx context.Context, product *domain.Product) error
	GetProduct(ctx context.Context, productID uuid.UUID) (*domain.Product, error)
	GetBatchesForProduct(ctx context.Context, productID uuid.UUID) ([]domain.Batch, error)
	ApplyDeduction(ctx context.Context, productID uuid.UUID, deltas []domain.BatchDelta) error
	RestoreDeduction(ctx context.Context, productID uuid.UUID, deltas []domain.BatchDelta) error
	AddBatch(ctx context.Context, productID uuid.UUID, batch domain.NewBatch) (*domain.Batch, error)
	ListExpiringBatches(ctx context.Context, before time.Time) ([]domain.ExpiringBatch, error)
}

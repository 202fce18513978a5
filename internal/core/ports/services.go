// internal/core/ports/services.go
package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/ammerola/shelfstock-be/internal/core/domain"
)

// SaleService is the application port used by the HTTP layer for sales.
type SaleService interface {
	ProcessSale(ctx context.Context, req domain.SaleRequest) (*domain.SaleRecord, error)
	GetSale(ctx context.Context, saleID uuid.UUID) (*domain.SaleRecord, error)
	ListSales(ctx context.Context, filter domain.SaleFilter) (*domain.SaleList, error)
}

// StockService is the application port for the product and batch read path
// and the restock path.
type StockService interface {
	RegisterProduct(ctx context.Context, product *domain.Product) error
	GetProduct(ctx context.Context, productID uuid.UUID) (*domain.Product, error)
	GetBatches(ctx context.Context, productID uuid.UUID) ([]domain.Batch, error)
	Restock(ctx context.Context, productID uuid.UUID, batch domain.NewBatch) (*domain.Batch, error)
}

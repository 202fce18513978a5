// internal/core/ports/sale_repository.go
package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/ammerola/shelfstock-be/internal/core/domain"
)

// SaleRepository persists committed sale receipts with their batch audit.
type SaleRepository interface {
	Save(ctx context.Context, sale *domain.SaleRecord) error
	FindByID(ctx context.Context, saleID uuid.UUID) (*domain.SaleRecord, error)
	List(ctx context.Context, filter domain.SaleFilter) (*domain.SaleList, error)
}

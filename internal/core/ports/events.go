// internal/core/ports/events.go
package ports

import (
	"context"

	"github.com/ammerola/shelfstock-be/internal/core/domain"
)

// EventPublisher hands follow-up work to the background workers.
type EventPublisher interface {
	SaleCommitted(ctx context.Context, sale *domain.SaleRecord) error
	RestockImportRequested(ctx context.Context, objectKey string, productID string) error
}

// CacheInvalidator drops cached views of a product after its stock changed.
type CacheInvalidator interface {
	InvalidateProduct(ctx context.Context, productID string) error
}

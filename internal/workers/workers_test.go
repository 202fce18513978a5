// internal/workers/workers_test.go
package workers_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/shelfstock-be/internal/adapters/memory"
	redis_a "github.com/ammerola/shelfstock-be/internal/adapters/redis_adapter"
	"github.com/ammerola/shelfstock-be/internal/core/domain"
	"github.com/ammerola/shelfstock-be/test/helpers"
)

func newTestCache(t *testing.T) (*redis_a.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redis_a.NewCache(client, time.Hour, helpers.TestLogger()), mr
}

func seedProduct(t *testing.T, store *memory.BatchStore, name string, batches ...domain.NewBatch) *domain.Product {
	t.Helper()
	ctx := context.Background()

	product := &domain.Product{Name: name}
	product.PrepareForStorage()
	require.NoError(t, store.CreateProduct(ctx, product))

	for _, nb := range batches {
		_, err := store.AddBatch(ctx, product.ID, nb)
		require.NoError(t, err)
	}

	p, err := store.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	return p
}

func batchOf(number string, qty int, expiry *time.Time) domain.NewBatch {
	return domain.NewBatch{
		BatchNumber: number,
		Quantity:    qty,
		ExpiryDate:  expiry,
		UnitPrice:   decimal.NewFromInt(2),
	}
}

func daysFromNow(days int) *time.Time {
	t := time.Now().UTC().AddDate(0, 0, days)
	return &t
}

func committedSale(productID uuid.UUID, qty int, at time.Time) *domain.SaleRecord {
	sale := &domain.SaleRecord{
		ID:            uuid.New(),
		Status:        domain.SaleCommitted,
		PaymentMethod: domain.DefaultPaymentMethod,
		CreatedAt:     at,
		Lines: []domain.AllocationLine{{
			ProductID:         productID,
			RequestedQuantity: qty,
			Allocations: []domain.BatchAllocation{{
				BatchID:     uuid.New(),
				BatchNumber: "B-1",
				Quantity:    qty,
				UnitPrice:   decimal.NewFromInt(2),
				BatchPrice:  decimal.NewFromInt(2),
				Amount:      decimal.NewFromInt(int64(2 * qty)),
			}},
			TotalAmount: decimal.NewFromInt(int64(2 * qty)),
		}},
	}
	sale.Summarize()
	return sale
}

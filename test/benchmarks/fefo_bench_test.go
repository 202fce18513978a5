package benchmarks

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ammerola/shelfstock-be/internal/adapters/memory"
	"github.com/ammerola/shelfstock-be/internal/core/domain"
	"github.com/ammerola/shelfstock-be/internal/core/services"
	"github.com/ammerola/shelfstock-be/test/helpers"
)

// plentiful keeps benchmarks from running a product dry
const plentiful = 1 << 30

func benchBatches(n int) []domain.Batch {
	productID := uuid.New()
	base := time.Now().UTC()
	batches := make([]domain.Batch, 0, n)
	for i := 0; i < n; i++ {
		expiry := base.AddDate(0, 0, (i*7)%n)
		b := domain.Batch{
			ID:          uuid.New(),
			ProductID:   productID,
			BatchNumber: fmt.Sprintf("B-%04d", i),
			Quantity:    10,
			UnitPrice:   decimal.NewFromFloat(1.25),
			ReceivedAt:  base,
			Version:     1,
		}
		if i%5 != 0 {
			b.ExpiryDate = &expiry
		}
		batches = append(batches, b)
	}
	return batches
}

func BenchmarkPlanFEFO(b *testing.B) {
	for _, n := range []int{4, 64, 1024} {
		batches := benchBatches(n)
		productID := batches[0].ProductID
		requested := n * 5

		b.Run(fmt.Sprintf("batches=%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := services.PlanFEFO(productID, batches, requested, nil); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkAllocator(b *testing.B) {
	ctx := context.Background()
	log := helpers.TestLogger()

	setup := func(b *testing.B) (*services.FefoAllocator, uuid.UUID) {
		store := memory.NewBatchStore()
		p := helpers.CreateTestProduct("Bench",
			helpers.CreateTestBatch("A", plentiful, helpers.Expiry(3)),
			helpers.CreateTestBatch("B", plentiful, helpers.Expiry(9)),
		)
		if err := store.CreateProduct(ctx, p); err != nil {
			b.Fatal(err)
		}
		allocator := services.NewFefoAllocator(store, services.AllocatorConfig{
			MaxAttempts:    50,
			InitialBackoff: 10 * time.Microsecond,
			MaxBackoff:     time.Millisecond,
		}, log)
		return allocator, p.ID
	}

	b.Run("Sequential", func(b *testing.B) {
		allocator, productID := setup(b)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := allocator.Allocate(ctx, productID, 1, services.AllocateOptions{}); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("Contended", func(b *testing.B) {
		allocator, productID := setup(b)
		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				// exhausted retries under contention are expected
				_, err := allocator.Allocate(ctx, productID, 1, services.AllocateOptions{})
				if err != nil && !errors.Is(err, domain.ErrConflict) {
					b.Error(err)
					return
				}
			}
		})
	})
}

func BenchmarkProcessSale(b *testing.B) {
	ctx := context.Background()
	log := helpers.TestLogger()

	store := memory.NewBatchStore()
	var items []domain.SaleItem
	for i := 0; i < 5; i++ {
		p := helpers.CreateTestProduct(fmt.Sprintf("Bench %d", i),
			helpers.CreateTestBatch("A", plentiful, helpers.Expiry(i+1)),
		)
		if err := store.CreateProduct(ctx, p); err != nil {
			b.Fatal(err)
		}
		items = append(items, domain.SaleItem{ProductID: p.ID.String(), Quantity: 2})
	}

	allocator := services.NewFefoAllocator(store, services.DefaultAllocatorConfig(), log)
	processor := services.NewSaleProcessor(allocator, store, memory.NewSaleRepository(), nil, nil,
		services.DefaultSaleProcessorConfig(), log)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := processor.ProcessSale(ctx, domain.SaleRequest{Items: items}); err != nil {
			b.Fatal(err)
		}
	}
}

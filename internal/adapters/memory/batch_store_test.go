package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ammerola/shelfstock-be/internal/adapters/memory"
	"github.com/ammerola/shelfstock-be/internal/core/domain"
	"github.com/ammerola/shelfstock-be/test/helpers"
)

func TestBatchStore_CreateProduct(t *testing.T) {
	store := memory.NewBatchStore()
	ctx := context.Background()

	p := helpers.CreateTestProduct("Milk",
		helpers.CreateTestBatch("LATE", 2, helpers.Expiry(9)),
		helpers.CreateTestBatch("SOON", 3, helpers.Expiry(1)),
	)
	p.Batches[0].Version = 0
	require.NoError(t, store.CreateProduct(ctx, p))

	assert.Equal(t, "SOON", p.Batches[0].BatchNumber)
	assert.Equal(t, 5, p.TotalQuantity)
	for _, b := range p.Batches {
		assert.Equal(t, int64(1), b.Version)
	}

	err := store.CreateProduct(ctx, p)
	assert.ErrorIs(t, err, domain.ErrValidation)

	// snapshots are detached from the stored state
	p.Batches[0].Quantity = 100
	got, err := store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Batches[0].Quantity)
}

func TestBatchStore_CreateProductDefaultsReceivedAt(t *testing.T) {
	store := memory.NewBatchStore()
	ctx := context.Background()

	p := helpers.CreateTestProduct("Cheese",
		helpers.CreateTestBatch("SEEDED", 4, helpers.Expiry(3), func(b *domain.Batch) { b.ReceivedAt = time.Time{} }),
	)
	p.CreatedAt = time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, store.CreateProduct(ctx, p))

	batches, err := store.GetBatchesForProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.True(t, batches[0].ReceivedAt.Equal(p.CreatedAt))
}

func TestBatchStore_ReadsAreIdempotent(t *testing.T) {
	store := memory.NewBatchStore()
	ctx := context.Background()
	p := helpers.SeedProduct(t, store, "Milk",
		helpers.CreateTestBatch("b1", 3, helpers.Expiry(1)),
		helpers.CreateTestBatch("b2", 5, helpers.Expiry(2)),
		helpers.CreateTestBatch("b3", 2, nil),
	)

	first, err := store.GetBatchesForProduct(ctx, p.ID)
	require.NoError(t, err)
	second, err := store.GetBatchesForProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// mutating a returned snapshot leaves the store alone
	first[0].Quantity = 0
	third, err := store.GetBatchesForProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, second, third)
	assert.Equal(t, map[string]int{"b1": 3, "b2": 5, "b3": 2}, helpers.QuantitiesByNumber(third))
}

func TestBatchStore_ApplyDeduction(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*memory.BatchStore, *domain.Product) {
		store := memory.NewBatchStore()
		p := helpers.SeedProduct(t, store, "Milk",
			helpers.CreateTestBatch("A", 3, helpers.Expiry(1)),
			helpers.CreateTestBatch("B", 5, helpers.Expiry(2)),
		)
		return store, p
	}

	t.Run("commits_every_delta", func(t *testing.T) {
		store, p := setup(t)
		err := store.ApplyDeduction(ctx, p.ID, []domain.BatchDelta{
			{BatchID: p.Batches[0].ID, Quantity: 3, ExpectedVersion: 1},
			{BatchID: p.Batches[1].ID, Quantity: 1, ExpectedVersion: 1},
		})
		require.NoError(t, err)

		got, err := store.GetProduct(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"A": 0, "B": 4}, helpers.QuantitiesByNumber(got.Batches))
		assert.Equal(t, 4, got.TotalQuantity)
		assert.Equal(t, int64(2), got.Batches[0].Version)
	})

	tests := []struct {
		name    string
		deltas  func(p *domain.Product) []domain.BatchDelta
		wantErr error
	}{
		{
			name: "stale_version",
			deltas: func(p *domain.Product) []domain.BatchDelta {
				return []domain.BatchDelta{
					{BatchID: p.Batches[0].ID, Quantity: 1, ExpectedVersion: 1},
					{BatchID: p.Batches[1].ID, Quantity: 1, ExpectedVersion: 9},
				}
			},
			wantErr: domain.ErrConflict,
		},
		{
			name: "repeated_batch_exceeds_stock",
			deltas: func(p *domain.Product) []domain.BatchDelta {
				return []domain.BatchDelta{
					{BatchID: p.Batches[0].ID, Quantity: 2},
					{BatchID: p.Batches[0].ID, Quantity: 2},
				}
			},
			wantErr: domain.ErrInsufficientStock,
		},
		{
			name: "unknown_batch",
			deltas: func(p *domain.Product) []domain.BatchDelta {
				return []domain.BatchDelta{
					{BatchID: p.Batches[0].ID, Quantity: 1},
					{BatchID: uuid.New(), Quantity: 1},
				}
			},
			wantErr: domain.ErrNotFound,
		},
		{
			name: "non_positive_delta",
			deltas: func(p *domain.Product) []domain.BatchDelta {
				return []domain.BatchDelta{{BatchID: p.Batches[0].ID, Quantity: 0}}
			},
			wantErr: domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, p := setup(t)

			err := store.ApplyDeduction(ctx, p.ID, tt.deltas(p))
			assert.ErrorIs(t, err, tt.wantErr)

			got, err := store.GetProduct(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, map[string]int{"A": 3, "B": 5}, helpers.QuantitiesByNumber(got.Batches))
			assert.Equal(t, int64(1), got.Batches[0].Version)
		})
	}

	t.Run("unknown_product", func(t *testing.T) {
		store, _ := setup(t)
		err := store.ApplyDeduction(ctx, uuid.New(), nil)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestBatchStore_RestoreDeductionIgnoresVersions(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBatchStore()
	p := helpers.SeedProduct(t, store, "Milk", helpers.CreateTestBatch("A", 3, nil))
	delta := []domain.BatchDelta{{BatchID: p.Batches[0].ID, Quantity: 2, ExpectedVersion: 1}}

	require.NoError(t, store.ApplyDeduction(ctx, p.ID, delta))
	require.NoError(t, store.RestoreDeduction(ctx, p.ID, delta))

	got, err := store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalQuantity)
	assert.Equal(t, int64(3), got.Batches[0].Version)
}

func TestBatchStore_AddBatch(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBatchStore()
	p := helpers.SeedProduct(t, store, "Milk", helpers.CreateTestBatch("A", 3, helpers.Expiry(5)))

	b, err := store.AddBatch(ctx, p.ID, domain.NewBatch{
		BatchNumber: "B", Quantity: 2, ExpiryDate: helpers.Expiry(1), UnitPrice: decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	assert.Equal(t, p.ID, b.ProductID)

	_, err = store.AddBatch(ctx, p.ID, domain.NewBatch{BatchNumber: "B", Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = store.AddBatch(ctx, uuid.New(), domain.NewBatch{Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := store.GetBatchesForProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[0].BatchNumber)
}

func TestBatchStore_ListExpiringBatches(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBatchStore()
	helpers.SeedProduct(t, store, "Milk",
		helpers.CreateTestBatch("M-SOON", 1, helpers.Expiry(2)),
		helpers.CreateTestBatch("M-EMPTY", 0, helpers.Expiry(1)),
		helpers.CreateTestBatch("M-OPEN", 4, nil),
	)
	helpers.SeedProduct(t, store, "Cream",
		helpers.CreateTestBatch("C-PAST", 2, helpers.Expiry(-3)),
		helpers.CreateTestBatch("C-LATE", 2, helpers.Expiry(40)),
	)

	got, err := store.ListExpiringBatches(ctx, time.Now().AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "C-PAST", got[0].BatchNumber)
	assert.Equal(t, "Cream", got[0].ProductName)
	assert.Equal(t, "M-SOON", got[1].BatchNumber)
}

func TestBatchStore_CancelledContext(t *testing.T) {
	store := memory.NewBatchStore()
	p := helpers.SeedProduct(t, store, "Milk", helpers.CreateTestBatch("A", 3, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.GetProduct(ctx, p.ID)
	assert.ErrorIs(t, err, context.Canceled)
	err = store.ApplyDeduction(ctx, p.ID, []domain.BatchDelta{{BatchID: p.Batches[0].ID, Quantity: 1}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBatchStore_ConcurrentDeductions(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBatchStore()
	p := helpers.SeedProduct(t, store, "Milk", helpers.CreateTestBatch("A", 40, nil))
	batchID := p.Batches[0].ID

	var g errgroup.Group
	for i := 0; i < 60; i++ {
		g.Go(func() error {
			// unversioned deltas only race on quantity
			_ = store.ApplyDeduction(ctx, p.ID, []domain.BatchDelta{{BatchID: batchID, Quantity: 1}})
			return nil
		})
	}
	require.NoError(t, g.Wait())

	got, err := store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.TotalQuantity)
	assert.Equal(t, int64(41), got.Batches[0].Version)
}

package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/shelfstock-be/internal/adapters/memory"
	"github.com/ammerola/shelfstock-be/internal/core/domain"
)

func recordAt(at time.Time, method string, products ...uuid.UUID) *domain.SaleRecord {
	s := &domain.SaleRecord{
		ID:            uuid.New(),
		Status:        domain.SaleCommitted,
		PaymentMethod: method,
		CreatedAt:     at,
	}
	for _, p := range products {
		s.Lines = append(s.Lines, domain.AllocationLine{
			ProductID:         p,
			RequestedQuantity: 1,
			Allocations: []domain.BatchAllocation{
				{BatchID: uuid.New(), BatchNumber: "A", Quantity: 1, UnitPrice: decimal.NewFromInt(2), Amount: decimal.NewFromInt(2)},
			},
			TotalAmount: decimal.NewFromInt(2),
		})
	}
	s.Summarize()
	return s
}

func TestSaleRepository_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewSaleRepository()
	sale := recordAt(time.Now().UTC(), "cash", uuid.New())

	require.NoError(t, repo.Save(ctx, sale))
	assert.ErrorIs(t, repo.Save(ctx, sale), domain.ErrValidation)

	pending := recordAt(time.Now().UTC(), "cash", uuid.New())
	pending.Status = domain.SaleAllocating
	assert.ErrorIs(t, repo.Save(ctx, pending), domain.ErrValidation)
	_, err := repo.FindByID(ctx, pending.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	sale.Lines[0].Allocations[0].Quantity = 99
	got, err := repo.FindByID(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Lines[0].Allocations[0].Quantity)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSaleRepository_List(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewSaleRepository()
	base := time.Date(2030, 3, 10, 12, 0, 0, 0, time.UTC)
	milk, bread := uuid.New(), uuid.New()

	s1 := recordAt(base, "cash", milk)
	s2 := recordAt(base.Add(time.Hour), "card", bread)
	s3 := recordAt(base.Add(2*time.Hour), "cash", milk, bread)
	for _, s := range []*domain.SaleRecord{s1, s2, s3} {
		require.NoError(t, repo.Save(ctx, s))
	}

	ids := func(list *domain.SaleList) []uuid.UUID {
		out := make([]uuid.UUID, 0, len(list.Sales))
		for _, s := range list.Sales {
			out = append(out, s.ID)
		}
		return out
	}
	from := base.Add(30 * time.Minute)
	to := base.Add(2 * time.Hour)

	tests := []struct {
		name      string
		filter    domain.SaleFilter
		wantIDs   []uuid.UUID
		wantTotal int64
	}{
		{name: "newest_first", filter: domain.SaleFilter{}, wantIDs: []uuid.UUID{s3.ID, s2.ID, s1.ID}, wantTotal: 3},
		{name: "by_product", filter: domain.SaleFilter{ProductID: &milk}, wantIDs: []uuid.UUID{s3.ID, s1.ID}, wantTotal: 2},
		{name: "by_payment_method", filter: domain.SaleFilter{PaymentMethod: "CARD"}, wantIDs: []uuid.UUID{s2.ID}, wantTotal: 1},
		{name: "half_open_range", filter: domain.SaleFilter{From: &from, To: &to}, wantIDs: []uuid.UUID{s2.ID}, wantTotal: 1},
		{name: "second_page", filter: domain.SaleFilter{Page: 2, PageSize: 2}, wantIDs: []uuid.UUID{s1.ID}, wantTotal: 3},
		{name: "past_last_page", filter: domain.SaleFilter{Page: 5, PageSize: 2}, wantIDs: []uuid.UUID{}, wantTotal: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.wantIDs, ids(list))
			assert.Equal(t, tt.wantTotal, list.TotalCount)
		})
	}
}

package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/shelfstock-be/internal/core/domain"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestSortFEFO(t *testing.T) {
	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		batches []domain.Batch
		want    []string
	}{
		{
			name: "earliest_expiry_first",
			batches: []domain.Batch{
				{BatchNumber: "late", ExpiryDate: date(2026, 6, 1), ReceivedAt: base},
				{BatchNumber: "early", ExpiryDate: date(2026, 2, 1), ReceivedAt: base},
				{BatchNumber: "mid", ExpiryDate: date(2026, 4, 1), ReceivedAt: base},
			},
			want: []string{"early", "mid", "late"},
		},
		{
			name: "undated_batches_sort_last",
			batches: []domain.Batch{
				{BatchNumber: "undated", ReceivedAt: base},
				{BatchNumber: "dated", ExpiryDate: date(2030, 1, 1), ReceivedAt: base.Add(time.Hour)},
			},
			want: []string{"dated", "undated"},
		},
		{
			name: "same_expiry_falls_back_to_receipt_order",
			batches: []domain.Batch{
				{BatchNumber: "second", ExpiryDate: date(2026, 3, 1), ReceivedAt: base.Add(2 * time.Hour)},
				{BatchNumber: "first", ExpiryDate: date(2026, 3, 1), ReceivedAt: base},
			},
			want: []string{"first", "second"},
		},
		{
			name: "undated_batches_in_receipt_order",
			batches: []domain.Batch{
				{BatchNumber: "newer", ReceivedAt: base.Add(time.Hour)},
				{BatchNumber: "older", ReceivedAt: base},
			},
			want: []string{"older", "newer"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			domain.SortFEFO(tt.batches)

			got := make([]string, 0, len(tt.batches))
			for _, b := range tt.batches {
				got = append(got, b.BatchNumber)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLessFEFO_IDBreaksFullTies(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := domain.Batch{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), ReceivedAt: at}
	b := domain.Batch{ID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), ReceivedAt: at}

	assert.True(t, domain.LessFEFO(a, b))
	assert.False(t, domain.LessFEFO(b, a))
}

func TestProduct_PrepareForStorage(t *testing.T) {
	p := &domain.Product{
		Name: "Milk 1L",
		Batches: []domain.Batch{
			{Quantity: 3},
			{Quantity: 4},
		},
	}

	p.PrepareForStorage()

	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.False(t, p.CreatedAt.IsZero())
	assert.Equal(t, 7, p.TotalQuantity)
}

func TestProduct_Validate(t *testing.T) {
	negative := decimal.NewFromInt(-1)

	tests := []struct {
		name    string
		product domain.Product
		wantErr bool
	}{
		{name: "valid", product: domain.Product{Name: "Bread"}},
		{name: "missing_name", product: domain.Product{Name: "  "}, wantErr: true},
		{name: "negative_price", product: domain.Product{Name: "Bread", UnitPrice: &negative}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.product.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrValidation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNewBatch_Build(t *testing.T) {
	productID := uuid.New()
	nb := domain.NewBatch{Quantity: 5, UnitPrice: decimal.NewFromInt(2)}

	require.NoError(t, nb.Validate())
	b := nb.Build(productID)

	assert.Equal(t, productID, b.ProductID)
	assert.Equal(t, int64(1), b.Version)
	assert.NotEmpty(t, b.BatchNumber)
	assert.False(t, b.ReceivedAt.IsZero())

	bad := domain.NewBatch{Quantity: 0}
	assert.ErrorIs(t, bad.Validate(), domain.ErrValidation)
}

func TestBatch_IsExpired(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, domain.Batch{ExpiryDate: date(2026, 4, 30)}.IsExpired(now))
	assert.False(t, domain.Batch{ExpiryDate: date(2026, 5, 2)}.IsExpired(now))
	assert.False(t, domain.Batch{}.IsExpired(now))
}

func TestErrors_MatchSentinels(t *testing.T) {
	productID := uuid.New()

	insufficient := &domain.InsufficientStockError{ProductID: productID, Requested: 11, Available: 10}
	sale := &domain.SaleError{Lines: []*domain.LineError{
		{Index: 1, ProductID: productID.String(), Err: insufficient},
	}}

	assert.ErrorIs(t, sale, domain.ErrInsufficientStock)
	assert.NotErrorIs(t, sale, domain.ErrConflict)

	var target *domain.InsufficientStockError
	require.True(t, errors.As(sale, &target))
	assert.Equal(t, 10, target.Available)
	assert.Contains(t, sale.Error(), "line 1")

	assert.ErrorIs(t, domain.NewNotFoundError("product", productID), domain.ErrNotFound)
	assert.ErrorIs(t, &domain.ConflictError{ProductID: productID, Attempts: 3}, domain.ErrConflict)
}

func TestSaleStatus_Transitions(t *testing.T) {
	assert.True(t, domain.SaleReceived.CanTransition(domain.SaleAllocating))
	assert.True(t, domain.SaleAllocating.CanTransition(domain.SaleCommitted))
	assert.True(t, domain.SaleAllocating.CanTransition(domain.SaleRolledBack))
	assert.False(t, domain.SaleCommitted.CanTransition(domain.SaleRolledBack))
	assert.False(t, domain.SaleRolledBack.CanTransition(domain.SaleAllocating))
	assert.True(t, domain.SaleCommitted.IsTerminal())
}

func TestSaleRecord_Summarize(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	sale := domain.SaleRecord{Lines: []domain.AllocationLine{
		{ProductID: a, Allocations: []domain.BatchAllocation{{Quantity: 3}, {Quantity: 2}}, TotalAmount: decimal.NewFromInt(12)},
		{ProductID: b, Allocations: []domain.BatchAllocation{{Quantity: 1}}, TotalAmount: decimal.NewFromFloat(4.5)},
		{ProductID: a, Allocations: []domain.BatchAllocation{{Quantity: 1}}, TotalAmount: decimal.NewFromInt(2)},
	}}

	sale.Summarize()

	assert.Equal(t, 7, sale.TotalQuantity)
	assert.True(t, decimal.NewFromFloat(18.5).Equal(sale.TotalAmount))
	assert.Equal(t, []uuid.UUID{a, b}, sale.ProductIDs())
}

func TestSaleFilter_Normalize(t *testing.T) {
	f := domain.SaleFilter{PaymentMethod: " Card ", PageSize: 10000}
	f.Normalize()

	assert.Equal(t, "card", f.PaymentMethod)
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 500, f.PageSize)
	assert.Equal(t, 0, f.Offset())
}

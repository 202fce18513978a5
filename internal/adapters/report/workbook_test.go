package report_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"

	"github.com/ammerola/shelfstock-be/internal/adapters/report"
	"github.com/ammerola/shelfstock-be/internal/core/domain"
)

func TestBuildSalesWorkbook(t *testing.T) {
	expiry := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	sale := domain.SaleRecord{
		ID:            uuid.New(),
		Status:        domain.SaleCommitted,
		PaymentMethod: "cash",
		CreatedAt:     time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC),
		Lines: []domain.AllocationLine{{
			ProductID:         uuid.New(),
			RequestedQuantity: 5,
			TotalAmount:       decimal.NewFromInt(12),
			Allocations: []domain.BatchAllocation{
				{BatchID: uuid.New(), BatchNumber: "B-1", ExpiryDate: &expiry, Quantity: 3,
					UnitPrice: decimal.NewFromInt(2), BatchPrice: decimal.NewFromInt(2), Amount: decimal.NewFromInt(6)},
				{BatchID: uuid.New(), BatchNumber: "B-2", Quantity: 2,
					UnitPrice: decimal.NewFromInt(3), BatchPrice: decimal.NewFromInt(3), Amount: decimal.NewFromInt(6)},
			},
		}},
	}
	sale.Summarize()

	data, err := report.BuildSalesWorkbook([]domain.SaleRecord{sale})
	require.NoError(t, err)
	require.NotEmpty(t, data)

	file, err := xlsx.OpenBinary(data)
	require.NoError(t, err)
	require.Len(t, file.Sheets, 2)

	summary := file.Sheet["Sales"]
	require.NotNil(t, summary)
	assert.Equal(t, 2, summary.MaxRow)

	allocations := file.Sheet["Allocations"]
	require.NotNil(t, allocations)
	assert.Equal(t, 3, allocations.MaxRow)

	header, err := allocations.Row(0)
	require.NoError(t, err)
	assert.Equal(t, "Batch Number", header.GetCell(4).Value)

	first, err := allocations.Row(1)
	require.NoError(t, err)
	assert.Equal(t, "B-1", first.GetCell(4).Value)
	assert.Equal(t, "2026-07-01", first.GetCell(6).Value)
	assert.Equal(t, "3", first.GetCell(7).Value)

	second, err := allocations.Row(2)
	require.NoError(t, err)
	assert.Equal(t, "", second.GetCell(6).Value)
	amount, err := decimal.NewFromString(second.GetCell(10).Value)
	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.NewFromInt(6)))
}

func TestBuildSalesWorkbook_Empty(t *testing.T) {
	data, err := report.BuildSalesWorkbook(nil)
	require.NoError(t, err)

	file, err := xlsx.OpenBinary(data)
	require.NoError(t, err)
	assert.Equal(t, 1, file.Sheet["Sales"].MaxRow)
}

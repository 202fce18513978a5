package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"

	"github.com/ammerola/shelfstock-be/internal/adapters/memory"
	"github.com/ammerola/shelfstock-be/internal/core/services"
	"github.com/ammerola/shelfstock-be/test/helpers"
)

func writeCatalog(t *testing.T, rows ...[]string) string {
	t.Helper()

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Catalog")
	require.NoError(t, err)

	header := sheet.AddRow()
	for _, h := range []string{"Key", "Name", "Barcode", "Category", "Perishable", "Unit price"} {
		header.AddCell().SetString(h)
	}
	for _, values := range rows {
		row := sheet.AddRow()
		for _, v := range values {
			row.AddCell().SetString(v)
		}
	}

	path := filepath.Join(t.TempDir(), "catalog.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestLoadCatalog(t *testing.T) {
	path := writeCatalog(t,
		[]string{"milk", "Whole Milk", "4006381333931", "dairy", "true", "$1.25"},
		[]string{"", "ignored without key"},
		[]string{"SALT", "Sea Salt", "", "pantry", "", ""},
	)

	entries, err := loadCatalog(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "MILK", entries[0].Key)
	assert.Equal(t, "Whole Milk", entries[0].Name)
	assert.True(t, entries[0].Perishable)
	require.NotNil(t, entries[0].UnitPrice)
	assert.Equal(t, "1.25", entries[0].UnitPrice.StringFixed(2))

	assert.False(t, entries[1].Perishable)
	assert.Nil(t, entries[1].UnitPrice)
}

func TestLoadCatalog_RejectsBadRows(t *testing.T) {
	tests := []struct {
		name    string
		rows    [][]string
		wantErr string
	}{
		{
			name:    "duplicate_key",
			rows:    [][]string{{"MILK", "Milk"}, {"milk", "Other milk"}},
			wantErr: "duplicate key MILK",
		},
		{
			name:    "bad_price",
			rows:    [][]string{{"MILK", "Milk", "", "", "", "cheap"}},
			wantErr: "invalid unit price",
		},
		{
			name:    "bad_flag",
			rows:    [][]string{{"MILK", "Milk", "", "", "maybe"}},
			wantErr: "invalid perishable flag",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadCatalog(writeCatalog(t, tt.rows...))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDeliveryKey(t *testing.T) {
	assert.Equal(t, "MILK", deliveryKey("/notes/milk_2030-01-14.pdf"))
	assert.Equal(t, "SALT", deliveryKey("SALT.pdf"))
}

func TestSeeder_RegisterCatalogIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBatchStore()
	state := loadState(filepath.Join(t.TempDir(), "missing.json"))

	s := &seeder{
		stock:  services.NewStockService(store, nil, nil, helpers.TestLogger()),
		state:  state,
		logger: helpers.TestLogger(),
	}
	entries := []catalogEntry{{Key: "MILK", Name: "Milk"}, {Key: "BAD"}}

	s.registerCatalog(ctx, entries)
	assert.Equal(t, 1, s.products)
	assert.Equal(t, []string{"BAD"}, s.failures)
	require.Contains(t, state.Products, "MILK")

	s.registerCatalog(ctx, entries[:1])
	assert.Equal(t, 1, s.products)

	statePath := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, state.save(statePath))
	reloaded := loadState(statePath)
	assert.Equal(t, state.Products, reloaded.Products)

	err := s.restockFrom(ctx, "/notes/BREAD_1.pdf")
	assert.ErrorContains(t, err, "no catalog product for key BREAD")
}

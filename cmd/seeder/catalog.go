package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v3"

	"github.com/ammerola/shelfstock-be/internal/core/domain"
)

// catalogEntry is one row of the product catalog workbook:
// Key | Name | Barcode | Category | Perishable | Unit price
type catalogEntry struct {
	Key        string
	Name       string
	Barcode    string
	Category   string
	Perishable bool
	UnitPrice  *decimal.Decimal
}

func (e catalogEntry) product() *domain.Product {
	return &domain.Product{
		Name:       e.Name,
		Barcode:    e.Barcode,
		Category:   e.Category,
		Perishable: e.Perishable,
		UnitPrice:  e.UnitPrice,
	}
}

// loadCatalog reads the first sheet of the workbook, skipping the header row
// and rows without a key
func loadCatalog(path string) ([]catalogEntry, error) {
	file, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	if len(file.Sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in catalog file")
	}
	sheet := file.Sheets[0]

	var entries []catalogEntry
	seen := make(map[string]bool)
	rowIdx := 0
	err = sheet.ForEachRow(func(r *xlsx.Row) error {
		rowIdx++
		if rowIdx == 1 {
			return nil
		}

		get := func(i int) string {
			c := r.GetCell(i)
			if c == nil {
				return ""
			}
			if s, err := c.FormattedValue(); err == nil {
				return strings.TrimSpace(s)
			}
			return strings.TrimSpace(c.String())
		}

		key := strings.ToUpper(get(0))
		if key == "" {
			return nil
		}
		if seen[key] {
			return fmt.Errorf("row %d: duplicate key %s", rowIdx, key)
		}
		seen[key] = true

		entry := catalogEntry{
			Key:      key,
			Name:     get(1),
			Barcode:  get(2),
			Category: get(3),
		}
		if raw := get(4); raw != "" {
			perishable, err := strconv.ParseBool(strings.ToLower(raw))
			if err != nil {
				return fmt.Errorf("row %d: invalid perishable flag %q", rowIdx, raw)
			}
			entry.Perishable = perishable
		}
		if raw := get(5); raw != "" {
			price, err := decimal.NewFromString(strings.TrimPrefix(raw, "$"))
			if err != nil {
				return fmt.Errorf("row %d: invalid unit price %q", rowIdx, raw)
			}
			entry.UnitPrice = &price
		}

		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return entries, nil
}

// deliveryKey maps a delivery note file name such as MILK_2030-01-14.pdf to
// the catalog key it restocks
func deliveryKey(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if i := strings.IndexByte(name, '_'); i >= 0 {
		name = name[:i]
	}
	return strings.ToUpper(strings.TrimSpace(name))
}

// seederState tracks what earlier runs already loaded
type seederState struct {
	Products       map[string]string `json:"products"`
	ProcessedNotes []string          `json:"processed_notes"`
	LastUpdate     time.Time         `json:"last_update"`
}

func loadState(path string) *seederState {
	state := &seederState{Products: map[string]string{}}
	data, err := os.ReadFile(path)
	if err != nil {
		return state
	}
	if err := json.Unmarshal(data, state); err != nil || state.Products == nil {
		return &seederState{Products: map[string]string{}}
	}
	return state
}

func (s *seederState) processed(note string) bool {
	for _, n := range s.ProcessedNotes {
		if n == note {
			return true
		}
	}
	return false
}

func (s *seederState) save(path string) error {
	s.LastUpdate = time.Now().UTC()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

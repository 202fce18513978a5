// internal/adapters/memory/sale_repository.go
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ammerola/shelfstock-be/internal/core/domain"
	"github.com/ammerola/shelfstock-be/internal/core/ports"
)

// SaleRepository keeps sale receipts in memory.
type SaleRepository struct {
	mu    sync.RWMutex
	sales []domain.SaleRecord
	byID  map[uuid.UUID]int
}

var _ ports.SaleRepository = (*SaleRepository)(nil)

func NewSaleRepository() *SaleRepository {
	return &SaleRepository{byID: make(map[uuid.UUID]int)}
}

func (r *SaleRepository) Save(ctx context.Context, sale *domain.SaleRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !sale.Status.IsTerminal() {
		return domain.NewValidationError("status", "only settled sales are recorded")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[sale.ID]; exists {
		return domain.NewValidationError("id", "sale already recorded")
	}
	r.byID[sale.ID] = len(r.sales)
	r.sales = append(r.sales, cloneSale(*sale))
	return nil
}

func (r *SaleRepository) FindByID(ctx context.Context, saleID uuid.UUID) (*domain.SaleRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byID[saleID]
	if !ok {
		return nil, domain.NewNotFoundError("sale", saleID)
	}
	sale := cloneSale(r.sales[i])
	return &sale, nil
}

// List returns matching sales, newest first.
func (r *SaleRepository) List(ctx context.Context, filter domain.SaleFilter) (*domain.SaleList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filter.Normalize()

	r.mu.RLock()
	matched := make([]domain.SaleRecord, 0)
	for _, s := range r.sales {
		if matches(s, filter) {
			matched = append(matched, cloneSale(s))
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	result := &domain.SaleList{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: int64(len(matched)),
		Sales:      []domain.SaleRecord{},
	}
	start := filter.Offset()
	if start < len(matched) {
		end := min(start+filter.PageSize, len(matched))
		result.Sales = matched[start:end]
	}
	return result, nil
}

func matches(s domain.SaleRecord, f domain.SaleFilter) bool {
	if f.PaymentMethod != "" && !strings.EqualFold(s.PaymentMethod, f.PaymentMethod) {
		return false
	}
	if f.From != nil && s.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !s.CreatedAt.Before(*f.To) {
		return false
	}
	if f.ProductID != nil {
		for _, l := range s.Lines {
			if l.ProductID == *f.ProductID {
				return true
			}
		}
		return false
	}
	return true
}

func cloneSale(s domain.SaleRecord) domain.SaleRecord {
	lines := make([]domain.AllocationLine, len(s.Lines))
	for i, l := range s.Lines {
		allocs := make([]domain.BatchAllocation, len(l.Allocations))
		copy(allocs, l.Allocations)
		l.Allocations = allocs
		lines[i] = l
	}
	s.Lines = lines
	return s
}

// internal/adapters/memory/batch_store.go
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/shelfstock-be/internal/core/domain"
	"github.com/ammerola/shelfstock-be/internal/core/ports"
)

// productEntry guards one product. Writers on different products never
// contend with each other.
type productEntry struct {
	mu      sync.Mutex
	product domain.Product
}

// BatchStore is an in-process BatchStore. Deductions are checked in full
// under the product's lock before any batch is touched.
type BatchStore struct {
	mu       sync.RWMutex
	products map[uuid.UUID]*productEntry
}

// Statically assert that *BatchStore implements the BatchStore interface.
var _ ports.BatchStore = (*BatchStore)(nil)

// NewBatchStore creates an empty store.
func NewBatchStore() *BatchStore {
	return &BatchStore{products: make(map[uuid.UUID]*productEntry)}
}

func (s *BatchStore) entry(productID uuid.UUID) (*productEntry, error) {
	s.mu.RLock()
	e, ok := s.products[productID]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.NewNotFoundError("product", productID)
	}
	return e, nil
}

// CreateProduct registers a product and its initial batches.
func (s *BatchStore) CreateProduct(ctx context.Context, product *domain.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p := cloneProduct(*product)
	for i := range p.Batches {
		if p.Batches[i].ID == uuid.Nil {
			p.Batches[i].ID = uuid.New()
		}
		if p.Batches[i].Version == 0 {
			p.Batches[i].Version = 1
		}
		if p.Batches[i].ReceivedAt.IsZero() {
			p.Batches[i].ReceivedAt = p.CreatedAt
		}
		p.Batches[i].ProductID = p.ID
	}
	domain.SortFEFO(p.Batches)
	p.RecomputeTotal()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.products[p.ID]; exists {
		return domain.NewValidationError("id", "product already exists")
	}
	s.products[p.ID] = &productEntry{product: p}

	*product = cloneProduct(p)
	return nil
}

// GetProduct returns a snapshot of the product.
func (s *BatchStore) GetProduct(ctx context.Context, productID uuid.UUID) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, err := s.entry(productID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	p := cloneProduct(e.product)
	e.mu.Unlock()
	return &p, nil
}

// GetBatchesForProduct returns a snapshot of the batches in FEFO order.
func (s *BatchStore) GetBatchesForProduct(ctx context.Context, productID uuid.UUID) ([]domain.Batch, error) {
	p, err := s.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return p.Batches, nil
}

// ApplyDeduction decrements every named batch or none of them.
func (s *BatchStore) ApplyDeduction(ctx context.Context, productID uuid.UUID, deltas []domain.BatchDelta) error {
	return s.mutate(ctx, productID, deltas, true)
}

// RestoreDeduction re-adds previously deducted quantities.
func (s *BatchStore) RestoreDeduction(ctx context.Context, productID uuid.UUID, deltas []domain.BatchDelta) error {
	return s.mutate(ctx, productID, deltas, false)
}

func (s *BatchStore) mutate(ctx context.Context, productID uuid.UUID, deltas []domain.BatchDelta, deduct bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e, err := s.entry(productID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	index := make(map[uuid.UUID]int, len(e.product.Batches))
	for i, b := range e.product.Batches {
		index[b.ID] = i
	}

	// Sum per batch so a plan naming the same batch twice is checked as one.
	pending := make(map[uuid.UUID]int, len(deltas))
	for _, d := range deltas {
		if d.Quantity <= 0 {
			return domain.NewValidationError("quantity", "delta quantity must be positive")
		}
		i, ok := index[d.BatchID]
		if !ok {
			return domain.NewNotFoundError("batch", d.BatchID)
		}
		b := e.product.Batches[i]
		if deduct && d.ExpectedVersion != 0 && d.ExpectedVersion != b.Version {
			return &domain.ConflictError{ProductID: productID, Err: errVersionMoved(d.BatchID)}
		}
		pending[d.BatchID] += d.Quantity
	}

	if deduct {
		for id, qty := range pending {
			b := e.product.Batches[index[id]]
			if b.Quantity < qty {
				return &domain.InsufficientStockError{
					ProductID: productID,
					BatchID:   id,
					Requested: qty,
					Available: b.Quantity,
				}
			}
		}
	}

	for id, qty := range pending {
		b := &e.product.Batches[index[id]]
		if deduct {
			b.Quantity -= qty
		} else {
			b.Quantity += qty
		}
		b.Version++
	}
	e.product.RecomputeTotal()
	e.product.UpdatedAt = time.Now().UTC()

	return nil
}

// AddBatch appends a restocked batch.
func (s *BatchStore) AddBatch(ctx context.Context, productID uuid.UUID, nb domain.NewBatch) (*domain.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := nb.Validate(); err != nil {
		return nil, err
	}
	e, err := s.entry(productID)
	if err != nil {
		return nil, err
	}

	batch := nb.Build(productID)

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, b := range e.product.Batches {
		if b.BatchNumber == batch.BatchNumber {
			return nil, domain.NewValidationError("batchNumber", "batch number already exists for this product")
		}
	}
	e.product.Batches = append(e.product.Batches, batch)
	domain.SortFEFO(e.product.Batches)
	e.product.RecomputeTotal()
	e.product.UpdatedAt = time.Now().UTC()

	return &batch, nil
}

// ListExpiringBatches lists stocked batches expiring before the cut-off.
func (s *BatchStore) ListExpiringBatches(ctx context.Context, before time.Time) ([]domain.ExpiringBatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	entries := make([]*productEntry, 0, len(s.products))
	for _, e := range s.products {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	var out []domain.ExpiringBatch
	for _, e := range entries {
		e.mu.Lock()
		for _, b := range e.product.Batches {
			if b.Quantity > 0 && b.ExpiryDate != nil && b.ExpiryDate.Before(before) {
				out = append(out, domain.ExpiringBatch{Batch: b, ProductName: e.product.Name})
			}
		}
		e.mu.Unlock()
	}

	sort.SliceStable(out, func(i, j int) bool {
		return domain.LessFEFO(out[i].Batch, out[j].Batch)
	})
	return out, nil
}

func cloneProduct(p domain.Product) domain.Product {
	batches := make([]domain.Batch, len(p.Batches))
	copy(batches, p.Batches)
	p.Batches = batches
	return p
}

type versionMovedError struct{ batchID uuid.UUID }

func (e versionMovedError) Error() string {
	return "batch " + e.batchID.String() + " changed since it was read"
}

func errVersionMoved(id uuid.UUID) error { return versionMovedError{batchID: id} }

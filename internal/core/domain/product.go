// internal/core/domain/product.go
package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a sellable item that owns an ordered set of stock batches.
type Product struct {
	ID            uuid.UUID        `json:"id"`
	Name          string           `json:"name"`
	Barcode       string           `json:"barcode,omitempty"`
	Category      string           `json:"category,omitempty"`
	Perishable    bool             `json:"perishable"`
	UnitPrice     *decimal.Decimal `json:"unitPrice,omitempty"`
	TotalQuantity int              `json:"totalQuantity"`
	Batches       []Batch          `json:"batches"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// Validate checks the registration fields of a product.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return NewValidationError("name", "name is required")
	}
	if p.UnitPrice != nil && p.UnitPrice.IsNegative() {
		return NewValidationError("unitPrice", "unit price cannot be negative")
	}
	return nil
}

// PrepareForStorage assigns an ID and timestamps to a new product.
func (p *Product) PrepareForStorage() {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Batches == nil {
		p.Batches = []Batch{}
	}
	p.RecomputeTotal()
}

// RecomputeTotal refreshes the cached TotalQuantity from the batches.
func (p *Product) RecomputeTotal() {
	p.TotalQuantity = SumQuantity(p.Batches)
}

// Batch is one received lot of a product.
type Batch struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"productId"`
	BatchNumber string          `json:"batchNumber"`
	Quantity    int             `json:"quantity"`
	ExpiryDate  *time.Time      `json:"expiryDate"`
	UnitPrice   decimal.Decimal `json:"price"`
	ReceivedAt  time.Time       `json:"receivedAt"`
	Version     int64           `json:"version"`
}

// IsExpired reports whether the batch expiry lies before at.
func (b Batch) IsExpired(at time.Time) bool {
	return b.ExpiryDate != nil && b.ExpiryDate.Before(at)
}

// NewBatch carries the fields of a restock.
type NewBatch struct {
	BatchNumber string
	Quantity    int
	ExpiryDate  *time.Time
	UnitPrice   decimal.Decimal
	ReceivedAt  time.Time
}

// Validate checks a restock request.
func (n *NewBatch) Validate() error {
	if n.Quantity <= 0 {
		return NewValidationError("quantity", "quantity must be positive")
	}
	if n.UnitPrice.IsNegative() {
		return NewValidationError("price", "price cannot be negative")
	}
	return nil
}

// Build turns the restock request into a batch owned by productID.
func (n *NewBatch) Build(productID uuid.UUID) Batch {
	b := Batch{
		ID:          uuid.New(),
		ProductID:   productID,
		BatchNumber: strings.TrimSpace(n.BatchNumber),
		Quantity:    n.Quantity,
		ExpiryDate:  n.ExpiryDate,
		UnitPrice:   n.UnitPrice,
		ReceivedAt:  n.ReceivedAt,
		Version:     1,
	}
	if b.ReceivedAt.IsZero() {
		b.ReceivedAt = time.Now().UTC()
	}
	if b.BatchNumber == "" {
		b.BatchNumber = "B-" + strings.ToUpper(b.ID.String()[:8])
	}
	return b
}

// BatchDelta is one (batch, quantity) pair of a deduction plan. ExpectedVersion
// is the batch version the plan was computed from.
type BatchDelta struct {
	BatchID         uuid.UUID `json:"batchId"`
	Quantity        int       `json:"quantity"`
	ExpectedVersion int64     `json:"expectedVersion"`
}

// ExpiringBatch is a batch reported by the expiry sweep.
type ExpiringBatch struct {
	Batch
	ProductName string `json:"productName"`
}

// LessFEFO orders batches by expiry ascending with undated batches last, then
// by receipt time, then by ID so the order is total.
func LessFEFO(a, b Batch) bool {
	switch {
	case a.ExpiryDate == nil && b.ExpiryDate != nil:
		return false
	case a.ExpiryDate != nil && b.ExpiryDate == nil:
		return true
	case a.ExpiryDate != nil && b.ExpiryDate != nil && !a.ExpiryDate.Equal(*b.ExpiryDate):
		return a.ExpiryDate.Before(*b.ExpiryDate)
	}
	if !a.ReceivedAt.Equal(b.ReceivedAt) {
		return a.ReceivedAt.Before(b.ReceivedAt)
	}
	return strings.Compare(a.ID.String(), b.ID.String()) < 0
}

// SortFEFO sorts batches in place in FEFO order.
func SortFEFO(batches []Batch) {
	sort.SliceStable(batches, func(i, j int) bool {
		return LessFEFO(batches[i], batches[j])
	})
}

// SumQuantity returns the total quantity across batches.
func SumQuantity(batches []Batch) int {
	total := 0
	for _, b := range batches {
		total += b.Quantity
	}
	return total
}

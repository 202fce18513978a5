// internal/core/domain/sale.go
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleStatus is the lifecycle state of a sale.
type SaleStatus string

const (
	SaleReceived   SaleStatus = "received"
	SaleAllocating SaleStatus = "allocating"
	SaleCommitted  SaleStatus = "committed"
	SaleRolledBack SaleStatus = "rolled_back"
)

// IsTerminal reports whether no further transition is allowed.
func (s SaleStatus) IsTerminal() bool {
	return s == SaleCommitted || s == SaleRolledBack
}

// CanTransition reports whether the sale may move from s to next.
func (s SaleStatus) CanTransition(next SaleStatus) bool {
	switch s {
	case SaleReceived:
		return next == SaleAllocating || next == SaleRolledBack
	case SaleAllocating:
		return next == SaleCommitted || next == SaleRolledBack
	default:
		return false
	}
}

// DefaultPaymentMethod is recorded when a sale names none.
const DefaultPaymentMethod = "cash"

// SaleItem is one requested cart line.
type SaleItem struct {
	ProductID     string           `json:"productId"`
	Quantity      int              `json:"quantity"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	PaymentMethod string           `json:"paymentMethod,omitempty"`
}

// SaleRequest is a cart submitted for processing.
type SaleRequest struct {
	Items         []SaleItem `json:"items"`
	PaymentMethod string     `json:"paymentMethod,omitempty"`
}

// BatchAllocation is one (batch, quantity, price) tuple of an allocation.
type BatchAllocation struct {
	BatchID     uuid.UUID       `json:"batchId"`
	BatchNumber string          `json:"batchNumber"`
	ExpiryDate  *time.Time      `json:"expiryDate"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	BatchPrice  decimal.Decimal `json:"batchPrice"`
	Amount      decimal.Decimal `json:"amount"`
	Version     int64           `json:"-"`
}

// AllocationLine is the committed FEFO allocation of one product.
type AllocationLine struct {
	ProductID         uuid.UUID         `json:"productId"`
	RequestedQuantity int               `json:"requestedQuantity"`
	Allocations       []BatchAllocation `json:"allocations"`
	TotalAmount       decimal.Decimal   `json:"totalAmount"`
}

// AllocatedQuantity sums the quantity taken across the line.
func (l *AllocationLine) AllocatedQuantity() int {
	n := 0
	for _, a := range l.Allocations {
		n += a.Quantity
	}
	return n
}

// Deltas converts the line into the deduction plan committed to the store.
func (l *AllocationLine) Deltas() []BatchDelta {
	deltas := make([]BatchDelta, 0, len(l.Allocations))
	for _, a := range l.Allocations {
		deltas = append(deltas, BatchDelta{
			BatchID:         a.BatchID,
			Quantity:        a.Quantity,
			ExpectedVersion: a.Version,
		})
	}
	return deltas
}

// SaleRecord is the receipt of a committed sale.
type SaleRecord struct {
	ID            uuid.UUID        `json:"id"`
	Status        SaleStatus       `json:"status"`
	PaymentMethod string           `json:"paymentMethod"`
	Lines         []AllocationLine `json:"lines"`
	TotalQuantity int              `json:"totalQuantity"`
	TotalAmount   decimal.Decimal  `json:"totalAmount"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// Summarize recomputes the sale totals from its lines.
func (s *SaleRecord) Summarize() {
	s.TotalQuantity = 0
	s.TotalAmount = decimal.Zero
	for i := range s.Lines {
		s.TotalQuantity += s.Lines[i].AllocatedQuantity()
		s.TotalAmount = s.TotalAmount.Add(s.Lines[i].TotalAmount)
	}
}

// ProductIDs lists the distinct products touched by the sale.
func (s *SaleRecord) ProductIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(s.Lines))
	ids := make([]uuid.UUID, 0, len(s.Lines))
	for _, l := range s.Lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}
	return ids
}

// SaleFilter narrows a sales history listing.
type SaleFilter struct {
	ProductID     *uuid.UUID
	PaymentMethod string
	From          *time.Time
	To            *time.Time
	Page          int
	PageSize      int
}

// Normalize clamps paging to sane bounds and lowercases the payment method.
func (f *SaleFilter) Normalize() {
	// stored payment methods are lowercase
	f.PaymentMethod = strings.ToLower(strings.TrimSpace(f.PaymentMethod))
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 50
	}
	if f.PageSize > 500 {
		f.PageSize = 500
	}
}

// Offset returns the row offset of the current page.
func (f SaleFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// SaleList is a page of sales.
type SaleList struct {
	Sales      []SaleRecord `json:"sales"`
	Page       int          `json:"page"`
	PageSize   int          `json:"pageSize"`
	TotalCount int64        `json:"totalCount"`
}

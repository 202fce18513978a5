// internal/core/domain/errors.go
package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Error classes returned by the stock engine. Typed errors below match these
// through errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("concurrent modification")
	ErrValidation        = errors.New("validation failed")
)

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func NewNotFoundError(entity string, id uuid.UUID) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id.String()}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InsufficientStockError reports how much stock was available against the
// requested quantity.
type InsufficientStockError struct {
	ProductID uuid.UUID
	BatchID   uuid.UUID
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	if e.BatchID != uuid.Nil {
		return fmt.Sprintf("insufficient stock in batch %s: requested %d, available %d",
			e.BatchID, e.Requested, e.Available)
	}
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// ConflictError is returned when a commit kept losing races against other
// writers, or could not converge before its deadline.
type ConflictError struct {
	ProductID uuid.UUID
	Attempts  int
	Err       error
}

func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("conflict on product %s", e.ProductID)
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func (e *ConflictError) Unwrap() error { return e.Err }

// ValidationError describes malformed input rejected before any store access.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// LineError ties a failure to one line of a sale.
type LineError struct {
	Index     int
	ProductID string
	Err       error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d (product %s): %v", e.Index, e.ProductID, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// SaleError is a whole-sale failure listing every failed line.
type SaleError struct {
	SaleID uuid.UUID
	Lines  []*LineError
}

func (e *SaleError) Error() string {
	parts := make([]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		parts = append(parts, l.Error())
	}
	return "sale failed: " + strings.Join(parts, "; ")
}

func (e *SaleError) Unwrap() []error {
	errs := make([]error, 0, len(e.Lines))
	for _, l := range e.Lines {
		errs = append(errs, l)
	}
	return errs
}

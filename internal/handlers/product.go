// internal/handlers/product.go
package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ammerola/shelfstock-be/internal/core/domain"
	"github.com/ammerola/shelfstock-be/internal/core/ports"
	"github.com/ammerola/shelfstock-be/internal/pkg/logger"
)

// ProductHandler handles product and batch HTTP requests
type ProductHandler struct {
	stock  ports.StockService
	logger *slog.Logger
}

// NewProductHandler creates a new product handler
func NewProductHandler(stock ports.StockService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		stock:  stock,
		logger: logger.With(slog.String("handler", "product")),
	}
}

// CreateProductRequest is the body of POST /api/v1/products
type CreateProductRequest struct {
	Name       string           `json:"name" validate:"required,max=200"`
	Barcode    string           `json:"barcode,omitempty" validate:"max=64"`
	Category   string           `json:"category,omitempty" validate:"max=100"`
	Perishable bool             `json:"perishable,omitempty"`
	UnitPrice  *decimal.Decimal `json:"unitPrice,omitempty"`
	Batches    []RestockRequest `json:"batches,omitempty" validate:"omitempty,dive"`
}

// RestockRequest is one received batch
type RestockRequest struct {
	BatchNumber string          `json:"batchNumber,omitempty" validate:"max=64"`
	Quantity    int             `json:"quantity" validate:"gt=0"`
	ExpiryDate  string          `json:"expiryDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Price       decimal.Decimal `json:"price"`
	ReceivedAt  *time.Time      `json:"receivedAt,omitempty"`
}

// ToDomain converts the request into a restock
func (r *RestockRequest) ToDomain() domain.NewBatch {
	nb := domain.NewBatch{
		BatchNumber: strings.TrimSpace(r.BatchNumber),
		Quantity:    r.Quantity,
		UnitPrice:   r.Price,
	}
	if r.ExpiryDate != "" {
		// format already checked by the validator
		if t, err := time.Parse("2006-01-02", r.ExpiryDate); err == nil {
			nb.ExpiryDate = &t
		}
	}
	if r.ReceivedAt != nil {
		nb.ReceivedAt = r.ReceivedAt.UTC()
	}
	return nb
}

// ToDomain converts the request into a product with its opening batches
func (r *CreateProductRequest) ToDomain() (*domain.Product, error) {
	product := &domain.Product{
		ID:         uuid.New(),
		Name:       strings.TrimSpace(r.Name),
		Barcode:    strings.TrimSpace(r.Barcode),
		Category:   strings.TrimSpace(r.Category),
		Perishable: r.Perishable,
		UnitPrice:  r.UnitPrice,
	}

	seen := make(map[string]bool, len(r.Batches))
	for _, br := range r.Batches {
		nb := br.ToDomain()
		if err := nb.Validate(); err != nil {
			return nil, err
		}
		batch := nb.Build(product.ID)
		if seen[batch.BatchNumber] {
			return nil, domain.NewValidationError("batchNumber", "duplicate batch number "+batch.BatchNumber)
		}
		seen[batch.BatchNumber] = true
		product.Batches = append(product.Batches, batch)
	}
	domain.SortFEFO(product.Batches)
	return product, nil
}

// CreateProduct handles POST /api/v1/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateProductRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to create product")
		return
	}

	product, err := req.ToDomain()
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to create product")
		return
	}

	if err := h.stock.RegisterProduct(ctx, product); err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to create product")
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, product)
}

// GetProduct handles GET /api/v1/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}

	product, err := h.stock.GetProduct(r.Context(), productID)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to retrieve product")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, product)
}

// GetBatches handles GET /api/v1/products/{id}/batches
func (h *ProductHandler) GetBatches(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}

	batches, err := h.stock.GetBatches(r.Context(), productID)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to retrieve batches")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, batches)
}

// Restock handles POST /api/v1/products/{id}/batches
func (h *ProductHandler) Restock(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}
	ctx := logger.WithProductID(r.Context(), productID)

	var req RestockRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to restock product")
		return
	}

	batch, err := h.stock.Restock(ctx, productID, req.ToDomain())
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to restock product")
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, batch)
}

func (h *ProductHandler) productID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid product ID format")
		return uuid.Nil, false
	}
	return id, true
}

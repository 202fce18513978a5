// internal/handlers/sale.go
package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ammerola/shelfstock-be/internal/core/domain"
	"github.com/ammerola/shelfstock-be/internal/core/ports"
	"github.com/ammerola/shelfstock-be/internal/pkg/logger"
)

// SaleHandler handles sale HTTP requests
type SaleHandler struct {
	service ports.SaleService
	logger  *slog.Logger
}

// NewSaleHandler creates a new sale handler
func NewSaleHandler(service ports.SaleService, logger *slog.Logger) *SaleHandler {
	return &SaleHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "sale")),
	}
}

// ProcessSaleRequest is the body of POST /products/process-sale
type ProcessSaleRequest struct {
	Items         []SaleItemRequest `json:"items" validate:"required,min=1,dive"`
	PaymentMethod string            `json:"paymentMethod,omitempty" validate:"max=32"`
}

// SaleItemRequest is one cart line
type SaleItemRequest struct {
	ProductID     string           `json:"productId" validate:"required,uuid"`
	Quantity      int              `json:"quantity" validate:"gt=0"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	PaymentMethod string           `json:"paymentMethod,omitempty" validate:"max=32"`
}

// ToDomain converts the request into a sale request
func (r *ProcessSaleRequest) ToDomain() domain.SaleRequest {
	req := domain.SaleRequest{
		Items:         make([]domain.SaleItem, 0, len(r.Items)),
		PaymentMethod: r.PaymentMethod,
	}
	for _, item := range r.Items {
		req.Items = append(req.Items, domain.SaleItem{
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			Price:         item.Price,
			PaymentMethod: item.PaymentMethod,
		})
	}
	return req
}

// ProcessSale handles POST /products/process-sale
func (h *SaleHandler) ProcessSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ProcessSaleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to process sale")
		return
	}

	sale, err := h.service.ProcessSale(ctx, req.ToDomain())
	if err != nil {
		h.logger.WarnContext(ctx, "sale rejected",
			slog.Int("items", len(req.Items)),
			slog.String("error", err.Error()))
		respondServiceError(w, r, h.logger, err, "Failed to process sale")
		return
	}

	ctx = logger.WithSaleID(ctx, sale.ID)
	h.logger.InfoContext(ctx, "sale processed",
		slog.Int("quantity", sale.TotalQuantity),
		slog.String("amount", sale.TotalAmount.StringFixed(2)))

	respondJSON(w, h.logger, http.StatusCreated, sale)
}

// GetSale handles GET /api/v1/sales/{id}
func (h *SaleHandler) GetSale(w http.ResponseWriter, r *http.Request) {
	saleID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid sale ID format")
		return
	}

	sale, err := h.service.GetSale(r.Context(), saleID)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to retrieve sale")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, sale)
}

// ListSales handles GET /api/v1/sales
func (h *SaleHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	filter, err := parseSaleFilter(r)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to list sales")
		return
	}

	list, err := h.service.ListSales(r.Context(), filter)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to list sales")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, list)
}

// parseSaleFilter reads page, limit, productId, paymentMethod, from and to.
// Dates accept RFC 3339 or a plain yyyy-mm-dd.
func parseSaleFilter(r *http.Request) (domain.SaleFilter, error) {
	q := r.URL.Query()
	filter := domain.SaleFilter{
		Page:          1,
		PageSize:      50,
		PaymentMethod: strings.TrimSpace(q.Get("paymentMethod")),
	}

	if page := q.Get("page"); page != "" {
		if p, err := strconv.Atoi(page); err == nil && p > 0 {
			filter.Page = p
		}
	}
	if limit := q.Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 {
			filter.PageSize = min(l, 100)
		}
	}

	if pid := q.Get("productId"); pid != "" {
		id, err := uuid.Parse(pid)
		if err != nil {
			return filter, domain.NewValidationError("productId", "productId must be a valid UUID")
		}
		filter.ProductID = &id
	}

	for _, bound := range []struct {
		name string
		dst  **time.Time
	}{{"from", &filter.From}, {"to", &filter.To}} {
		raw := q.Get(bound.name)
		if raw == "" {
			continue
		}
		t, err := parseTime(raw)
		if err != nil {
			return filter, domain.NewValidationError(bound.name, bound.name+" must be RFC 3339 or yyyy-mm-dd")
		}
		*bound.dst = &t
	}

	return filter, nil
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", raw)
}

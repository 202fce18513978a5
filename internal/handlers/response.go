// internal/handlers/response.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ammerola/shelfstock-be/internal/core/domain"
)

// Response is the envelope of every JSON reply.
type Response struct {
	Success  bool          `json:"success"`
	Data     interface{}   `json:"data,omitempty"`
	Error    string        `json:"error,omitempty"`
	Failures []LineFailure `json:"failures,omitempty"`
}

// LineFailure explains why one sale line was rejected.
type LineFailure struct {
	Index     int    `json:"index"`
	ProductID string `json:"productId,omitempty"`
	Reason    string `json:"reason"`
	Available *int   `json:"available,omitempty"`
	Requested *int   `json:"requested,omitempty"`
}

var (
	validate   = newValidator()
	indexRegex = regexp.MustCompile(`\[(\d+)\]`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func respondJSON(w http.ResponseWriter, logger *slog.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(Response{Success: true, Data: data}); err != nil {
		logger.Error("failed to encode JSON response",
			slog.String("error", err.Error()))
	}
}

func respondError(w http.ResponseWriter, logger *slog.Logger, status int, message string, failures ...LineFailure) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(Response{Error: message, Failures: failures}); err != nil {
		logger.Error("failed to encode JSON error response",
			slog.String("error", err.Error()))
	}
}

// respondServiceError maps engine errors onto HTTP statuses. Unclassified
// errors are logged and hidden behind a generic 500.
func respondServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, fallback string) {
	var saleErr *domain.SaleError
	if errors.As(err, &saleErr) {
		respondError(w, logger, statusFor(err), saleErr.Error(), lineFailures(saleErr)...)
		return
	}

	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), fallback,
			slog.String("error", err.Error()))
		respondError(w, logger, status, fallback)
		return
	}
	respondError(w, logger, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func lineFailures(saleErr *domain.SaleError) []LineFailure {
	failures := make([]LineFailure, 0, len(saleErr.Lines))
	for _, l := range saleErr.Lines {
		f := LineFailure{Index: l.Index, ProductID: l.ProductID, Reason: l.Err.Error()}

		var stockErr *domain.InsufficientStockError
		if errors.As(l.Err, &stockErr) {
			available, requested := stockErr.Available, stockErr.Requested
			f.Available = &available
			f.Requested = &requested
		}
		failures = append(failures, f)
	}
	return failures
}

// decodeJSON reads a JSON body into dst and runs struct validation. Body
// size is bounded by the MaxBodySize middleware.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return domain.NewValidationError("", "request body too large")
		case errors.Is(err, io.EOF):
			return domain.NewValidationError("", "request body is empty")
		default:
			return domain.NewValidationError("", "invalid request body: "+err.Error())
		}
	}

	return validateStruct(dst)
}

// validateStruct turns validator failures into a ValidationError naming the
// first offending field. Failures inside an items list become line errors.
func validateStruct(dst interface{}) error {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.NewValidationError("", err.Error())
	}

	var lines []*domain.LineError
	for _, fe := range verrs {
		field := fieldPath(fe.Namespace())
		if m := indexRegex.FindStringSubmatch(fe.Namespace()); m != nil && strings.HasPrefix(field, "items[") {
			idx, _ := strconv.Atoi(m[1])
			lines = append(lines, &domain.LineError{
				Index: idx,
				Err:   domain.NewValidationError(fe.Field(), describe(fe)),
			})
			continue
		}
		return domain.NewValidationError(field, describe(fe))
	}
	return &domain.SaleError{Lines: lines}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a valid UUID", fe.Field())
	case "datetime":
		return fmt.Sprintf("%s must match %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

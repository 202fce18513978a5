// internal/handlers/report.go
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ammerola/shelfstock-be/internal/core/domain"
	"github.com/ammerola/shelfstock-be/internal/workers"
)

// ExpiryReporter builds expiry reports
type ExpiryReporter interface {
	Latest(ctx context.Context) (*workers.ExpiryReport, error)
	Scan(ctx context.Context, warningDays int) (*workers.ExpiryReport, error)
}

// ReportScheduler queues background report jobs
type ReportScheduler interface {
	ExpiryScanRequested(ctx context.Context, warningDays int) error
	SalesReportRequested(ctx context.Context, payload workers.SalesReportPayload) error
}

// ReportHandler serves stock reports
type ReportHandler struct {
	expiry    ExpiryReporter
	scheduler ReportScheduler
	logger    *slog.Logger
}

// NewReportHandler creates a new report handler. scheduler may be nil.
func NewReportHandler(expiry ExpiryReporter, scheduler ReportScheduler, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		expiry:    expiry,
		scheduler: scheduler,
		logger:    logger.With(slog.String("handler", "report")),
	}
}

// ExpiringBatches handles GET /api/v1/reports/expiring. Without days the
// cached daily report is served.
func (h *ReportHandler) ExpiringBatches(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		report *workers.ExpiryReport
		err    error
	)
	if raw := r.URL.Query().Get("days"); raw != "" {
		days, convErr := strconv.Atoi(raw)
		if convErr != nil || days < 1 || days > 365 {
			respondError(w, h.logger, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		report, err = h.expiry.Scan(ctx, days)
	} else {
		report, err = h.expiry.Latest(ctx)
	}
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to build expiry report")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, report)
}

// ScheduleReportRequest is the body of POST /api/v1/reports/jobs
type ScheduleReportRequest struct {
	Kind          string `json:"kind" validate:"required,oneof=expiry-scan sales"`
	WarningDays   int    `json:"warningDays,omitempty" validate:"gte=0,lte=365"`
	From          string `json:"from,omitempty"`
	To            string `json:"to,omitempty"`
	PaymentMethod string `json:"paymentMethod,omitempty" validate:"max=32"`
}

// ScheduleReport handles POST /api/v1/reports/jobs
func (h *ReportHandler) ScheduleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.scheduler == nil {
		respondError(w, h.logger, http.StatusServiceUnavailable, "Background jobs are unavailable")
		return
	}

	var req ScheduleReportRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to schedule report")
		return
	}

	var err error
	switch req.Kind {
	case "expiry-scan":
		err = h.scheduler.ExpiryScanRequested(ctx, req.WarningDays)
	case "sales":
		payload := workers.SalesReportPayload{PaymentMethod: req.PaymentMethod}
		if req.From != "" {
			from, perr := parseTime(req.From)
			if perr != nil {
				respondServiceError(w, r, h.logger, domain.NewValidationError("from", "from must be RFC 3339 or yyyy-mm-dd"), "")
				return
			}
			payload.From = &from
		}
		if req.To != "" {
			to, perr := parseTime(req.To)
			if perr != nil {
				respondServiceError(w, r, h.logger, domain.NewValidationError("to", "to must be RFC 3339 or yyyy-mm-dd"), "")
				return
			}
			payload.To = &to
		}
		err = h.scheduler.SalesReportRequested(ctx, payload)
	}
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to schedule report")
		return
	}

	respondJSON(w, h.logger, http.StatusAccepted, map[string]string{"kind": req.Kind, "status": "queued"})
}

// internal/workers/tasks.go
package workers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/ammerola/shelfstock-be/internal/core/domain"
)

const (
	TypeSaleCommitted = "sale:committed"
	TypeExpiryScan    = "inventory:expiry-scan"
	TypeSalesReport   = "report:sales"
	TypeRestockImport = "import:restock-pdf"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// SoldLine is the per product summary carried by a sale event.
type SoldLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Batches   int    `json:"batches"`
}

// SaleCommittedPayload is published once per committed sale.
type SaleCommittedPayload struct {
	SaleID        string          `json:"sale_id"`
	PaymentMethod string          `json:"payment_method"`
	TotalQuantity int             `json:"total_quantity"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Lines         []SoldLine      `json:"lines"`
	CommittedAt   time.Time       `json:"committed_at"`
}

// ExpiryScanPayload configures one expiry sweep. Zero WarningDays uses the
// processor default.
type ExpiryScanPayload struct {
	WarningDays int `json:"warning_days,omitempty"`
}

// SalesReportPayload selects the sales exported to the report workbook.
// Empty bounds default to the previous day.
type SalesReportPayload struct {
	From          *time.Time `json:"from,omitempty"`
	To            *time.Time `json:"to,omitempty"`
	PaymentMethod string     `json:"payment_method,omitempty"`
}

// RestockImportPayload points the import worker at an uploaded delivery note.
type RestockImportPayload struct {
	ObjectKey string `json:"object_key"`
	ProductID string `json:"product_id"`
}

// NewSaleCommittedTask builds the event for a committed sale. The sale id is
// used as task id so a repeated publish is dropped by the queue.
func NewSaleCommittedTask(sale *domain.SaleRecord) (*asynq.Task, error) {
	payload := SaleCommittedPayload{
		SaleID:        sale.ID.String(),
		PaymentMethod: sale.PaymentMethod,
		TotalQuantity: sale.TotalQuantity,
		TotalAmount:   sale.TotalAmount,
		Lines:         make([]SoldLine, 0, len(sale.Lines)),
		CommittedAt:   sale.CreatedAt,
	}
	for _, l := range sale.Lines {
		payload.Lines = append(payload.Lines, SoldLine{
			ProductID: l.ProductID.String(),
			Quantity:  l.AllocatedQuantity(),
			Batches:   len(l.Allocations),
		})
	}

	return newTask(TypeSaleCommitted, payload,
		asynq.Queue(QueueCritical),
		asynq.TaskID(TypeSaleCommitted+":"+payload.SaleID),
		asynq.MaxRetry(5),
	)
}

// NewExpiryScanTask builds an expiry sweep task.
func NewExpiryScanTask(warningDays int) (*asynq.Task, error) {
	return newTask(TypeExpiryScan, ExpiryScanPayload{WarningDays: warningDays},
		asynq.Queue(QueueLow),
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
	)
}

// NewSalesReportTask builds a sales report task.
func NewSalesReportTask(payload SalesReportPayload) (*asynq.Task, error) {
	return newTask(TypeSalesReport, payload,
		asynq.Queue(QueueLow),
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Retention(24*time.Hour),
	)
}

// RestockImportTaskID is the task id of the import of objectKey, used to
// look the task up while it runs and for a day after.
func RestockImportTaskID(objectKey string) string {
	return TypeRestockImport + ":" + objectKey
}

// NewRestockImportTask builds a delivery note import task.
func NewRestockImportTask(objectKey, productID string) (*asynq.Task, error) {
	return newTask(TypeRestockImport, RestockImportPayload{ObjectKey: objectKey, ProductID: productID},
		asynq.Queue(QueueDefault),
		asynq.TaskID(RestockImportTaskID(objectKey)),
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
		asynq.Retention(24*time.Hour),
	)
}

func newTask(typename string, payload interface{}, opts ...asynq.Option) (*asynq.Task, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", typename, err)
	}
	return asynq.NewTask(typename, b, opts...), nil
}

func decodePayload(t *asynq.Task, dest interface{}) error {
	if err := json.Unmarshal(t.Payload(), dest); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return nil
}

// writeResult stores v as the task result. Tasks built outside a server have
// no result writer.
func writeResult(t *asynq.Task, v interface{}) error {
	rw := t.ResultWriter()
	if rw == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = rw.Write(b)
	return err
}

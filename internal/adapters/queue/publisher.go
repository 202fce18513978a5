// internal/adapters/queue/publisher.go
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/ammerola/shelfstock-be/internal/core/domain"
	"github.com/ammerola/shelfstock-be/internal/core/ports"
	"github.com/ammerola/shelfstock-be/internal/workers"
)

// Enqueuer is the part of *asynq.Client the publisher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Publisher turns domain events into asynq tasks.
type Publisher struct {
	client Enqueuer
	logger *slog.Logger
}

// Statically assert that *Publisher implements the EventPublisher interface.
var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a new publisher
func NewPublisher(client Enqueuer, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger.With(slog.String("component", "publisher")),
	}
}

// SaleCommitted enqueues the post-commit work of a sale. A duplicate publish
// of the same sale is not an error.
func (p *Publisher) SaleCommitted(ctx context.Context, sale *domain.SaleRecord) error {
	task, err := workers.NewSaleCommittedTask(sale)
	if err != nil {
		return err
	}
	return p.enqueue(ctx, task, slog.String("sale_id", sale.ID.String()))
}

// RestockImportRequested enqueues parsing of an uploaded delivery note
func (p *Publisher) RestockImportRequested(ctx context.Context, objectKey string, productID string) error {
	task, err := workers.NewRestockImportTask(objectKey, productID)
	if err != nil {
		return err
	}
	return p.enqueue(ctx, task, slog.String("object_key", objectKey))
}

// ExpiryScanRequested enqueues an expiry sweep outside the schedule
func (p *Publisher) ExpiryScanRequested(ctx context.Context, warningDays int) error {
	task, err := workers.NewExpiryScanTask(warningDays)
	if err != nil {
		return err
	}
	return p.enqueue(ctx, task)
}

// SalesReportRequested enqueues a sales workbook export
func (p *Publisher) SalesReportRequested(ctx context.Context, payload workers.SalesReportPayload) error {
	task, err := workers.NewSalesReportTask(payload)
	if err != nil {
		return err
	}
	return p.enqueue(ctx, task)
}

func (p *Publisher) enqueue(ctx context.Context, task *asynq.Task, attrs ...any) error {
	info, err := p.client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			p.logger.DebugContext(ctx, "task already enqueued",
				append(attrs, slog.String("type", task.Type()))...)
			return nil
		}
		return fmt.Errorf("failed to enqueue %s: %w", task.Type(), err)
	}

	p.logger.InfoContext(ctx, "task enqueued",
		append(attrs,
			slog.String("type", task.Type()),
			slog.String("task_id", info.ID),
			slog.String("queue", info.Queue))...)
	return nil
}

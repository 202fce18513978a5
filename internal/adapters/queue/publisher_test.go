// internal/adapters/queue/publisher_test.go
package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/shelfstock-be/internal/adapters/queue"
	"github.com/ammerola/shelfstock-be/internal/core/domain"
	"github.com/ammerola/shelfstock-be/internal/workers"
	"github.com/ammerola/shelfstock-be/test/helpers"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: uuid.NewString(), Queue: workers.QueueCritical, Type: task.Type()}, nil
}

func committedSale() *domain.SaleRecord {
	productID := uuid.New()
	sale := &domain.SaleRecord{
		ID:            uuid.New(),
		Status:        domain.SaleCommitted,
		PaymentMethod: "card",
		CreatedAt:     time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		Lines: []domain.AllocationLine{{
			ProductID:         productID,
			RequestedQuantity: 5,
			TotalAmount:       decimal.NewFromInt(12),
			Allocations: []domain.BatchAllocation{
				{BatchID: uuid.New(), Quantity: 3, UnitPrice: decimal.NewFromInt(2), Amount: decimal.NewFromInt(6)},
				{BatchID: uuid.New(), Quantity: 2, UnitPrice: decimal.NewFromInt(3), Amount: decimal.NewFromInt(6)},
			},
		}},
	}
	sale.Summarize()
	return sale
}

func TestPublisher_SaleCommitted(t *testing.T) {
	enq := &fakeEnqueuer{}
	pub := queue.NewPublisher(enq, helpers.TestLogger())
	sale := committedSale()

	require.NoError(t, pub.SaleCommitted(context.Background(), sale))
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, workers.TypeSaleCommitted, enq.tasks[0].Type())

	var payload workers.SaleCommittedPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	assert.Equal(t, sale.ID.String(), payload.SaleID)
	assert.Equal(t, 5, payload.TotalQuantity)
	assert.True(t, payload.TotalAmount.Equal(decimal.NewFromInt(12)))
	require.Len(t, payload.Lines, 1)
	assert.Equal(t, 5, payload.Lines[0].Quantity)
	assert.Equal(t, 2, payload.Lines[0].Batches)
}

func TestPublisher_DuplicateIsNotAnError(t *testing.T) {
	pub := queue.NewPublisher(&fakeEnqueuer{err: asynq.ErrTaskIDConflict}, helpers.TestLogger())

	assert.NoError(t, pub.SaleCommitted(context.Background(), committedSale()))
}

func TestPublisher_EnqueueFailure(t *testing.T) {
	pub := queue.NewPublisher(&fakeEnqueuer{err: errors.New("redis down")}, helpers.TestLogger())

	err := pub.RestockImportRequested(context.Background(), "imports/restock/x.pdf", uuid.NewString())
	require.Error(t, err)
	assert.Contains(t, err.Error(), workers.TypeRestockImport)
}

func TestPublisher_RestockAndExpiry(t *testing.T) {
	enq := &fakeEnqueuer{}
	pub := queue.NewPublisher(enq, helpers.TestLogger())
	productID := uuid.NewString()

	require.NoError(t, pub.RestockImportRequested(context.Background(), "imports/restock/note.pdf", productID))
	require.NoError(t, pub.ExpiryScanRequested(context.Background(), 3))
	require.Len(t, enq.tasks, 2)

	var restock workers.RestockImportPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &restock))
	assert.Equal(t, "imports/restock/note.pdf", restock.ObjectKey)
	assert.Equal(t, productID, restock.ProductID)

	var scan workers.ExpiryScanPayload
	require.NoError(t, json.Unmarshal(enq.tasks[1].Payload(), &scan))
	assert.Equal(t, 3, scan.WarningDays)
}

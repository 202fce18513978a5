package workers_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/shelfstock-be/internal/adapters/memory"
	redis_a "github.com/ammerola/shelfstock-be/internal/adapters/redis_adapter"
	"github.com/ammerola/shelfstock-be/internal/pkg/logger"
	"github.com/ammerola/shelfstock-be/internal/workers"
	"github.com/ammerola/shelfstock-be/test/helpers"
)

func TestProcessors_ServeMux(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewLogger(&logger.LogConfig{Level: "debug", Format: "json", Writer: &buf})

	store := memory.NewBatchStore()
	cache, _ := newTestCache(t)
	seedProduct(t, store, "Milk", batchOf("SOON", 3, daysFromNow(2)))

	expiry := workers.NewExpiryScanProcessor(store, cache, 7, helpers.TestLogger())
	mux := workers.Processors{ExpiryScan: expiry}.ServeMux(l.Logger)

	task, err := workers.NewExpiryScanTask(0)
	require.NoError(t, err)
	require.NoError(t, mux.ProcessTask(context.Background(), task))

	var report workers.ExpiryReport
	require.NoError(t, cache.Get(context.Background(), redis_a.ExpiryReportKey(time.Now().UTC()), &report))
	assert.Equal(t, 3, report.TotalUnits)

	assert.Contains(t, buf.String(), `"task_type":"inventory:expiry-scan"`)
	assert.Contains(t, buf.String(), "task processed")

	// types without a processor are rejected by the mux
	sales, err := workers.NewSalesReportTask(workers.SalesReportPayload{})
	require.NoError(t, err)
	assert.Error(t, mux.ProcessTask(context.Background(), sales))
}

func TestProcessors_ServeMuxLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewLogger(&logger.LogConfig{Level: "info", Format: "json", Writer: &buf})

	expiry := workers.NewExpiryScanProcessor(memory.NewBatchStore(), nil, 7, helpers.TestLogger())
	mux := workers.Processors{ExpiryScan: expiry}.ServeMux(l.Logger)

	err := mux.ProcessTask(context.Background(), asynq.NewTask(workers.TypeExpiryScan, []byte("{")))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Contains(t, buf.String(), "task failed")
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		n    int
		want time.Duration
	}{
		{n: 0, want: time.Second},
		{n: 3, want: 8 * time.Second},
		{n: 9, want: 512 * time.Second},
		{n: 10, want: 10 * time.Minute},
		{n: 40, want: 10 * time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, workers.RetryDelay(tt.n, nil, nil), "retry %d", tt.n)
	}
}

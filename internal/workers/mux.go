// internal/workers/mux.go
package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/shelfstock-be/internal/pkg/config"
	"github.com/ammerola/shelfstock-be/internal/pkg/logger"
)

// Processors groups the task handlers a worker serves. Nil processors leave
// their task type unregistered.
type Processors struct {
	SaleEvents    *SaleEventsProcessor
	ExpiryScan    *ExpiryScanProcessor
	SalesReport   *SalesReportProcessor
	RestockImport *RestockImportProcessor
}

// ServeMux registers every configured processor on a new asynq mux
func (p Processors) ServeMux(l *slog.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Use(taskLogging(l))

	if p.SaleEvents != nil {
		mux.HandleFunc(TypeSaleCommitted, p.SaleEvents.HandleSaleCommitted)
	}
	if p.ExpiryScan != nil {
		mux.HandleFunc(TypeExpiryScan, p.ExpiryScan.HandleExpiryScan)
	}
	if p.SalesReport != nil {
		mux.HandleFunc(TypeSalesReport, p.SalesReport.HandleSalesReport)
	}
	if p.RestockImport != nil {
		mux.HandleFunc(TypeRestockImport, p.RestockImport.HandleRestockImport)
	}
	return mux
}

// taskLogging tags the task context with its id and type and logs the outcome
func taskLogging(l *slog.Logger) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
			start := time.Now()

			ctx = context.WithValue(ctx, logger.ContextKeyTaskType, t.Type())
			if id, ok := asynq.GetTaskID(ctx); ok {
				ctx = context.WithValue(ctx, logger.ContextKeyTaskID, id)
			}
			retry, _ := asynq.GetRetryCount(ctx)
			ctx = logger.WithLogger(ctx, l)

			err := next.ProcessTask(ctx, t)
			if err != nil {
				l.ErrorContext(ctx, "task failed",
					slog.Int("retry", retry),
					slog.Duration("duration", time.Since(start)),
					slog.String("error", err.Error()))
				return err
			}

			l.DebugContext(ctx, "task processed",
				slog.Int("retry", retry),
				slog.Duration("duration", time.Since(start)))
			return nil
		})
	}
}

// NewServer builds the asynq server shared by the worker binary and the
// in-process worker of the memory-backed API.
func NewServer(cfg config.AsynqConfig, l *slog.Logger) *asynq.Server {
	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
		asynq.Config{
			Concurrency:     cfg.Concurrency,
			Queues:          cfg.Queues,
			StrictPriority:  cfg.StrictPriority,
			ErrorHandler:    errorHandler(l),
			RetryDelayFunc:  RetryDelay,
			ShutdownTimeout: cfg.ShutdownTimeout,
			HealthCheckFunc: func(err error) {
				if err != nil {
					l.Error("worker health check failed", slog.String("error", err.Error()))
				}
			},
			Logger: logger.NewAsynqLogger(l),
		},
	)
}

// RetryDelay doubles from one second per retry, capped at ten minutes
func RetryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	const maxDelay = 10 * time.Minute
	if n < 0 {
		n = 0
	}
	if n > 10 {
		return maxDelay
	}
	delay := time.Second * time.Duration(1<<uint(n))
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

func errorHandler(l *slog.Logger) asynq.ErrorHandler {
	return asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		if retried >= maxRetry {
			l.ErrorContext(ctx, "task retries exhausted",
				slog.String("type", task.Type()),
				slog.Int("retried", retried),
				slog.String("error", err.Error()))
		}
	})
}

// cmd/worker/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/ammerola/shelfstock-be/internal/adapters/db"
	redis_a "github.com/ammerola/shelfstock-be/internal/adapters/redis_adapter"
	"github.com/ammerola/shelfstock-be/internal/adapters/storage"
	"github.com/ammerola/shelfstock-be/internal/core/ports"
	"github.com/ammerola/shelfstock-be/internal/core/services"
	"github.com/ammerola/shelfstock-be/internal/pkg/config"
	"github.com/ammerola/shelfstock-be/internal/pkg/logger"
	"github.com/ammerola/shelfstock-be/internal/workers"
)

func main() {
	slogger := logger.SetupLogger("info", "json")

	cfg, err := config.Load(slogger.Logger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slogger = logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	slogger.Info("starting worker",
		slog.String("environment", cfg.App.Environment),
		slog.String("redis_addr", cfg.Asynq.RedisAddr))

	// the memory store lives inside the api process, which serves its own tasks
	if cfg.UsesMemoryStore() {
		slogger.Error("worker requires the postgres store driver")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, slogger.Logger); err != nil {
		slogger.Error("worker stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slogger.Info("worker shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	secrets, err := config.NewSecretsManager(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if err := config.ApplySecrets(ctx, cfg, secrets); err != nil {
		return err
	}

	database, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddress(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		PoolSize:     cfg.Redis.PoolSize,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	objects, err := newObjectStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}

	store := db.NewBatchStore(database, logger)
	sales := db.NewSaleRepository(database, logger)
	cache := redis_a.NewCache(redisClient, cfg.Redis.TTL, logger)
	cached := redis_a.NewCachedBatchStore(store, cache, cfg.Inventory.BatchCacheTTL, logger)
	stock := services.NewStockService(store, cached, cached, logger)

	mux := workers.Processors{
		SaleEvents:    workers.NewSaleEventsProcessor(store, cache, cached, cfg.Inventory.LowStockThreshold, logger),
		ExpiryScan:    workers.NewExpiryScanProcessor(store, cache, cfg.Inventory.ExpiryWarningDays, logger),
		SalesReport:   workers.NewSalesReportProcessor(sales, objects, cfg.Files.ReportPrefix, logger),
		RestockImport: workers.NewRestockImportProcessor(stock, objects, logger),
	}.ServeMux(logger)

	srv := workers.NewServer(cfg.Asynq, logger)
	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("failed to run worker server: %w", err)
	}

	scheduler, err := newScheduler(cfg, logger)
	if err != nil {
		srv.Shutdown()
		return err
	}
	if err := scheduler.Start(); err != nil {
		srv.Shutdown()
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	logger.Info("worker started successfully",
		slog.Int("concurrency", cfg.Asynq.Concurrency),
		slog.Any("queues", cfg.Asynq.Queues))

	<-ctx.Done()
	logger.Info("shutdown signal received")

	scheduler.Shutdown()
	srv.Shutdown()
	return nil
}

// newScheduler registers the periodic stock reports
func newScheduler(cfg *config.Config, l *slog.Logger) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{
			Addr:     cfg.Asynq.RedisAddr,
			Password: cfg.Asynq.RedisPassword,
			DB:       cfg.Asynq.RedisDB,
		},
		&asynq.SchedulerOpts{
			Logger: logger.NewAsynqLogger(l),
		},
	)

	if cfg.Asynq.ExpiryScanCron != "" {
		task, err := workers.NewExpiryScanTask(cfg.Inventory.ExpiryWarningDays)
		if err != nil {
			return nil, err
		}
		if _, err := scheduler.Register(cfg.Asynq.ExpiryScanCron, task); err != nil {
			return nil, fmt.Errorf("failed to schedule expiry scan: %w", err)
		}
	}

	if cfg.Asynq.SalesReportCron != "" {
		// an empty range reports the current day
		task, err := workers.NewSalesReportTask(workers.SalesReportPayload{})
		if err != nil {
			return nil, err
		}
		if _, err := scheduler.Register(cfg.Asynq.SalesReportCron, task); err != nil {
			return nil, fmt.Errorf("failed to schedule sales report: %w", err)
		}
	}

	return scheduler, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*db.Database, error) {
	dbConfig := &db.Config{
		Host:               cfg.Database.Host,
		Port:               cfg.Database.Port,
		User:               cfg.Database.User,
		Password:           cfg.Database.Password,
		Database:           cfg.Database.Name,
		SSLMode:            cfg.Database.SSLMode,
		MaxConnections:     10, // Fewer connections for worker
		MinConnections:     2,
		MaxConnLifetime:    cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:    cfg.Database.MaxConnIdleTime,
		HealthCheckPeriod:  cfg.Database.HealthCheckPeriod,
		ConnectTimeout:     cfg.Database.ConnectTimeout,
		StatementCacheMode: cfg.Database.StatementCacheMode,
		EnableQueryLogging: cfg.Database.EnableQueryLogging,
	}

	return db.NewDatabase(ctx, dbConfig, logger)
}

func newObjectStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.ObjectStorage, error) {
	if cfg.Files.Storage == "s3" {
		return storage.NewS3Storage(ctx, &storage.S3Config{
			Region:          cfg.AWS.Region,
			Bucket:          cfg.AWS.S3Bucket,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Endpoint:        cfg.AWS.S3Endpoint,
			UsePathStyle:    cfg.AWS.UsePathStyle,
		}, logger)
	}
	return storage.NewLocalStorage(cfg.Files.LocalDir, logger)
}

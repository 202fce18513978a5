// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/ammerola/shelfstock-be/internal/adapters/db"
	"github.com/ammerola/shelfstock-be/internal/adapters/memory"
	"github.com/ammerola/shelfstock-be/internal/adapters/queue"
	redis_a "github.com/ammerola/shelfstock-be/internal/adapters/redis_adapter"
	"github.com/ammerola/shelfstock-be/internal/adapters/storage"
	"github.com/ammerola/shelfstock-be/internal/core/ports"
	"github.com/ammerola/shelfstock-be/internal/core/services"
	"github.com/ammerola/shelfstock-be/internal/handlers"
	"github.com/ammerola/shelfstock-be/internal/handlers/middleware"
	"github.com/ammerola/shelfstock-be/internal/pkg/config"
	"github.com/ammerola/shelfstock-be/internal/pkg/logger"
	"github.com/ammerola/shelfstock-be/internal/workers"
)

// Build information injected at compile time
var (
	Version   = "dev"
	BuildTime = "unknown"
	GoVersion = "unknown"
)

func main() {
	slogger := logger.SetupLogger("debug", "json")

	slogger.Info("starting shelfstock api",
		slog.String("version", Version),
		slog.String("build_time", BuildTime),
		slog.String("go_version", GoVersion),
	)

	cfg, err := config.Load(slogger.Logger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slogger = logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	slogger.Info("configuration loaded",
		slog.String("environment", cfg.App.Environment),
		slog.String("store_driver", cfg.Inventory.StoreDriver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, cfg, slogger.Logger); err != nil {
		slogger.Error("api stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slogger.Info("server shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	secrets, err := config.NewSecretsManager(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if err := config.ApplySecrets(ctx, cfg, secrets); err != nil {
		return err
	}

	deps, err := initializeDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.cleanup()

	server := setupHTTPServer(cfg, deps, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting HTTP server",
			slog.String("address", cfg.GetServerAddress()),
			slog.Bool("tls", cfg.Server.TLSEnabled),
		)

		var serveErr error
		if cfg.Server.TLSEnabled {
			serveErr = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			serveErr = server.ListenAndServe()
		}
		if errors.Is(serveErr, http.ErrServerClosed) {
			return nil
		}
		return serveErr
	})

	// without postgres no standalone worker can reach this process's stock,
	// so its tasks are served in-process
	if deps.inProcessWorker != nil {
		logger.Info("starting in-process worker")
		if err := deps.inProcessWorker.Start(deps.taskMux); err != nil {
			return fmt.Errorf("failed to start in-process worker: %w", err)
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.GracefulTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to gracefully shutdown server", slog.String("error", err.Error()))
			_ = server.Close()
		}
		if deps.inProcessWorker != nil {
			deps.inProcessWorker.Shutdown()
		}
		return nil
	})

	return g.Wait()
}

// dependencies holds all application dependencies
type dependencies struct {
	database        *db.Database
	redisClient     *redis.Client
	asynqClient     *asynq.Client
	asynqInspector  *asynq.Inspector
	routes          handlers.Routes
	inProcessWorker *asynq.Server
	taskMux         *asynq.ServeMux
}

func (d *dependencies) cleanup() {
	if d.database != nil {
		d.database.Close()
	}
	if d.asynqInspector != nil {
		d.asynqInspector.Close()
	}
	if d.asynqClient != nil {
		d.asynqClient.Close()
	}
	if d.redisClient != nil {
		d.redisClient.Close()
	}
}

func initializeDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dependencies, error) {
	deps := &dependencies{}

	var (
		store    ports.BatchStore
		sales    ports.SaleRepository
		database ports.Database
	)
	if cfg.UsesMemoryStore() {
		logger.Warn("using in-memory stock store, data is lost on restart")
		store = memory.NewBatchStore()
		sales = memory.NewSaleRepository()
	} else {
		pg, err := connectDatabase(ctx, cfg, logger)
		if err != nil {
			deps.cleanup()
			return nil, err
		}
		deps.database = pg
		database = pg
		store = db.NewBatchStore(pg, logger)
		sales = db.NewSaleRepository(pg, logger)
	}

	logger.Info("connecting to Redis", slog.String("address", cfg.GetRedisAddress()))
	redisClient := redis.NewClient(&redis.Options{
		Addr:            cfg.GetRedisAddress(),
		Password:        cfg.Redis.Password,
		DB:              cfg.Redis.DB,
		MaxRetries:      cfg.Redis.MaxRetries,
		MinRetryBackoff: cfg.Redis.MinRetryBackoff,
		MaxRetryBackoff: cfg.Redis.MaxRetryBackoff,
		DialTimeout:     cfg.Redis.DialTimeout,
		ReadTimeout:     cfg.Redis.ReadTimeout,
		WriteTimeout:    cfg.Redis.WriteTimeout,
		PoolSize:        cfg.Redis.PoolSize,
		MinIdleConns:    cfg.Redis.MinIdleConns,
		ConnMaxLifetime: cfg.Redis.MaxConnAge,
		PoolTimeout:     cfg.Redis.PoolTimeout,
		ConnMaxIdleTime: cfg.Redis.IdleTimeout,
	})
	deps.redisClient = redisClient
	if err := redisClient.Ping(ctx).Err(); err != nil {
		deps.cleanup()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	cache := redis_a.NewCache(redisClient, cfg.Redis.TTL, logger)
	cached := redis_a.NewCachedBatchStore(store, cache, cfg.Inventory.BatchCacheTTL, logger)

	asynqOpt := asynq.RedisClientOpt{
		Addr:     cfg.Asynq.RedisAddr,
		Password: cfg.Asynq.RedisPassword,
		DB:       cfg.Asynq.RedisDB,
	}
	deps.asynqClient = asynq.NewClient(asynqOpt)
	deps.asynqInspector = asynq.NewInspector(asynqOpt)
	publisher := queue.NewPublisher(deps.asynqClient, logger)

	objects, err := newObjectStorage(ctx, cfg, logger)
	if err != nil {
		deps.cleanup()
		return nil, err
	}

	// allocation always reads the authoritative store; the cache serves reads
	allocator := services.NewFefoAllocator(store, services.AllocatorConfig{
		MaxAttempts:    cfg.Inventory.MaxAllocationAttempts,
		InitialBackoff: cfg.Inventory.RetryInitialBackoff,
		MaxBackoff:     cfg.Inventory.RetryMaxBackoff,
	}, logger)
	saleProcessor := services.NewSaleProcessor(allocator, store, sales, publisher, cached, services.SaleProcessorConfig{
		Timeout:             cfg.Inventory.SaleTimeout,
		CompensationTimeout: cfg.Inventory.CompensationTimeout,
		MaxItems:            cfg.Inventory.MaxSaleItems,
	}, logger)
	stock := services.NewStockService(store, cached, cached, logger)

	expiry := workers.NewExpiryScanProcessor(store, cache, cfg.Inventory.ExpiryWarningDays, logger)

	deps.routes = handlers.Routes{
		Sales:   handlers.NewSaleHandler(saleProcessor, logger),
		Product: handlers.NewProductHandler(stock, logger),
		Export:  handlers.NewExportHandler(sales, logger),
		Import: handlers.NewImportHandler(stock, objects, publisher, deps.asynqInspector,
			cfg.Files.ImportPrefix, int64(cfg.Files.PDFMaxSizeMB)<<20, logger),
		Reports:        handlers.NewReportHandler(expiry, publisher, logger),
		MaxBodyBytes:   cfg.Security.MaxBodyBytes,
		MaxUploadBytes: int64(cfg.Files.PDFMaxSizeMB) << 20,
	}
	if cfg.Server.EnableHealthCheck {
		deps.routes.Health = handlers.NewHealthHandler(database, redisClient, deps.asynqInspector, cfg, logger)
	}

	if cfg.UsesMemoryStore() {
		deps.inProcessWorker = workers.NewServer(cfg.Asynq, logger)
		deps.taskMux = workers.Processors{
			SaleEvents:    workers.NewSaleEventsProcessor(store, cache, cached, cfg.Inventory.LowStockThreshold, logger),
			ExpiryScan:    expiry,
			SalesReport:   workers.NewSalesReportProcessor(sales, objects, cfg.Files.ReportPrefix, logger),
			RestockImport: workers.NewRestockImportProcessor(stock, objects, logger),
		}.ServeMux(logger)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

func connectDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*db.Database, error) {
	logger.Info("connecting to database",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Name),
	)

	database, err := db.NewDatabase(ctx, &db.Config{
		Host:               cfg.Database.Host,
		Port:               cfg.Database.Port,
		User:               cfg.Database.User,
		Password:           cfg.Database.Password,
		Database:           cfg.Database.Name,
		SSLMode:            cfg.Database.SSLMode,
		MaxConnections:     cfg.Database.MaxConnections,
		MinConnections:     cfg.Database.MinConnections,
		MaxConnLifetime:    cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:    cfg.Database.MaxConnIdleTime,
		HealthCheckPeriod:  cfg.Database.HealthCheckPeriod,
		ConnectTimeout:     cfg.Database.ConnectTimeout,
		StatementCacheMode: cfg.Database.StatementCacheMode,
		EnableQueryLogging: cfg.Database.EnableQueryLogging,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		logger.Info("running database migrations")
		err := db.RunMigrationsWithRetry(ctx, &db.MigrationConfig{
			DatabaseURL: cfg.GetDatabaseURL(),
			SourcePath:  cfg.Database.MigrationPath,
		}, logger, 3)
		if err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return database, nil
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

func setupHTTPServer(cfg *config.Config, deps *dependencies, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	deps.routes.Register(mux)

	if cfg.Server.EnablePprof && cfg.IsDevelopment() {
		mux.HandleFunc("GET /debug/pprof/", pprof.Index)
		mux.HandleFunc("GET /debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
	}

	// applied innermost first
	var handler http.Handler = mux
	handler = middleware.Compression(handler)
	if cfg.Server.RequestTimeout > 0 {
		handler = middleware.Timeout(cfg.Server.RequestTimeout)(handler)
	}
	if cfg.Security.SecureHeaders {
		handler = middleware.SecureHeaders(handler)
	}
	if len(cfg.Security.AllowedOrigins) > 0 {
		handler = middleware.CORS(cfg.Security.AllowedOrigins)(handler)
	}
	if cfg.Security.RateLimitRequests > 0 {
		handler = middleware.RateLimit(cfg.Security.RateLimitRequests, cfg.Security.RateLimitDuration)(handler)
	}
	handler = middleware.Recovery(logger)(handler)
	handler = middleware.Logger(logger)(handler)
	handler = middleware.RequestID(cfg.Security.RequestIDHeader)(handler)

	return &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        handler,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
}

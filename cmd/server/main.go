package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/liberta/backend/internal/application/ingest"
	"github.com/liberta/backend/internal/application/reconcile"
	"github.com/liberta/backend/internal/infrastructure/cache"
	"github.com/liberta/backend/internal/infrastructure/config"
	"github.com/liberta/backend/internal/infrastructure/delivery"
	"github.com/liberta/backend/internal/infrastructure/ecommerce"
	"github.com/liberta/backend/internal/infrastructure/logger"
	"github.com/liberta/backend/internal/infrastructure/persistence"
	"github.com/liberta/backend/internal/infrastructure/scheduler"
	"github.com/liberta/backend/internal/infrastructure/telemetry"
	"github.com/liberta/backend/internal/interfaces/http/handler"
	"github.com/liberta/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting Liberta sync backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	// Redis backs the sync cursors, request pacing and throttle flags
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing Redis client", zap.Error(err))
		}
	}()
	log.Info("Redis connected")

	cursors := cache.NewRedisCursorStore(redisClient, cfg.RateLimit.CursorTTL)
	limiter := cache.NewRedisRateLimiter(redisClient, cfg.RateLimit.MinDelay)
	throttle := cache.NewRedisThrottleFlags(redisClient, cfg.RateLimit.ThrottleTTL)

	// Repositories
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	customerRepo := persistence.NewGormCustomerRepository(db.DB)
	webhookEventRepo := persistence.NewGormWebhookEventRepository(db.DB)
	syncRunRepo := persistence.NewGormSyncRunRepository(db.DB)

	// Upstream clients
	storefrontClient := ecommerce.NewYouCanClient(limiter, throttle, cfg.Ingest.PageSize, log)
	carrierFactory := delivery.NewFactory(limiter, cfg.Reconcile.FetchConcurrency, log)

	// Telemetry
	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	syncMetrics, err := telemetry.NewSyncMetrics(meterProvider.Meter("liberta.sync"))
	if err != nil {
		log.Fatal("Failed to register sync metrics", zap.Error(err))
	}

	// Application services
	materializer := ingest.NewMaterializer(orderRepo, customerRepo, log)
	ingestService := ingest.NewService(
		storefrontClient,
		cursors,
		orderRepo,
		materializer,
		cfg.Sources,
		ingest.Config{
			PageSize:         cfg.Ingest.PageSize,
			RescanWindow:     cfg.Ingest.RescanWindow,
			MaxEmptyPages:    cfg.Ingest.MaxEmptyPages,
			FullScanMaxPages: cfg.Ingest.FullScanMaxPages,
		},
		log,
	)

	credRouter, err := reconcile.NewRouter(cfg.Carriers)
	if err != nil {
		log.Fatal("Failed to build carrier credential router", zap.Error(err))
	}
	reconcileService := reconcile.NewService(
		orderRepo,
		credRouter,
		carrierFactory,
		reconcile.Config{
			BulkMaxResults: cfg.Reconcile.BulkMaxResults,
			BatchSize:      cfg.Reconcile.BatchSize,
			FallbackBudget: cfg.Reconcile.FallbackBudget,
		},
		log,
	)
	webhookApplier := reconcile.NewWebhookApplier(orderRepo, webhookEventRepo, carrierFactory, log)

	// Scheduler. Throttle flags are keyed by store id, matching what the
	// storefront client writes on sustained 429s.
	throttleKeys := make([]string, 0, len(cfg.Sources))
	for _, store := range cfg.Sources {
		if store.Active {
			throttleKeys = append(throttleKeys, store.ID)
		}
	}
	sched, err := scheduler.NewSyncScheduler(scheduler.Config{
		IngestTimes:    cfg.Scheduler.IngestTimes,
		ReconcileTimes: cfg.Scheduler.ReconcileTimes,
		CheckInterval:  cfg.Scheduler.CheckInterval,
		JobTimeout:     cfg.Scheduler.JobTimeout,
	}, throttle, throttleKeys, syncRunRepo, log)
	if err != nil {
		log.Fatal("Failed to create scheduler", zap.Error(err))
	}
	sched.Register(scheduler.JobTypeIngest, func(ctx context.Context) (scheduler.RunStats, error) {
		stats, err := ingestService.SyncAll(ctx)
		syncMetrics.RecordIngest(ctx, "all", int64(stats.Created), int64(stats.Skipped))
		if err != nil {
			syncMetrics.RunFailures.Inc(ctx)
		}
		return scheduler.RunStats{
			Created: stats.Created,
			Skipped: stats.Skipped,
			Errors:  stats.Errors,
		}, err
	})
	sched.Register(scheduler.JobTypeReconcile, func(ctx context.Context) (scheduler.RunStats, error) {
		result, err := reconcileService.Reconcile(ctx, nil)
		if result.Updated > 0 {
			syncMetrics.ShippingUpdates.Add(ctx, int64(result.Updated))
		}
		if err != nil {
			syncMetrics.RunFailures.Inc(ctx)
		}
		return scheduler.RunStats{
			Updated: result.Updated,
			Skipped: result.Skipped + result.NotFound,
			Errors:  result.Errors,
		}, err
	})
	if cfg.Scheduler.Enabled {
		if err := sched.Start(context.Background()); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
		log.Info("Scheduler started",
			zap.Strings("ingest_times", cfg.Scheduler.IngestTimes),
			zap.Strings("reconcile_times", cfg.Scheduler.ReconcileTimes),
		)
	}

	// HTTP
	engine := router.New(cfg, log, router.Handlers{
		Health:  handler.NewHealthHandler(db.DB),
		Webhook: handler.NewCarrierWebhookHandler(webhookApplier),
		Sync:    handler.NewSyncHandler(sched, syncRunRepo),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.Scheduler.Enabled {
		if err := sched.Stop(shutdownCtx); err != nil {
			log.Error("Scheduler shutdown error", zap.Error(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Telemetry shutdown error", zap.Error(err))
	}

	log.Info("Shutdown complete")
}

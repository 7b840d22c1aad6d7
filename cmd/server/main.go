package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appintegration "github.com/overviewcreative/happyplacev2-sub013/internal/application/integration"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/auth"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/cache"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/config"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/logger"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/persistence"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/recordapi"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/scheduler"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/storage"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/telemetry"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/validation"
	"github.com/overviewcreative/happyplacev2-sub013/internal/interfaces/http/handler"
	"github.com/overviewcreative/happyplacev2-sub013/internal/interfaces/http/middleware"
	"github.com/overviewcreative/happyplacev2-sub013/internal/interfaces/http/router"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx := context.Background()

	providers, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.Telemetry.ServiceVersion,
		Insecure:          cfg.Telemetry.Insecure,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
		LogsEnabled:       cfg.Telemetry.LogsEnabled,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	if cfg.Telemetry.LogsEnabled {
		log = providers.BridgeLogger(log, logger.ParseLevel(cfg.Log.Level))
	}

	log.Info("Starting listing sync service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.Bool("remote_configured", cfg.RecordAPI.Configured()),
	)

	// Database
	db, err := persistence.NewDatabase(&cfg.Database, telemetry.DBTracingConfig{
		Enabled:            cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		IncludeVariables:   cfg.Telemetry.DBLogFullSQL,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:           "postgresql",
	}, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()
	log.Info("Database connected", zap.String("host", cfg.Database.Host))

	entityRepo := persistence.NewGormEntityRepository(db.DB)
	retryRepo := persistence.NewGormRetryQueueRepository(db.DB)
	degradationLog := persistence.NewGormDegradationLog(db.DB)

	syncMetrics, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
		Meter:           providers.Meter("listing-sync"),
		Logger:          log,
		CollectInterval: cfg.Scheduler.MetricsCollectTick,
		DepthProvider:   retryRepo,
	})
	if err != nil {
		log.Fatal("Failed to create sync metrics", zap.Error(err))
	}
	syncMetrics.Start(ctx)

	// Remote record API
	records, err := recordapi.NewRecordStore(recordapi.Config{
		BaseURL:           cfg.RecordAPI.BaseURL,
		BaseID:            cfg.RecordAPI.BaseID,
		APIToken:          cfg.RecordAPI.APIToken,
		TimeoutSeconds:    cfg.RecordAPI.TimeoutSeconds,
		RequestsPerSecond: cfg.RecordAPI.RequestsPerSecond,
		MaxRetries:        cfg.RecordAPI.MaxRetries,
	}, log)
	if err != nil {
		log.Fatal("Failed to create record API client", zap.Error(err))
	}
	if !cfg.RecordAPI.Configured() {
		log.Warn("Record API not configured, sync passes will fail until base ID and token are set")
	}

	// Pass locks and nonces
	stores, err := cache.NewStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateStores(ctx)
	if err != nil {
		log.Fatal("Failed to create coordination stores", zap.Error(err))
	}

	media, err := storage.NewMediaResolver(ctx, &cfg.Storage, storage.WithLogger(log))
	if err != nil {
		log.Fatal("Failed to create media resolver", zap.Error(err))
	}

	// Reconciliation engine
	degradations := appintegration.NewDegradationRecorder(degradationLog, syncMetrics, log)
	lookups := appintegration.NewLookupResolver(entityRepo, degradations)
	converter := appintegration.NewConverter(degradations, lookups, media)
	registry, err := appintegration.NewDefaultRegistry(converter, cfg.Sync.Tables)
	if err != nil {
		log.Fatal("Failed to build mapper registry", zap.Error(err))
	}

	syncService := appintegration.NewSyncService(
		registry,
		records,
		entityRepo,
		validation.NewFieldValidator(),
		appintegration.SyncConfig{
			AutoSyncEnabled:  cfg.Sync.AutoSyncEnabled,
			PageSize:         cfg.Sync.PageSize,
			PushWorkers:      cfg.Sync.PushWorkers,
			RecordTimeout:    cfg.Sync.RecordTimeout,
			PassLockTTL:      cfg.Sync.PassLockTTL,
			RetryBaseDelay:   cfg.Sync.RetryBaseDelay,
			RetryMaxAttempts: cfg.Sync.RetryMaxAttempts,
			Tables:           cfg.Sync.Tables,
		},
		log,
		appintegration.WithRetryQueue(retryRepo),
		appintegration.WithPassLock(stores.Lock),
		appintegration.WithSyncMetrics(syncMetrics),
	)
	entityService := appintegration.NewEntityService(entityRepo, syncService)

	// Background jobs
	var (
		jobs          handler.JobQueue
		syncScheduler *scheduler.SyncScheduler
	)
	tasks := []scheduler.PeriodicTask{
		scheduler.RetryDrainTask(syncService, cfg.Scheduler.RetryPollInterval, cfg.Scheduler.RetryBatchSize, log),
		scheduler.DegradationPruneTask(degradationLog, time.Hour, cfg.Scheduler.DegradationMaxAge, log),
	}
	if cfg.Scheduler.Enabled {
		syncScheduler, err = scheduler.NewSyncScheduler(scheduler.SyncSchedulerConfig{
			MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
			QueueSize:         scheduler.DefaultSyncSchedulerConfig().QueueSize,
			JobTimeout:        cfg.Scheduler.JobTimeout,
			RetryAttempts:     cfg.Scheduler.RetryAttempts,
			RetryDelay:        cfg.Scheduler.RetryDelay,
			HistoryLimit:      cfg.Scheduler.HistoryLimit,
		}, scheduler.NewRunnerExecutor(syncService), log)
		if err != nil {
			log.Fatal("Failed to create sync scheduler", zap.Error(err))
		}
		if err := syncScheduler.Start(ctx); err != nil {
			log.Fatal("Failed to start sync scheduler", zap.Error(err))
		}
		jobs = syncScheduler
		tasks = append(tasks, scheduler.ScheduledPullTask(syncScheduler, cfg.Scheduler.PullInterval))
		log.Info("Sync scheduler started",
			zap.Int("max_concurrent_jobs", cfg.Scheduler.MaxConcurrentJobs),
			zap.Duration("pull_interval", cfg.Scheduler.PullInterval),
		)
	}
	trigger := scheduler.NewTrigger(log, tasks...)
	if err := trigger.Start(ctx); err != nil {
		log.Fatal("Failed to start periodic tasks", zap.Error(err))
	}

	// Admin API
	tokens, err := auth.NewTokenService(cfg.Auth)
	if err != nil {
		log.Fatal("Failed to create token service", zap.Error(err))
	}
	limiter := middleware.NewRateLimiter(10, 20, 10*time.Minute)
	guards := router.NewGuards(tokens, stores.Nonces, cfg.Auth.RequireNonce, limiter, log)

	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, map[string]handler.HealthCheck{
		"database": db.Ping,
		"redis":    stores.Ping,
	})

	middleware.SetupValidator()
	cors := middleware.DefaultCORSConfig()
	if len(cfg.HTTP.CORSAllowOrigins) > 0 {
		cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	}
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	engine, err := router.NewEngine(router.EngineConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: providers.Enabled(),
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		CORS:           cors,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		Meter:          providers.Meter("listing-sync-http"),
		Logger:         log,
	}, systemHandler)
	if err != nil {
		log.Fatal("Failed to create HTTP engine", zap.Error(err))
	}

	router.NewRouter(engine).
		Register(router.SyncRoutes(handler.NewSyncHandler(syncService, jobs, retryRepo, degradations), guards)).
		Register(router.EntityRoutes(handler.NewEntityHandler(entityService), guards)).
		Register(router.AuthRoutes(handler.NewAuthHandler(stores.Nonces, cfg.Auth.NonceTTL), guards)).
		Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := trigger.Stop(shutdownCtx); err != nil {
		log.Warn("Periodic tasks did not stop cleanly", zap.Error(err))
	}
	if syncScheduler != nil {
		if err := syncScheduler.Stop(shutdownCtx); err != nil {
			log.Warn("Sync scheduler did not stop cleanly", zap.Error(err))
		}
	}
	syncMetrics.Stop()
	if err := stores.Close(); err != nil {
		log.Warn("Failed to close coordination stores", zap.Error(err))
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to flush telemetry", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

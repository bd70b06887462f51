package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/mxstorebi/mxstorebi/internal/app"
	"github.com/mxstorebi/mxstorebi/internal/attachments"
	"github.com/mxstorebi/mxstorebi/internal/dailysales"
	"github.com/mxstorebi/mxstorebi/internal/dashboard"
	"github.com/mxstorebi/mxstorebi/internal/observability"
	"github.com/mxstorebi/mxstorebi/internal/platform/cache"
	"github.com/mxstorebi/mxstorebi/internal/platform/db"
	"github.com/mxstorebi/mxstorebi/internal/shared"
	"github.com/mxstorebi/mxstorebi/internal/stores"
	"github.com/mxstorebi/mxstorebi/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger, closeLog := app.NewLogger(cfg)
	defer func() { _ = closeLog() }()

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("load timezone", slog.Any("error", err))
		os.Exit(1)
	}
	tolerance, err := cfg.Tolerance()
	if err != nil {
		logger.Error("parse tolerance", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool, logger)
	storeService := stores.NewService(stores.NewRepository(pool), auditLogger)

	storage, err := attachments.NewStorage(ctx, cfg.StorageProvider, cfg.UploadDir, cfg.GCSBucket, cfg.GCSCredentialsJSON)
	if err != nil {
		logger.Error("init storage", slog.Any("error", err))
		os.Exit(1)
	}
	// the worker never enqueues thumbnails itself
	attachmentService := attachments.NewService(attachments.NewRepository(pool), storage, nil, auditLogger, nil, logger, cfg.UploadMaxBytes)

	dashboardCache := dashboard.NewCache(redisClient, cfg.DashboardCacheTTL)
	dashboardService := dashboard.NewService(dashboard.NewRepository(pool), storeService, dashboardCache, logger, loc)

	reportService := dailysales.NewService(
		dailysales.NewRepository(pool),
		cache.NewLocker(redisClient),
		storeService,
		attachmentService,
		dashboardCache,
		auditLogger,
		logger,
		dailysales.Options{Tolerance: &tolerance, PerPage: cfg.RecordsPerPage, Location: loc},
	)

	metrics := observability.NewMetrics()
	handlers := jobs.NewJobs(attachmentService, reportService, dashboardService, logger, metrics.Jobs).
		WithKeyPurger(shared.NewIdempotencyStore(pool))

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Location:    loc,
		Handlers:    handlers.Handlers(),
		Cron:        jobs.DefaultCron(),
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              cfg.WorkerMetricsAddr,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("serving worker metrics", slog.String("addr", cfg.WorkerMetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

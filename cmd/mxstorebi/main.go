package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/hibiken/asynq"

	"github.com/mxstorebi/mxstorebi/cmd/mxstorebi/cli"
	"github.com/mxstorebi/mxstorebi/internal/app"
	"github.com/mxstorebi/mxstorebi/internal/attachments"
	"github.com/mxstorebi/mxstorebi/internal/audit"
	audithttp "github.com/mxstorebi/mxstorebi/internal/audit/http"
	"github.com/mxstorebi/mxstorebi/internal/auth"
	"github.com/mxstorebi/mxstorebi/internal/dailysales"
	"github.com/mxstorebi/mxstorebi/internal/dashboard"
	"github.com/mxstorebi/mxstorebi/internal/observability"
	"github.com/mxstorebi/mxstorebi/internal/platform/cache"
	"github.com/mxstorebi/mxstorebi/internal/platform/db"
	"github.com/mxstorebi/mxstorebi/internal/rbac"
	"github.com/mxstorebi/mxstorebi/internal/shared"
	"github.com/mxstorebi/mxstorebi/internal/staff"
	"github.com/mxstorebi/mxstorebi/internal/stores"
	"github.com/mxstorebi/mxstorebi/internal/users"
	"github.com/mxstorebi/mxstorebi/internal/view"
	"github.com/mxstorebi/mxstorebi/jobs"
	"github.com/mxstorebi/mxstorebi/migrations"
	"github.com/mxstorebi/mxstorebi/report"
)

const sessionCookie = "mxstorebi_session"

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		if err := runJobsCommand(ctx, cfg, os.Args[2:]); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, stop, cfg, logger); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	tolerance, err := cfg.Tolerance()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer dbpool.Close()

	if cfg.RunMigrationsOnBoot {
		if err := db.Migrate(ctx, dbpool, migrations.Files, logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, sessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}

	auditLogger := shared.NewAuditLogger(dbpool, logger)
	idempotency := shared.NewIdempotencyStore(dbpool)

	rbacService := rbac.NewService(rbac.NewPrincipalStore(dbpool), redisClient, logger)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	storeService := stores.NewService(stores.NewRepository(dbpool), auditLogger)
	staffService := staff.NewService(staff.NewRepository(dbpool), storeService, auditLogger)
	userService := users.NewService(users.NewRepository(dbpool), storeService, rbacService, auditLogger, users.Options{
		PerPage:       cfg.RecordsPerPage,
		ResetPassword: cfg.DefaultResetPassword,
	})
	authService := auth.NewService(auth.NewRepository(dbpool), auditLogger)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	storage, err := attachments.NewStorage(ctx, cfg.StorageProvider, cfg.UploadDir, cfg.GCSBucket, cfg.GCSCredentialsJSON)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	attachmentService := attachments.NewService(attachments.NewRepository(dbpool), storage, jobClient, auditLogger, idempotency, logger, cfg.UploadMaxBytes)

	dashboardCache := dashboard.NewCache(redisClient, cfg.DashboardCacheTTL)
	dashboardService := dashboard.NewService(dashboard.NewRepository(dbpool), storeService, dashboardCache, logger, loc)

	reportService := dailysales.NewService(
		dailysales.NewRepository(dbpool),
		cache.NewLocker(redisClient),
		storeService,
		attachmentService,
		dashboardCache,
		auditLogger,
		logger,
		dailysales.Options{
			Tolerance:   &tolerance,
			PerPage:     cfg.RecordsPerPage,
			Location:    loc,
			Idempotency: idempotency,
			Warmup:      jobClient,
		},
	)

	pdfClient := report.NewClient(cfg.GotenbergURL)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Templates:          templates,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		RBACMiddleware:     rbacMiddleware,
		AuthHandler:        auth.NewHandler(logger, authService, userService, storeService, templates, sessionManager, csrfManager),
		DashboardHandler:   dashboard.NewHandler(logger, dashboardService, templates, csrfManager, rbacMiddleware),
		ReportsHandler:     dailysales.NewHandler(logger, reportService, pdfClient, templates, csrfManager, rbacMiddleware, cfg.UploadMaxBytes),
		AttachmentsHandler: attachments.NewHandler(logger, attachmentService, rbacMiddleware),
		UsersHandler:       users.NewHandler(logger, userService, storeService, templates, csrfManager, rbacMiddleware),
		ProfileHandler:     users.NewProfileHandler(logger, userService, staffService, templates, csrfManager, rbacMiddleware),
		StaffHandler:       staff.NewHandler(logger, staffService, storeService, templates, csrfManager, rbacMiddleware),
		StoresHandler:      stores.NewHandler(logger, storeService, templates, csrfManager, rbacMiddleware),
		PermissionsHandler: rbac.NewPermissionsHandler(logger, templates, csrfManager, rbacMiddleware),
		AuditHandler:       audithttp.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool)), templates, csrfManager, rbacMiddleware),
		ReportHandler:      report.NewHandler(pdfClient, logger, rbacMiddleware),
		JobHandler:         jobs.NewHandler(inspector, logger, rbacMiddleware),
		Metrics:            observability.NewMetrics(),
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// runJobsCommand handles "jobs trigger <name>" and "jobs stats".
func runJobsCommand(ctx context.Context, cfg *app.Config, args []string) error {
	jc := cli.NewJobsCLI(cfg.RedisAddr)
	defer jc.Close()

	if len(args) == 0 {
		return fmt.Errorf("usage: mxstorebi jobs trigger <%v> | stats", cli.Triggerable())
	}
	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return fmt.Errorf("usage: mxstorebi jobs trigger <%v>", cli.Triggerable())
		}
		info, err := jc.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
		return nil
	case "stats":
		stats, err := jc.InspectQueues(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY\tARCHIVED")
		for _, s := range stats {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Archived)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown jobs subcommand %q", args[0])
	}
}

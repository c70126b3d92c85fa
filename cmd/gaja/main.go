package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/MohammedEweedan/gaja-erp/internal/app"
	"github.com/MohammedEweedan/gaja-erp/internal/attendance"
	"github.com/MohammedEweedan/gaja-erp/internal/invoices"
	"github.com/MohammedEweedan/gaja-erp/internal/ledger"
	"github.com/MohammedEweedan/gaja-erp/internal/loans"
	"github.com/MohammedEweedan/gaja-erp/internal/observability"
	"github.com/MohammedEweedan/gaja-erp/internal/payroll"
	"github.com/MohammedEweedan/gaja-erp/internal/platform/cache"
	"github.com/MohammedEweedan/gaja-erp/internal/platform/db"
	"github.com/MohammedEweedan/gaja-erp/internal/shared"
	"github.com/MohammedEweedan/gaja-erp/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
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

	locker := shared.NewRedisLocker(redisClient, cfg.LockTTL)
	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, pool, auditLogger, logger)

	attendanceProvider := attendance.NewProvider(pool)

	payrollRepo := payroll.NewRepository(pool)

	loansRepo := loans.NewRepository(pool)
	loansService := loans.NewService(loansRepo, payrollRepo, auditLogger, logger)

	payrollService := payroll.NewService(payrollRepo, attendanceProvider, loansService, ledgerService, locker, auditLogger, logger)
	payrollService.WithMetrics(metrics)

	invoicesRepo := invoices.NewRepository(pool)
	invoicesService := invoices.NewService(invoicesRepo, ledgerService, cfg.Accounts, locker, auditLogger, logger)
	invoicesService.WithMetrics(metrics)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, jobsClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		PayrollHandler:  payroll.NewHandler(logger, payrollService, cfg.Accounts),
		LoansHandler:    loans.NewHandler(logger, loansService),
		InvoicesHandler: invoices.NewHandler(logger, invoicesService),
		LedgerHandler:   ledger.NewHandler(logger, ledgerService),
		JobsHandler:     jobsHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

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

	"github.com/veranda-hq/veranda/internal/app"
	"github.com/veranda-hq/veranda/internal/budget"
	budgethttp "github.com/veranda-hq/veranda/internal/budget/http"
	"github.com/veranda-hq/veranda/internal/closure"
	closurehttp "github.com/veranda-hq/veranda/internal/closure/http"
	"github.com/veranda-hq/veranda/internal/ledger"
	"github.com/veranda-hq/veranda/internal/ledger/accounts"
	accountshttp "github.com/veranda-hq/veranda/internal/ledger/accounts/http"
	"github.com/veranda-hq/veranda/internal/ledger/balance"
	ledgerhttp "github.com/veranda-hq/veranda/internal/ledger/http"
	"github.com/veranda-hq/veranda/internal/observability"
	"github.com/veranda-hq/veranda/internal/platform/cache"
	"github.com/veranda-hq/veranda/internal/platform/db"
	"github.com/veranda-hq/veranda/internal/reports"
	reportshttp "github.com/veranda-hq/veranda/internal/reports/http"
	"github.com/veranda-hq/veranda/internal/shared"
	"github.com/veranda-hq/veranda/internal/tenant"
	"github.com/veranda-hq/veranda/jobs"
)

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

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	registry := tenant.NewRegistry(pool, cfg.PGTenantDSNTemplate)
	defer registry.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, report caching disabled", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(registry)

	balanceRepo := balance.NewRepository(registry)
	calculator := balance.NewCalculator(balanceRepo)

	accountsRepo := accounts.NewRepository(registry)
	accountsService := accounts.NewService(accountsRepo)

	closureRepo := closure.NewRepository(registry)
	closureService := closure.NewService(closureRepo, calculator, auditLogger, cfg.ClosingAccountCode)

	ledgerRepo := ledger.NewRepository(registry)
	ledgerService := ledger.NewService(ledgerRepo, auditLogger, closureService)
	ledgerService.WithMetrics(metrics)

	budgetRepo := budget.NewRepository(registry)
	budgetService := budget.NewService(budgetRepo, calculator, accountsService, cfg.BudgetAlertThreshold)

	reportsService := reports.NewService(calculator)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		LedgerHandler:   ledgerhttp.NewHandler(logger, ledgerService, ledgerRepo),
		AccountsHandler: accountshttp.NewHandler(logger, accountsService),
		ClosureHandler:  closurehttp.NewHandler(logger, closureService),
		BudgetHandler:   budgethttp.NewHandler(logger, budgetService),
		ReportsHandler:  reportshttp.NewHandler(logger, reportsService, redisClient, cfg.ReportCacheTTL),
		JobsHandler:     jobs.NewHandler(inspector, logger),
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

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/veranda-hq/veranda/internal/app"
	"github.com/veranda-hq/veranda/internal/budget"
	jobmetrics "github.com/veranda-hq/veranda/internal/jobs"
	"github.com/veranda-hq/veranda/internal/ledger/accounts"
	"github.com/veranda-hq/veranda/internal/ledger/balance"
	"github.com/veranda-hq/veranda/internal/observability"
	"github.com/veranda-hq/veranda/internal/platform/db"
	"github.com/veranda-hq/veranda/internal/shared"
	"github.com/veranda-hq/veranda/internal/tenant"
	"github.com/veranda-hq/veranda/jobs"
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

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	registry := tenant.NewRegistry(pool, cfg.PGTenantDSNTemplate)
	defer registry.Close()

	metrics := observability.NewMetrics()
	jm := jobmetrics.NewMetrics(metrics.Registerer())
	auditLogger := shared.NewAuditLogger(registry)

	balanceRepo := balance.NewRepository(registry)
	calculator := balance.NewCalculator(balanceRepo)
	accountsService := accounts.NewService(accounts.NewRepository(registry))
	budgetService := budget.NewService(budget.NewRepository(registry), calculator, accountsService, cfg.BudgetAlertThreshold)

	integrityJob := jobs.NewLedgerIntegrityJob(registry, logger, metrics, jm)
	alertsJob := jobs.NewBudgetAlertsJob(budgetService, registry, auditLogger, logger, metrics, jm)

	integrityTask, err := jobs.NewLedgerIntegrityTask(jobs.IntegrityScanPayload{})
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}
	alertsTask, err := jobs.NewBudgetAlertsTask(jobs.BudgetAlertsPayload{})
	if err != nil {
		logger.Error("build budget alerts task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLedgerIntegrity, Handler: integrityJob.Handle},
			{Type: jobs.TaskBudgetAlerts, Handler: alertsJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 1 * * *", Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 2 1 * *", Task: alertsTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

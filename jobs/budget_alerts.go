package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/veranda-hq/veranda/internal/budget"
	jobmetrics "github.com/veranda-hq/veranda/internal/jobs"
	"github.com/veranda-hq/veranda/internal/observability"
	"github.com/veranda-hq/veranda/internal/shared"
	"github.com/veranda-hq/veranda/internal/tenant"
)

// BudgetAlertsJob recomputes budget execution for the previous month and
// records an audit trail entry for every threshold breach.
type BudgetAlertsJob struct {
	Budgets    *budget.Service
	Pools      *tenant.Registry
	Audit      *shared.AuditLogger
	Logger     *slog.Logger
	Metrics    *observability.Metrics
	JobMetrics *jobmetrics.Metrics
	clock      func() time.Time
}

// NewBudgetAlertsJob initialises the variance scan handler.
func NewBudgetAlertsJob(budgets *budget.Service, pools *tenant.Registry, audit *shared.AuditLogger, logger *slog.Logger, metrics *observability.Metrics, jm *jobmetrics.Metrics) *BudgetAlertsJob {
	return &BudgetAlertsJob{
		Budgets:    budgets,
		Pools:      pools,
		Audit:      audit,
		Logger:     logger,
		Metrics:    metrics,
		JobMetrics: jm,
		clock:      func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the scan.
func (j *BudgetAlertsJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Budgets == nil {
		return errors.New("budget alerts: handler not configured")
	}
	var payload BudgetAlertsPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.JobMetrics.Track(TaskBudgetAlerts)
	var resultErr error
	defer func() { _ = tracker.End(resultErr) }()

	year, month := payload.FiscalYear, payload.Month
	if year == 0 || month == 0 {
		prev := j.clock().AddDate(0, -1, 0)
		year, month = prev.Year(), int(prev.Month())
	}
	tenants := payload.TenantIDs
	if len(tenants) == 0 {
		tenants, resultErr = j.budgetedTenants(ctx, year)
		if resultErr != nil {
			return resultErr
		}
	}
	for _, tenantID := range tenants {
		scoped := tenant.ContextWithID(ctx, tenantID)
		alerts, err := j.Budgets.ScanAlerts(scoped, tenantID, year, month)
		if err != nil {
			if errors.Is(err, budget.ErrNotFound) {
				continue
			}
			resultErr = err
			return err
		}
		for _, row := range alerts {
			j.Metrics.BudgetAlert()
			j.Logger.Warn("budget variance breach",
				slog.Int64("conjunto_id", tenantID),
				slog.String("account", row.AccountCode),
				slog.Int("month", row.Month),
				slog.Float64("budgeted", row.Budgeted),
				slog.Float64("executed", row.Executed),
			)
			if j.Audit != nil {
				_ = j.Audit.Record(scoped, shared.AuditLog{
					Action:   "budget.variance_alert",
					Entity:   "budget_item",
					EntityID: fmt.Sprintf("%d", row.AccountID),
					Meta: map[string]any{
						"fiscal_year": year,
						"month":       month,
						"budgeted":    row.Budgeted,
						"executed":    row.Executed,
						"variance":    row.Variance,
					},
					At: j.clock(),
				})
			}
		}
	}
	return nil
}

func (j *BudgetAlertsJob) budgetedTenants(ctx context.Context, fiscalYear int) ([]int64, error) {
	pool, err := j.Pools.Pool(ctx, 0)
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, `SELECT DISTINCT conjunto_id FROM budgets WHERE fiscal_year=$1 ORDER BY conjunto_id`, fiscalYear)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

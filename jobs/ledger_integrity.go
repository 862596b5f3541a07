package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/veranda-hq/veranda/internal/jobs"
	"github.com/veranda-hq/veranda/internal/observability"
	"github.com/veranda-hq/veranda/internal/tenant"
)

// LedgerIntegrityJob rechecks the double-entry invariant over posted
// transactions. Violations are logged and counted, never auto-corrected.
type LedgerIntegrityJob struct {
	Pools      *tenant.Registry
	Logger     *slog.Logger
	Metrics    *observability.Metrics
	JobMetrics *jobmetrics.Metrics
}

// NewLedgerIntegrityJob initialises the integrity scan handler.
func NewLedgerIntegrityJob(pools *tenant.Registry, logger *slog.Logger, metrics *observability.Metrics, jm *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{Pools: pools, Logger: logger, Metrics: metrics, JobMetrics: jm}
}

// Handle executes the scan.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pools == nil {
		return errors.New("integrity scan: handler not configured")
	}
	var payload IntegrityScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.JobMetrics.Track(TaskLedgerIntegrity)
	var resultErr error
	defer func() { _ = tracker.End(resultErr) }()

	tenants := payload.TenantIDs
	if len(tenants) == 0 {
		tenants, resultErr = j.allTenants(ctx)
		if resultErr != nil {
			return resultErr
		}
	}
	for _, tenantID := range tenants {
		violations, err := j.scanTenant(ctx, tenantID)
		if err != nil {
			resultErr = err
			return err
		}
		for _, v := range violations {
			j.Metrics.IntegrityViolation()
			j.Logger.Error("unbalanced posted transaction",
				slog.Int64("conjunto_id", tenantID),
				slog.Int64("transaction_id", v.TransactionID),
				slog.Float64("debit", v.Debit),
				slog.Float64("credit", v.Credit),
			)
		}
	}
	return nil
}

type integrityViolation struct {
	TransactionID int64
	Debit         float64
	Credit        float64
}

func (j *LedgerIntegrityJob) allTenants(ctx context.Context) ([]int64, error) {
	pool, err := j.Pools.Pool(ctx, 0)
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, `SELECT DISTINCT conjunto_id FROM accounting_transactions ORDER BY conjunto_id`)
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

func (j *LedgerIntegrityJob) scanTenant(ctx context.Context, tenantID int64) ([]integrityViolation, error) {
	pool, err := j.Pools.Pool(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, `SELECT t.id, COALESCE(SUM(e.debit_amount),0), COALESCE(SUM(e.credit_amount),0)
FROM accounting_transactions t
JOIN accounting_transaction_entries e ON e.transaction_id = t.id
WHERE t.conjunto_id=$1 AND t.status='POSTED'
GROUP BY t.id
HAVING ABS(COALESCE(SUM(e.debit_amount),0) - COALESCE(SUM(e.credit_amount),0)) >= 0.01`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []integrityViolation
	for rows.Next() {
		var v integrityViolation
		if err := rows.Scan(&v.TransactionID, &v.Debit, &v.Credit); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

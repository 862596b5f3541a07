// Package jobs holds the asynq background tasks: the nightly ledger
// integrity scan and the monthly budget variance scan.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity rechecks that every posted transaction balances.
	TaskLedgerIntegrity = "ledger:integrity_scan"
	// TaskBudgetAlerts recomputes budget execution and flags breaches.
	TaskBudgetAlerts = "budget:variance_scan"
)

// IntegrityScanPayload scopes the integrity scan. Empty TenantIDs means
// every tenant found in the default shard.
type IntegrityScanPayload struct {
	TenantIDs []int64 `json:"tenant_ids,omitempty"`
}

// BudgetAlertsPayload scopes the variance scan. Zero FiscalYear/Month mean
// the month before the run date.
type BudgetAlertsPayload struct {
	TenantIDs  []int64 `json:"tenant_ids,omitempty"`
	FiscalYear int     `json:"fiscal_year,omitempty"`
	Month      int     `json:"month,omitempty"`
}

// NewLedgerIntegrityTask constructs an integrity scan task.
func NewLedgerIntegrityTask(payload IntegrityScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}

// NewBudgetAlertsTask constructs a variance scan task.
func NewBudgetAlertsTask(payload BudgetAlertsPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBudgetAlerts, data), nil
}

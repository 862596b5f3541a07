package budget

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/veranda-hq/veranda/internal/ledger"
)

// BalancePort supplies posted activity per account for a date range.
type BalancePort interface {
	Balance(ctx context.Context, account ledger.Account, from, to *time.Time) (float64, error)
}

// AccountsPort resolves accounts referenced by budget items.
type AccountsPort interface {
	Get(ctx context.Context, tenantID, id int64) (ledger.Account, error)
}

// Service manages budgets and computes execution on demand.
type Service struct {
	repo           RepositoryPort
	balances       BalancePort
	accounts       AccountsPort
	alertThreshold float64
}

// NewService constructs the budget service. alertThreshold is the |variance|
// over budgeted ratio above which a row is flagged, e.g. 0.10 for 10%.
func NewService(repo RepositoryPort, balances BalancePort, accounts AccountsPort, alertThreshold float64) *Service {
	if alertThreshold <= 0 {
		alertThreshold = 0.10
	}
	return &Service{repo: repo, balances: balances, accounts: accounts, alertThreshold: alertThreshold}
}

// Create validates and stores a budget with its items.
func (s *Service) Create(ctx context.Context, in CreateInput) (Budget, error) {
	if err := in.Validate(); err != nil {
		return Budget{}, err
	}
	b := Budget{
		TenantID:   in.TenantID,
		FiscalYear: in.FiscalYear,
		Name:       in.Name,
		Notes:      in.Notes,
		CreatedBy:  in.ActorID,
	}
	for _, item := range in.Items {
		if _, err := s.accounts.Get(ctx, in.TenantID, item.AccountID); err != nil {
			return Budget{}, err
		}
		b.Items = append(b.Items, Item{
			AccountID: item.AccountID,
			Category:  item.Category,
			Monthly:   item.Monthly,
		})
	}
	return s.repo.Insert(ctx, b)
}

// Get loads a budget with items.
func (s *Service) Get(ctx context.Context, tenantID, id int64) (Budget, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

// List returns the tenant's budgets.
func (s *Service) List(ctx context.Context, tenantID int64) ([]Budget, error) {
	return s.repo.List(ctx, tenantID)
}

// Delete removes a budget.
func (s *Service) Delete(ctx context.Context, tenantID, id int64) error {
	return s.repo.Delete(ctx, tenantID, id)
}

// Execution computes budgeted vs executed per item for one month of the
// budget's fiscal year. Executed is the nature-signed posted balance of the
// item's account restricted to the month.
func (s *Service) Execution(ctx context.Context, tenantID, budgetID int64, month int) (Execution, error) {
	if month < 1 || month > MonthsPerYear {
		return Execution{}, fmt.Errorf("%w: month must be 1..12", ledger.ErrValidation)
	}
	b, err := s.repo.GetByID(ctx, tenantID, budgetID)
	if err != nil {
		return Execution{}, err
	}
	from, to := MonthRange(b.FiscalYear, month)
	exec := Execution{BudgetID: b.ID, FiscalYear: b.FiscalYear, Month: month}
	for _, item := range b.Items {
		account, err := s.accounts.Get(ctx, tenantID, item.AccountID)
		if err != nil {
			return Execution{}, err
		}
		executed, err := s.balances.Balance(ctx, account, &from, &to)
		if err != nil {
			return Execution{}, err
		}
		budgeted := item.Monthly[month-1]
		row := ExecutionRow{
			AccountID:   account.ID,
			AccountCode: account.Code,
			AccountName: account.Name,
			Category:    item.Category,
			Month:       month,
			Budgeted:    budgeted,
			Executed:    executed,
			Variance:    executed - budgeted,
		}
		if budgeted != 0 {
			row.VariancePct = row.Variance / budgeted
			row.Alert = math.Abs(row.Variance)/budgeted > s.alertThreshold
		} else {
			row.Alert = executed != 0
		}
		exec.Rows = append(exec.Rows, row)
	}
	return exec, nil
}

// ScanAlerts computes execution for the given month across every budget of
// the tenant's fiscal year and returns only the rows breaching the
// threshold. Used by the background variance scan.
func (s *Service) ScanAlerts(ctx context.Context, tenantID int64, fiscalYear, month int) ([]ExecutionRow, error) {
	b, err := s.repo.GetByYear(ctx, tenantID, fiscalYear)
	if err != nil {
		return nil, err
	}
	exec, err := s.Execution(ctx, tenantID, b.ID, month)
	if err != nil {
		return nil, err
	}
	var alerts []ExecutionRow
	for _, row := range exec.Rows {
		if row.Alert {
			alerts = append(alerts, row)
		}
	}
	return alerts, nil
}

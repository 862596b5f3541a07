// Package budget manages annual budgets and computes their execution.
// Execution is never stored; it is derived on demand from posted entries
// and compared against the budgeted monthly distribution.
package budget

import (
	"errors"
	"fmt"
	"time"

	"github.com/veranda-hq/veranda/internal/ledger"
)

// MonthsPerYear is the number of monthly buckets per budget item.
const MonthsPerYear = 12

// Budget is an annual plan for a tenant with per-account line items.
type Budget struct {
	ID         int64
	TenantID   int64
	FiscalYear int
	Name       string
	Notes      string
	CreatedBy  int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Items      []Item
}

// Item is one budget line: an account with its yearly amount split across
// twelve monthly buckets.
type Item struct {
	ID        int64
	BudgetID  int64
	AccountID int64
	Category  string
	Monthly   [MonthsPerYear]float64
}

// AnnualTotal sums the monthly buckets.
func (i Item) AnnualTotal() float64 {
	var total float64
	for _, m := range i.Monthly {
		total += m
	}
	return total
}

// ExecutionRow compares one account's budgeted amount against posted
// activity for a month.
type ExecutionRow struct {
	AccountID   int64
	AccountCode string
	AccountName string
	Category    string
	Month       int
	Budgeted    float64
	Executed    float64
	Variance    float64
	VariancePct float64
	Alert       bool
}

// Execution is the computed execution report for a budget and month.
type Execution struct {
	BudgetID   int64
	FiscalYear int
	Month      int
	Rows       []ExecutionRow
}

// CreateInput carries a new budget with its items.
type CreateInput struct {
	TenantID   int64
	FiscalYear int
	Name       string
	Notes      string
	ActorID    int64
	Items      []ItemInput
}

// ItemInput is one budget line on input.
type ItemInput struct {
	AccountID int64
	Category  string
	Monthly   [MonthsPerYear]float64
}

var (
	// ErrNotFound indicates a missing budget.
	ErrNotFound = errors.New("budget: budget not found")
	// ErrDuplicateYear indicates the tenant already budgets that year.
	ErrDuplicateYear = errors.New("budget: fiscal year already has a budget")
)

// Validate checks the create input.
func (in CreateInput) Validate() error {
	if in.TenantID == 0 {
		return fmt.Errorf("%w: tenant required", ledger.ErrValidation)
	}
	if in.FiscalYear < 1900 || in.FiscalYear > 2200 {
		return fmt.Errorf("%w: fiscal year out of range", ledger.ErrValidation)
	}
	if in.Name == "" {
		return fmt.Errorf("%w: name required", ledger.ErrValidation)
	}
	if len(in.Items) == 0 {
		return fmt.Errorf("%w: at least one item required", ledger.ErrValidation)
	}
	for _, item := range in.Items {
		if item.AccountID == 0 {
			return fmt.Errorf("%w: item account required", ledger.ErrValidation)
		}
		for _, m := range item.Monthly {
			if m < 0 {
				return fmt.Errorf("%w: monthly amounts must be non-negative", ledger.ErrValidation)
			}
		}
	}
	return nil
}

// MonthRange returns the first and last day of the month.
func MonthRange(year, month int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return start, end
}

package closure

import (
	"errors"
	"fmt"
	"time"

	"github.com/veranda-hq/veranda/internal/ledger"
)

// Status enumerates closure lifecycle values.
type Status string

const (
	StatusCompleted Status = "COMPLETED"
	StatusReversed  Status = "REVERSED"
)

// Closure records a completed annual close for a tenant. A fiscal year has
// at most one completed closure.
type Closure struct {
	ID                   int64
	TenantID             int64
	FiscalYear           int
	ClosureDate          time.Time
	NetResult            float64
	IsProfit             bool
	ClosingTransactionID int64
	Status               Status
	Notes                string
	CreatedBy            int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Preview is the projected outcome of closing a fiscal year.
type Preview struct {
	FiscalYear   int
	IncomeTotal  float64
	ExpenseTotal float64
	NetResult    float64
	IsProfit     bool
}

// ExecuteInput groups parameters for executing an annual closure.
type ExecuteInput struct {
	TenantID    int64
	FiscalYear  int
	ClosureDate time.Time
	Notes       string
	ActorID     int64
}

// ReverseResult summarises a reversal.
type ReverseResult struct {
	ClosureID             int64
	TransactionsCancelled int
}

var (
	// ErrAlreadyClosed indicates a completed closure exists for the year.
	ErrAlreadyClosed = errors.New("closure: fiscal year already closed")
	// ErrNotFound indicates a missing closure record.
	ErrNotFound = errors.New("closure: closure not found")
	// ErrNotReversible indicates a later fiscal year is closed on top.
	ErrNotReversible = errors.New("closure: closure cannot be reversed")
	// ErrNothingToClose indicates the year has no posted income or expense.
	ErrNothingToClose = errors.New("closure: no income or expense activity for the year")
	// ErrClosingAccountMissing indicates the retained-result account is absent.
	ErrClosingAccountMissing = errors.New("closure: retained result account not found")
)

// Validate ensures the execute input is coherent.
func (in ExecuteInput) Validate() error {
	if in.TenantID == 0 {
		return fmt.Errorf("%w: tenant required", ledger.ErrValidation)
	}
	if in.FiscalYear < 1900 || in.FiscalYear > 2200 {
		return fmt.Errorf("%w: fiscal year out of range", ledger.ErrValidation)
	}
	if in.ClosureDate.IsZero() {
		return fmt.Errorf("%w: closure date required", ledger.ErrValidation)
	}
	return nil
}

// YearRange returns the first and last day of the fiscal year.
func YearRange(fiscalYear int) (time.Time, time.Time) {
	start := time.Date(fiscalYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(fiscalYear, time.December, 31, 0, 0, 0, 0, time.UTC)
	return start, end
}

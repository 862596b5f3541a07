package closure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/veranda-hq/veranda/internal/ledger"
	"github.com/veranda-hq/veranda/internal/ledger/balance"
	"github.com/veranda-hq/veranda/internal/shared"
)

// BalancePort supplies aggregated balances for closing computations.
type BalancePort interface {
	Balances(ctx context.Context, tenantID int64, types []ledger.AccountType, from, to *time.Time) ([]balance.AccountBalance, error)
}

// AuditPort records closure events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates annual closures: preview, execute, reverse.
type Service struct {
	repo               RepositoryPort
	balances           BalancePort
	audit              AuditPort
	closingAccountCode string
	now                func() time.Time
}

// NewService constructs the closure service. closingAccountCode names the
// retained-result equity account income and expense are zeroed into.
func NewService(repo RepositoryPort, balances BalancePort, audit AuditPort, closingAccountCode string) *Service {
	return &Service{
		repo:               repo,
		balances:           balances,
		audit:              audit,
		closingAccountCode: closingAccountCode,
		now:                time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Preview computes the projected net result for the year without side
// effects.
func (s *Service) Preview(ctx context.Context, tenantID int64, fiscalYear int) (Preview, error) {
	if _, err := s.repo.GetCompletedByYear(ctx, tenantID, fiscalYear); err == nil {
		return Preview{}, ErrAlreadyClosed
	} else if !errors.Is(err, ErrNotFound) {
		return Preview{}, err
	}
	income, expense, err := s.yearTotals(ctx, tenantID, fiscalYear)
	if err != nil {
		return Preview{}, err
	}
	net := income - expense
	return Preview{
		FiscalYear:   fiscalYear,
		IncomeTotal:  income,
		ExpenseTotal: expense,
		NetResult:    net,
		IsProfit:     net >= 0,
	}, nil
}

// Execute closes the fiscal year: one posted balancing transaction zeroes
// every income and expense account into the retained-result account, and a
// completed closure row references it. All-or-nothing; a failure leaves no
// closure row and no closing transaction behind.
func (s *Service) Execute(ctx context.Context, input ExecuteInput) (Closure, error) {
	if err := input.Validate(); err != nil {
		return Closure{}, err
	}
	from, to := YearRange(input.FiscalYear)

	var result Closure
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetCompletedByYearForUpdate(ctx, input.TenantID, input.FiscalYear); err == nil {
			return ErrAlreadyClosed
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		// Balances are read inside the transaction so the closing lines
		// match the snapshot the closure commits against.
		rows, err := tx.IncomeExpenseBalances(ctx, input.TenantID, from, to)
		if err != nil {
			return err
		}
		lines, net := buildClosingLines(rows)
		if len(lines) == 0 {
			return ErrNothingToClose
		}
		retained, err := tx.GetAccountByCode(ctx, input.TenantID, s.closingAccountCode)
		if err != nil {
			return err
		}
		if !retained.AcceptsPosting {
			return ErrClosingAccountMissing
		}
		closingLines := appendRetainedLine(lines, retained.ID, net)
		debit, credit := totals(closingLines)
		if !ledger.Balanced(debit, credit) {
			return ledger.ErrUnbalancedEntry
		}
		txID, err := tx.InsertClosingTransaction(ctx, ClosingTransactionArgs{
			TenantID:    input.TenantID,
			Date:        input.ClosureDate,
			Description: fmt.Sprintf("Cierre anual %d", input.FiscalYear),
			FiscalYear:  input.FiscalYear,
			ActorID:     input.ActorID,
			PostedAt:    s.now(),
			Lines:       closingLines,
		})
		if err != nil {
			return err
		}
		result, err = tx.InsertClosure(ctx, Closure{
			TenantID:             input.TenantID,
			FiscalYear:           input.FiscalYear,
			ClosureDate:          input.ClosureDate,
			NetResult:            net,
			IsProfit:             net >= 0,
			ClosingTransactionID: txID,
			Status:               StatusCompleted,
			Notes:                input.Notes,
			CreatedBy:            input.ActorID,
		})
		return err
	})
	if err != nil {
		return Closure{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "closure.execute",
			Entity:   "accounting_period_closure",
			EntityID: fmt.Sprintf("%d", result.ID),
			Meta: map[string]any{
				"fiscal_year": input.FiscalYear,
				"net_result":  result.NetResult,
			},
			At: s.now(),
		})
	}
	return result, nil
}

// Reverse undoes a completed closure while no later year is closed: the
// closing transaction is cancelled and the closure marked reversed, which
// re-opens the year for posting and for a fresh closure run.
func (s *Service) Reverse(ctx context.Context, tenantID, closureID, actorID int64) (ReverseResult, error) {
	var result ReverseResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, tenantID, closureID)
		if err != nil {
			return err
		}
		if current.Status != StatusCompleted {
			return ErrNotReversible
		}
		later, err := tx.HasLaterCompleted(ctx, tenantID, current.FiscalYear)
		if err != nil {
			return err
		}
		if later {
			return ErrNotReversible
		}
		cancelled, err := tx.CancelTransaction(ctx, current.ClosingTransactionID)
		if err != nil {
			return err
		}
		if err := tx.MarkReversed(ctx, current.ID); err != nil {
			return err
		}
		result = ReverseResult{ClosureID: current.ID, TransactionsCancelled: cancelled}
		return nil
	})
	if err != nil {
		return ReverseResult{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "closure.reverse",
			Entity:   "accounting_period_closure",
			EntityID: fmt.Sprintf("%d", closureID),
			Meta: map[string]any{
				"transactions_cancelled": result.TransactionsCancelled,
			},
			At: s.now(),
		})
	}
	return result, nil
}

// Get loads a closure by ID.
func (s *Service) Get(ctx context.Context, tenantID, closureID int64) (Closure, error) {
	return s.repo.GetByID(ctx, tenantID, closureID)
}

// List returns the tenant's closures, most recent fiscal year first.
func (s *Service) List(ctx context.Context, tenantID int64) ([]Closure, error) {
	return s.repo.List(ctx, tenantID)
}

// EnsureOpenForPosting blocks ledger postings dated inside a closed year.
func (s *Service) EnsureOpenForPosting(ctx context.Context, tenantID int64, date time.Time) error {
	_, err := s.repo.GetCompletedByYear(ctx, tenantID, date.Year())
	if err == nil {
		return ledger.ErrClosedPeriod
	}
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func (s *Service) yearTotals(ctx context.Context, tenantID int64, fiscalYear int) (income, expense float64, err error) {
	from, to := YearRange(fiscalYear)
	rows, err := s.balances.Balances(ctx, tenantID,
		[]ledger.AccountType{ledger.AccountTypeIncome, ledger.AccountTypeExpense}, &from, &to)
	if err != nil {
		return 0, 0, err
	}
	for _, row := range rows {
		switch row.Type {
		case ledger.AccountTypeIncome:
			income += row.Amount()
		case ledger.AccountTypeExpense:
			expense += row.Amount()
		}
	}
	return income, expense, nil
}

// buildClosingLines produces one offsetting entry per income/expense account
// with a nonzero posted balance, plus the running net result (income minus
// expense).
func buildClosingLines(rows []balance.AccountBalance) ([]ledger.EntryInput, float64) {
	var lines []ledger.EntryInput
	var net float64
	for _, row := range rows {
		raw := row.Debit - row.Credit
		switch {
		case raw > 0:
			lines = append(lines, ledger.EntryInput{AccountID: row.AccountID, Description: "Cierre " + row.Code, Credit: raw})
		case raw < 0:
			lines = append(lines, ledger.EntryInput{AccountID: row.AccountID, Description: "Cierre " + row.Code, Debit: -raw})
		default:
			continue
		}
		switch row.Type {
		case ledger.AccountTypeIncome:
			net += row.Amount()
		case ledger.AccountTypeExpense:
			net -= row.Amount()
		}
	}
	return lines, net
}

func appendRetainedLine(lines []ledger.EntryInput, retainedAccountID int64, net float64) []ledger.EntryInput {
	out := make([]ledger.EntryInput, len(lines), len(lines)+1)
	copy(out, lines)
	switch {
	case net > 0:
		out = append(out, ledger.EntryInput{AccountID: retainedAccountID, Description: "Resultado del ejercicio", Credit: net})
	case net < 0:
		out = append(out, ledger.EntryInput{AccountID: retainedAccountID, Description: "Resultado del ejercicio", Debit: -net})
	}
	return out
}

func totals(lines []ledger.EntryInput) (debit, credit float64) {
	for _, line := range lines {
		debit += line.Debit
		credit += line.Credit
	}
	return debit, credit
}

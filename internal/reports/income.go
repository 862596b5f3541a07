// Package reports builds read-only financial reports from posted ledger
// activity: income statement (accrual or cash basis) and trial balance.
package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/veranda-hq/veranda/internal/ledger"
	"github.com/veranda-hq/veranda/internal/ledger/balance"
)

// Basis selects the recognition basis for the income statement.
type Basis string

const (
	BasisAccrual Basis = "ACCRUAL"
	BasisCash    Basis = "CASH"
)

// BalancesPort supplies aggregated posted amounts.
type BalancesPort interface {
	Balances(ctx context.Context, tenantID int64, types []ledger.AccountType, from, to *time.Time) ([]balance.AccountBalance, error)
	CashBasisIncome(ctx context.Context, account ledger.Account, from, to *time.Time) (float64, error)
}

// Line is one account row of a report.
type Line struct {
	AccountID int64
	Code      string
	Name      string
	Amount    float64
}

// IncomeStatement is income and expense over a period with a net result.
type IncomeStatement struct {
	Basis        Basis
	From         *time.Time
	To           *time.Time
	Income       []Line
	Expense      []Line
	IncomeTotal  float64
	ExpenseTotal float64
	NetResult    float64
}

// Service builds report structures.
type Service struct {
	balances BalancesPort
}

// NewService constructs the reports service.
func NewService(balances BalancesPort) *Service {
	return &Service{balances: balances}
}

// IncomeStatement builds the income statement for the period. On cash basis
// income is recognized only to the extent collected; expense stays accrual.
// Zero rows are dropped.
func (s *Service) IncomeStatement(ctx context.Context, tenantID int64, from, to *time.Time, basis Basis) (IncomeStatement, error) {
	switch basis {
	case BasisAccrual, BasisCash:
	default:
		return IncomeStatement{}, fmt.Errorf("%w: unknown basis %q", ledger.ErrValidation, basis)
	}
	rows, err := s.balances.Balances(ctx, tenantID,
		[]ledger.AccountType{ledger.AccountTypeIncome, ledger.AccountTypeExpense}, from, to)
	if err != nil {
		return IncomeStatement{}, err
	}
	report := IncomeStatement{Basis: basis, From: from, To: to}
	for _, row := range rows {
		amount := row.Amount()
		if basis == BasisCash && row.Type == ledger.AccountTypeIncome {
			amount, err = s.balances.CashBasisIncome(ctx, ledger.Account{
				ID:       row.AccountID,
				TenantID: tenantID,
				Code:     row.Code,
				Type:     row.Type,
				Nature:   row.Nature,
			}, from, to)
			if err != nil {
				return IncomeStatement{}, err
			}
		}
		if amount == 0 {
			continue
		}
		line := Line{AccountID: row.AccountID, Code: row.Code, Name: row.Name, Amount: amount}
		switch row.Type {
		case ledger.AccountTypeIncome:
			report.Income = append(report.Income, line)
			report.IncomeTotal += amount
		case ledger.AccountTypeExpense:
			report.Expense = append(report.Expense, line)
			report.ExpenseTotal += amount
		}
	}
	report.NetResult = report.IncomeTotal - report.ExpenseTotal
	return report, nil
}

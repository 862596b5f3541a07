package reports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/veranda-hq/veranda/internal/ledger"
	"github.com/veranda-hq/veranda/internal/ledger/balance"
)

type stubBalances struct {
	rows      []balance.AccountBalance
	collected map[int64]float64
}

func (b *stubBalances) Balances(_ context.Context, _ int64, _ []ledger.AccountType, _, _ *time.Time) ([]balance.AccountBalance, error) {
	return b.rows, nil
}

func (b *stubBalances) CashBasisIncome(_ context.Context, account ledger.Account, _, _ *time.Time) (float64, error) {
	return b.collected[account.ID], nil
}

func periodRows() []balance.AccountBalance {
	return []balance.AccountBalance{
		{AccountID: 1, Code: "420101", Name: "Cuota ordinaria", Type: ledger.AccountTypeIncome, Nature: ledger.NatureCredit, Credit: 1000},
		{AccountID: 2, Code: "4210", Name: "Intereses de mora", Type: ledger.AccountTypeIncome, Nature: ledger.NatureCredit, Credit: 200},
		{AccountID: 3, Code: "5135", Name: "Servicios públicos", Type: ledger.AccountTypeExpense, Nature: ledger.NatureDebit, Debit: 600},
		{AccountID: 4, Code: "5145", Name: "Mantenimiento", Type: ledger.AccountTypeExpense, Nature: ledger.NatureDebit},
	}
}

func TestIncomeStatementAccrual(t *testing.T) {
	svc := NewService(&stubBalances{rows: periodRows()})

	report, err := svc.IncomeStatement(context.Background(), 7, nil, nil, BasisAccrual)
	if err != nil {
		t.Fatalf("income statement: %v", err)
	}
	if report.IncomeTotal != 1200 || report.ExpenseTotal != 600 {
		t.Fatalf("totals = %v / %v, want 1200 / 600", report.IncomeTotal, report.ExpenseTotal)
	}
	if report.NetResult != 600 {
		t.Fatalf("net = %v, want 600", report.NetResult)
	}
	if len(report.Expense) != 1 {
		t.Fatalf("zero-activity expense must be dropped, got %d rows", len(report.Expense))
	}
}

func TestIncomeStatementCashBasis(t *testing.T) {
	svc := NewService(&stubBalances{
		rows:      periodRows(),
		collected: map[int64]float64{1: 400, 2: 200},
	})

	report, err := svc.IncomeStatement(context.Background(), 7, nil, nil, BasisCash)
	if err != nil {
		t.Fatalf("income statement: %v", err)
	}
	// Income shrinks to collections; expense stays accrual.
	if report.IncomeTotal != 600 {
		t.Fatalf("cash income = %v, want 600", report.IncomeTotal)
	}
	if report.ExpenseTotal != 600 {
		t.Fatalf("expense = %v, want 600", report.ExpenseTotal)
	}
	if report.NetResult != 0 {
		t.Fatalf("net = %v, want 0", report.NetResult)
	}
}

func TestIncomeStatementCashDropsUncollected(t *testing.T) {
	svc := NewService(&stubBalances{
		rows:      periodRows(),
		collected: map[int64]float64{1: 400},
	})

	report, err := svc.IncomeStatement(context.Background(), 7, nil, nil, BasisCash)
	if err != nil {
		t.Fatalf("income statement: %v", err)
	}
	if len(report.Income) != 1 {
		t.Fatalf("fully uncollected income must be dropped, got %d rows", len(report.Income))
	}
	if report.Income[0].AccountID != 1 {
		t.Fatalf("kept row account = %d, want 1", report.Income[0].AccountID)
	}
}

func TestIncomeStatementRejectsUnknownBasis(t *testing.T) {
	svc := NewService(&stubBalances{})

	if _, err := svc.IncomeStatement(context.Background(), 7, nil, nil, Basis("MIXED")); !errors.Is(err, ledger.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestTrialBalance(t *testing.T) {
	svc := NewService(&stubBalances{rows: []balance.AccountBalance{
		{AccountID: 1, Code: "110501", Name: "Caja general", Type: ledger.AccountTypeAsset, Nature: ledger.NatureDebit, Debit: 1200},
		{AccountID: 2, Code: "420101", Name: "Cuota ordinaria", Type: ledger.AccountTypeIncome, Nature: ledger.NatureCredit, Credit: 1200},
		{AccountID: 3, Code: "233501", Name: "Proveedores", Type: ledger.AccountTypeLiability, Nature: ledger.NatureCredit},
	}})

	report, err := svc.TrialBalance(context.Background(), 7, nil, nil)
	if err != nil {
		t.Fatalf("trial balance: %v", err)
	}
	if len(report.Rows) != 2 {
		t.Fatalf("rows = %d, want 2 (no-activity accounts dropped)", len(report.Rows))
	}
	if report.DebitTotal != 1200 || report.CreditTotal != 1200 {
		t.Fatalf("totals = %v / %v, want 1200 / 1200", report.DebitTotal, report.CreditTotal)
	}
	if report.Rows[0].Balance != 1200 {
		t.Fatalf("asset balance = %v, want 1200", report.Rows[0].Balance)
	}

	vm := NewTrialBalanceVM(report)
	if !vm.Balanced {
		t.Fatal("matching totals must report balanced")
	}
}

package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/veranda-hq/veranda/internal/ledger"
)

type stubBudgetRepo struct {
	budgets map[int64]Budget
	nextID  int64
}

func newStubBudgetRepo() *stubBudgetRepo {
	return &stubBudgetRepo{budgets: make(map[int64]Budget), nextID: 1}
}

func (r *stubBudgetRepo) Insert(_ context.Context, b Budget) (Budget, error) {
	for _, existing := range r.budgets {
		if existing.TenantID == b.TenantID && existing.FiscalYear == b.FiscalYear {
			return Budget{}, ErrDuplicateYear
		}
	}
	b.ID = r.nextID
	r.nextID++
	for i := range b.Items {
		b.Items[i].ID = r.nextID
		r.nextID++
		b.Items[i].BudgetID = b.ID
	}
	r.budgets[b.ID] = b
	return b, nil
}

func (r *stubBudgetRepo) GetByID(_ context.Context, tenantID, id int64) (Budget, error) {
	b, ok := r.budgets[id]
	if !ok || b.TenantID != tenantID {
		return Budget{}, ErrNotFound
	}
	return b, nil
}

func (r *stubBudgetRepo) GetByYear(_ context.Context, tenantID int64, fiscalYear int) (Budget, error) {
	for _, b := range r.budgets {
		if b.TenantID == tenantID && b.FiscalYear == fiscalYear {
			return b, nil
		}
	}
	return Budget{}, ErrNotFound
}

func (r *stubBudgetRepo) List(_ context.Context, tenantID int64) ([]Budget, error) {
	var out []Budget
	for _, b := range r.budgets {
		if b.TenantID == tenantID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *stubBudgetRepo) Delete(_ context.Context, tenantID, id int64) error {
	b, ok := r.budgets[id]
	if !ok || b.TenantID != tenantID {
		return ErrNotFound
	}
	delete(r.budgets, id)
	return nil
}

type stubBalancePort struct {
	byAccount map[int64]float64
}

func (p *stubBalancePort) Balance(_ context.Context, account ledger.Account, _, _ *time.Time) (float64, error) {
	return p.byAccount[account.ID], nil
}

type stubAccountsPort struct {
	byID map[int64]ledger.Account
}

func (p *stubAccountsPort) Get(_ context.Context, _, id int64) (ledger.Account, error) {
	account, ok := p.byID[id]
	if !ok {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	return account, nil
}

func monthly(amount float64) [MonthsPerYear]float64 {
	var out [MonthsPerYear]float64
	for i := range out {
		out[i] = amount
	}
	return out
}

func budgetFixture(t *testing.T, repo *stubBudgetRepo, svc *Service) Budget {
	t.Helper()
	b, err := svc.Create(context.Background(), CreateInput{
		TenantID:   7,
		FiscalYear: 2024,
		Name:       "Presupuesto 2024",
		ActorID:    42,
		Items: []ItemInput{
			{AccountID: 1, Category: "servicios", Monthly: monthly(1000)},
			{AccountID: 2, Category: "mantenimiento", Monthly: monthly(500)},
		},
	})
	if err != nil {
		t.Fatalf("create budget: %v", err)
	}
	return b
}

func newBudgetService(repo *stubBudgetRepo, balances map[int64]float64) *Service {
	accounts := &stubAccountsPort{byID: map[int64]ledger.Account{
		1: {ID: 1, TenantID: 7, Code: "5135", Name: "Servicios públicos", Type: ledger.AccountTypeExpense, Nature: ledger.NatureDebit, AcceptsPosting: true, IsActive: true},
		2: {ID: 2, TenantID: 7, Code: "5145", Name: "Mantenimiento", Type: ledger.AccountTypeExpense, Nature: ledger.NatureDebit, AcceptsPosting: true, IsActive: true},
	}}
	return NewService(repo, &stubBalancePort{byAccount: balances}, accounts, 0.10)
}

func TestCreateRejectsUnknownAccount(t *testing.T) {
	repo := newStubBudgetRepo()
	svc := newBudgetService(repo, nil)

	_, err := svc.Create(context.Background(), CreateInput{
		TenantID: 7, FiscalYear: 2024, Name: "Presupuesto", ActorID: 42,
		Items: []ItemInput{{AccountID: 999, Monthly: monthly(100)}},
	})
	if !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestCreateDuplicateYearFails(t *testing.T) {
	repo := newStubBudgetRepo()
	svc := newBudgetService(repo, nil)

	budgetFixture(t, repo, svc)
	_, err := svc.Create(context.Background(), CreateInput{
		TenantID: 7, FiscalYear: 2024, Name: "Otro", ActorID: 42,
		Items: []ItemInput{{AccountID: 1, Monthly: monthly(100)}},
	})
	if !errors.Is(err, ErrDuplicateYear) {
		t.Fatalf("expected ErrDuplicateYear, got %v", err)
	}
}

func TestExecutionVarianceMath(t *testing.T) {
	repo := newStubBudgetRepo()
	svc := newBudgetService(repo, map[int64]float64{1: 1250, 2: 480})
	b := budgetFixture(t, repo, svc)

	exec, err := svc.Execution(context.Background(), 7, b.ID, 3)
	if err != nil {
		t.Fatalf("execution: %v", err)
	}
	if len(exec.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(exec.Rows))
	}

	over := exec.Rows[0]
	if over.Budgeted != 1000 || over.Executed != 1250 {
		t.Fatalf("row 0 = %+v", over)
	}
	if over.Variance != 250 || over.VariancePct != 0.25 {
		t.Fatalf("variance = %v pct = %v, want 250 / 0.25", over.Variance, over.VariancePct)
	}
	if !over.Alert {
		t.Fatal("25% over budget must alert at a 10% threshold")
	}

	within := exec.Rows[1]
	if within.Variance != -20 {
		t.Fatalf("variance = %v, want -20", within.Variance)
	}
	if within.Alert {
		t.Fatal("4% under budget must not alert")
	}
}

func TestExecutionZeroBudgetAlertsOnAnySpend(t *testing.T) {
	repo := newStubBudgetRepo()
	svc := newBudgetService(repo, map[int64]float64{1: 50})

	b, err := svc.Create(context.Background(), CreateInput{
		TenantID: 7, FiscalYear: 2024, Name: "Presupuesto", ActorID: 42,
		Items: []ItemInput{{AccountID: 1, Category: "servicios"}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	exec, err := svc.Execution(context.Background(), 7, b.ID, 1)
	if err != nil {
		t.Fatalf("execution: %v", err)
	}
	if !exec.Rows[0].Alert {
		t.Fatal("spend against a zero budget must alert")
	}
}

func TestExecutionRejectsBadMonth(t *testing.T) {
	repo := newStubBudgetRepo()
	svc := newBudgetService(repo, nil)
	b := budgetFixture(t, repo, svc)

	if _, err := svc.Execution(context.Background(), 7, b.ID, 0); !errors.Is(err, ledger.ErrValidation) {
		t.Fatalf("expected ErrValidation for month 0, got %v", err)
	}
	if _, err := svc.Execution(context.Background(), 7, b.ID, 13); !errors.Is(err, ledger.ErrValidation) {
		t.Fatalf("expected ErrValidation for month 13, got %v", err)
	}
}

func TestScanAlertsFiltersBreaches(t *testing.T) {
	repo := newStubBudgetRepo()
	svc := newBudgetService(repo, map[int64]float64{1: 1250, 2: 480})
	budgetFixture(t, repo, svc)

	alerts, err := svc.ScanAlerts(context.Background(), 7, 2024, 3)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(alerts))
	}
	if alerts[0].AccountID != 1 {
		t.Fatalf("alert account = %d, want 1", alerts[0].AccountID)
	}
}

func TestScanAlertsUnbudgetedYear(t *testing.T) {
	repo := newStubBudgetRepo()
	svc := newBudgetService(repo, nil)

	if _, err := svc.ScanAlerts(context.Background(), 7, 2030, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMonthRange(t *testing.T) {
	from, to := MonthRange(2024, 2)
	if from != time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("from = %v", from)
	}
	if to != time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("to = %v, leap February must end on the 29th", to)
	}
}

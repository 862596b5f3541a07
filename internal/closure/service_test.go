package closure

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/veranda-hq/veranda/internal/ledger"
	"github.com/veranda-hq/veranda/internal/ledger/balance"
)

type stubClosureRepo struct {
	closures        map[int64]Closure
	accountsByCode  map[string]ledger.Account
	activity        []balance.AccountBalance
	nextID          int64
	txStatus        map[int64]string
	insertedTxLines []ledger.EntryInput
}

func newStubClosureRepo() *stubClosureRepo {
	return &stubClosureRepo{
		closures:       make(map[int64]Closure),
		accountsByCode: make(map[string]ledger.Account),
		txStatus:       make(map[int64]string),
		nextID:         1,
	}
}

func (r *stubClosureRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *stubClosureRepo) completedByYear(tenantID int64, fiscalYear int) (Closure, error) {
	for _, c := range r.closures {
		if c.TenantID == tenantID && c.FiscalYear == fiscalYear && c.Status == StatusCompleted {
			return c, nil
		}
	}
	return Closure{}, ErrNotFound
}

func (r *stubClosureRepo) GetCompletedByYear(_ context.Context, tenantID int64, fiscalYear int) (Closure, error) {
	return r.completedByYear(tenantID, fiscalYear)
}

func (r *stubClosureRepo) GetCompletedByYearForUpdate(_ context.Context, tenantID int64, fiscalYear int) (Closure, error) {
	return r.completedByYear(tenantID, fiscalYear)
}

func (r *stubClosureRepo) GetByID(_ context.Context, tenantID, id int64) (Closure, error) {
	c, ok := r.closures[id]
	if !ok || c.TenantID != tenantID {
		return Closure{}, ErrNotFound
	}
	return c, nil
}

func (r *stubClosureRepo) GetForUpdate(ctx context.Context, tenantID, id int64) (Closure, error) {
	return r.GetByID(ctx, tenantID, id)
}

func (r *stubClosureRepo) List(_ context.Context, tenantID int64) ([]Closure, error) {
	var out []Closure
	for _, c := range r.closures {
		if c.TenantID == tenantID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *stubClosureRepo) GetAccountByCode(_ context.Context, _ int64, code string) (ledger.Account, error) {
	account, ok := r.accountsByCode[code]
	if !ok {
		return ledger.Account{}, ErrClosingAccountMissing
	}
	return account, nil
}

func (r *stubClosureRepo) IncomeExpenseBalances(_ context.Context, _ int64, _, _ time.Time) ([]balance.AccountBalance, error) {
	return r.activity, nil
}

func (r *stubClosureRepo) HasLaterCompleted(_ context.Context, tenantID int64, fiscalYear int) (bool, error) {
	for _, c := range r.closures {
		if c.TenantID == tenantID && c.FiscalYear > fiscalYear && c.Status == StatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubClosureRepo) InsertClosingTransaction(_ context.Context, args ClosingTransactionArgs) (int64, error) {
	id := r.nextID
	r.nextID++
	r.txStatus[id] = "POSTED"
	r.insertedTxLines = args.Lines
	return id, nil
}

func (r *stubClosureRepo) InsertClosure(_ context.Context, c Closure) (Closure, error) {
	if _, err := r.completedByYear(c.TenantID, c.FiscalYear); err == nil {
		return Closure{}, ErrAlreadyClosed
	}
	c.ID = r.nextID
	r.nextID++
	r.closures[c.ID] = c
	return c, nil
}

func (r *stubClosureRepo) CancelTransaction(_ context.Context, transactionID int64) (int, error) {
	if r.txStatus[transactionID] != "POSTED" {
		return 0, nil
	}
	r.txStatus[transactionID] = "CANCELLED"
	return 1, nil
}

func (r *stubClosureRepo) MarkReversed(_ context.Context, closureID int64) error {
	c := r.closures[closureID]
	c.Status = StatusReversed
	r.closures[closureID] = c
	return nil
}

type stubBalances struct {
	rows []balance.AccountBalance
}

func (b *stubBalances) Balances(_ context.Context, _ int64, _ []ledger.AccountType, _, _ *time.Time) ([]balance.AccountBalance, error) {
	return b.rows, nil
}

func activityRows() []balance.AccountBalance {
	return []balance.AccountBalance{
		{AccountID: 10, Code: "420101", Type: ledger.AccountTypeIncome, Nature: ledger.NatureCredit, Credit: 1200},
		{AccountID: 11, Code: "5135", Type: ledger.AccountTypeExpense, Nature: ledger.NatureDebit, Debit: 700},
	}
}

func newClosureService(repo *stubClosureRepo, rows []balance.AccountBalance) *Service {
	repo.activity = rows
	repo.accountsByCode["370501"] = ledger.Account{
		ID: 99, TenantID: 7, Code: "370501",
		Type: ledger.AccountTypeEquity, Nature: ledger.NatureCredit,
		AcceptsPosting: true, IsActive: true,
	}
	svc := NewService(repo, &stubBalances{rows: rows}, nil, "370501")
	svc.WithNow(func() time.Time { return time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC) })
	return svc
}

func executeInput() ExecuteInput {
	return ExecuteInput{
		TenantID:    7,
		FiscalYear:  2024,
		ClosureDate: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		ActorID:     42,
	}
}

func TestPreviewComputesNetResult(t *testing.T) {
	repo := newStubClosureRepo()
	svc := newClosureService(repo, activityRows())

	preview, err := svc.Preview(context.Background(), 7, 2024)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview.IncomeTotal != 1200 || preview.ExpenseTotal != 700 {
		t.Fatalf("totals = %v / %v, want 1200 / 700", preview.IncomeTotal, preview.ExpenseTotal)
	}
	if preview.NetResult != 500 || !preview.IsProfit {
		t.Fatalf("net = %v profit=%v, want 500 profit", preview.NetResult, preview.IsProfit)
	}
}

func TestExecuteClosesYear(t *testing.T) {
	repo := newStubClosureRepo()
	svc := newClosureService(repo, activityRows())

	closure, err := svc.Execute(context.Background(), executeInput())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if closure.Status != StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", closure.Status)
	}
	if closure.NetResult != 500 || !closure.IsProfit {
		t.Fatalf("net = %v profit=%v, want 500 profit", closure.NetResult, closure.IsProfit)
	}

	var debit, credit float64
	var retained bool
	for _, line := range repo.insertedTxLines {
		debit += line.Debit
		credit += line.Credit
		if line.AccountID == 99 && line.Credit == 500 {
			retained = true
		}
	}
	if !ledger.Balanced(debit, credit) {
		t.Fatalf("closing lines unbalanced: %v vs %v", debit, credit)
	}
	if !retained {
		t.Fatal("net result must be credited to the retained-result account")
	}
}

func TestExecuteDuplicateYearFails(t *testing.T) {
	repo := newStubClosureRepo()
	svc := newClosureService(repo, activityRows())

	if _, err := svc.Execute(context.Background(), executeInput()); err != nil {
		t.Fatalf("first execute: %v", err)
	}
	if _, err := svc.Execute(context.Background(), executeInput()); !errors.Is(err, ErrAlreadyClosed) {
		t.Fatalf("expected ErrAlreadyClosed, got %v", err)
	}
	if len(repo.closures) != 1 {
		t.Fatal("duplicate run must not add a closure row")
	}
}

func TestExecuteWithoutActivityFails(t *testing.T) {
	repo := newStubClosureRepo()
	svc := newClosureService(repo, nil)

	if _, err := svc.Execute(context.Background(), executeInput()); !errors.Is(err, ErrNothingToClose) {
		t.Fatalf("expected ErrNothingToClose, got %v", err)
	}
}

func TestExecuteLoss(t *testing.T) {
	repo := newStubClosureRepo()
	svc := newClosureService(repo, []balance.AccountBalance{
		{AccountID: 10, Code: "420101", Type: ledger.AccountTypeIncome, Nature: ledger.NatureCredit, Credit: 300},
		{AccountID: 11, Code: "5135", Type: ledger.AccountTypeExpense, Nature: ledger.NatureDebit, Debit: 700},
	})

	closure, err := svc.Execute(context.Background(), executeInput())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if closure.NetResult != -400 || closure.IsProfit {
		t.Fatalf("net = %v profit=%v, want -400 loss", closure.NetResult, closure.IsProfit)
	}
	var retained bool
	for _, line := range repo.insertedTxLines {
		if line.AccountID == 99 && line.Debit == 400 {
			retained = true
		}
	}
	if !retained {
		t.Fatal("a loss must be debited to the retained-result account")
	}
}

func TestReverseCancelsClosingTransaction(t *testing.T) {
	repo := newStubClosureRepo()
	svc := newClosureService(repo, activityRows())

	closure, err := svc.Execute(context.Background(), executeInput())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	result, err := svc.Reverse(context.Background(), 7, closure.ID, 42)
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if result.TransactionsCancelled != 1 {
		t.Fatalf("cancelled = %d, want 1", result.TransactionsCancelled)
	}
	if repo.closures[closure.ID].Status != StatusReversed {
		t.Fatal("closure must be marked reversed")
	}
	if repo.txStatus[closure.ClosingTransactionID] != "CANCELLED" {
		t.Fatal("closing transaction must be cancelled")
	}

	// The year re-opens for a fresh run.
	if _, err := svc.Execute(context.Background(), executeInput()); err != nil {
		t.Fatalf("re-execute after reverse: %v", err)
	}
}

func TestReverseBlockedByLaterClosure(t *testing.T) {
	repo := newStubClosureRepo()
	svc := newClosureService(repo, activityRows())

	first, err := svc.Execute(context.Background(), executeInput())
	if err != nil {
		t.Fatalf("execute 2024: %v", err)
	}
	later := executeInput()
	later.FiscalYear = 2025
	later.ClosureDate = time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	if _, err := svc.Execute(context.Background(), later); err != nil {
		t.Fatalf("execute 2025: %v", err)
	}

	if _, err := svc.Reverse(context.Background(), 7, first.ID, 42); !errors.Is(err, ErrNotReversible) {
		t.Fatalf("expected ErrNotReversible, got %v", err)
	}
}

func TestReverseReversedClosureFails(t *testing.T) {
	repo := newStubClosureRepo()
	svc := newClosureService(repo, activityRows())

	closure, err := svc.Execute(context.Background(), executeInput())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if _, err := svc.Reverse(context.Background(), 7, closure.ID, 42); err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if _, err := svc.Reverse(context.Background(), 7, closure.ID, 42); !errors.Is(err, ErrNotReversible) {
		t.Fatalf("expected ErrNotReversible, got %v", err)
	}
}

func TestEnsureOpenForPosting(t *testing.T) {
	repo := newStubClosureRepo()
	svc := newClosureService(repo, activityRows())

	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := svc.EnsureOpenForPosting(context.Background(), 7, date); err != nil {
		t.Fatalf("open year must allow posting: %v", err)
	}

	if _, err := svc.Execute(context.Background(), executeInput()); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if err := svc.EnsureOpenForPosting(context.Background(), 7, date); !errors.Is(err, ledger.ErrClosedPeriod) {
		t.Fatalf("expected ErrClosedPeriod, got %v", err)
	}
}

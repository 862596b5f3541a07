package ledger

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubRepo struct {
	transactions map[int64]Transaction
	entries      map[int64][]Entry
	accounts     map[int64]Account
	closureRefs  map[int64]bool
	nextID       int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		transactions: make(map[int64]Transaction),
		entries:      make(map[int64][]Entry),
		accounts:     make(map[int64]Account),
		closureRefs:  make(map[int64]bool),
		nextID:       1,
	}
}

func (r *stubRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *stubRepo) GetTransactionForUpdate(_ context.Context, tenantID, id int64) (Transaction, error) {
	tx, ok := r.transactions[id]
	if !ok || tx.TenantID != tenantID {
		return Transaction{}, ErrTransactionNotFound
	}
	return tx, nil
}

func (r *stubRepo) GetEntries(_ context.Context, transactionID int64) ([]Entry, error) {
	return r.entries[transactionID], nil
}

func (r *stubRepo) GetAccount(_ context.Context, _ int64, accountID int64) (Account, error) {
	account, ok := r.accounts[accountID]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (r *stubRepo) InsertTransaction(_ context.Context, in CreateDraftInput) (Transaction, error) {
	id := r.nextID
	r.nextID++
	tx := Transaction{
		ID:          id,
		TenantID:    in.TenantID,
		Number:      id,
		Date:        in.Date,
		Description: in.Description,
		Reference:   in.Reference,
		Status:      StatusDraft,
		CreatedBy:   in.CreatedBy,
	}
	r.transactions[id] = tx
	return tx, nil
}

func (r *stubRepo) InsertEntry(_ context.Context, transactionID int64, in EntryInput) (Entry, error) {
	id := r.nextID
	r.nextID++
	entry := Entry{
		ID:            id,
		TransactionID: transactionID,
		AccountID:     in.AccountID,
		Description:   in.Description,
		Debit:         in.Debit,
		Credit:        in.Credit,
	}
	r.entries[transactionID] = append(r.entries[transactionID], entry)
	return entry, nil
}

func (r *stubRepo) DeleteEntry(_ context.Context, transactionID, entryID int64) error {
	entries := r.entries[transactionID]
	for i, e := range entries {
		if e.ID == entryID {
			r.entries[transactionID] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return ErrTransactionNotFound
}

func (r *stubRepo) DeleteTransaction(_ context.Context, id int64) error {
	delete(r.transactions, id)
	delete(r.entries, id)
	return nil
}

func (r *stubRepo) MarkPosted(_ context.Context, id, actorID int64, at time.Time) error {
	tx := r.transactions[id]
	tx.Status = StatusPosted
	tx.PostedBy = &actorID
	tx.PostedAt = &at
	r.transactions[id] = tx
	return nil
}

func (r *stubRepo) MarkCancelled(_ context.Context, id int64) error {
	tx := r.transactions[id]
	tx.Status = StatusCancelled
	r.transactions[id] = tx
	return nil
}

func (r *stubRepo) CompletedClosureReferences(_ context.Context, transactionID int64) (bool, error) {
	return r.closureRefs[transactionID], nil
}

type stubGuard struct {
	closedYears map[int]bool
}

func (g *stubGuard) EnsureOpenForPosting(_ context.Context, _ int64, date time.Time) error {
	if g.closedYears[date.Year()] {
		return ErrClosedPeriod
	}
	return nil
}

func newTestService(repo *stubRepo) *Service {
	svc := NewService(repo, nil, &stubGuard{closedYears: map[int]bool{}})
	svc.WithNow(func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) })
	return svc
}

func seedAccounts(repo *stubRepo) {
	repo.accounts[1] = Account{ID: 1, TenantID: 7, Code: "110501", Type: AccountTypeAsset, Nature: NatureDebit, AcceptsPosting: true, IsActive: true}
	repo.accounts[2] = Account{ID: 2, TenantID: 7, Code: "420101", Type: AccountTypeIncome, Nature: NatureCredit, AcceptsPosting: true, IsActive: true}
	repo.accounts[3] = Account{ID: 3, TenantID: 7, Code: "42", Type: AccountTypeIncome, Nature: NatureCredit, AcceptsPosting: false, IsActive: true}
}

func draftWithEntries(t *testing.T, svc *Service, entries []EntryInput) Transaction {
	t.Helper()
	tx, err := svc.CreateDraft(context.Background(), CreateDraftInput{
		TenantID:    7,
		Date:        time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Description: "cuota marzo",
		Reference:   Reference{Kind: ReferenceManual},
		CreatedBy:   42,
		Entries:     entries,
	})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	return tx
}

func TestPostBalancedTransaction(t *testing.T) {
	repo := newStubRepo()
	seedAccounts(repo)
	svc := newTestService(repo)

	tx := draftWithEntries(t, svc, []EntryInput{
		{AccountID: 1, Debit: 500},
		{AccountID: 2, Credit: 500},
	})

	posted, err := svc.Post(context.Background(), PostInput{TenantID: 7, TransactionID: tx.ID, ActorID: 42})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if posted.Status != StatusPosted {
		t.Fatalf("expected POSTED, got %s", posted.Status)
	}
	if posted.PostedBy == nil || *posted.PostedBy != 42 {
		t.Fatal("expected posted_by recorded")
	}
}

func TestPostUnbalancedTransactionFails(t *testing.T) {
	repo := newStubRepo()
	seedAccounts(repo)
	svc := newTestService(repo)

	tx := draftWithEntries(t, svc, []EntryInput{
		{AccountID: 1, Debit: 500},
		{AccountID: 2, Credit: 300},
	})

	if _, err := svc.Post(context.Background(), PostInput{TenantID: 7, TransactionID: tx.ID, ActorID: 42}); !errors.Is(err, ErrUnbalancedEntry) {
		t.Fatalf("expected ErrUnbalancedEntry, got %v", err)
	}
	if repo.transactions[tx.ID].Status != StatusDraft {
		t.Fatal("failed post must leave the draft untouched")
	}
}

func TestPostToleratesSubCentImbalance(t *testing.T) {
	repo := newStubRepo()
	seedAccounts(repo)
	svc := newTestService(repo)

	tx := draftWithEntries(t, svc, []EntryInput{
		{AccountID: 1, Debit: 100.001},
		{AccountID: 2, Credit: 100.004},
	})

	if _, err := svc.Post(context.Background(), PostInput{TenantID: 7, TransactionID: tx.ID, ActorID: 42}); err != nil {
		t.Fatalf("amounts equal at two decimals must post: %v", err)
	}
}

func TestPostSingleEntryFails(t *testing.T) {
	repo := newStubRepo()
	seedAccounts(repo)
	svc := newTestService(repo)

	tx := draftWithEntries(t, svc, []EntryInput{{AccountID: 1, Debit: 500}})

	if _, err := svc.Post(context.Background(), PostInput{TenantID: 7, TransactionID: tx.ID, ActorID: 42}); !errors.Is(err, ErrTooFewEntries) {
		t.Fatalf("expected ErrTooFewEntries, got %v", err)
	}
}

func TestPostInClosedYearFails(t *testing.T) {
	repo := newStubRepo()
	seedAccounts(repo)
	svc := NewService(repo, nil, &stubGuard{closedYears: map[int]bool{2024: true}})

	tx := draftWithEntries(t, svc, []EntryInput{
		{AccountID: 1, Debit: 500},
		{AccountID: 2, Credit: 500},
	})

	if _, err := svc.Post(context.Background(), PostInput{TenantID: 7, TransactionID: tx.ID, ActorID: 42}); !errors.Is(err, ErrClosedPeriod) {
		t.Fatalf("expected ErrClosedPeriod, got %v", err)
	}
}

func TestAddEntryToPostedFails(t *testing.T) {
	repo := newStubRepo()
	seedAccounts(repo)
	svc := newTestService(repo)

	tx := draftWithEntries(t, svc, []EntryInput{
		{AccountID: 1, Debit: 500},
		{AccountID: 2, Credit: 500},
	})
	if _, err := svc.Post(context.Background(), PostInput{TenantID: 7, TransactionID: tx.ID, ActorID: 42}); err != nil {
		t.Fatalf("post: %v", err)
	}

	if _, err := svc.AddEntry(context.Background(), 7, tx.ID, EntryInput{AccountID: 1, Debit: 10}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestAddEntryRejectsNonPostableAccount(t *testing.T) {
	repo := newStubRepo()
	seedAccounts(repo)
	svc := newTestService(repo)

	tx := draftWithEntries(t, svc, nil)

	if _, err := svc.AddEntry(context.Background(), 7, tx.ID, EntryInput{AccountID: 3, Credit: 10}); !errors.Is(err, ErrAccountNotPostable) {
		t.Fatalf("expected ErrAccountNotPostable, got %v", err)
	}
}

func TestEntryRequiresExactlyOneSide(t *testing.T) {
	repo := newStubRepo()
	seedAccounts(repo)
	svc := newTestService(repo)

	tx := draftWithEntries(t, svc, nil)

	if _, err := svc.AddEntry(context.Background(), 7, tx.ID, EntryInput{AccountID: 1}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for both-zero entry, got %v", err)
	}
	if _, err := svc.AddEntry(context.Background(), 7, tx.ID, EntryInput{AccountID: 1, Debit: 5, Credit: 5}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for both-sides entry, got %v", err)
	}
}

func TestCancelDraftFails(t *testing.T) {
	repo := newStubRepo()
	seedAccounts(repo)
	svc := newTestService(repo)

	tx := draftWithEntries(t, svc, nil)

	if _, err := svc.Cancel(context.Background(), CancelInput{TenantID: 7, TransactionID: tx.ID, ActorID: 42}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestCancelClosureLinkedFails(t *testing.T) {
	repo := newStubRepo()
	seedAccounts(repo)
	svc := newTestService(repo)

	tx := draftWithEntries(t, svc, []EntryInput{
		{AccountID: 1, Debit: 500},
		{AccountID: 2, Credit: 500},
	})
	if _, err := svc.Post(context.Background(), PostInput{TenantID: 7, TransactionID: tx.ID, ActorID: 42}); err != nil {
		t.Fatalf("post: %v", err)
	}
	repo.closureRefs[tx.ID] = true

	if _, err := svc.Cancel(context.Background(), CancelInput{TenantID: 7, TransactionID: tx.ID, ActorID: 42}); !errors.Is(err, ErrClosureLinked) {
		t.Fatalf("expected ErrClosureLinked, got %v", err)
	}
}

func TestDeleteDraftOnly(t *testing.T) {
	repo := newStubRepo()
	seedAccounts(repo)
	svc := newTestService(repo)

	tx := draftWithEntries(t, svc, []EntryInput{
		{AccountID: 1, Debit: 500},
		{AccountID: 2, Credit: 500},
	})
	if err := svc.DeleteDraft(context.Background(), 7, tx.ID); err != nil {
		t.Fatalf("delete draft: %v", err)
	}
	if _, ok := repo.transactions[tx.ID]; ok {
		t.Fatal("draft should be hard-deleted")
	}

	posted := draftWithEntries(t, svc, []EntryInput{
		{AccountID: 1, Debit: 100},
		{AccountID: 2, Credit: 100},
	})
	if _, err := svc.Post(context.Background(), PostInput{TenantID: 7, TransactionID: posted.ID, ActorID: 42}); err != nil {
		t.Fatalf("post: %v", err)
	}
	if err := svc.DeleteDraft(context.Background(), 7, posted.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestPostOtherTenantTransactionFails(t *testing.T) {
	repo := newStubRepo()
	seedAccounts(repo)
	svc := newTestService(repo)

	tx := draftWithEntries(t, svc, []EntryInput{
		{AccountID: 1, Debit: 500},
		{AccountID: 2, Credit: 500},
	})

	if _, err := svc.Post(context.Background(), PostInput{TenantID: 99, TransactionID: tx.ID, ActorID: 42}); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("posting another tenant's transaction must fail, got %v", err)
	}
	if repo.transactions[tx.ID].Status != StatusDraft {
		t.Fatal("foreign post attempt must leave the draft untouched")
	}
}

func TestCancelOtherTenantTransactionFails(t *testing.T) {
	repo := newStubRepo()
	seedAccounts(repo)
	svc := newTestService(repo)

	tx := draftWithEntries(t, svc, []EntryInput{
		{AccountID: 1, Debit: 500},
		{AccountID: 2, Credit: 500},
	})
	if _, err := svc.Post(context.Background(), PostInput{TenantID: 7, TransactionID: tx.ID, ActorID: 42}); err != nil {
		t.Fatalf("post: %v", err)
	}

	if _, err := svc.Cancel(context.Background(), CancelInput{TenantID: 99, TransactionID: tx.ID, ActorID: 42}); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("cancelling another tenant's transaction must fail, got %v", err)
	}
	if repo.transactions[tx.ID].Status != StatusPosted {
		t.Fatal("foreign cancel attempt must leave the transaction posted")
	}
}

func TestDeleteOtherTenantDraftFails(t *testing.T) {
	repo := newStubRepo()
	seedAccounts(repo)
	svc := newTestService(repo)

	tx := draftWithEntries(t, svc, nil)

	if err := svc.DeleteDraft(context.Background(), 99, tx.ID); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("deleting another tenant's draft must fail, got %v", err)
	}
	if _, ok := repo.transactions[tx.ID]; !ok {
		t.Fatal("foreign delete attempt must leave the draft in place")
	}

	if _, err := svc.AddEntry(context.Background(), 99, tx.ID, EntryInput{AccountID: 1, Debit: 10}); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("adding entries to another tenant's draft must fail, got %v", err)
	}
}

func TestBalancedComparesTwoDecimals(t *testing.T) {
	if !Balanced(10.004, 10.001) {
		t.Fatal("difference below a cent must balance")
	}
	if Balanced(10.01, 10.02) {
		t.Fatal("a full cent apart must not balance")
	}
}

package accounts

import (
	"context"
	"errors"
	"testing"

	"github.com/veranda-hq/veranda/internal/ledger"
)

type stubAccountRepo struct {
	byID     map[int64]ledger.Account
	entries  map[int64]bool
	children map[int64]bool
	nextID   int64
	deleted  []int64
	updated  bool
}

func newStubAccountRepo() *stubAccountRepo {
	return &stubAccountRepo{
		byID:     make(map[int64]ledger.Account),
		entries:  make(map[int64]bool),
		children: make(map[int64]bool),
		nextID:   100,
	}
}

func (r *stubAccountRepo) List(_ context.Context, _ int64) ([]ledger.Account, error) {
	out := make([]ledger.Account, 0, len(r.byID))
	for _, a := range r.byID {
		out = append(out, a)
	}
	return out, nil
}

func (r *stubAccountRepo) GetByID(_ context.Context, _, id int64) (ledger.Account, error) {
	account, ok := r.byID[id]
	if !ok {
		return ledger.Account{}, ErrNotFound
	}
	return account, nil
}

func (r *stubAccountRepo) GetByCode(_ context.Context, _ int64, code string) (ledger.Account, error) {
	for _, a := range r.byID {
		if a.Code == code {
			return a, nil
		}
	}
	return ledger.Account{}, ErrNotFound
}

func (r *stubAccountRepo) Insert(_ context.Context, in CreateInput) (ledger.Account, error) {
	id := r.nextID
	r.nextID++
	account := ledger.Account{
		ID: id, TenantID: in.TenantID, Code: in.Code, Name: in.Name,
		Type: in.Type, Nature: in.Nature, ParentID: in.ParentID,
		AcceptsPosting: in.AcceptsPosting, IsActive: true,
	}
	r.byID[id] = account
	return account, nil
}

func (r *stubAccountRepo) Update(_ context.Context, _, id int64, code, name string, accountType ledger.AccountType, acceptsPosting, isActive bool) (ledger.Account, error) {
	account := r.byID[id]
	account.Code = code
	account.Name = name
	account.Type = accountType
	account.AcceptsPosting = acceptsPosting
	account.IsActive = isActive
	r.byID[id] = account
	r.updated = true
	return account, nil
}

func (r *stubAccountRepo) Delete(_ context.Context, _, id int64) error {
	delete(r.byID, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *stubAccountRepo) HasEntries(_ context.Context, accountID int64) (bool, error) {
	return r.entries[accountID], nil
}

func (r *stubAccountRepo) HasChildren(_ context.Context, accountID int64) (bool, error) {
	return r.children[accountID], nil
}

func (r *stubAccountRepo) UpsertSeed(_ context.Context, tenantID int64, code, name string, accountType ledger.AccountType, nature ledger.AccountNature, parentID *int64, acceptsPosting bool) error {
	id := r.nextID
	r.nextID++
	r.byID[id] = ledger.Account{
		ID: id, TenantID: tenantID, Code: code, Name: name, Type: accountType,
		Nature: nature, ParentID: parentID, AcceptsPosting: acceptsPosting, IsActive: true,
	}
	return nil
}

func seedChain(repo *stubAccountRepo, depth int) int64 {
	var parent *int64
	var lastID int64
	for i := 0; i < depth; i++ {
		id := repo.nextID
		repo.nextID++
		repo.byID[id] = ledger.Account{
			ID: id, TenantID: 7, Code: "1", Type: ledger.AccountTypeAsset,
			Nature: ledger.NatureDebit, ParentID: parent, IsActive: true,
		}
		p := id
		parent = &p
		lastID = id
	}
	return lastID
}

func TestCreateRejectsFifthLevel(t *testing.T) {
	repo := newStubAccountRepo()
	leaf := seedChain(repo, MaxDepth)
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), CreateInput{
		TenantID: 7, Code: "11050101", Name: "caja menor",
		Type: ledger.AccountTypeAsset, Nature: ledger.NatureDebit,
		ParentID: &leaf, AcceptsPosting: true,
	})
	if !errors.Is(err, ErrMaxDepth) {
		t.Fatalf("expected ErrMaxDepth, got %v", err)
	}
}

func TestCreateAllowsFourthLevel(t *testing.T) {
	repo := newStubAccountRepo()
	leaf := seedChain(repo, MaxDepth-1)
	svc := NewService(repo)

	account, err := svc.Create(context.Background(), CreateInput{
		TenantID: 7, Code: "110501", Name: "caja general",
		Type: ledger.AccountTypeAsset, Nature: ledger.NatureDebit,
		ParentID: &leaf, AcceptsPosting: true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if account.ParentID == nil || *account.ParentID != leaf {
		t.Fatal("parent not recorded")
	}
}

func TestUpdateCodeLockedWithEntries(t *testing.T) {
	repo := newStubAccountRepo()
	repo.byID[1] = ledger.Account{ID: 1, TenantID: 7, Code: "110501", Name: "caja", Type: ledger.AccountTypeAsset, Nature: ledger.NatureDebit, IsActive: true}
	repo.entries[1] = true
	svc := NewService(repo)

	code := "110502"
	_, err := svc.Update(context.Background(), UpdateInput{AccountID: 1, TenantID: 7, Code: &code})
	if !errors.Is(err, ErrImmutable) {
		t.Fatalf("expected ErrImmutable, got %v", err)
	}
}

func TestUpdateTypeLockedWithChildren(t *testing.T) {
	repo := newStubAccountRepo()
	repo.byID[1] = ledger.Account{ID: 1, TenantID: 7, Code: "11", Name: "disponible", Type: ledger.AccountTypeAsset, Nature: ledger.NatureDebit, IsActive: true}
	repo.children[1] = true
	svc := NewService(repo)

	newType := ledger.AccountTypeExpense
	_, err := svc.Update(context.Background(), UpdateInput{AccountID: 1, TenantID: 7, Type: &newType})
	if !errors.Is(err, ErrImmutable) {
		t.Fatalf("expected ErrImmutable, got %v", err)
	}
}

func TestUpdateNameAlwaysAllowed(t *testing.T) {
	repo := newStubAccountRepo()
	repo.byID[1] = ledger.Account{ID: 1, TenantID: 7, Code: "110501", Name: "caja", Type: ledger.AccountTypeAsset, Nature: ledger.NatureDebit, IsActive: true}
	repo.entries[1] = true
	svc := NewService(repo)

	name := "caja principal"
	account, err := svc.Update(context.Background(), UpdateInput{AccountID: 1, TenantID: 7, Name: &name})
	if err != nil {
		t.Fatalf("rename of locked account must pass: %v", err)
	}
	if account.Name != name {
		t.Fatalf("name = %q, want %q", account.Name, name)
	}
}

func TestDeleteLockedAccountFails(t *testing.T) {
	repo := newStubAccountRepo()
	repo.byID[1] = ledger.Account{ID: 1, TenantID: 7, Code: "110501", Name: "caja", Type: ledger.AccountTypeAsset, Nature: ledger.NatureDebit, IsActive: true}
	repo.entries[1] = true
	svc := NewService(repo)

	if err := svc.Delete(context.Background(), 7, 1); !errors.Is(err, ErrImmutable) {
		t.Fatalf("expected ErrImmutable, got %v", err)
	}
}

func TestDeleteUnusedAccount(t *testing.T) {
	repo := newStubAccountRepo()
	repo.byID[1] = ledger.Account{ID: 1, TenantID: 7, Code: "110501", Name: "caja", Type: ledger.AccountTypeAsset, Nature: ledger.NatureDebit, IsActive: true}
	svc := NewService(repo)

	if err := svc.Delete(context.Background(), 7, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != 1 {
		t.Fatal("account should be removed")
	}
}

func TestSeedInstallsDefaultChart(t *testing.T) {
	repo := newStubAccountRepo()
	svc := NewService(repo)

	if err := svc.Seed(context.Background(), 7); err != nil {
		t.Fatalf("seed: %v", err)
	}
	retained, err := repo.GetByCode(context.Background(), 7, "370501")
	if err != nil {
		t.Fatalf("retained result account missing: %v", err)
	}
	if retained.Type != ledger.AccountTypeEquity || !retained.AcceptsPosting {
		t.Fatal("retained result account must be postable equity")
	}
}

package accounts

import (
	"context"
	"fmt"

	"github.com/veranda-hq/veranda/internal/ledger"
)

// RepositoryPort abstracts the chart of accounts store.
type RepositoryPort interface {
	List(ctx context.Context, tenantID int64) ([]ledger.Account, error)
	GetByID(ctx context.Context, tenantID, id int64) (ledger.Account, error)
	GetByCode(ctx context.Context, tenantID int64, code string) (ledger.Account, error)
	Insert(ctx context.Context, in CreateInput) (ledger.Account, error)
	Update(ctx context.Context, tenantID, id int64, code, name string, accountType ledger.AccountType, acceptsPosting, isActive bool) (ledger.Account, error)
	Delete(ctx context.Context, tenantID, id int64) error
	HasEntries(ctx context.Context, accountID int64) (bool, error)
	HasChildren(ctx context.Context, accountID int64) (bool, error)
	UpsertSeed(ctx context.Context, tenantID int64, code, name string, accountType ledger.AccountType, nature ledger.AccountNature, parentID *int64, acceptsPosting bool) error
}

// Service manages the chart of accounts.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the accounts service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// List returns the tenant's chart of accounts.
func (s *Service) List(ctx context.Context, tenantID int64) ([]ledger.Account, error) {
	return s.repo.List(ctx, tenantID)
}

// Get loads a single account.
func (s *Service) Get(ctx context.Context, tenantID, id int64) (ledger.Account, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

// Create registers a new account after validating hierarchy depth.
func (s *Service) Create(ctx context.Context, in CreateInput) (ledger.Account, error) {
	if err := in.Validate(); err != nil {
		return ledger.Account{}, err
	}
	if in.ParentID != nil {
		depth, err := s.depthOf(ctx, in.TenantID, *in.ParentID)
		if err != nil {
			return ledger.Account{}, err
		}
		if depth+1 > MaxDepth {
			return ledger.Account{}, ErrMaxDepth
		}
	}
	return s.repo.Insert(ctx, in)
}

// Update mutates an account. Code and type changes are rejected once the
// account has entries or children.
func (s *Service) Update(ctx context.Context, in UpdateInput) (ledger.Account, error) {
	if in.AccountID == 0 || in.TenantID == 0 {
		return ledger.Account{}, fmt.Errorf("%w: account and tenant required", ledger.ErrValidation)
	}
	current, err := s.repo.GetByID(ctx, in.TenantID, in.AccountID)
	if err != nil {
		return ledger.Account{}, err
	}
	code := current.Code
	name := current.Name
	accountType := current.Type
	acceptsPosting := current.AcceptsPosting
	isActive := current.IsActive
	structural := false
	if in.Code != nil && *in.Code != current.Code {
		code = *in.Code
		structural = true
	}
	if in.Type != nil && *in.Type != current.Type {
		accountType = *in.Type
		structural = true
	}
	if structural {
		locked, err := s.isLocked(ctx, current.ID)
		if err != nil {
			return ledger.Account{}, err
		}
		if locked {
			return ledger.Account{}, ErrImmutable
		}
	}
	if in.Name != nil {
		name = *in.Name
	}
	if in.AcceptsPosting != nil {
		acceptsPosting = *in.AcceptsPosting
	}
	if in.IsActive != nil {
		isActive = *in.IsActive
	}
	return s.repo.Update(ctx, in.TenantID, in.AccountID, code, name, accountType, acceptsPosting, isActive)
}

// Delete removes an account without entries or children.
func (s *Service) Delete(ctx context.Context, tenantID, id int64) error {
	if _, err := s.repo.GetByID(ctx, tenantID, id); err != nil {
		return err
	}
	locked, err := s.isLocked(ctx, id)
	if err != nil {
		return err
	}
	if locked {
		return ErrImmutable
	}
	return s.repo.Delete(ctx, tenantID, id)
}

func (s *Service) isLocked(ctx context.Context, accountID int64) (bool, error) {
	hasEntries, err := s.repo.HasEntries(ctx, accountID)
	if err != nil {
		return false, err
	}
	if hasEntries {
		return true, nil
	}
	return s.repo.HasChildren(ctx, accountID)
}

func (s *Service) depthOf(ctx context.Context, tenantID, accountID int64) (int, error) {
	depth := 1
	current, err := s.repo.GetByID(ctx, tenantID, accountID)
	if err != nil {
		return 0, err
	}
	for current.ParentID != nil {
		depth++
		if depth > MaxDepth {
			return depth, nil
		}
		current, err = s.repo.GetByID(ctx, tenantID, *current.ParentID)
		if err != nil {
			return 0, err
		}
	}
	return depth, nil
}

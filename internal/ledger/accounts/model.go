package accounts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/veranda-hq/veranda/internal/ledger"
)

// MaxDepth limits the account hierarchy to four levels.
const MaxDepth = 4

var (
	// ErrNotFound indicates a missing account.
	ErrNotFound = errors.New("accounts: account not found")
	// ErrDuplicateCode indicates the code already exists for the tenant.
	ErrDuplicateCode = errors.New("accounts: code already in use")
	// ErrImmutable indicates code/type changes on an account with children or entries.
	ErrImmutable = errors.New("accounts: account with entries or children cannot change code or type")
	// ErrMaxDepth indicates the hierarchy limit was exceeded.
	ErrMaxDepth = errors.New("accounts: hierarchy exceeds four levels")
)

// CreateInput groups fields required to register an account.
type CreateInput struct {
	TenantID       int64
	Code           string
	Name           string
	Type           ledger.AccountType
	Nature         ledger.AccountNature
	ParentID       *int64
	AcceptsPosting bool
}

// UpdateInput carries the mutable fields of an account. Code and type are
// immutable once the account has entries or children.
type UpdateInput struct {
	AccountID      int64
	TenantID       int64
	Code           *string
	Name           *string
	Type           *ledger.AccountType
	AcceptsPosting *bool
	IsActive       *bool
}

// Validate ensures the create input is coherent.
func (in CreateInput) Validate() error {
	if in.TenantID == 0 {
		return fmt.Errorf("%w: tenant required", ledger.ErrValidation)
	}
	if strings.TrimSpace(in.Code) == "" {
		return fmt.Errorf("%w: code required", ledger.ErrValidation)
	}
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name required", ledger.ErrValidation)
	}
	switch in.Type {
	case ledger.AccountTypeAsset, ledger.AccountTypeLiability, ledger.AccountTypeEquity,
		ledger.AccountTypeIncome, ledger.AccountTypeExpense:
	default:
		return fmt.Errorf("%w: unknown account type %q", ledger.ErrValidation, in.Type)
	}
	switch in.Nature {
	case ledger.NatureDebit, ledger.NatureCredit:
	default:
		return fmt.Errorf("%w: unknown nature %q", ledger.ErrValidation, in.Nature)
	}
	return nil
}

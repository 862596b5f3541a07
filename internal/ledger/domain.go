package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AccountType enumerates chart of accounts categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeIncome    AccountType = "INCOME"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// AccountNature indicates which side increases the account balance.
type AccountNature string

const (
	NatureDebit  AccountNature = "DEBIT"
	NatureCredit AccountNature = "CREDIT"
)

// TransactionStatus enumerates the transaction lifecycle.
type TransactionStatus string

const (
	StatusDraft     TransactionStatus = "DRAFT"
	StatusPosted    TransactionStatus = "POSTED"
	StatusCancelled TransactionStatus = "CANCELLED"
)

// ReferenceKind tags the business event a transaction originates from.
type ReferenceKind string

const (
	ReferenceInvoice ReferenceKind = "INVOICE"
	ReferencePayment ReferenceKind = "PAYMENT"
	ReferenceManual  ReferenceKind = "MANUAL"
	ReferenceClosing ReferenceKind = "CLOSING"
)

// Reference links a transaction to its originating document.
// Manual adjustments carry a zero ID.
type Reference struct {
	Kind ReferenceKind
	ID   int64
}

// Account models a chart of accounts node.
type Account struct {
	ID             int64
	TenantID       int64
	Code           string
	Name           string
	Type           AccountType
	Nature         AccountNature
	ParentID       *int64
	AcceptsPosting bool
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Transaction is a ledger transaction owning balanced entries.
type Transaction struct {
	ID          int64
	TenantID    int64
	Number      int64
	Date        time.Time
	Description string
	Reference   Reference
	Status      TransactionStatus
	CreatedBy   int64
	PostedBy    *int64
	PostedAt    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Entries     []Entry
}

// Entry stores a single debit or credit against an account.
type Entry struct {
	ID             int64
	TransactionID  int64
	AccountID      int64
	Description    string
	Debit          float64
	Credit         float64
	ThirdPartyType *string
	ThirdPartyID   *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EntryInput describes an entry for a draft transaction.
type EntryInput struct {
	AccountID      int64
	Description    string
	Debit          float64
	Credit         float64
	ThirdPartyType *string
	ThirdPartyID   *int64
}

// CreateDraftInput groups fields required to open a draft transaction.
type CreateDraftInput struct {
	TenantID    int64
	Date        time.Time
	Description string
	Reference   Reference
	CreatedBy   int64
	Entries     []EntryInput
}

// PostInput wraps parameters for posting a draft.
type PostInput struct {
	TenantID      int64
	TransactionID int64
	ActorID       int64
}

// CancelInput wraps parameters for cancelling a posted transaction.
type CancelInput struct {
	TenantID      int64
	TransactionID int64
	ActorID       int64
	Reason        string
}

var (
	// ErrValidation indicates malformed caller input.
	ErrValidation = errors.New("ledger: invalid input")
	// ErrInvalidState indicates an operation against the wrong lifecycle state.
	ErrInvalidState = errors.New("ledger: invalid lifecycle state")
	// ErrUnbalancedEntry indicates the double-entry invariant is violated.
	ErrUnbalancedEntry = errors.New("ledger: entries must balance")
	// ErrTooFewEntries indicates less than two entries at post time.
	ErrTooFewEntries = errors.New("ledger: transaction requires at least two entries")
	// ErrClosedPeriod indicates the transaction date falls in a closed fiscal year.
	ErrClosedPeriod = errors.New("ledger: fiscal period closed")
	// ErrTransactionNotFound indicates a missing transaction.
	ErrTransactionNotFound = errors.New("ledger: transaction not found")
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrAccountNotPostable indicates the account does not accept direct postings.
	ErrAccountNotPostable = errors.New("ledger: account does not accept posting")
	// ErrClosureLinked indicates a completed closure depends on the transaction.
	ErrClosureLinked = errors.New("ledger: transaction referenced by completed closure")
)

// Balanced reports whether debit and credit totals match within 0.01.
func Balanced(debit, credit float64) bool {
	return fmt.Sprintf("%.2f", debit) == fmt.Sprintf("%.2f", credit)
}

// Validate ensures the entry carries exactly one positive amount.
func (in EntryInput) Validate() error {
	if in.AccountID == 0 {
		return fmt.Errorf("%w: entry missing account", ErrValidation)
	}
	if in.Debit < 0 || in.Credit < 0 {
		return fmt.Errorf("%w: entry amount cannot be negative", ErrValidation)
	}
	if in.Debit > 0 && in.Credit > 0 {
		return fmt.Errorf("%w: entry cannot be both debit and credit", ErrValidation)
	}
	if in.Debit == 0 && in.Credit == 0 {
		return fmt.Errorf("%w: entry requires a debit or credit amount", ErrValidation)
	}
	return nil
}

// Validate ensures the draft input is coherent. Entries may be empty at
// creation time; any provided entries are validated individually.
func (in CreateDraftInput) Validate() error {
	if in.TenantID == 0 {
		return fmt.Errorf("%w: tenant required", ErrValidation)
	}
	if in.Date.IsZero() {
		return fmt.Errorf("%w: transaction date required", ErrValidation)
	}
	if strings.TrimSpace(in.Description) == "" {
		return fmt.Errorf("%w: description required", ErrValidation)
	}
	switch in.Reference.Kind {
	case ReferenceInvoice, ReferencePayment, ReferenceClosing:
		if in.Reference.ID == 0 {
			return fmt.Errorf("%w: reference id required for %s", ErrValidation, in.Reference.Kind)
		}
	case ReferenceManual:
	default:
		return fmt.Errorf("%w: unknown reference kind %q", ErrValidation, in.Reference.Kind)
	}
	for idx, entry := range in.Entries {
		if err := entry.Validate(); err != nil {
			return fmt.Errorf("line %d: %w", idx, err)
		}
	}
	return nil
}

// Totals sums debit and credit amounts across entries.
func (t Transaction) Totals() (debit, credit float64) {
	for _, entry := range t.Entries {
		debit += entry.Debit
		credit += entry.Credit
	}
	return debit, credit
}

// FiscalYear returns the fiscal year the transaction belongs to.
func (t Transaction) FiscalYear() int {
	return t.Date.Year()
}

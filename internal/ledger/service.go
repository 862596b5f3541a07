package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/veranda-hq/veranda/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort records ledger events for the audit trail.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ClosureGuard blocks postings dated inside a closed fiscal year.
type ClosureGuard interface {
	EnsureOpenForPosting(ctx context.Context, tenantID int64, date time.Time) error
}

// Metrics counts lifecycle events.
type Metrics interface {
	TransactionPosted()
	TransactionCancelled()
}

// Service coordinates the draft/posted/cancelled transaction lifecycle.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	guard   ClosureGuard
	metrics Metrics
	now     func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, audit AuditPort, guard ClosureGuard) *Service {
	return &Service{repo: repo, audit: audit, guard: guard, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithMetrics attaches lifecycle counters.
func (s *Service) WithMetrics(m Metrics) {
	s.metrics = m
}

// CreateDraft opens a new draft transaction, optionally with initial entries.
func (s *Service) CreateDraft(ctx context.Context, input CreateDraftInput) (Transaction, error) {
	if err := input.Validate(); err != nil {
		return Transaction{}, err
	}
	var created Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := tx.InsertTransaction(ctx, input)
		if err != nil {
			return err
		}
		for _, entry := range input.Entries {
			if err := s.checkPostable(ctx, tx, input.TenantID, entry.AccountID); err != nil {
				return err
			}
			stored, err := tx.InsertEntry(ctx, inserted.ID, entry)
			if err != nil {
				return err
			}
			inserted.Entries = append(inserted.Entries, stored)
		}
		created = inserted
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	return created, nil
}

// AddEntry appends an entry to a draft transaction owned by the tenant.
func (s *Service) AddEntry(ctx context.Context, tenantID, transactionID int64, input EntryInput) (Entry, error) {
	if tenantID == 0 || transactionID == 0 {
		return Entry{}, fmt.Errorf("%w: tenant and transaction id required", ErrValidation)
	}
	if err := input.Validate(); err != nil {
		return Entry{}, err
	}
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetTransactionForUpdate(ctx, tenantID, transactionID)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return ErrInvalidState
		}
		if err := s.checkPostable(ctx, tx, current.TenantID, input.AccountID); err != nil {
			return err
		}
		entry, err = tx.InsertEntry(ctx, transactionID, input)
		return err
	})
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// RemoveEntry removes an entry from a draft transaction owned by the tenant.
func (s *Service) RemoveEntry(ctx context.Context, tenantID, transactionID, entryID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetTransactionForUpdate(ctx, tenantID, transactionID)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return ErrInvalidState
		}
		return tx.DeleteEntry(ctx, transactionID, entryID)
	})
}

// Post transitions a draft to posted after verifying the double-entry
// invariants. The transaction row stays locked for the duration so two
// concurrent posts cannot both succeed.
func (s *Service) Post(ctx context.Context, input PostInput) (Transaction, error) {
	if input.TenantID == 0 || input.TransactionID == 0 {
		return Transaction{}, fmt.Errorf("%w: tenant and transaction id required", ErrValidation)
	}
	var posted Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetTransactionForUpdate(ctx, input.TenantID, input.TransactionID)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return ErrInvalidState
		}
		if s.guard != nil {
			if err := s.guard.EnsureOpenForPosting(ctx, current.TenantID, current.Date); err != nil {
				return err
			}
		}
		entries, err := tx.GetEntries(ctx, current.ID)
		if err != nil {
			return err
		}
		if len(entries) < 2 {
			return ErrTooFewEntries
		}
		current.Entries = entries
		debit, credit := current.Totals()
		if !Balanced(debit, credit) {
			return ErrUnbalancedEntry
		}
		at := s.now()
		if err := tx.MarkPosted(ctx, current.ID, input.ActorID, at); err != nil {
			return err
		}
		current.Status = StatusPosted
		current.PostedBy = &input.ActorID
		current.PostedAt = &at
		posted = current
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	if s.metrics != nil {
		s.metrics.TransactionPosted()
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "transaction.post",
			Entity:   "accounting_transaction",
			EntityID: fmt.Sprintf("%d", posted.ID),
			Meta: map[string]any{
				"number":    posted.Number,
				"reference": string(posted.Reference.Kind),
			},
			At: s.now(),
		})
	}
	return posted, nil
}

// Cancel transitions a posted transaction to cancelled. Cancelled
// transactions stay in the audit trail but are excluded from balances.
func (s *Service) Cancel(ctx context.Context, input CancelInput) (Transaction, error) {
	if input.TenantID == 0 || input.TransactionID == 0 {
		return Transaction{}, fmt.Errorf("%w: tenant and transaction id required", ErrValidation)
	}
	var cancelled Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetTransactionForUpdate(ctx, input.TenantID, input.TransactionID)
		if err != nil {
			return err
		}
		if current.Status != StatusPosted {
			return ErrInvalidState
		}
		linked, err := tx.CompletedClosureReferences(ctx, current.ID)
		if err != nil {
			return err
		}
		if linked {
			return ErrClosureLinked
		}
		if s.guard != nil {
			if err := s.guard.EnsureOpenForPosting(ctx, current.TenantID, current.Date); err != nil {
				return err
			}
		}
		if err := tx.MarkCancelled(ctx, current.ID); err != nil {
			return err
		}
		current.Status = StatusCancelled
		cancelled = current
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	if s.metrics != nil {
		s.metrics.TransactionCancelled()
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "transaction.cancel",
			Entity:   "accounting_transaction",
			EntityID: fmt.Sprintf("%d", cancelled.ID),
			Meta: map[string]any{
				"reason": input.Reason,
			},
			At: s.now(),
		})
	}
	return cancelled, nil
}

// DeleteDraft hard-deletes a draft transaction and its entries. Posted
// transactions can never be deleted.
func (s *Service) DeleteDraft(ctx context.Context, tenantID, transactionID int64) error {
	if tenantID == 0 || transactionID == 0 {
		return fmt.Errorf("%w: tenant and transaction id required", ErrValidation)
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetTransactionForUpdate(ctx, tenantID, transactionID)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return ErrInvalidState
		}
		return tx.DeleteTransaction(ctx, current.ID)
	})
}

func (s *Service) checkPostable(ctx context.Context, tx TxRepository, tenantID, accountID int64) error {
	account, err := tx.GetAccount(ctx, tenantID, accountID)
	if err != nil {
		return err
	}
	if !account.AcceptsPosting || !account.IsActive {
		return fmt.Errorf("%w: account %s", ErrAccountNotPostable, account.Code)
	}
	return nil
}

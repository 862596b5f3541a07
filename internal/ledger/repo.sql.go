package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/veranda-hq/veranda/internal/platform/db"
	"github.com/veranda-hq/veranda/internal/tenant"
)

// Repository persists ledger entities on the tenant's shard.
type Repository struct {
	pools *tenant.Registry
}

// NewRepository constructs Repository.
func NewRepository(pools *tenant.Registry) *Repository {
	return &Repository{pools: pools}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	GetTransactionForUpdate(ctx context.Context, tenantID, id int64) (Transaction, error)
	GetEntries(ctx context.Context, transactionID int64) ([]Entry, error)
	GetAccount(ctx context.Context, tenantID, accountID int64) (Account, error)
	InsertTransaction(ctx context.Context, in CreateDraftInput) (Transaction, error)
	InsertEntry(ctx context.Context, transactionID int64, in EntryInput) (Entry, error)
	DeleteEntry(ctx context.Context, transactionID, entryID int64) error
	DeleteTransaction(ctx context.Context, id int64) error
	MarkPosted(ctx context.Context, id, actorID int64, at time.Time) error
	MarkCancelled(ctx context.Context, id int64) error
	CompletedClosureReferences(ctx context.Context, transactionID int64) (bool, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within a repeatable-read transaction on the pool
// resolved for the tenant in ctx.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	pool, err := r.pools.FromContext(ctx)
	if err != nil {
		return err
	}
	return db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const transactionColumns = `id, conjunto_id, transaction_number, transaction_date, description, reference_type, reference_id, status, created_by, posted_by, posted_at, created_at, updated_at`

// TxNumberLockClass is the advisory lock class guarding per-tenant
// transaction numbering. Shared with the closure repository, which inserts
// closing transactions through the same numbering.
const TxNumberLockClass int32 = 4201

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.TenantID, &t.Number, &t.Date, &t.Description, &t.Reference.Kind, &t.Reference.ID,
		&t.Status, &t.CreatedBy, &t.PostedBy, &t.PostedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	return t, nil
}

func (r *txRepository) GetTransactionForUpdate(ctx context.Context, tenantID, id int64) (Transaction, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM accounting_transactions WHERE id=$1 AND conjunto_id=$2 FOR UPDATE`, id, tenantID)
	return scanTransaction(row)
}

func (r *txRepository) GetEntries(ctx context.Context, transactionID int64) ([]Entry, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, transaction_id, account_id, description, debit_amount, credit_amount, third_party_type, third_party_id, created_at, updated_at
FROM accounting_transaction_entries WHERE transaction_id=$1 ORDER BY id ASC`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.AccountID, &e.Description, &e.Debit, &e.Credit,
			&e.ThirdPartyType, &e.ThirdPartyID, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *txRepository) GetAccount(ctx context.Context, tenantID, accountID int64) (Account, error) {
	var a Account
	err := r.tx.QueryRow(ctx, `SELECT id, conjunto_id, code, name, account_type, nature, parent_id, accepts_posting, is_active, created_at, updated_at
FROM chart_of_accounts WHERE id=$1 AND conjunto_id=$2`, accountID, tenantID).
		Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type, &a.Nature, &a.ParentID, &a.AcceptsPosting, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) InsertTransaction(ctx context.Context, in CreateDraftInput) (Transaction, error) {
	// Serialises MAX(transaction_number)+1 per tenant; released at commit.
	if _, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1, $2::int)`, TxNumberLockClass, in.TenantID); err != nil {
		return Transaction{}, err
	}
	row := r.tx.QueryRow(ctx, `INSERT INTO accounting_transactions (conjunto_id, transaction_number, transaction_date, description, reference_type, reference_id, status, created_by)
VALUES ($1, (SELECT COALESCE(MAX(transaction_number),0)+1 FROM accounting_transactions WHERE conjunto_id=$1), $2, $3, $4, $5, 'DRAFT', $6)
RETURNING id, transaction_number, created_at, updated_at`,
		in.TenantID, in.Date, in.Description, in.Reference.Kind, in.Reference.ID, in.CreatedBy)
	t := Transaction{
		TenantID:    in.TenantID,
		Date:        in.Date,
		Description: in.Description,
		Reference:   in.Reference,
		Status:      StatusDraft,
		CreatedBy:   in.CreatedBy,
	}
	if err := row.Scan(&t.ID, &t.Number, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

func (r *txRepository) InsertEntry(ctx context.Context, transactionID int64, in EntryInput) (Entry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO accounting_transaction_entries (transaction_id, account_id, description, debit_amount, credit_amount, third_party_type, third_party_id)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at, updated_at`,
		transactionID, in.AccountID, in.Description, toNumeric(in.Debit), toNumeric(in.Credit), in.ThirdPartyType, in.ThirdPartyID)
	e := Entry{
		TransactionID:  transactionID,
		AccountID:      in.AccountID,
		Description:    in.Description,
		Debit:          in.Debit,
		Credit:         in.Credit,
		ThirdPartyType: in.ThirdPartyType,
		ThirdPartyID:   in.ThirdPartyID,
	}
	if err := row.Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (r *txRepository) DeleteEntry(ctx context.Context, transactionID, entryID int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM accounting_transaction_entries WHERE id=$1 AND transaction_id=$2`, entryID, transactionID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: entry %d", ErrTransactionNotFound, entryID)
	}
	return nil
}

func (r *txRepository) DeleteTransaction(ctx context.Context, id int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM accounting_transaction_entries WHERE transaction_id=$1`, id); err != nil {
		return err
	}
	cmd, err := r.tx.Exec(ctx, `DELETE FROM accounting_transactions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *txRepository) MarkPosted(ctx context.Context, id, actorID int64, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounting_transactions SET status='POSTED', posted_by=$2, posted_at=$3, updated_at=NOW() WHERE id=$1`, id, actorID, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *txRepository) MarkCancelled(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounting_transactions SET status='CANCELLED', updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *txRepository) CompletedClosureReferences(ctx context.Context, transactionID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounting_period_closures WHERE closing_transaction_id=$1 AND status='COMPLETED')`, transactionID).Scan(&exists)
	return exists, err
}

// GetTransaction loads a transaction with its entries outside a write tx.
func (r *Repository) GetTransaction(ctx context.Context, tenantID, id int64) (Transaction, error) {
	pool, err := r.pools.FromContext(ctx)
	if err != nil {
		return Transaction{}, err
	}
	row := pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM accounting_transactions WHERE id=$1 AND conjunto_id=$2`, id, tenantID)
	t, err := scanTransaction(row)
	if err != nil {
		return Transaction{}, err
	}
	rows, err := pool.Query(ctx, `SELECT id, transaction_id, account_id, description, debit_amount, credit_amount, third_party_type, third_party_id, created_at, updated_at
FROM accounting_transaction_entries WHERE transaction_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return Transaction{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.AccountID, &e.Description, &e.Debit, &e.Credit,
			&e.ThirdPartyType, &e.ThirdPartyID, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return Transaction{}, err
		}
		t.Entries = append(t.Entries, e)
	}
	return t, rows.Err()
}

// ListTransactions returns transactions ordered by (transaction_date, id).
// Insertion order is the tie-break for same-day transactions.
func (r *Repository) ListTransactions(ctx context.Context, tenantID int64, limit, offset int) ([]Transaction, error) {
	pool, err := r.pools.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, `SELECT `+transactionColumns+` FROM accounting_transactions
WHERE conjunto_id=$1 ORDER BY transaction_date ASC, id ASC LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func toNumeric(v float64) any {
	return fmt.Sprintf("%.2f", v)
}

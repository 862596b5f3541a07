package closure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/veranda-hq/veranda/internal/ledger"
	"github.com/veranda-hq/veranda/internal/ledger/balance"
	"github.com/veranda-hq/veranda/internal/platform/db"
	"github.com/veranda-hq/veranda/internal/tenant"
)

// ClosingTransactionArgs bundles everything needed to persist the posted
// closing transaction in one step.
type ClosingTransactionArgs struct {
	TenantID    int64
	Date        time.Time
	Description string
	FiscalYear  int
	ActorID     int64
	PostedAt    time.Time
	Lines       []ledger.EntryInput
}

// RepositoryPort abstracts closure persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetCompletedByYear(ctx context.Context, tenantID int64, fiscalYear int) (Closure, error)
	GetByID(ctx context.Context, tenantID, id int64) (Closure, error)
	List(ctx context.Context, tenantID int64) ([]Closure, error)
}

// TxRepository exposes transactional closure operations.
type TxRepository interface {
	GetCompletedByYearForUpdate(ctx context.Context, tenantID int64, fiscalYear int) (Closure, error)
	GetForUpdate(ctx context.Context, tenantID, id int64) (Closure, error)
	GetAccountByCode(ctx context.Context, tenantID int64, code string) (ledger.Account, error)
	IncomeExpenseBalances(ctx context.Context, tenantID int64, from, to time.Time) ([]balance.AccountBalance, error)
	HasLaterCompleted(ctx context.Context, tenantID int64, fiscalYear int) (bool, error)
	InsertClosingTransaction(ctx context.Context, args ClosingTransactionArgs) (int64, error)
	InsertClosure(ctx context.Context, c Closure) (Closure, error)
	CancelTransaction(ctx context.Context, transactionID int64) (int, error)
	MarkReversed(ctx context.Context, closureID int64) error
}

// Repository persists closure state.
type Repository struct {
	pools *tenant.Registry
}

// NewRepository constructs Repository.
func NewRepository(pools *tenant.Registry) *Repository {
	return &Repository{pools: pools}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("closure repository not initialised")
	}
	pool, err := r.pools.FromContext(ctx)
	if err != nil {
		return err
	}
	return db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const closureColumns = `id, conjunto_id, fiscal_year, closure_date, net_result, is_profit, closing_transaction_id, status, notes, created_by, created_at, updated_at`

func scanClosure(row pgx.Row) (Closure, error) {
	var c Closure
	err := row.Scan(&c.ID, &c.TenantID, &c.FiscalYear, &c.ClosureDate, &c.NetResult, &c.IsProfit,
		&c.ClosingTransactionID, &c.Status, &c.Notes, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Closure{}, ErrNotFound
		}
		return Closure{}, err
	}
	return c, nil
}

// GetCompletedByYear loads the completed closure for a fiscal year.
func (r *Repository) GetCompletedByYear(ctx context.Context, tenantID int64, fiscalYear int) (Closure, error) {
	pool, err := r.pools.FromContext(ctx)
	if err != nil {
		return Closure{}, err
	}
	return scanClosure(pool.QueryRow(ctx, `SELECT `+closureColumns+` FROM accounting_period_closures
WHERE conjunto_id=$1 AND fiscal_year=$2 AND status='COMPLETED'`, tenantID, fiscalYear))
}

// GetByID loads a closure scoped to the tenant.
func (r *Repository) GetByID(ctx context.Context, tenantID, id int64) (Closure, error) {
	pool, err := r.pools.FromContext(ctx)
	if err != nil {
		return Closure{}, err
	}
	return scanClosure(pool.QueryRow(ctx, `SELECT `+closureColumns+` FROM accounting_period_closures
WHERE id=$1 AND conjunto_id=$2`, id, tenantID))
}

// List returns closures for the tenant, most recent fiscal year first.
func (r *Repository) List(ctx context.Context, tenantID int64) ([]Closure, error) {
	pool, err := r.pools.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, `SELECT `+closureColumns+` FROM accounting_period_closures
WHERE conjunto_id=$1 ORDER BY fiscal_year DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Closure
	for rows.Next() {
		c, err := scanClosure(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *txRepository) GetCompletedByYearForUpdate(ctx context.Context, tenantID int64, fiscalYear int) (Closure, error) {
	return scanClosure(r.tx.QueryRow(ctx, `SELECT `+closureColumns+` FROM accounting_period_closures
WHERE conjunto_id=$1 AND fiscal_year=$2 AND status='COMPLETED' FOR UPDATE`, tenantID, fiscalYear))
}

func (r *txRepository) GetForUpdate(ctx context.Context, tenantID, id int64) (Closure, error) {
	return scanClosure(r.tx.QueryRow(ctx, `SELECT `+closureColumns+` FROM accounting_period_closures
WHERE id=$1 AND conjunto_id=$2 FOR UPDATE`, id, tenantID))
}

func (r *txRepository) GetAccountByCode(ctx context.Context, tenantID int64, code string) (ledger.Account, error) {
	var a ledger.Account
	err := r.tx.QueryRow(ctx, `SELECT id, conjunto_id, code, name, account_type, nature, parent_id, accepts_posting, is_active, created_at, updated_at
FROM chart_of_accounts WHERE conjunto_id=$1 AND code=$2`, tenantID, code).
		Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type, &a.Nature, &a.ParentID, &a.AcceptsPosting, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Account{}, ErrClosingAccountMissing
		}
		return ledger.Account{}, err
	}
	return a, nil
}

// IncomeExpenseBalances aggregates posted income and expense activity for the
// range inside the closure transaction, so the closing lines are computed on
// the same snapshot the closure commits against.
func (r *txRepository) IncomeExpenseBalances(ctx context.Context, tenantID int64, from, to time.Time) ([]balance.AccountBalance, error) {
	rows, err := r.tx.Query(ctx, `SELECT a.id, a.code, a.name, a.account_type, a.nature,
  COALESCE(SUM(e.debit_amount),0), COALESCE(SUM(e.credit_amount),0)
FROM chart_of_accounts a
JOIN accounting_transaction_entries e ON e.account_id = a.id
JOIN accounting_transactions t ON t.id = e.transaction_id AND t.status='POSTED'
  AND t.transaction_date >= $2 AND t.transaction_date <= $3
WHERE a.conjunto_id=$1 AND a.account_type IN ('INCOME','EXPENSE')
GROUP BY a.id, a.code, a.name, a.account_type, a.nature
ORDER BY a.code`, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []balance.AccountBalance
	for rows.Next() {
		var b balance.AccountBalance
		if err := rows.Scan(&b.AccountID, &b.Code, &b.Name, &b.Type, &b.Nature, &b.Debit, &b.Credit); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *txRepository) HasLaterCompleted(ctx context.Context, tenantID int64, fiscalYear int) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounting_period_closures
WHERE conjunto_id=$1 AND fiscal_year > $2 AND status='COMPLETED')`, tenantID, fiscalYear).Scan(&exists)
	return exists, err
}

// InsertClosingTransaction writes the already-balanced closing transaction
// and its entries directly in POSTED status.
func (r *txRepository) InsertClosingTransaction(ctx context.Context, args ClosingTransactionArgs) (int64, error) {
	// Same numbering lock the ledger repository takes; released at commit.
	if _, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1, $2::int)`, ledger.TxNumberLockClass, args.TenantID); err != nil {
		return 0, err
	}
	var txID int64
	err := r.tx.QueryRow(ctx, `INSERT INTO accounting_transactions (conjunto_id, transaction_number, transaction_date, description, reference_type, reference_id, status, created_by, posted_by, posted_at)
VALUES ($1, (SELECT COALESCE(MAX(transaction_number),0)+1 FROM accounting_transactions WHERE conjunto_id=$1), $2, $3, 'CLOSING', $4, 'POSTED', $5, $5, $6)
RETURNING id`,
		args.TenantID, args.Date, args.Description, args.FiscalYear, args.ActorID, args.PostedAt).Scan(&txID)
	if err != nil {
		return 0, err
	}
	for _, line := range args.Lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO accounting_transaction_entries (transaction_id, account_id, description, debit_amount, credit_amount)
VALUES ($1,$2,$3,$4,$5)`, txID, line.AccountID, line.Description, toNumeric(line.Debit), toNumeric(line.Credit)); err != nil {
			return 0, err
		}
	}
	return txID, nil
}

func (r *txRepository) InsertClosure(ctx context.Context, c Closure) (Closure, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO accounting_period_closures (conjunto_id, fiscal_year, closure_date, net_result, is_profit, closing_transaction_id, status, notes, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id, created_at, updated_at`,
		c.TenantID, c.FiscalYear, c.ClosureDate, toNumeric(c.NetResult), c.IsProfit, c.ClosingTransactionID, c.Status, c.Notes, c.CreatedBy)
	if err := row.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Closure{}, ErrAlreadyClosed
		}
		return Closure{}, err
	}
	return c, nil
}

func (r *txRepository) CancelTransaction(ctx context.Context, transactionID int64) (int, error) {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounting_transactions SET status='CANCELLED', updated_at=NOW() WHERE id=$1 AND status='POSTED'`, transactionID)
	if err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}

func (r *txRepository) MarkReversed(ctx context.Context, closureID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounting_period_closures SET status='REVERSED', updated_at=NOW() WHERE id=$1`, closureID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func toNumeric(v float64) any {
	return fmt.Sprintf("%.2f", v)
}

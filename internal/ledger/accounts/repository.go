package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/veranda-hq/veranda/internal/ledger"
	"github.com/veranda-hq/veranda/internal/tenant"
)

const accountColumns = `id, conjunto_id, code, name, account_type, nature, parent_id, accepts_posting, is_active, created_at, updated_at`

// Repository persists chart of accounts rows.
type Repository struct {
	pools *tenant.Registry
}

// NewRepository constructs Repository.
func NewRepository(pools *tenant.Registry) *Repository {
	return &Repository{pools: pools}
}

func scanAccount(row pgx.Row) (ledger.Account, error) {
	var a ledger.Account
	err := row.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type, &a.Nature, &a.ParentID,
		&a.AcceptsPosting, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Account{}, ErrNotFound
		}
		return ledger.Account{}, err
	}
	return a, nil
}

// List returns the tenant's chart of accounts ordered by code.
func (r *Repository) List(ctx context.Context, tenantID int64) ([]ledger.Account, error) {
	pool, err := r.pools.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, `SELECT `+accountColumns+` FROM chart_of_accounts WHERE conjunto_id=$1 ORDER BY code`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// GetByID loads one account scoped to the tenant.
func (r *Repository) GetByID(ctx context.Context, tenantID, id int64) (ledger.Account, error) {
	pool, err := r.pools.FromContext(ctx)
	if err != nil {
		return ledger.Account{}, err
	}
	return scanAccount(pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM chart_of_accounts WHERE id=$1 AND conjunto_id=$2`, id, tenantID))
}

// GetByCode loads one account by its code.
func (r *Repository) GetByCode(ctx context.Context, tenantID int64, code string) (ledger.Account, error) {
	pool, err := r.pools.FromContext(ctx)
	if err != nil {
		return ledger.Account{}, err
	}
	return scanAccount(pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM chart_of_accounts WHERE conjunto_id=$1 AND code=$2`, tenantID, code))
}

// Insert stores a new account.
func (r *Repository) Insert(ctx context.Context, in CreateInput) (ledger.Account, error) {
	pool, err := r.pools.FromContext(ctx)
	if err != nil {
		return ledger.Account{}, err
	}
	row := pool.QueryRow(ctx, `INSERT INTO chart_of_accounts (conjunto_id, code, name, account_type, nature, parent_id, accepts_posting, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7,TRUE) RETURNING `+accountColumns,
		in.TenantID, in.Code, in.Name, in.Type, in.Nature, in.ParentID, in.AcceptsPosting)
	account, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ledger.Account{}, ErrDuplicateCode
		}
		return ledger.Account{}, err
	}
	return account, nil
}

// Update applies the mutable fields.
func (r *Repository) Update(ctx context.Context, tenantID, id int64, code, name string, accountType ledger.AccountType, acceptsPosting, isActive bool) (ledger.Account, error) {
	pool, err := r.pools.FromContext(ctx)
	if err != nil {
		return ledger.Account{}, err
	}
	row := pool.QueryRow(ctx, `UPDATE chart_of_accounts SET code=$3, name=$4, account_type=$5, accepts_posting=$6, is_active=$7, updated_at=NOW()
WHERE id=$1 AND conjunto_id=$2 RETURNING `+accountColumns,
		id, tenantID, code, name, accountType, acceptsPosting, isActive)
	account, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ledger.Account{}, ErrDuplicateCode
		}
		return ledger.Account{}, err
	}
	return account, nil
}

// Delete removes an account row.
func (r *Repository) Delete(ctx context.Context, tenantID, id int64) error {
	pool, err := r.pools.FromContext(ctx)
	if err != nil {
		return err
	}
	cmd, err := pool.Exec(ctx, `DELETE FROM chart_of_accounts WHERE id=$1 AND conjunto_id=$2`, id, tenantID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// HasEntries reports whether any transaction entry references the account.
func (r *Repository) HasEntries(ctx context.Context, accountID int64) (bool, error) {
	pool, err := r.pools.FromContext(ctx)
	if err != nil {
		return false, err
	}
	var exists bool
	err = pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounting_transaction_entries WHERE account_id=$1)`, accountID).Scan(&exists)
	return exists, err
}

// HasChildren reports whether any account references this one as parent.
func (r *Repository) HasChildren(ctx context.Context, accountID int64) (bool, error) {
	pool, err := r.pools.FromContext(ctx)
	if err != nil {
		return false, err
	}
	var exists bool
	err = pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM chart_of_accounts WHERE parent_id=$1)`, accountID).Scan(&exists)
	return exists, err
}

// UpsertSeed inserts a seed account if the code is not present yet.
func (r *Repository) UpsertSeed(ctx context.Context, tenantID int64, code, name string, accountType ledger.AccountType, nature ledger.AccountNature, parentID *int64, acceptsPosting bool) error {
	pool, err := r.pools.FromContext(ctx)
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, `INSERT INTO chart_of_accounts (conjunto_id, code, name, account_type, nature, parent_id, accepts_posting, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7,TRUE) ON CONFLICT (conjunto_id, code) DO NOTHING`,
		tenantID, code, name, accountType, nature, parentID, acceptsPosting)
	return err
}

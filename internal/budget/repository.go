package budget

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/veranda-hq/veranda/internal/tenant"
)

// RepositoryPort abstracts budget persistence.
type RepositoryPort interface {
	Insert(ctx context.Context, b Budget) (Budget, error)
	GetByID(ctx context.Context, tenantID, id int64) (Budget, error)
	GetByYear(ctx context.Context, tenantID int64, fiscalYear int) (Budget, error)
	List(ctx context.Context, tenantID int64) ([]Budget, error)
	Delete(ctx context.Context, tenantID, id int64) error
}

// Repository persists budgets in PostgreSQL.
type Repository struct {
	pools *tenant.Registry
}

// NewRepository constructs Repository.
func NewRepository(pools *tenant.Registry) *Repository {
	return &Repository{pools: pools}
}

const budgetColumns = `id, conjunto_id, fiscal_year, name, notes, created_by, created_at, updated_at`

func scanBudget(row pgx.Row) (Budget, error) {
	var b Budget
	err := row.Scan(&b.ID, &b.TenantID, &b.FiscalYear, &b.Name, &b.Notes, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Budget{}, ErrNotFound
		}
		return Budget{}, err
	}
	return b, nil
}

// Insert writes the budget and its items atomically.
func (r *Repository) Insert(ctx context.Context, b Budget) (Budget, error) {
	pool, err := r.pools.FromContext(ctx)
	if err != nil {
		return Budget{}, err
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		return Budget{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `INSERT INTO budgets (conjunto_id, fiscal_year, name, notes, created_by)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at, updated_at`,
		b.TenantID, b.FiscalYear, b.Name, b.Notes, b.CreatedBy).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Budget{}, ErrDuplicateYear
		}
		return Budget{}, err
	}
	for idx := range b.Items {
		item := &b.Items[idx]
		item.BudgetID = b.ID
		err = tx.QueryRow(ctx, `INSERT INTO budget_items (budget_id, account_id, category,
 month_01, month_02, month_03, month_04, month_05, month_06,
 month_07, month_08, month_09, month_10, month_11, month_12)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15) RETURNING id`,
			item.BudgetID, item.AccountID, item.Category,
			num(item.Monthly[0]), num(item.Monthly[1]), num(item.Monthly[2]),
			num(item.Monthly[3]), num(item.Monthly[4]), num(item.Monthly[5]),
			num(item.Monthly[6]), num(item.Monthly[7]), num(item.Monthly[8]),
			num(item.Monthly[9]), num(item.Monthly[10]), num(item.Monthly[11])).Scan(&item.ID)
		if err != nil {
			return Budget{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Budget{}, err
	}
	return b, nil
}

// GetByID loads a budget with its items.
func (r *Repository) GetByID(ctx context.Context, tenantID, id int64) (Budget, error) {
	pool, err := r.pools.FromContext(ctx)
	if err != nil {
		return Budget{}, err
	}
	b, err := scanBudget(pool.QueryRow(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id=$1 AND conjunto_id=$2`, id, tenantID))
	if err != nil {
		return Budget{}, err
	}
	b.Items, err = r.items(ctx, b.ID)
	return b, err
}

// GetByYear loads the budget for a fiscal year with its items.
func (r *Repository) GetByYear(ctx context.Context, tenantID int64, fiscalYear int) (Budget, error) {
	pool, err := r.pools.FromContext(ctx)
	if err != nil {
		return Budget{}, err
	}
	b, err := scanBudget(pool.QueryRow(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE conjunto_id=$1 AND fiscal_year=$2`, tenantID, fiscalYear))
	if err != nil {
		return Budget{}, err
	}
	b.Items, err = r.items(ctx, b.ID)
	return b, err
}

// List returns budgets without items, most recent fiscal year first.
func (r *Repository) List(ctx context.Context, tenantID int64) ([]Budget, error) {
	pool, err := r.pools.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE conjunto_id=$1 ORDER BY fiscal_year DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Delete removes a budget and its items.
func (r *Repository) Delete(ctx context.Context, tenantID, id int64) error {
	pool, err := r.pools.FromContext(ctx)
	if err != nil {
		return err
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, `DELETE FROM budget_items WHERE budget_id=$1`, id); err != nil {
		return err
	}
	cmd, err := tx.Exec(ctx, `DELETE FROM budgets WHERE id=$1 AND conjunto_id=$2`, id, tenantID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

func (r *Repository) items(ctx context.Context, budgetID int64) ([]Item, error) {
	pool, err := r.pools.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, `SELECT id, budget_id, account_id, category,
 month_01, month_02, month_03, month_04, month_05, month_06,
 month_07, month_08, month_09, month_10, month_11, month_12
FROM budget_items WHERE budget_id=$1 ORDER BY id`, budgetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		var item Item
		dest := []any{&item.ID, &item.BudgetID, &item.AccountID, &item.Category}
		for m := range item.Monthly {
			dest = append(dest, &item.Monthly[m])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func num(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

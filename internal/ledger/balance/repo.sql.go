package balance

import (
	"context"
	"time"

	"github.com/veranda-hq/veranda/internal/ledger"
	"github.com/veranda-hq/veranda/internal/tenant"
)

// Repository runs the aggregate queries backing the calculator.
type Repository struct {
	pools *tenant.Registry
}

// NewRepository constructs Repository.
func NewRepository(pools *tenant.Registry) *Repository {
	return &Repository{pools: pools}
}

// SumPostedEntries totals debit and credit amounts of posted entries for an
// account within the optional date range. Cancelled transactions never count.
func (r *Repository) SumPostedEntries(ctx context.Context, tenantID, accountID int64, from, to *time.Time) (float64, float64, error) {
	pool, err := r.pools.FromContext(ctx)
	if err != nil {
		return 0, 0, err
	}
	var debit, credit float64
	err = pool.QueryRow(ctx, `SELECT COALESCE(SUM(e.debit_amount),0), COALESCE(SUM(e.credit_amount),0)
FROM accounting_transaction_entries e
JOIN accounting_transactions t ON t.id = e.transaction_id
WHERE t.conjunto_id=$1 AND e.account_id=$2 AND t.status='POSTED'
  AND ($3::date IS NULL OR t.transaction_date >= $3)
  AND ($4::date IS NULL OR t.transaction_date <= $4)`,
		tenantID, accountID, from, to).Scan(&debit, &credit)
	if err != nil {
		return 0, 0, err
	}
	return debit, credit, nil
}

// InvoiceCollections lists invoice-linked posted entries for an account with
// the invoice total and the active payment applications within the range. The
// apportionment itself happens in the calculator.
func (r *Repository) InvoiceCollections(ctx context.Context, tenantID, accountID int64, from, to *time.Time) ([]InvoiceCollection, error) {
	pool, err := r.pools.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, `SELECT (e.credit_amount - e.debit_amount), i.total_amount, coll.applied
FROM accounting_transaction_entries e
JOIN accounting_transactions t ON t.id = e.transaction_id
JOIN invoices i ON t.reference_type = 'INVOICE' AND i.id = t.reference_id
JOIN LATERAL (
  SELECT COALESCE(SUM(pa.amount_applied), 0) AS applied
  FROM payment_applications pa
  WHERE pa.invoice_id = i.id AND pa.is_active
    AND ($3::date IS NULL OR pa.applied_at >= $3)
    AND ($4::date IS NULL OR pa.applied_at <= $4)
) coll ON TRUE
WHERE t.conjunto_id=$1 AND e.account_id=$2 AND t.status='POSTED'`,
		tenantID, accountID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []InvoiceCollection
	for rows.Next() {
		var c InvoiceCollection
		if err := rows.Scan(&c.EntryAmount, &c.InvoiceTotal, &c.Applied); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AccountBalances aggregates posted amounts per account for the given types.
func (r *Repository) AccountBalances(ctx context.Context, tenantID int64, types []ledger.AccountType, from, to *time.Time) ([]AccountBalance, error) {
	pool, err := r.pools.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	typeNames := make([]string, 0, len(types))
	for _, t := range types {
		typeNames = append(typeNames, string(t))
	}
	rows, err := pool.Query(ctx, `SELECT a.id, a.code, a.name, a.account_type, a.nature,
  COALESCE(SUM(e.debit_amount),0), COALESCE(SUM(e.credit_amount),0)
FROM chart_of_accounts a
JOIN accounting_transaction_entries e ON e.account_id = a.id
JOIN accounting_transactions t ON t.id = e.transaction_id AND t.status='POSTED'
  AND ($3::date IS NULL OR t.transaction_date >= $3)
  AND ($4::date IS NULL OR t.transaction_date <= $4)
WHERE a.conjunto_id=$1 AND a.account_type = ANY($2)
GROUP BY a.id, a.code, a.name, a.account_type, a.nature
ORDER BY a.code`,
		tenantID, typeNames, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountBalance
	for rows.Next() {
		var b AccountBalance
		if err := rows.Scan(&b.AccountID, &b.Code, &b.Name, &b.Type, &b.Nature, &b.Debit, &b.Credit); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Package balance derives account balances from posted entries. Balances are
// always recomputed by aggregate query over committed rows; there is no
// running counter to race against.
package balance

import (
	"context"
	"fmt"
	"time"

	"github.com/veranda-hq/veranda/internal/ledger"
)

// AccountBalance carries aggregated posted amounts for one account.
type AccountBalance struct {
	AccountID int64
	Code      string
	Name      string
	Type      ledger.AccountType
	Nature    ledger.AccountNature
	Debit     float64
	Credit    float64
}

// Amount returns the nature-signed balance.
func (b AccountBalance) Amount() float64 {
	if b.Nature == ledger.NatureCredit {
		return b.Credit - b.Debit
	}
	return b.Debit - b.Credit
}

// InvoiceCollection pairs one invoice-linked posted entry with its invoice
// total and the payments applied to that invoice within the range.
type InvoiceCollection struct {
	EntryAmount  float64
	InvoiceTotal float64
	Applied      float64
}

// Reader abstracts the aggregate queries the calculator runs.
type Reader interface {
	SumPostedEntries(ctx context.Context, tenantID, accountID int64, from, to *time.Time) (debit, credit float64, err error)
	InvoiceCollections(ctx context.Context, tenantID, accountID int64, from, to *time.Time) ([]InvoiceCollection, error)
	AccountBalances(ctx context.Context, tenantID int64, types []ledger.AccountType, from, to *time.Time) ([]AccountBalance, error)
}

// Calculator computes accrual and cash-basis balances.
type Calculator struct {
	reader Reader
}

// NewCalculator constructs a Calculator.
func NewCalculator(reader Reader) *Calculator {
	return &Calculator{reader: reader}
}

// Balance returns the accrual balance of the account over the optional date
// range, signed by nature: debit-nature accounts grow with debits,
// credit-nature accounts with credits.
func (c *Calculator) Balance(ctx context.Context, account ledger.Account, from, to *time.Time) (float64, error) {
	debit, credit, err := c.reader.SumPostedEntries(ctx, account.TenantID, account.ID, from, to)
	if err != nil {
		return 0, err
	}
	if account.Nature == ledger.NatureCredit {
		return credit - debit, nil
	}
	return debit - credit, nil
}

// CashBasisIncome returns income recognized only to the extent collected:
// each invoice-linked entry is apportioned by the fraction of the invoice
// total applied by active payments within the range. The proportion uses the
// invoice total, not the per-line amount, so multi-line invoices share one
// collection ratio.
func (c *Calculator) CashBasisIncome(ctx context.Context, account ledger.Account, from, to *time.Time) (float64, error) {
	if account.Type != ledger.AccountTypeIncome {
		return 0, fmt.Errorf("%w: cash basis applies to income accounts only", ledger.ErrValidation)
	}
	rows, err := c.reader.InvoiceCollections(ctx, account.TenantID, account.ID, from, to)
	if err != nil {
		return 0, err
	}
	var collected float64
	for _, row := range rows {
		if row.InvoiceTotal <= 0 {
			continue
		}
		collected += row.EntryAmount * (row.Applied / row.InvoiceTotal)
	}
	return collected, nil
}

// Balances aggregates posted amounts per account for the given types.
func (c *Calculator) Balances(ctx context.Context, tenantID int64, types []ledger.AccountType, from, to *time.Time) ([]AccountBalance, error) {
	return c.reader.AccountBalances(ctx, tenantID, types, from, to)
}

// NetResult computes income minus expense over the range.
func (c *Calculator) NetResult(ctx context.Context, tenantID int64, from, to *time.Time) (income, expense float64, err error) {
	rows, err := c.reader.AccountBalances(ctx, tenantID,
		[]ledger.AccountType{ledger.AccountTypeIncome, ledger.AccountTypeExpense}, from, to)
	if err != nil {
		return 0, 0, err
	}
	for _, row := range rows {
		switch row.Type {
		case ledger.AccountTypeIncome:
			income += row.Amount()
		case ledger.AccountTypeExpense:
			expense += row.Amount()
		}
	}
	return income, expense, nil
}

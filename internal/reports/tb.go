package reports

import (
	"context"
	"time"

	"github.com/veranda-hq/veranda/internal/ledger"
)

// TrialBalanceRow is one account with raw debit and credit totals.
type TrialBalanceRow struct {
	AccountID int64
	Code      string
	Name      string
	Type      ledger.AccountType
	Nature    ledger.AccountNature
	Debit     float64
	Credit    float64
	Balance   float64
}

// TrialBalance lists every account with posted activity in the period.
// A healthy ledger has DebitTotal == CreditTotal.
type TrialBalance struct {
	From        *time.Time
	To          *time.Time
	Rows        []TrialBalanceRow
	DebitTotal  float64
	CreditTotal float64
}

var allAccountTypes = []ledger.AccountType{
	ledger.AccountTypeAsset,
	ledger.AccountTypeLiability,
	ledger.AccountTypeEquity,
	ledger.AccountTypeIncome,
	ledger.AccountTypeExpense,
}

// TrialBalance aggregates posted debits and credits per account across the
// whole chart. Accounts without activity are dropped.
func (s *Service) TrialBalance(ctx context.Context, tenantID int64, from, to *time.Time) (TrialBalance, error) {
	rows, err := s.balances.Balances(ctx, tenantID, allAccountTypes, from, to)
	if err != nil {
		return TrialBalance{}, err
	}
	report := TrialBalance{From: from, To: to}
	for _, row := range rows {
		if row.Debit == 0 && row.Credit == 0 {
			continue
		}
		report.Rows = append(report.Rows, TrialBalanceRow{
			AccountID: row.AccountID,
			Code:      row.Code,
			Name:      row.Name,
			Type:      row.Type,
			Nature:    row.Nature,
			Debit:     row.Debit,
			Credit:    row.Credit,
			Balance:   row.Amount(),
		})
		report.DebitTotal += row.Debit
		report.CreditTotal += row.Credit
	}
	return report, nil
}

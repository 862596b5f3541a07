package reports

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.MustParse("es-CO"))

// FormatCurrency renders an amount as Colombian pesos with grouping.
func FormatCurrency(v float64) string {
	return printer.Sprintf("$%.2f", v)
}

// LineVM is a display row with a formatted amount.
type LineVM struct {
	Code   string  `json:"code"`
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Label  string  `json:"label"`
}

// IncomeStatementVM is the JSON shape of the income statement.
type IncomeStatementVM struct {
	Basis        string   `json:"basis"`
	Income       []LineVM `json:"income"`
	Expense      []LineVM `json:"expense"`
	IncomeTotal  float64  `json:"income_total"`
	ExpenseTotal float64  `json:"expense_total"`
	NetResult    float64  `json:"net_result"`
	NetLabel     string   `json:"net_label"`
}

// NewIncomeStatementVM converts the report to its display form.
func NewIncomeStatementVM(r IncomeStatement) IncomeStatementVM {
	vm := IncomeStatementVM{
		Basis:        string(r.Basis),
		IncomeTotal:  r.IncomeTotal,
		ExpenseTotal: r.ExpenseTotal,
		NetResult:    r.NetResult,
		NetLabel:     FormatCurrency(r.NetResult),
	}
	for _, line := range r.Income {
		vm.Income = append(vm.Income, LineVM{Code: line.Code, Name: line.Name, Amount: line.Amount, Label: FormatCurrency(line.Amount)})
	}
	for _, line := range r.Expense {
		vm.Expense = append(vm.Expense, LineVM{Code: line.Code, Name: line.Name, Amount: line.Amount, Label: FormatCurrency(line.Amount)})
	}
	return vm
}

// TrialBalanceRowVM is one formatted trial balance row.
type TrialBalanceRowVM struct {
	Code    string  `json:"code"`
	Name    string  `json:"name"`
	Type    string  `json:"type"`
	Debit   float64 `json:"debit"`
	Credit  float64 `json:"credit"`
	Balance float64 `json:"balance"`
	Label   string  `json:"label"`
}

// TrialBalanceVM is the JSON shape of the trial balance.
type TrialBalanceVM struct {
	Rows        []TrialBalanceRowVM `json:"rows"`
	DebitTotal  float64             `json:"debit_total"`
	CreditTotal float64             `json:"credit_total"`
	Balanced    bool                `json:"balanced"`
}

// NewTrialBalanceVM converts the report to its display form.
func NewTrialBalanceVM(r TrialBalance) TrialBalanceVM {
	vm := TrialBalanceVM{
		DebitTotal:  r.DebitTotal,
		CreditTotal: r.CreditTotal,
	}
	for _, row := range r.Rows {
		vm.Rows = append(vm.Rows, TrialBalanceRowVM{
			Code:    row.Code,
			Name:    row.Name,
			Type:    string(row.Type),
			Debit:   row.Debit,
			Credit:  row.Credit,
			Balance: row.Balance,
			Label:   FormatCurrency(row.Balance),
		})
	}
	vm.Balanced = formatCmp(r.DebitTotal) == formatCmp(r.CreditTotal)
	return vm
}

func formatCmp(v float64) string {
	return printer.Sprintf("%.2f", v)
}

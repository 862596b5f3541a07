package accounts

import (
	"context"

	"github.com/veranda-hq/veranda/internal/ledger"
)

// seedAccount describes one row of the default condominium chart.
type seedAccount struct {
	Code           string
	Name           string
	Type           ledger.AccountType
	Nature         ledger.AccountNature
	ParentCode     string
	AcceptsPosting bool
}

// defaultChart is the minimal chart a new conjunto starts with. Codes follow
// the Colombian PUC numbering used by property managers.
var defaultChart = []seedAccount{
	{Code: "11", Name: "Disponible", Type: ledger.AccountTypeAsset, Nature: ledger.NatureDebit},
	{Code: "1105", Name: "Caja", Type: ledger.AccountTypeAsset, Nature: ledger.NatureDebit, ParentCode: "11"},
	{Code: "110501", Name: "Caja general", Type: ledger.AccountTypeAsset, Nature: ledger.NatureDebit, ParentCode: "1105", AcceptsPosting: true},
	{Code: "1110", Name: "Bancos", Type: ledger.AccountTypeAsset, Nature: ledger.NatureDebit, ParentCode: "11"},
	{Code: "111001", Name: "Cuenta corriente", Type: ledger.AccountTypeAsset, Nature: ledger.NatureDebit, ParentCode: "1110", AcceptsPosting: true},
	{Code: "13", Name: "Deudores", Type: ledger.AccountTypeAsset, Nature: ledger.NatureDebit},
	{Code: "1305", Name: "Cuotas de administración por cobrar", Type: ledger.AccountTypeAsset, Nature: ledger.NatureDebit, ParentCode: "13"},
	{Code: "130501", Name: "Cartera copropietarios", Type: ledger.AccountTypeAsset, Nature: ledger.NatureDebit, ParentCode: "1305", AcceptsPosting: true},
	{Code: "23", Name: "Cuentas por pagar", Type: ledger.AccountTypeLiability, Nature: ledger.NatureCredit},
	{Code: "2335", Name: "Costos y gastos por pagar", Type: ledger.AccountTypeLiability, Nature: ledger.NatureCredit, ParentCode: "23"},
	{Code: "233501", Name: "Proveedores", Type: ledger.AccountTypeLiability, Nature: ledger.NatureCredit, ParentCode: "2335", AcceptsPosting: true},
	{Code: "37", Name: "Resultados del ejercicio", Type: ledger.AccountTypeEquity, Nature: ledger.NatureCredit},
	{Code: "3705", Name: "Resultado del ejercicio", Type: ledger.AccountTypeEquity, Nature: ledger.NatureCredit, ParentCode: "37"},
	{Code: "370501", Name: "Excedente o déficit acumulado", Type: ledger.AccountTypeEquity, Nature: ledger.NatureCredit, ParentCode: "3705", AcceptsPosting: true},
	{Code: "42", Name: "Ingresos operacionales", Type: ledger.AccountTypeIncome, Nature: ledger.NatureCredit},
	{Code: "4201", Name: "Cuotas de administración", Type: ledger.AccountTypeIncome, Nature: ledger.NatureCredit, ParentCode: "42"},
	{Code: "420101", Name: "Cuota ordinaria", Type: ledger.AccountTypeIncome, Nature: ledger.NatureCredit, ParentCode: "4201", AcceptsPosting: true},
	{Code: "420102", Name: "Cuota extraordinaria", Type: ledger.AccountTypeIncome, Nature: ledger.NatureCredit, ParentCode: "4201", AcceptsPosting: true},
	{Code: "4210", Name: "Intereses de mora", Type: ledger.AccountTypeIncome, Nature: ledger.NatureCredit, ParentCode: "42", AcceptsPosting: true},
	{Code: "51", Name: "Gastos operacionales", Type: ledger.AccountTypeExpense, Nature: ledger.NatureDebit},
	{Code: "5110", Name: "Honorarios", Type: ledger.AccountTypeExpense, Nature: ledger.NatureDebit, ParentCode: "51", AcceptsPosting: true},
	{Code: "5135", Name: "Servicios públicos", Type: ledger.AccountTypeExpense, Nature: ledger.NatureDebit, ParentCode: "51", AcceptsPosting: true},
	{Code: "5145", Name: "Mantenimiento y reparaciones", Type: ledger.AccountTypeExpense, Nature: ledger.NatureDebit, ParentCode: "51", AcceptsPosting: true},
}

// Seed installs the default chart for a tenant. The operation is idempotent:
// accounts already present are left untouched, so it can be re-run to pick up
// chart additions for existing tenants.
func (s *Service) Seed(ctx context.Context, tenantID int64) error {
	for _, seed := range defaultChart {
		var parentID *int64
		if seed.ParentCode != "" {
			parent, err := s.repo.GetByCode(ctx, tenantID, seed.ParentCode)
			if err != nil {
				return err
			}
			parentID = &parent.ID
		}
		if err := s.repo.UpsertSeed(ctx, tenantID, seed.Code, seed.Name, seed.Type, seed.Nature, parentID, seed.AcceptsPosting); err != nil {
			return err
		}
	}
	return nil
}

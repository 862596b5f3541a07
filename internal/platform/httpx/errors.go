// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/veranda-hq/veranda/internal/budget"
	"github.com/veranda-hq/veranda/internal/closure"
	"github.com/veranda-hq/veranda/internal/ledger"
	"github.com/veranda-hq/veranda/internal/ledger/accounts"
	"github.com/veranda-hq/veranda/internal/tenant"
)

// RespondError maps domain errors to RFC7807 responses. Unknown errors are
// returned as 500 without leaking internals.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrValidation),
		errors.Is(err, tenant.ErrUnknownTenant):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ledger.ErrTransactionNotFound),
		errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, accounts.ErrNotFound),
		errors.Is(err, closure.ErrNotFound),
		errors.Is(err, budget.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, accounts.ErrDuplicateCode),
		errors.Is(err, closure.ErrAlreadyClosed),
		errors.Is(err, budget.ErrDuplicateYear):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ledger.ErrInvalidState),
		errors.Is(err, ledger.ErrUnbalancedEntry),
		errors.Is(err, ledger.ErrTooFewEntries),
		errors.Is(err, ledger.ErrClosedPeriod),
		errors.Is(err, ledger.ErrAccountNotPostable),
		errors.Is(err, ledger.ErrClosureLinked),
		errors.Is(err, accounts.ErrImmutable),
		errors.Is(err, accounts.ErrMaxDepth),
		errors.Is(err, closure.ErrNotReversible),
		errors.Is(err, closure.ErrNothingToClose),
		errors.Is(err, closure.ErrClosingAccountMissing):
		Problem(w, http.StatusUnprocessableEntity, "Invalid Operation", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

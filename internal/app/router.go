package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	budgethttp "github.com/veranda-hq/veranda/internal/budget/http"
	closurehttp "github.com/veranda-hq/veranda/internal/closure/http"
	accountshttp "github.com/veranda-hq/veranda/internal/ledger/accounts/http"
	ledgerhttp "github.com/veranda-hq/veranda/internal/ledger/http"
	"github.com/veranda-hq/veranda/internal/observability"
	reportshttp "github.com/veranda-hq/veranda/internal/reports/http"
	"github.com/veranda-hq/veranda/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	LedgerHandler   *ledgerhttp.Handler
	AccountsHandler *accountshttp.Handler
	ClosureHandler  *closurehttp.Handler
	BudgetHandler   *budgethttp.Handler
	ReportsHandler  *reportshttp.Handler
	JobsHandler     *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with Veranda defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		if params.AccountsHandler != nil {
			params.AccountsHandler.MountRoutes(r)
		}
		if params.LedgerHandler != nil {
			params.LedgerHandler.MountRoutes(r)
		}
		if params.ClosureHandler != nil {
			params.ClosureHandler.MountRoutes(r)
		}
		if params.BudgetHandler != nil {
			params.BudgetHandler.MountRoutes(r)
		}
		if params.ReportsHandler != nil {
			params.ReportsHandler.MountRoutes(r)
		}
	})

	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}

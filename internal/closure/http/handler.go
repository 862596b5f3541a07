// Package http exposes annual period closures as a JSON API.
package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/veranda-hq/veranda/internal/closure"
	"github.com/veranda-hq/veranda/internal/platform/httpx"
	"github.com/veranda-hq/veranda/internal/shared"
	"github.com/veranda-hq/veranda/internal/tenant"
)

type executeRequest struct {
	FiscalYear  int    `json:"fiscal_year" validate:"required,gte=1900,lte=2200"`
	ClosureDate string `json:"closure_date" validate:"required,datetime=2006-01-02"`
	Notes       string `json:"notes" validate:"max=500"`
}

type closureResponse struct {
	ID                   int64   `json:"id"`
	FiscalYear           int     `json:"fiscal_year"`
	ClosureDate          string  `json:"closure_date"`
	NetResult            float64 `json:"net_result"`
	IsProfit             bool    `json:"is_profit"`
	ClosingTransactionID int64   `json:"closing_transaction_id"`
	Status               string  `json:"status"`
	Notes                string  `json:"notes,omitempty"`
}

func newClosureResponse(c closure.Closure) closureResponse {
	return closureResponse{
		ID:                   c.ID,
		FiscalYear:           c.FiscalYear,
		ClosureDate:          c.ClosureDate.Format("2006-01-02"),
		NetResult:            c.NetResult,
		IsProfit:             c.IsProfit,
		ClosingTransactionID: c.ClosingTransactionID,
		Status:               string(c.Status),
		Notes:                c.Notes,
	}
}

// Handler exposes closure endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *closure.Service
	validate *validator.Validate
}

// NewHandler constructs the closure handler.
func NewHandler(logger *slog.Logger, service *closure.Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers the closure endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/closures", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/preview", h.Preview)
		r.Post("/", h.Execute)
		r.Get("/{id}", h.Show)
		r.Post("/{id}/reverse", h.Reverse)
	})
}

func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("fiscal_year"))
	if err != nil || year <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "fiscal_year required")
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	preview, err := h.service.Preview(r.Context(), tenantID, year)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"fiscal_year":   preview.FiscalYear,
		"income_total":  preview.IncomeTotal,
		"expense_total": preview.ExpenseTotal,
		"net_result":    preview.NetResult,
		"is_profit":     preview.IsProfit,
	})
}

func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, err := time.Parse("2006-01-02", req.ClosureDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "closure_date must be YYYY-MM-DD")
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	result, err := h.service.Execute(r.Context(), closure.ExecuteInput{
		TenantID:    tenantID,
		FiscalYear:  req.FiscalYear,
		ClosureDate: date,
		Notes:       req.Notes,
		ActorID:     shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.logger.Error("execute closure failed",
			slog.Int("fiscal_year", req.FiscalYear), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newClosureResponse(result))
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	c, err := h.service.Get(r.Context(), tenantID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newClosureResponse(c))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	list, err := h.service.List(r.Context(), tenantID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]closureResponse, 0, len(list))
	for _, c := range list {
		out = append(out, newClosureResponse(c))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"closures": out})
}

func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	result, err := h.service.Reverse(r.Context(), tenantID, id, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.logger.Error("reverse closure failed", slog.Int64("closure_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"closure_id":             result.ClosureID,
		"transactions_cancelled": result.TransactionsCancelled,
	})
}

// Package http exposes budgets and budget execution as a JSON API.
package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/veranda-hq/veranda/internal/budget"
	"github.com/veranda-hq/veranda/internal/platform/httpx"
	"github.com/veranda-hq/veranda/internal/shared"
	"github.com/veranda-hq/veranda/internal/tenant"
)

type itemRequest struct {
	AccountID int64      `json:"account_id" validate:"required,gt=0"`
	Category  string     `json:"category" validate:"max=100"`
	Monthly   []float64  `json:"monthly" validate:"required,len=12,dive,gte=0"`
}

type createBudgetRequest struct {
	FiscalYear int           `json:"fiscal_year" validate:"required,gte=1900,lte=2200"`
	Name       string        `json:"name" validate:"required,max=255"`
	Notes      string        `json:"notes" validate:"max=500"`
	Items      []itemRequest `json:"items" validate:"required,min=1,dive"`
}

type itemResponse struct {
	ID          int64     `json:"id"`
	AccountID   int64     `json:"account_id"`
	Category    string    `json:"category,omitempty"`
	Monthly     []float64 `json:"monthly"`
	AnnualTotal float64   `json:"annual_total"`
}

type budgetResponse struct {
	ID         int64          `json:"id"`
	FiscalYear int            `json:"fiscal_year"`
	Name       string         `json:"name"`
	Notes      string         `json:"notes,omitempty"`
	Items      []itemResponse `json:"items,omitempty"`
}

func newBudgetResponse(b budget.Budget) budgetResponse {
	resp := budgetResponse{
		ID:         b.ID,
		FiscalYear: b.FiscalYear,
		Name:       b.Name,
		Notes:      b.Notes,
	}
	for _, item := range b.Items {
		monthly := make([]float64, budget.MonthsPerYear)
		copy(monthly, item.Monthly[:])
		resp.Items = append(resp.Items, itemResponse{
			ID:          item.ID,
			AccountID:   item.AccountID,
			Category:    item.Category,
			Monthly:     monthly,
			AnnualTotal: item.AnnualTotal(),
		})
	}
	return resp
}

// Handler exposes budget endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *budget.Service
	validate *validator.Validate
}

// NewHandler constructs the budget handler.
func NewHandler(logger *slog.Logger, service *budget.Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers the budget endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/budgets", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Show)
		r.Delete("/{id}", h.Delete)
		r.Get("/{id}/execution", h.Execution)
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBudgetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	input := budget.CreateInput{
		TenantID:   tenantID,
		FiscalYear: req.FiscalYear,
		Name:       req.Name,
		Notes:      req.Notes,
		ActorID:    shared.ActorFromContext(r.Context()),
	}
	for _, item := range req.Items {
		var monthly [budget.MonthsPerYear]float64
		copy(monthly[:], item.Monthly)
		input.Items = append(input.Items, budget.ItemInput{
			AccountID: item.AccountID,
			Category:  item.Category,
			Monthly:   monthly,
		})
	}
	b, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.logger.Error("create budget failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newBudgetResponse(b))
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	b, err := h.service.Get(r.Context(), tenantID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newBudgetResponse(b))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	list, err := h.service.List(r.Context(), tenantID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]budgetResponse, 0, len(list))
	for _, b := range list {
		out = append(out, newBudgetResponse(b))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"budgets": out})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	if err := h.service.Delete(r.Context(), tenantID, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Execution(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > budget.MonthsPerYear {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "month must be 1..12")
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	exec, err := h.service.Execution(r.Context(), tenantID, id, month)
	if err != nil {
		h.logger.Error("budget execution failed", slog.Int64("budget_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, exec)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return 0, false
	}
	return id, true
}

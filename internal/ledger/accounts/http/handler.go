// Package http exposes chart of accounts management as a JSON API.
package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/veranda-hq/veranda/internal/ledger"
	"github.com/veranda-hq/veranda/internal/ledger/accounts"
	"github.com/veranda-hq/veranda/internal/platform/httpx"
	"github.com/veranda-hq/veranda/internal/tenant"
)

type createAccountRequest struct {
	Code           string `json:"code" validate:"required,max=20"`
	Name           string `json:"name" validate:"required,max=255"`
	Type           string `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY INCOME EXPENSE"`
	Nature         string `json:"nature" validate:"required,oneof=DEBIT CREDIT"`
	ParentID       *int64 `json:"parent_id,omitempty"`
	AcceptsPosting bool   `json:"accepts_posting"`
}

type updateAccountRequest struct {
	Code           *string `json:"code,omitempty" validate:"omitempty,max=20"`
	Name           *string `json:"name,omitempty" validate:"omitempty,max=255"`
	Type           *string `json:"type,omitempty" validate:"omitempty,oneof=ASSET LIABILITY EQUITY INCOME EXPENSE"`
	AcceptsPosting *bool   `json:"accepts_posting,omitempty"`
	IsActive       *bool   `json:"is_active,omitempty"`
}

type accountResponse struct {
	ID             int64  `json:"id"`
	Code           string `json:"code"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	Nature         string `json:"nature"`
	ParentID       *int64 `json:"parent_id,omitempty"`
	AcceptsPosting bool   `json:"accepts_posting"`
	IsActive       bool   `json:"is_active"`
}

func newAccountResponse(a ledger.Account) accountResponse {
	return accountResponse{
		ID:             a.ID,
		Code:           a.Code,
		Name:           a.Name,
		Type:           string(a.Type),
		Nature:         string(a.Nature),
		ParentID:       a.ParentID,
		AcceptsPosting: a.AcceptsPosting,
		IsActive:       a.IsActive,
	}
}

// Handler exposes chart of accounts endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *accounts.Service
	validate *validator.Validate
}

// NewHandler constructs the accounts handler.
func NewHandler(logger *slog.Logger, service *accounts.Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers the chart of accounts endpoints. The sync endpoint
// re-runs the idempotent default chart seeding for the tenant.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/sync", h.Sync)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	list, err := h.service.List(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("list accounts failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]accountResponse, 0, len(list))
	for _, a := range list {
		out = append(out, newAccountResponse(a))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": out})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	account, err := h.service.Create(r.Context(), accounts.CreateInput{
		TenantID:       tenantID,
		Code:           req.Code,
		Name:           req.Name,
		Type:           ledger.AccountType(req.Type),
		Nature:         ledger.AccountNature(req.Nature),
		ParentID:       req.ParentID,
		AcceptsPosting: req.AcceptsPosting,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newAccountResponse(account))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	var req updateAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	input := accounts.UpdateInput{
		AccountID:      id,
		TenantID:       tenantID,
		Code:           req.Code,
		Name:           req.Name,
		AcceptsPosting: req.AcceptsPosting,
		IsActive:       req.IsActive,
	}
	if req.Type != nil {
		t := ledger.AccountType(*req.Type)
		input.Type = &t
	}
	account, err := h.service.Update(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newAccountResponse(account))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	if err := h.service.Delete(r.Context(), tenantID, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	if err := h.service.Seed(r.Context(), tenantID); err != nil {
		h.logger.Error("seed chart failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "synced"})
}

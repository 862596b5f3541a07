// Package http exposes the ledger transaction lifecycle as a JSON API.
package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/veranda-hq/veranda/internal/ledger"
	"github.com/veranda-hq/veranda/internal/platform/httpx"
	"github.com/veranda-hq/veranda/internal/shared"
	"github.com/veranda-hq/veranda/internal/tenant"
)

// Handler exposes the transaction lifecycle over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *ledger.Service
	repo     *ledger.Repository
	validate *validator.Validate
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *ledger.Service, repo *ledger.Repository) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		repo:     repo,
		validate: validator.New(),
	}
}

// MountRoutes registers the transaction endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/transactions", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Show)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/entries", h.AddEntry)
		r.Delete("/{id}/entries/{entryID}", h.RemoveEntry)
		r.Post("/{id}/post", h.Post)
		r.Post("/{id}/cancel", h.Cancel)
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	input := ledger.CreateDraftInput{
		TenantID:    tenantID,
		Date:        date,
		Description: req.Description,
		CreatedBy:   shared.ActorFromContext(r.Context()),
	}
	if req.ReferenceType != "" {
		input.Reference = ledger.Reference{Kind: ledger.ReferenceKind(req.ReferenceType), ID: req.ReferenceID}
	} else {
		input.Reference = ledger.Reference{Kind: ledger.ReferenceManual}
	}
	for _, entry := range req.Entries {
		input.Entries = append(input.Entries, entry.toInput())
	}
	tx, err := h.service.CreateDraft(r.Context(), input)
	if err != nil {
		h.logger.Error("create draft failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newTransactionResponse(tx))
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	tx, err := h.repo.GetTransaction(r.Context(), tenantID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newTransactionResponse(tx))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	txs, err := h.repo.ListTransactions(r.Context(), tenantID, limit, offset)
	if err != nil {
		h.logger.Error("list transactions failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, newTransactionResponse(tx))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"transactions": out})
}

func (h *Handler) AddEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req entryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	entry, err := h.service.AddEntry(r.Context(), tenantID, id, req.toInput())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entryResponse{
		ID:          entry.ID,
		AccountID:   entry.AccountID,
		Description: entry.Description,
		Debit:       entry.Debit,
		Credit:      entry.Credit,
	})
}

func (h *Handler) RemoveEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	entryID, ok := h.pathID(w, r, "entryID")
	if !ok {
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	if err := h.service.RemoveEntry(r.Context(), tenantID, id, entryID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	tx, err := h.service.Post(r.Context(), ledger.PostInput{
		TenantID:      tenantID,
		TransactionID: id,
		ActorID:       shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newTransactionResponse(tx))
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req cancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	tx, err := h.service.Cancel(r.Context(), ledger.CancelInput{
		TenantID:      tenantID,
		TransactionID: id,
		ActorID:       shared.ActorFromContext(r.Context()),
		Reason:        req.Reason,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newTransactionResponse(tx))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	if err := h.service.DeleteDraft(r.Context(), tenantID, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

// Package http serves financial reports over JSON. Built reports are cached
// in Redis per tenant and filter set; concurrent builds of the same report
// are collapsed through singleflight.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/veranda-hq/veranda/internal/platform/httpx"
	"github.com/veranda-hq/veranda/internal/reports"
	"github.com/veranda-hq/veranda/internal/tenant"
)

// Handler serves the report endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *reports.Service
	cache     *redis.Client
	cacheTTL  time.Duration
	rateLimit func(http.Handler) http.Handler
	builds    singleflight.Group
}

// NewHandler constructs the reports handler. cache may be nil, which
// disables caching.
func NewHandler(logger *slog.Logger, service *reports.Service, cache *redis.Client, cacheTTL time.Duration) *Handler {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	limiter := httprate.Limit(30, time.Minute, httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
		if id, ok := tenant.FromContext(r.Context()); ok {
			return fmt.Sprintf("tenant:%d", id), nil
		}
		return httprate.KeyByIP(r)
	}))
	return &Handler{
		logger:    logger,
		service:   service,
		cache:     cache,
		cacheTTL:  cacheTTL,
		rateLimit: limiter,
	}
}

// MountRoutes registers the report endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rateLimit)
		r.Get("/reports/income-statement", h.IncomeStatement)
		r.Get("/reports/trial-balance", h.TrialBalance)
	})
}

func (h *Handler) IncomeStatement(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	from, to, err := parseRange(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	basis := reports.BasisAccrual
	if b := strings.ToUpper(r.URL.Query().Get("basis")); b != "" {
		basis = reports.Basis(b)
	}
	key := cacheKey("is", tenantID, string(basis), from, to)
	h.serve(w, r, key, func(ctx context.Context) (interface{}, error) {
		report, err := h.service.IncomeStatement(ctx, tenantID, from, to, basis)
		if err != nil {
			return nil, err
		}
		return reports.NewIncomeStatementVM(report), nil
	})
}

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	from, to, err := parseRange(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	key := cacheKey("tb", tenantID, "", from, to)
	h.serve(w, r, key, func(ctx context.Context) (interface{}, error) {
		report, err := h.service.TrialBalance(ctx, tenantID, from, to)
		if err != nil {
			return nil, err
		}
		return reports.NewTrialBalanceVM(report), nil
	})
}

// serve answers from the Redis cache when possible, otherwise builds the
// report once per key and stores the result.
func (h *Handler) serve(w http.ResponseWriter, r *http.Request, key string, build func(context.Context) (interface{}, error)) {
	if h.cache != nil {
		if cached, err := h.cache.Get(r.Context(), key).Bytes(); err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "HIT")
			_, _ = w.Write(cached)
			return
		}
	}
	result, err := h.buildOnce(r.Context(), key, build)
	if err != nil {
		h.logger.Error("report build failed", slog.String("key", key), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if h.cache != nil {
		if err := h.cache.Set(r.Context(), key, payload, h.cacheTTL).Err(); err != nil {
			h.logger.Warn("report cache store failed", slog.Any("error", err))
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}

// buildOnce collapses concurrent builds of the same report key into one
// computation; waiters whose request is cancelled detach without cancelling
// the shared build.
func (h *Handler) buildOnce(ctx context.Context, key string, build func(context.Context) (interface{}, error)) (interface{}, error) {
	results := h.builds.DoChan(key, func() (interface{}, error) {
		return build(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		return res.Val, res.Err
	}
}

func cacheKey(report string, tenantID int64, basis string, from, to *time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "reports:%s:%d:%s", report, tenantID, basis)
	if from != nil {
		fmt.Fprintf(&b, ":%s", from.Format("2006-01-02"))
	}
	if to != nil {
		fmt.Fprintf(&b, ":%s", to.Format("2006-01-02"))
	}
	return b.String()
}

func parseRange(r *http.Request) (*time.Time, *time.Time, error) {
	parse := func(name string) (*time.Time, error) {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			return nil, nil
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, fmt.Errorf("%s must be YYYY-MM-DD", name)
		}
		return &t, nil
	}
	from, err := parse("from")
	if err != nil {
		return nil, nil, err
	}
	to, err := parse("to")
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

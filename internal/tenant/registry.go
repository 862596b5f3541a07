// Package tenant routes database access to the shard owned by a tenant.
// Pools are resolved once per request from context instead of mutating
// global connection configuration.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veranda-hq/veranda/internal/platform/db"
)

// HeaderTenantID carries the tenant identifier on API requests.
const HeaderTenantID = "X-Tenant-ID"

// ErrUnknownTenant indicates no pool could be resolved for the tenant.
var ErrUnknownTenant = errors.New("tenant: unknown tenant")

// Registry resolves pgx pools keyed by tenant ID. When no DSN template is
// configured all tenants share the default pool and isolation relies on
// tenant-scoped rows.
type Registry struct {
	mu          sync.RWMutex
	defaultPool *pgxpool.Pool
	dsnTemplate string
	pools       map[int64]*pgxpool.Pool
}

// NewRegistry constructs a Registry. dsnTemplate may contain a single %d
// placeholder expanded with the tenant ID; empty means shared database.
func NewRegistry(defaultPool *pgxpool.Pool, dsnTemplate string) *Registry {
	return &Registry{
		defaultPool: defaultPool,
		dsnTemplate: dsnTemplate,
		pools:       make(map[int64]*pgxpool.Pool),
	}
}

// Pool returns the pool for the given tenant, opening it lazily.
func (r *Registry) Pool(ctx context.Context, tenantID int64) (*pgxpool.Pool, error) {
	if r == nil {
		return nil, errors.New("tenant: registry not initialised")
	}
	if r.dsnTemplate == "" || tenantID == 0 {
		return r.defaultPool, nil
	}
	r.mu.RLock()
	pool, ok := r.pools[tenantID]
	r.mu.RUnlock()
	if ok {
		return pool, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if pool, ok := r.pools[tenantID]; ok {
		return pool, nil
	}
	pool, err := db.New(ctx, fmt.Sprintf(r.dsnTemplate, tenantID))
	if err != nil {
		return nil, fmt.Errorf("%w: %d: %v", ErrUnknownTenant, tenantID, err)
	}
	r.pools[tenantID] = pool
	return pool, nil
}

// FromContext resolves the pool for the tenant stored in ctx, falling back
// to the default pool when no tenant is set.
func (r *Registry) FromContext(ctx context.Context) (*pgxpool.Pool, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return r.defaultPool, nil
	}
	return r.Pool(ctx, id)
}

// Close releases every tenant pool. The default pool is owned by the caller.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, pool := range r.pools {
		pool.Close()
		delete(r.pools, id)
	}
}

// Resolver returns middleware that places the request tenant into context.
func Resolver(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			header := req.Header.Get(HeaderTenantID)
			if header == "" {
				next.ServeHTTP(w, req)
				return
			}
			id, err := strconv.ParseInt(header, 10, 64)
			if err != nil || id <= 0 {
				if logger != nil {
					logger.Warn("invalid tenant header", slog.String("value", header))
				}
				http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
				return
			}
			next.ServeHTTP(w, req.WithContext(ContextWithID(req.Context(), id)))
		})
	}
}

package tenant

import "context"

type tenantContextKey struct{}

// ContextWithID stores the tenant identifier in context.
func ContextWithID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, id)
}

// FromContext extracts the tenant identifier from context.
func FromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(tenantContextKey{}).(int64)
	return id, ok
}

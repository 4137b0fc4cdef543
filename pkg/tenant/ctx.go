// Package tenant carries the current tenant of a logical request
// through context.Context. Because contexts are immutable and
// goroutine-local by construction, binding a tenant for a nested
// operation can never clobber the caller's tenant: the outer context
// keeps its own value on every exit path, including panics.
package tenant

import (
	"context"

	"github.com/engram-dev/engram/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

type contextKey struct{}

// With returns a new context bound to the given tenant.
func With(ctx context.Context, id types.TenantID) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// From returns the tenant bound to ctx, or ("", false) if none is bound.
func From(ctx context.Context) (types.TenantID, bool) {
	id, ok := ctx.Value(contextKey{}).(types.TenantID)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Clear returns a context with no tenant bound, shadowing any binding
// in ctx.
func Clear(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, types.TenantID(""))
}

// Run normalizes raw (trim; blank means the default tenant), binds the
// result for the duration of fn and recovers panics inside fn into
// errors. The caller's own context is untouched whether fn returns,
// fails or panics, so nested Run calls under a different tenant never
// leak outward.
func Run(ctx context.Context, raw string, fn func(ctx context.Context) error) (err error) {
	id, err := types.NormalizeTenantID(raw)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			err = goerr.New("panic during tenant-bound operation",
				goerr.V("tenant_id", id.String()),
				goerr.V("panic", r))
		}
	}()

	return fn(With(ctx, id))
}

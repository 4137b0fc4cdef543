package tool

import "context"

// UpdateFunc receives progress messages emitted by tools while they run,
// e.g. "stored memory a1b2" during a long dispatch.
type UpdateFunc func(ctx context.Context, message string)

type updateKey struct{}

// WithUpdate binds fn to ctx so that tools running under it can report
// progress through Update.
func WithUpdate(ctx context.Context, fn UpdateFunc) context.Context {
	return context.WithValue(ctx, updateKey{}, fn)
}

// Update forwards message to the UpdateFunc bound to ctx, if any.
// Without a bound function it does nothing, so tools can call it
// unconditionally.
func Update(ctx context.Context, message string) {
	fn, ok := ctx.Value(updateKey{}).(UpdateFunc)
	if !ok {
		return
	}
	fn(ctx, message)
}

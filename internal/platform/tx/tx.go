package tx

import "context"

// Manager wraps transactional boundaries for multi-adapter operations.
type Manager interface {
	Within(ctx context.Context, fn func(context.Context) error) error
}

type NoopManager struct{}

func (NoopManager) Within(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type ctxKey struct{}

// WithHandle stores a backend transaction handle for adapters further down the call.
func WithHandle(ctx context.Context, handle any) context.Context {
	return context.WithValue(ctx, ctxKey{}, handle)
}

// Handle returns the transaction handle stored by WithHandle, or nil.
func Handle(ctx context.Context) any {
	return ctx.Value(ctxKey{})
}

package domain

import "context"

// IdempotencyStore remembers request keys for a bounded time. A reserved key
// is pending until Complete binds it to the order it produced.
type IdempotencyStore interface {
	// Reserve records key and reports false if it was already recorded.
	Reserve(ctx context.Context, key string) (bool, error)
	Complete(ctx context.Context, key, orderID string) error
	// Lookup returns the order bound to key, or "" while it is pending or unknown.
	Lookup(ctx context.Context, key string) (string, error)
	Release(ctx context.Context, key string) error
}

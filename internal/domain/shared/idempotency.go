package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers the Idempotency-Key of every accepted financial
// request for a while, so a client retry cannot collect or transfer twice.
// Keys are scoped by the caller ("<user>:<key>").
type IdempotencyStore interface {
	// MarkProcessed claims key for ttl. It reports false when the key was
	// already claimed.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, key string) (bool, error)
	// Release drops a claim after the guarded request failed
	Release(ctx context.Context, key string) error
	Close() error
}

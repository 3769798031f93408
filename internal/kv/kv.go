// Package kv holds the key-value stores backing the AI response cache and the
// upload idempotency markers. Keys are content-derived and writes idempotent, so
// no locking is layered on top.
package kv

import (
	"context"
	"time"
)

// Store is a get/put/TTL key-value store.
type Store interface {
	// Get returns the value and true, or nil and false when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put stores value under key. A ttl <= 0 stores without expiry.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Has(ctx context.Context, key string) (bool, error)
}

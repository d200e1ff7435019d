// Package cache holds rendered responses for a bounded time.
//
// Entries are only ever dropped by expiry or by Clear; writes elsewhere in the
// application never invalidate them, so readers may see stale data for up to
// the entry's TTL.
package cache

import (
	"context"
	"time"
)

type Cache interface {
	// Get reports a miss with ok == false and a nil error.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Clear(ctx context.Context) error
}

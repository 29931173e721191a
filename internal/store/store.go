// Package store provides the keyed storage port shared by the
// distributed lock and the result cache, with Redis and in-memory
// implementations.
package store

import (
	"context"
	"time"
)

// KeyedStore is the minimal keyed storage contract the lock and cache
// are built on. A ttl of zero or less means the entry does not expire.
type KeyedStore interface {
	// SetIfAbsent stores value under key with a TTL only when the key
	// does not already exist. It reports whether the write happened.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Get returns the value under key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key unconditionally.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// CompareAndDelete removes key only while it still holds value.
	// It reports whether the delete happened.
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)

	// CompareAndExtend refreshes the TTL only while key still holds
	// value. It reports whether the extension happened.
	CompareAndExtend(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

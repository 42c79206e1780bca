package core

import (
	"context"
	"time"
)

// NoExpiry is reported by KVStore.TTL for keys stored without an expiry.
const NoExpiry time.Duration = -1

// KVStore is the shared key/value store used to persist state across
// gateway workers and restarts. Keys and values are strings. Implementations
// enforce expiry on their own; callers never sweep.
type KVStore interface {
	// Set stores value at key, replacing any previous value and expiry. An
	// expire <= 0 stores the key without expiry.
	Set(ctx context.Context, key, value string, expire time.Duration) error
	// Get returns the value at key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// TTL returns the remaining time to live of key and whether it exists.
	// Persistent keys report NoExpiry.
	TTL(ctx context.Context, key string) (time.Duration, bool, error)
}

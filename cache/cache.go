// Package cache defines the byte-level key-value contract used by the record
// cache. Backends live in subpackages.
package cache

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("cache: key not found")

// Store represents a TTL-based key-value store that can be backed by memory,
// Redis, or any other KV server. Each call is a single backend operation;
// there are no transactions across calls.
//
// Get returns ErrNotFound on a miss. Delete of an absent key is not an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

package recordcache

import "time"

// Entry wraps a cached value with its absolute expiry. The expiry travels with
// the payload so a reader can reject an entry the backend has not evicted yet.
type Entry[V any] struct {
	Value     V         `json:"value" msgpack:"value" cbor:"value"`
	ExpiresAt time.Time `json:"expiresAt" msgpack:"expires_at" cbor:"expires_at"`
}

// Expired reports whether the entry must be treated as absent at now.
func (e Entry[V]) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Package cachetest provides an in-memory cache.Store for tests. It never
// expires entries on its own, so callers can observe how a consumer treats
// entries the backend has not evicted yet.
package cachetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/adeilh/rakh-records/cache"
)

type Store struct {
	mu    sync.Mutex
	data  map[string][]byte
	ttls  map[string]time.Duration
	err   error
	calls map[string]int
}

var _ cache.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		data:  make(map[string][]byte),
		ttls:  make(map[string]time.Duration),
		calls: make(map[string]int),
	}
}

// Fail makes every subsequent call return err. A nil err restores service.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["get"]++
	if s.err != nil {
		return nil, s.err
	}
	v, ok := s.data[key]
	if !ok {
		return nil, cache.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["set"]++
	if s.err != nil {
		return s.err
	}
	s.data[key] = append([]byte(nil), value...)
	s.ttls[key] = ttl
	return nil
}

func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["delete"]++
	if s.err != nil {
		return s.err
	}
	for _, k := range keys {
		delete(s.data, k)
		delete(s.ttls, k)
	}
	return nil
}

// Put writes raw bytes directly, bypassing any codec.
func (s *Store) Put(key string, value []byte) {
	s.mu.Lock()
	s.data[key] = append([]byte(nil), value...)
	s.mu.Unlock()
}

// Has reports whether key is physically present.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

// TTL returns the ttl passed to the last Set of key.
func (s *Store) TTL(key string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttls[key]
}

// Keys lists stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Calls returns how many times op ("get", "set", "delete") was invoked.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Package ristretto provides an in-process cache.Store for single-replica
// gateways and local development.
package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/adeilh/rakh-records/cache"
)

// ErrRejected is returned by Set when ristretto's admission policy drops the
// write under memory pressure.
var ErrRejected = errors.New("ristretto: set rejected")

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
}

func (c Config) withDefaults() Config {
	if c.NumCounters <= 0 {
		c.NumCounters = 1e5
	}
	if c.MaxCost <= 0 {
		c.MaxCost = 64 << 20
	}
	if c.BufferItems <= 0 {
		c.BufferItems = 64
	}
	return c
}

// Store implements cache.Store on top of ristretto. Cost is the payload size.
type Store struct {
	c *rc.Cache
}

var _ cache.Store = (*Store)(nil)

func New(cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &Store{c: c}, nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return nil, cache.ErrNotFound
	}
	b, ok := v.([]byte)
	if !ok {
		s.c.Del(key)
		return nil, cache.ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

// Set stores a copy of value and waits for ristretto's write buffer to drain
// so the next Get observes it.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	b := append([]byte(nil), value...)
	if !s.c.SetWithTTL(key, b, int64(len(b))+1, ttl) {
		return ErrRejected
	}
	s.c.Wait()
	return nil
}

func (s *Store) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		s.c.Del(k)
	}
	return nil
}

func (s *Store) Close() error {
	s.c.Close()
	return nil
}

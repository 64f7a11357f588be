package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/adeilh/rakh-records/cache"
)

// ErrBadReply wraps a reply the client could not handle.
var ErrBadReply = errors.New("redis: bad reply")

// Store implements cache.Store on top of a go-redis client.
type Store struct {
	rdb         goredis.UniversalClient
	closeClient bool
}

var _ cache.Store = (*Store)(nil)

// NewStore builds a Redis-backed cache store. Connections are dialed lazily.
func NewStore(opts Options) *Store {
	if opts.Client != nil {
		return &Store{rdb: opts.Client}
	}
	return &Store{rdb: goredis.NewClient(opts.withDefaults().clientOptions()), closeClient: true}
}

func (s *Store) Get(ctx context.Context, key string) (_ []byte, err error) {
	defer guard(&err)
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Set stores value under key. A positive ttl below one millisecond is
// rounded up so the key still expires.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) (err error) {
	defer guard(&err)
	if ttl > 0 && ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	if ttl < 0 {
		ttl = 0
	}
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

// Delete removes every key in one DEL command, which Redis applies atomically.
func (s *Store) Delete(ctx context.Context, keys ...string) (err error) {
	if len(keys) == 0 {
		return nil
	}
	defer guard(&err)
	return s.rdb.Del(ctx, keys...).Err()
}

// Ping checks that the server answers.
func (s *Store) Ping(ctx context.Context) (err error) {
	defer guard(&err)
	return s.rdb.Ping(ctx).Err()
}

// Close releases the client when the store built it.
func (s *Store) Close() error {
	if !s.closeClient {
		return nil
	}
	if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
		return err
	}
	return nil
}

// guard turns a panic raised while reading a reply into ErrBadReply, so a
// broken server reads as a failed call.
func guard(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %v", ErrBadReply, r)
	}
}

// Package recordcache is the cache layer of the gateway: a per-record
// namespace and a whole-collection namespace over a cache.Store.
//
// Every method fails open. Backend and decode errors are logged, reported to
// Hooks and then treated as a miss (reads) or a no-op (writes), so the cache
// is never the reason a request fails.
//
// Any put or evict of a single record also evicts the collection entry: a
// changed record invalidates every listing cached before it. There is no
// cross-call atomicity; a put racing an evict on the same key ends with
// whichever reached the backend last.
package recordcache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/adeilh/rakh-records/cache"
	"github.com/adeilh/rakh-records/cache/codec"
	"github.com/adeilh/rakh-records/record"
)

const (
	recordKeyPrefix = "record:"
	allRecordsKey   = "all-records"
)

// Cache is safe for concurrent use.
type Cache struct {
	store   cache.Store
	opts    Options
	single  codec.Codec[Entry[record.Record]]
	listing codec.Codec[Entry[[]record.Record]]
	log     *zap.Logger
}

// New builds a Cache over store. It fails only on an unknown codec name.
func New(store cache.Store, opts ...Option) (*Cache, error) {
	if store == nil {
		return nil, errors.New("recordcache: store is required")
	}
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	single, err := codec.ByName[Entry[record.Record]](cfg.Codec)
	if err != nil {
		return nil, err
	}
	listing, err := codec.ByName[Entry[[]record.Record]](cfg.Codec)
	if err != nil {
		return nil, err
	}
	if cfg.MaxEntryBytes > 0 {
		single = codec.Limit[Entry[record.Record]]{Inner: single, Max: cfg.MaxEntryBytes}
		listing = codec.Limit[Entry[[]record.Record]]{Inner: listing, Max: cfg.MaxEntryBytes}
	}
	return &Cache{
		store:   store,
		opts:    cfg,
		single:  single,
		listing: listing,
		log:     cfg.Logger.Named("recordcache"),
	}, nil
}

// TTL returns the configured entry lifetime.
func (c *Cache) TTL() time.Duration { return c.opts.TTL }

// RecordKey returns the backend key for id.
func (c *Cache) RecordKey(id int64) string {
	return c.opts.Prefix + recordKeyPrefix + strconv.FormatInt(id, 10)
}

// AllRecordsKey returns the backend key of the collection entry.
func (c *Cache) AllRecordsKey() string { return c.opts.Prefix + allRecordsKey }

// GetRecord returns the cached record for id if present and unexpired.
func (c *Cache) GetRecord(ctx context.Context, id int64) (record.Record, bool) {
	key := c.RecordKey(id)
	entry, ok := get(ctx, c, key, c.single)
	if !ok {
		return record.Record{}, false
	}
	return entry.Value, true
}

// PutRecord overwrites the entry for id with a fresh expiry, then evicts the
// collection entry. A non-positive ttl selects the configured TTL. It
// reports whether the record write reached the backend.
func (c *Cache) PutRecord(ctx context.Context, id int64, r record.Record, ttl time.Duration) bool {
	key := c.RecordKey(id)
	ok := put(ctx, c, key, r, c.ttlOr(ttl), c.single)
	c.EvictAllRecords(ctx)
	return ok
}

// GetAllRecords returns the cached collection, or nil on a miss. A miss and
// an empty collection look the same to the caller; PutAllRecords never stores
// an empty one.
func (c *Cache) GetAllRecords(ctx context.Context) []record.Record {
	entry, ok := get(ctx, c, c.AllRecordsKey(), c.listing)
	if !ok {
		return nil
	}
	return entry.Value
}

// PutAllRecords stores the collection. An empty slice is ignored so a
// transient upstream miss cannot pin a false "no records" snapshot; any
// previously cached collection is left as is.
func (c *Cache) PutAllRecords(ctx context.Context, records []record.Record, ttl time.Duration) bool {
	if len(records) == 0 {
		c.log.Debug("refusing to cache empty collection")
		return false
	}
	return put(ctx, c, c.AllRecordsKey(), records, c.ttlOr(ttl), c.listing)
}

// EvictRecord removes record:{id} and the collection entry in one backend
// call.
func (c *Cache) EvictRecord(ctx context.Context, id int64) bool {
	return c.del(ctx, c.RecordKey(id), c.AllRecordsKey())
}

// EvictAllRecords removes only the collection entry.
func (c *Cache) EvictAllRecords(ctx context.Context) bool {
	return c.del(ctx, c.AllRecordsKey())
}

func (c *Cache) ttlOr(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return c.opts.TTL
	}
	return ttl
}

func (c *Cache) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	// Evictions that follow an accepted publish must run even when the caller
	// has gone away.
	ctx = context.WithoutCancel(ctx)
	if c.opts.OpTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.opts.OpTimeout)
}

func (c *Cache) del(ctx context.Context, keys ...string) bool {
	opCtx, cancel := c.opCtx(ctx)
	defer cancel()
	if err := c.store.Delete(opCtx, keys...); err != nil {
		for _, k := range keys {
			c.backendError("delete", k, err)
		}
		return false
	}
	c.log.Debug("cache evict", zap.Strings("keys", keys))
	return true
}

func (c *Cache) backendError(op, key string, err error) {
	c.log.Warn("cache backend error, failing open",
		zap.String("op", op), zap.String("key", key), zap.Error(err))
	c.opts.Hooks.BackendError(op, key, err)
}

func get[V any](ctx context.Context, c *Cache, key string, cd codec.Codec[Entry[V]]) (Entry[V], bool) {
	var zero Entry[V]
	opCtx, cancel := c.opCtx(ctx)
	defer cancel()

	raw, err := c.store.Get(opCtx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			c.backendError("get", key, err)
		}
		c.log.Debug("cache miss", zap.String("key", key))
		return zero, false
	}
	entry, err := cd.Decode(raw)
	if err != nil {
		c.log.Warn("dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		c.opts.Hooks.Corrupt(key, err)
		if derr := c.store.Delete(opCtx, key); derr != nil {
			c.backendError("delete", key, derr)
		}
		return zero, false
	}
	if entry.Expired(c.opts.Now()) {
		c.log.Debug("cache entry expired", zap.String("key", key), zap.Time("expires_at", entry.ExpiresAt))
		return zero, false
	}
	c.log.Debug("cache hit", zap.String("key", key))
	return entry, true
}

func put[V any](ctx context.Context, c *Cache, key string, v V, ttl time.Duration, cd codec.Codec[Entry[V]]) bool {
	entry := Entry[V]{Value: v, ExpiresAt: c.opts.Now().Add(ttl)}
	raw, err := cd.Encode(entry)
	if err != nil {
		c.log.Warn("cache entry not encodable", zap.String("key", key), zap.Error(err))
		return false
	}
	opCtx, cancel := c.opCtx(ctx)
	defer cancel()
	if err := c.store.Set(opCtx, key, raw, ttl); err != nil {
		c.backendError("set", key, err)
		return false
	}
	c.log.Debug("cache update", zap.String("key", key), zap.Duration("ttl", ttl))
	return true
}

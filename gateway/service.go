// Package gateway serves records through the cache and turns mutations into
// queued commands.
//
// Reads go cache first, then the record store, and populate the cache on a
// store hit. Writes validate, publish a command, evict the affected cache
// entries and return without waiting for the writer to apply the command.
//
// Consistency window: between an accepted write and the writer applying it,
// a read can miss the freshly evicted cache, fetch the pre-write record from
// the store and cache it again. That stale entry is served until the next
// write to the same key evicts it or its TTL ends, so a caller may see
// pre-write data for up to one cache TTL after a 202.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/adeilh/rakh-records/command"
	"github.com/adeilh/rakh-records/queue"
	"github.com/adeilh/rakh-records/record"
	"github.com/adeilh/rakh-records/recordcache"
	"github.com/adeilh/rakh-records/recordstore"
)

var (
	ErrNotFound = recordstore.ErrNotFound
	// ErrStore wraps record store failures on the read path.
	ErrStore = errors.New("gateway: record store unavailable")
	// ErrPublish wraps queue failures on the write path. Nothing was
	// accepted and no cache entry was evicted.
	ErrPublish = errors.New("gateway: command not published")
)

// Ack acknowledges an accepted write. ID is zero for creates: the record
// does not exist yet.
type Ack struct {
	Op string `json:"op"`
	ID int64  `json:"id,omitempty"`
}

type Service struct {
	cache  *recordcache.Cache
	store  recordstore.Reader
	pub    queue.Publisher
	encode func(command.Command) ([]byte, error)
	log    *zap.Logger
}

func NewService(cache *recordcache.Cache, store recordstore.Reader, pub queue.Publisher, opts ...Option) (*Service, error) {
	if cache == nil || store == nil || pub == nil {
		return nil, errors.New("gateway: cache, store and publisher are required")
	}
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	encode, err := encoderFor(cfg.CommandFormat)
	if err != nil {
		return nil, err
	}
	return &Service{
		cache:  cache,
		store:  store,
		pub:    pub,
		encode: encode,
		log:    cfg.Logger.Named("gateway"),
	}, nil
}

// GetByID returns ErrNotFound when the store has no such record. Misses are
// never cached.
func (s *Service) GetByID(ctx context.Context, id int64) (record.Record, error) {
	if err := record.ValidateID(id); err != nil {
		return record.Record{}, err
	}
	if r, ok := s.cache.GetRecord(ctx, id); ok {
		s.log.Debug("cache hit", zap.Int64("id", id))
		return r, nil
	}
	s.log.Debug("cache miss", zap.Int64("id", id))

	r, err := s.store.ReadByID(ctx, id)
	if err != nil {
		if errors.Is(err, recordstore.ErrNotFound) {
			return record.Record{}, ErrNotFound
		}
		return record.Record{}, fmt.Errorf("%w: %w", ErrStore, err)
	}
	s.cache.PutRecord(ctx, id, r, s.cache.TTL())
	return r, nil
}

// GetAll returns every record. An empty result is not cached.
func (s *Service) GetAll(ctx context.Context) ([]record.Record, error) {
	if records := s.cache.GetAllRecords(ctx); len(records) > 0 {
		s.log.Debug("cache hit", zap.String("key", s.cache.AllRecordsKey()))
		return records, nil
	}
	s.log.Debug("cache miss", zap.String("key", s.cache.AllRecordsKey()))

	records, err := s.store.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	s.cache.PutAllRecords(ctx, records, s.cache.TTL())
	return records, nil
}

// Create publishes a create command and evicts the collection entry.
func (s *Service) Create(ctx context.Context, f record.Fields) (Ack, error) {
	if err := s.publish(ctx, command.Create(f)); err != nil {
		return Ack{}, err
	}
	s.cache.EvictAllRecords(ctx)
	return Ack{Op: command.KindCreate.String()}, nil
}

func (s *Service) Update(ctx context.Context, id int64, f record.Fields) (Ack, error) {
	if err := s.publish(ctx, command.Update(id, f)); err != nil {
		return Ack{}, err
	}
	s.cache.EvictRecord(ctx, id)
	return Ack{Op: command.KindUpdate.String(), ID: id}, nil
}

func (s *Service) Delete(ctx context.Context, id int64) (Ack, error) {
	if err := s.publish(ctx, command.Delete(id)); err != nil {
		return Ack{}, err
	}
	s.cache.EvictRecord(ctx, id)
	return Ack{Op: command.KindDelete.String(), ID: id}, nil
}

func (s *Service) publish(ctx context.Context, cmd command.Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	body, err := s.encode(cmd)
	if err != nil {
		return err
	}
	if err := s.pub.Publish(ctx, body); err != nil {
		s.log.Warn("publish failed", zap.Stringer("command", cmd), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	s.log.Info("command accepted", zap.Stringer("command", cmd))
	return nil
}

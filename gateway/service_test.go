package gateway

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/adeilh/rakh-records/cache/cachetest"
	"github.com/adeilh/rakh-records/command"
	"github.com/adeilh/rakh-records/consumer"
	"github.com/adeilh/rakh-records/queue/memory"
	"github.com/adeilh/rakh-records/record"
	"github.com/adeilh/rakh-records/recordcache"
	"github.com/adeilh/rakh-records/recordstore"
	"github.com/adeilh/rakh-records/recordstore/bolt"
)

var fieldsA = record.Fields{Name: "A", Position: "Eng", Salary: 1000, HireDate: "2024-01-01"}

// spyStore counts reads and serves from an in-memory map.
type spyStore struct {
	mu      sync.Mutex
	records map[int64]record.Record
	err     error
	byID    int
	all     int
}

func newSpyStore(records ...record.Record) *spyStore {
	s := &spyStore{records: map[int64]record.Record{}}
	for _, r := range records {
		s.records[r.ID] = r
	}
	return s
}

func (s *spyStore) ReadByID(_ context.Context, id int64) (record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID++
	if s.err != nil {
		return record.Record{}, s.err
	}
	r, ok := s.records[id]
	if !ok {
		return record.Record{}, recordstore.ErrNotFound
	}
	return r, nil
}

func (s *spyStore) ReadAll(context.Context) ([]record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.all++
	if s.err != nil {
		return nil, s.err
	}
	var out []record.Record
	for id := int64(1); id <= 100; id++ {
		if r, ok := s.records[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

type failingPublisher struct{ err error }

func (p failingPublisher) Publish(context.Context, []byte) error { return p.err }

type fixture struct {
	svc   *Service
	cache *recordcache.Cache
	kv    *cachetest.Store
	queue *memory.Queue
	now   time.Time
}

func newFixture(t *testing.T, store recordstore.Reader, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{kv: cachetest.New(), queue: memory.New(16), now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	c, err := recordcache.New(f.kv, recordcache.WithClock(func() time.Time { return f.now }))
	if err != nil {
		t.Fatalf("recordcache.New() error = %v", err)
	}
	f.cache = c
	f.svc, err = NewService(c, store, f.queue, opts...)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return f
}

func TestGetByIDCacheHitSkipsStore(t *testing.T) {
	store := newSpyStore()
	f := newFixture(t, store)
	ctx := context.Background()

	want := record.New(1, fieldsA)
	f.cache.PutRecord(ctx, 1, want, time.Hour)

	got, err := f.svc.GetByID(ctx, 1)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got != want {
		t.Fatalf("GetByID() = %+v, want %+v", got, want)
	}
	if store.byID != 0 {
		t.Fatalf("store reads = %d, want 0", store.byID)
	}
}

func TestGetByIDReadsThroughAndCaches(t *testing.T) {
	store := newSpyStore(record.New(3, fieldsA))
	f := newFixture(t, store)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := f.svc.GetByID(ctx, 3); err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
	}
	if store.byID != 1 {
		t.Fatalf("store reads = %d, want 1", store.byID)
	}

	f.now = f.now.Add(time.Hour)
	if _, err := f.svc.GetByID(ctx, 3); err != nil {
		t.Fatalf("GetByID() after expiry error = %v", err)
	}
	if store.byID != 2 {
		t.Fatalf("store reads after expiry = %d, want 2", store.byID)
	}
}

func TestGetByIDNoNegativeCaching(t *testing.T) {
	store := newSpyStore()
	f := newFixture(t, store)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := f.svc.GetByID(ctx, 404); !errors.Is(err, ErrNotFound) {
			t.Fatalf("GetByID(missing) error = %v, want ErrNotFound", err)
		}
	}
	if store.byID != 2 {
		t.Fatalf("store reads = %d, want 2", store.byID)
	}
	if len(f.kv.Keys()) != 0 {
		t.Fatalf("cache keys = %v, want none", f.kv.Keys())
	}
}

func TestStoreFailurePropagates(t *testing.T) {
	store := newSpyStore()
	store.err = errors.New("connection refused")
	f := newFixture(t, store)
	ctx := context.Background()

	_, err := f.svc.GetByID(ctx, 1)
	if !errors.Is(err, ErrStore) || errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByID() error = %v, want ErrStore", err)
	}
	if _, err := f.svc.GetAll(ctx); !errors.Is(err, ErrStore) {
		t.Fatalf("GetAll() error = %v, want ErrStore", err)
	}
}

func TestCacheFailureFailsOpen(t *testing.T) {
	store := newSpyStore(record.New(1, fieldsA))
	f := newFixture(t, store)
	f.kv.Fail(errors.New("redis down"))
	ctx := context.Background()

	got, err := f.svc.GetByID(ctx, 1)
	if err != nil || got.ID != 1 {
		t.Fatalf("GetByID() = %+v, %v", got, err)
	}
	if _, err := f.svc.Update(ctx, 1, fieldsA); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
}

func TestGetAllCachesNonEmptyOnly(t *testing.T) {
	store := newSpyStore()
	f := newFixture(t, store)
	ctx := context.Background()

	got, err := f.svc.GetAll(ctx)
	if err != nil || len(got) != 0 {
		t.Fatalf("GetAll() on empty = %v, %v", got, err)
	}
	if f.kv.Has(f.cache.AllRecordsKey()) {
		t.Fatalf("empty collection was cached")
	}

	store.records[1] = record.New(1, fieldsA)
	store.records[2] = record.New(2, fieldsA)
	for i := 0; i < 2; i++ {
		got, err = f.svc.GetAll(ctx)
		if err != nil || len(got) != 2 {
			t.Fatalf("GetAll() = %v, %v", got, err)
		}
	}
	if store.all != 2 {
		t.Fatalf("store ReadAll calls = %d, want 2", store.all)
	}
}

func TestWritesPublishThenEvict(t *testing.T) {
	store := newSpyStore()
	f := newFixture(t, store)
	ctx := context.Background()

	f.cache.PutRecord(ctx, 5, record.New(5, fieldsA), time.Hour)
	f.cache.PutAllRecords(ctx, []record.Record{record.New(5, fieldsA)}, time.Hour)

	updated := fieldsA
	updated.Salary = 2000
	ack, err := f.svc.Update(ctx, 5, updated)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if ack != (Ack{Op: "UPDATE", ID: 5}) {
		t.Fatalf("Update() ack = %+v", ack)
	}
	if f.kv.Has(f.cache.RecordKey(5)) || f.kv.Has(f.cache.AllRecordsKey()) {
		t.Fatalf("cache not evicted: %v", f.kv.Keys())
	}
	if f.queue.Len() != 1 {
		t.Fatalf("queue len = %d, want 1", f.queue.Len())
	}

	msg, _ := f.queue.Receive(ctx)
	cmd, err := command.Decode(msg.Body)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if cmd != command.Update(5, updated) {
		t.Fatalf("published %v", cmd)
	}

	// Not applied yet: a read repopulates the cache with the old value.
	store.records[5] = record.New(5, fieldsA)
	got, _ := f.svc.GetByID(ctx, 5)
	if got.Salary != fieldsA.Salary {
		t.Fatalf("GetByID() before apply = %+v", got)
	}
}

func TestCreateEvictsCollectionOnly(t *testing.T) {
	f := newFixture(t, newSpyStore())
	ctx := context.Background()

	f.cache.PutAllRecords(ctx, []record.Record{record.New(1, fieldsA)}, time.Hour)
	f.kv.Put(f.cache.RecordKey(1), []byte("untouched"))

	ack, err := f.svc.Create(ctx, fieldsA)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if ack.Op != "CREATE" || ack.ID != 0 {
		t.Fatalf("Create() ack = %+v", ack)
	}
	if f.kv.Has(f.cache.AllRecordsKey()) {
		t.Fatalf("collection entry not evicted")
	}
	if !f.kv.Has(f.cache.RecordKey(1)) {
		t.Fatalf("record entry evicted by create")
	}
}

func TestInvalidWritesPublishNothing(t *testing.T) {
	f := newFixture(t, newSpyStore())
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, record.Fields{Name: "", HireDate: "2024-01-01"}); !errors.Is(err, record.ErrInvalidFields) {
		t.Fatalf("Create() error = %v, want ErrInvalidFields", err)
	}
	if _, err := f.svc.Delete(ctx, 0); !errors.Is(err, record.ErrInvalidID) {
		t.Fatalf("Delete(0) error = %v, want ErrInvalidID", err)
	}
	if f.queue.Len() != 0 {
		t.Fatalf("queue len = %d, want 0", f.queue.Len())
	}
}

func TestPublishFailureKeepsCache(t *testing.T) {
	kv := cachetest.New()
	c, _ := recordcache.New(kv)
	svc, err := NewService(c, newSpyStore(), failingPublisher{err: errors.New("stream unavailable")})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	ctx := context.Background()
	c.PutRecord(ctx, 5, record.New(5, fieldsA), time.Hour)

	if _, err := svc.Delete(ctx, 5); !errors.Is(err, ErrPublish) {
		t.Fatalf("Delete() error = %v, want ErrPublish", err)
	}
	if !kv.Has(c.RecordKey(5)) {
		t.Fatalf("cache evicted although publish failed")
	}
}

func TestTextCommandFormat(t *testing.T) {
	f := newFixture(t, newSpyStore(), WithCommandFormat(FormatText))
	ctx := context.Background()

	if _, err := f.svc.Delete(ctx, 9); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	msg, _ := f.queue.Receive(ctx)
	if string(msg.Body) != "DELETE:9" {
		t.Fatalf("published %q, want DELETE:9", msg.Body)
	}

	if _, err := NewService(f.cache, newSpyStore(), f.queue, WithCommandFormat("xml")); err == nil {
		t.Fatalf("NewService() with unknown format expected error")
	}
}

// Create is accepted, the consumer assigns id 7, and the next read misses
// the cache, hits the store and caches the record.
func TestCreateEndToEnd(t *testing.T) {
	ctx := context.Background()
	store, err := bolt.Open(filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("bolt.Open() error = %v", err)
	}
	defer store.Close()
	for i := 0; i < 6; i++ {
		id, _ := store.Create(ctx, record.Fields{Name: "old", HireDate: "2020-01-01"})
		_, _ = store.Delete(ctx, id)
	}

	f := newFixture(t, store)
	f.cache.PutAllRecords(ctx, []record.Record{record.New(1, fieldsA)}, time.Hour)

	if _, err := f.svc.Create(ctx, fieldsA); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if f.kv.Has(f.cache.AllRecordsKey()) {
		t.Fatalf("all-records not evicted after create")
	}

	var applied consumer.Result
	c := consumer.New(f.queue, store, consumer.WithAppliedHook(func(r consumer.Result) { applied = r }))
	_ = f.queue.Close()
	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if applied.ID != 7 {
		t.Fatalf("applied id = %d, want 7", applied.ID)
	}

	got, err := f.svc.GetByID(ctx, 7)
	if err != nil {
		t.Fatalf("GetByID(7) error = %v", err)
	}
	if got != record.New(7, fieldsA) {
		t.Fatalf("GetByID(7) = %+v", got)
	}
	if !f.kv.Has(f.cache.RecordKey(7)) {
		t.Fatalf("record 7 not cached after read-through")
	}
}

// Package bolt keeps records in an embedded bbolt file. Keys are big-endian
// ids from the bucket sequence so cursor order is id order.
package bolt

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	bbolt "go.etcd.io/bbolt"

	"github.com/adeilh/rakh-records/record"
	"github.com/adeilh/rakh-records/recordstore"
)

var bucketRecords = []byte("records")

var ErrMissingPath = errors.New("bolt: path is required")

// Store implements recordstore.Client.
type Store struct {
	db *bbolt.DB
}

var _ recordstore.Client = (*Store)(nil)

// Open creates or opens the database file at path and ensures the records
// bucket exists.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, ErrMissingPath
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt: open: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRecords)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt: create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ReadByID(ctx context.Context, id int64) (record.Record, error) {
	if err := ctx.Err(); err != nil {
		return record.Record{}, err
	}
	var r record.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketRecords).Get(itob(id))
		if raw == nil {
			return recordstore.ErrNotFound
		}
		return decode(id, raw, &r)
	})
	if err != nil {
		return record.Record{}, err
	}
	return r, nil
}

func (s *Store) ReadAll(ctx context.Context) ([]record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []record.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRecords).ForEach(func(k, v []byte) error {
			var r record.Record
			if err := decode(btoi(k), v, &r); err != nil {
				return err
			}
			out = append(out, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, f record.Fields) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	raw, err := msgpack.Marshal(f)
	if err != nil {
		return 0, fmt.Errorf("bolt: encode: %w", err)
	}
	var id int64
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		id = int64(seq)
		return b.Put(itob(id), raw)
	})
	if err != nil {
		return 0, fmt.Errorf("bolt: create: %w", err)
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, id int64, f record.Fields) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	raw, err := msgpack.Marshal(f)
	if err != nil {
		return false, fmt.Errorf("bolt: encode: %w", err)
	}
	found := false
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		if b.Get(itob(id)) == nil {
			return nil
		}
		found = true
		return b.Put(itob(id), raw)
	})
	if err != nil {
		return false, fmt.Errorf("bolt: update: %w", err)
	}
	return found, nil
}

func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	found := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		if b.Get(itob(id)) == nil {
			return nil
		}
		found = true
		return b.Delete(itob(id))
	})
	if err != nil {
		return false, fmt.Errorf("bolt: delete: %w", err)
	}
	return found, nil
}

func decode(id int64, raw []byte, r *record.Record) error {
	if err := msgpack.Unmarshal(raw, &r.Fields); err != nil {
		return fmt.Errorf("bolt: decode record %d: %w", id, err)
	}
	r.ID = id
	return nil
}

func itob(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func btoi(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}

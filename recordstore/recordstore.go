// Package recordstore defines the synchronous client of the canonical record
// store. The gateway only reads through it; the writer also mutates.
package recordstore

import (
	"context"
	"errors"

	"github.com/adeilh/rakh-records/record"
)

var ErrNotFound = errors.New("recordstore: record not found")

// Reader is the read side used by the gateway's read path. A store or
// transport failure is returned as an error and never as ErrNotFound.
type Reader interface {
	ReadByID(ctx context.Context, id int64) (record.Record, error)
	// ReadAll returns every record ordered by id.
	ReadAll(ctx context.Context) ([]record.Record, error)
}

// Writer is used only by the command consumer. Update and Delete report
// false when no record has the id.
type Writer interface {
	Create(ctx context.Context, f record.Fields) (int64, error)
	Update(ctx context.Context, id int64, f record.Fields) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

type Client interface {
	Reader
	Writer
}

// Package command models record mutations as they travel from the gateway to
// the writer.
//
// A Command carries no identity of its own. Redelivering an Update or Delete
// is harmless; redelivering a Create inserts a second record with a new id.
// The queue is at-least-once, so duplicate creates are possible and are not
// deduplicated here.
package command

import (
	"errors"
	"fmt"

	"github.com/adeilh/rakh-records/record"
)

var (
	ErrCorrupt     = errors.New("command: corrupt payload")
	ErrUnknownKind = errors.New("command: unknown kind")
	ErrUnencodable = errors.New("command: value cannot be encoded")
)

// Kind tags the variant of a Command.
type Kind uint8

const (
	KindCreate Kind = iota + 1
	KindUpdate
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "CREATE"
	case KindUpdate:
		return "UPDATE"
	case KindDelete:
		return "DELETE"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

func parseKind(s string) (Kind, error) {
	switch s {
	case "CREATE":
		return KindCreate, nil
	case "UPDATE":
		return KindUpdate, nil
	case "DELETE":
		return KindDelete, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Command is a tagged union: ID is set for Update and Delete, Fields for
// Create and Update. Build values with Create, Update and Delete.
type Command struct {
	Kind   Kind
	ID     int64
	Fields record.Fields
}

func Create(f record.Fields) Command { return Command{Kind: KindCreate, Fields: f} }

func Update(id int64, f record.Fields) Command { return Command{Kind: KindUpdate, ID: id, Fields: f} }

func Delete(id int64) Command { return Command{Kind: KindDelete, ID: id} }

// Validate checks that the variant carries what it needs.
func (c Command) Validate() error {
	switch c.Kind {
	case KindCreate:
		return c.Fields.Validate()
	case KindUpdate:
		if err := record.ValidateID(c.ID); err != nil {
			return err
		}
		return c.Fields.Validate()
	case KindDelete:
		return record.ValidateID(c.ID)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownKind, c.Kind)
	}
}

func (c Command) String() string {
	switch c.Kind {
	case KindCreate:
		return fmt.Sprintf("CREATE(%s)", c.Fields.Name)
	case KindUpdate:
		return fmt.Sprintf("UPDATE(%d, %s)", c.ID, c.Fields.Name)
	default:
		return fmt.Sprintf("%s(%d)", c.Kind, c.ID)
	}
}

// Package record defines the entity served by the gateway and stored by the
// writer.
package record

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// DateLayout is the wire and storage layout of HireDate.
const DateLayout = "2006-01-02"

var (
	ErrInvalidFields = errors.New("record: invalid fields")
	ErrInvalidID     = errors.New("record: invalid id")
)

// Fields are the mutable attributes of a Record.
type Fields struct {
	Name     string  `json:"name" msgpack:"name" cbor:"name"`
	Position string  `json:"position" msgpack:"position" cbor:"position"`
	Salary   float64 `json:"salary" msgpack:"salary" cbor:"salary"`
	HireDate string  `json:"hireDate" msgpack:"hire_date" cbor:"hire_date"`
}

// Record is a stored entity. ID is assigned by the backing store on create
// and never changes.
type Record struct {
	ID int64 `json:"id" msgpack:"id" cbor:"id"`
	Fields
}

// Validate reports ErrInvalidFields when a required field is missing or
// malformed.
func (f Fields) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidFields)
	}
	if math.IsNaN(f.Salary) || math.IsInf(f.Salary, 0) {
		return fmt.Errorf("%w: salary must be a finite number", ErrInvalidFields)
	}
	if _, err := time.Parse(DateLayout, f.HireDate); err != nil {
		return fmt.Errorf("%w: hireDate must be YYYY-MM-DD", ErrInvalidFields)
	}
	return nil
}

// ValidateID rejects non-positive ids.
func ValidateID(id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidID, id)
	}
	return nil
}

// New builds a Record from an id and fields.
func New(id int64, f Fields) Record { return Record{ID: id, Fields: f} }

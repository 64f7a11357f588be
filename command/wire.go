package command

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/adeilh/rakh-records/record"
)

const wireVersion byte = 1

var magic = [...]byte{'R', 'C', 'M', 'D'}

// envelope is the msgpack body of the binary wire format. Strings are
// length-prefixed by msgpack, so no value can corrupt the framing.
type envelope struct {
	Op     string         `msgpack:"op"`
	ID     int64          `msgpack:"id,omitempty"`
	Fields *record.Fields `msgpack:"fields,omitempty"`
}

// Encode renders c in the binary format: magic(4) | version(1) | msgpack.
// The format is not readable by consumers of the old delimited text format.
func Encode(c Command) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	env := envelope{Op: c.Kind.String(), ID: c.ID}
	if c.Kind != KindDelete {
		f := c.Fields
		env.Fields = &f
	}
	body, err := msgpack.Marshal(&env)
	if err != nil {
		return nil, fmt.Errorf("command: encode: %w", err)
	}
	var buf bytes.Buffer
	buf.Grow(len(magic) + 1 + len(body))
	buf.Write(magic[:])
	buf.WriteByte(wireVersion)
	buf.Write(body)
	return buf.Bytes(), nil
}

// Decode parses a payload in either the binary format or the legacy
// delimited text format, chosen by the magic prefix.
func Decode(b []byte) (Command, error) {
	if !bytes.HasPrefix(b, magic[:]) {
		return DecodeText(string(b))
	}
	return decodeBinary(b)
}

func decodeBinary(b []byte) (Command, error) {
	if len(b) < len(magic)+1 || b[len(magic)] != wireVersion {
		return Command{}, fmt.Errorf("%w: unsupported version", ErrCorrupt)
	}
	var env envelope
	if err := msgpack.Unmarshal(b[len(magic)+1:], &env); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	kind, err := parseKind(env.Op)
	if err != nil {
		return Command{}, err
	}
	c := Command{Kind: kind, ID: env.ID}
	if env.Fields != nil {
		c.Fields = *env.Fields
	}
	if err := c.Validate(); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return c, nil
}

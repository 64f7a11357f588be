package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/adeilh/rakh-records/record"
)

// The legacy text format is OPERATION:field1,field2,... with positional,
// unescaped fields:
//
//	CREATE:name,position,salary,hireDate
//	UPDATE:id,name,position,salary,hireDate
//	DELETE:id
//
// It is kept so a writer can drain queues filled by older gateways. Values
// containing ',' or ':' cannot be represented.

// EncodeText renders c in the legacy text format.
func EncodeText(c Command) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	if c.Kind == KindDelete {
		return "DELETE:" + strconv.FormatInt(c.ID, 10), nil
	}
	for _, v := range []string{c.Fields.Name, c.Fields.Position, c.Fields.HireDate} {
		if strings.ContainsAny(v, ",:") {
			return "", fmt.Errorf("%w: %q contains a delimiter", ErrUnencodable, v)
		}
	}
	fields := []string{
		c.Fields.Name,
		c.Fields.Position,
		strconv.FormatFloat(c.Fields.Salary, 'f', -1, 64),
		c.Fields.HireDate,
	}
	if c.Kind == KindUpdate {
		fields = append([]string{strconv.FormatInt(c.ID, 10)}, fields...)
	}
	return c.Kind.String() + ":" + strings.Join(fields, ","), nil
}

// DecodeText parses the legacy text format.
func DecodeText(s string) (Command, error) {
	op, rest, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Command{}, fmt.Errorf("%w: missing operation separator", ErrCorrupt)
	}
	kind, err := parseKind(op)
	if err != nil {
		return Command{}, err
	}
	parts := strings.Split(rest, ",")

	var c Command
	switch kind {
	case KindCreate:
		if len(parts) != 4 {
			return Command{}, fmt.Errorf("%w: CREATE wants 4 fields, got %d", ErrCorrupt, len(parts))
		}
		f, err := textFields(parts)
		if err != nil {
			return Command{}, err
		}
		c = Create(f)
	case KindUpdate:
		if len(parts) != 5 {
			return Command{}, fmt.Errorf("%w: UPDATE wants 5 fields, got %d", ErrCorrupt, len(parts))
		}
		id, err := textID(parts[0])
		if err != nil {
			return Command{}, err
		}
		f, err := textFields(parts[1:])
		if err != nil {
			return Command{}, err
		}
		c = Update(id, f)
	case KindDelete:
		if len(parts) != 1 {
			return Command{}, fmt.Errorf("%w: DELETE wants 1 field, got %d", ErrCorrupt, len(parts))
		}
		id, err := textID(parts[0])
		if err != nil {
			return Command{}, err
		}
		c = Delete(id)
	}
	if err := c.Validate(); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return c, nil
}

func textID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad id %q", ErrCorrupt, s)
	}
	return id, nil
}

func textFields(parts []string) (record.Fields, error) {
	salary, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return record.Fields{}, fmt.Errorf("%w: bad salary %q", ErrCorrupt, parts[2])
	}
	return record.Fields{
		Name:     parts[0],
		Position: parts[1],
		Salary:   salary,
		HireDate: strings.TrimSpace(parts[3]),
	}, nil
}

package reader

import (
	"errors"
	"fmt"

	"github.com/vinceanalytics/floe/filters"
	"github.com/vinceanalytics/floe/format"
	"github.com/vinceanalytics/floe/schema"
)

// ErrTypeMismatch is returned when a physical value cannot be represented as
// the field's declared logical type. It is fatal for the split; rows are
// never silently skipped.
var ErrTypeMismatch = errors.New("reader: type mismatch")

// Converter turns physical rows into output values laid out by the read
// schema. It is resolved once per split and is total for well-formed rows:
// every field takes its value from the file, the split's partition constant,
// or the schema-evolution default.
type Converter struct {
	read    *schema.Schema
	mapping schema.Mapping
	values  []any
}

func NewConverter(read *schema.Schema, mapping schema.Mapping) (*Converter, error) {
	c := &Converter{
		read:    read,
		mapping: mapping,
		values:  make([]any, len(mapping)),
	}
	// Coerce constants up front so per-row work is a copy, not a conversion.
	for i := range c.mapping {
		m := &c.mapping[i]
		if m.Source == schema.FromFile || m.Constant == nil {
			continue
		}
		v, err := filters.Coerce(m.Constant, m.Field.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q constant: %v", ErrTypeMismatch, m.Field.Name, err)
		}
		m.Constant = v
	}
	return c, nil
}

// Convert fills the converter's scratch values from one physical row. The
// returned slice is reused by the next call; Record copies it.
func (c *Converter) Convert(row format.Row) ([]any, error) {
	for i, m := range c.mapping {
		switch m.Source {
		case schema.FromFile:
			v, err := widen(row[m.Pos], m.Field)
			if err != nil {
				return nil, err
			}
			c.values[i] = v
		default:
			c.values[i] = m.Constant
		}
	}
	return c.values, nil
}

// Record copies the current scratch values into a standalone output record.
func (c *Converter) Record(values []any) Record {
	return NewRecord(c.read, append([]any(nil), values...))
}

// widen converts a canonical physical value to the declared logical type.
// Narrower representations widen; anything else is a type mismatch.
func widen(v any, f schema.Field) (any, error) {
	if v == nil {
		if f.Required {
			return nil, fmt.Errorf("%w: required field %q is null", ErrTypeMismatch, f.Name)
		}
		return nil, nil
	}
	switch f.Type {
	case schema.Bool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case schema.Int:
		if n, ok := v.(int32); ok {
			return n, nil
		}
	case schema.Long:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int32:
			return int64(n), nil
		}
	case schema.Float:
		if n, ok := v.(float32); ok {
			return n, nil
		}
	case schema.Double:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		}
	case schema.String:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case schema.Binary:
		if b, ok := v.([]byte); ok {
			return b, nil
		}
	case schema.Timestamp:
		if n, ok := v.(int64); ok {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: field %q declared %s, file holds %T",
		ErrTypeMismatch, f.Name, f.Type, v)
}

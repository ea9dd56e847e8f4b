package filters

import (
	"bytes"
	"fmt"
	"math"

	"github.com/vinceanalytics/floe/schema"
)

type Op uint8

const (
	Eq Op = iota
	Neq
	Lt
	LtEq
	Gt
	GtEq
)

func (o Op) String() string {
	switch o {
	case Eq:
		return "="
	case Neq:
		return "!="
	case Lt:
		return "<"
	case LtEq:
		return "<="
	case Gt:
		return ">"
	case GtEq:
		return ">="
	default:
		return "?"
	}
}

// Filter is one row predicate over a logical field. The scan layer consumes
// filters on partition fields for split pruning; everything else is evaluated
// per row by the reader.
type Filter struct {
	Field int
	Op    Op
	Value any
}

type List []*Filter

// Compiled is a filter bound to a position of the read schema, with its
// literal coerced to the field's declared type.
type Compiled struct {
	Field schema.Field
	Pos   int
	Op    Op
	Value any
}

// Compile resolves each filter against the read schema. Filters that name a
// field outside the read schema are rejected with schema.ErrUnresolvedField.
func Compile(ls List, read *schema.Schema) ([]*Compiled, error) {
	o := make([]*Compiled, 0, len(ls))
	for _, f := range ls {
		c, err := compile(f, read)
		if err != nil {
			return nil, err
		}
		o = append(o, c)
	}
	return o, nil
}

func compile(f *Filter, read *schema.Schema) (*Compiled, error) {
	pos := read.Pos(f.Field)
	if pos < 0 {
		return nil, fmt.Errorf("%w: filter on id %d", schema.ErrUnresolvedField, f.Field)
	}
	field := read.Field(pos)
	v, err := Coerce(f.Value, field.Type)
	if err != nil {
		return nil, fmt.Errorf("filters: field %q: %w", field.Name, err)
	}
	return &Compiled{Field: field, Pos: pos, Op: f.Op, Value: v}, nil
}

// Match evaluates the predicate against one output value. Null values match
// nothing.
func (c *Compiled) Match(v any) bool {
	if v == nil {
		return false
	}
	r, err := Compare(v, c.Value)
	if err != nil {
		return false
	}
	switch c.Op {
	case Eq:
		return r == 0
	case Neq:
		return r != 0
	case Lt:
		return r < 0
	case LtEq:
		return r <= 0
	case Gt:
		return r > 0
	case GtEq:
		return r >= 0
	}
	return false
}

// Bounds reports whether a column whose values all fall in [min, max] can
// contain a matching row. Decoders use it for best-effort pushdown; the reader
// still evaluates the predicate per row.
func (c *Compiled) Bounds(min, max any) bool {
	if min == nil || max == nil {
		return true
	}
	lo, err := Compare(min, c.Value)
	if err != nil {
		return true
	}
	hi, err := Compare(max, c.Value)
	if err != nil {
		return true
	}
	switch c.Op {
	case Eq:
		return lo <= 0 && hi >= 0
	case Lt:
		return lo < 0
	case LtEq:
		return lo <= 0
	case Gt:
		return hi > 0
	case GtEq:
		return hi >= 0
	default:
		// != prunes nothing useful at this granularity.
		return true
	}
}

// Coerce converts a filter literal into the canonical Go representation of
// the declared type.
func Coerce(v any, t schema.Type) (any, error) {
	switch t {
	case schema.Bool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case schema.Int:
		switch n := v.(type) {
		case int32:
			return n, nil
		case int:
			return fitInt32(int64(n), t)
		case int64:
			return fitInt32(n, t)
		case float64:
			// metadata constants decoded from json arrive as float64
			if n != math.Trunc(n) {
				return nil, fmt.Errorf("literal %v is not integral, cannot use with %s column", n, t)
			}
			if n < math.MinInt32 || n > math.MaxInt32 {
				return nil, fmt.Errorf("literal %v overflows %s column", n, t)
			}
			return int32(n), nil
		}
	case schema.Long, schema.Timestamp:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case float64:
			if n != math.Trunc(n) {
				return nil, fmt.Errorf("literal %v is not integral, cannot use with %s column", n, t)
			}
			if n < math.MinInt64 || n >= math.MaxInt64 {
				return nil, fmt.Errorf("literal %v overflows %s column", n, t)
			}
			return int64(n), nil
		}
	case schema.Float:
		switch n := v.(type) {
		case float32:
			return n, nil
		case float64:
			return float32(n), nil
		}
	case schema.Double:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
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
	}
	return nil, fmt.Errorf("cannot use %T literal with %s column", v, t)
}

func fitInt32(n int64, t schema.Type) (any, error) {
	if n < math.MinInt32 || n > math.MaxInt32 {
		return nil, fmt.Errorf("literal %d overflows %s column", n, t)
	}
	return int32(n), nil
}

// Compare orders two canonical values of the same type.
func Compare(a, b any) (int, error) {
	switch x := a.(type) {
	case bool:
		y, ok := b.(bool)
		if !ok {
			break
		}
		switch {
		case x == y:
			return 0, nil
		case !x:
			return -1, nil
		default:
			return 1, nil
		}
	case int32:
		if y, ok := b.(int32); ok {
			return cmp(x, y), nil
		}
	case int64:
		if y, ok := b.(int64); ok {
			return cmp(x, y), nil
		}
	case float32:
		if y, ok := b.(float32); ok {
			return cmp(x, y), nil
		}
	case float64:
		if y, ok := b.(float64); ok {
			return cmp(x, y), nil
		}
	case string:
		if y, ok := b.(string); ok {
			return cmp(x, y), nil
		}
	case []byte:
		if y, ok := b.([]byte); ok {
			return bytes.Compare(x, y), nil
		}
	}
	return 0, fmt.Errorf("filters: cannot compare %T with %T", a, b)
}

func cmp[T int32 | int64 | float32 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

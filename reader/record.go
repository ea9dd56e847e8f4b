package reader

import (
	"fmt"
	"strings"

	"github.com/vinceanalytics/floe/schema"
)

// Record is one output row. It is self describing: it carries the read schema
// that shaped it, so consumers can resolve values by field id or name without
// knowing which file format the row came from.
type Record struct {
	schema *schema.Schema
	values []any
}

func NewRecord(s *schema.Schema, values []any) Record {
	return Record{schema: s, values: values}
}

func (r Record) Schema() *schema.Schema { return r.schema }

func (r Record) Len() int { return len(r.values) }

// Value returns the value at the projection-defined position i.
func (r Record) Value(i int) any { return r.values[i] }

func (r Record) Values() []any { return r.values }

func (r Record) ByID(id int) (any, bool) {
	i := r.schema.Pos(id)
	if i < 0 {
		return nil, false
	}
	return r.values[i], true
}

func (r Record) ByName(name string) (any, bool) {
	f, ok := r.schema.ByName(name)
	if !ok {
		return nil, false
	}
	return r.values[r.schema.Pos(f.ID)], true
}

func (r Record) String() string {
	var b strings.Builder
	b.WriteString("{")
	for i, f := range r.schema.Fields() {
		if i != 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %v", f.Name, r.values[i])
	}
	b.WriteString("}")
	return b.String()
}

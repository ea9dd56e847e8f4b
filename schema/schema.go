package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnresolvedField is returned when a projection or filter names a field
// identifier that does not exist in the logical schema being read.
var ErrUnresolvedField = errors.New("schema: unresolved field")

type Type uint8

const (
	Invalid Type = iota
	Bool
	Int
	Long
	Float
	Double
	String
	Binary
	Timestamp
)

func (t Type) String() string {
	switch t {
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Long:
		return "long"
	case Float:
		return "float"
	case Double:
		return "double"
	case String:
		return "string"
	case Binary:
		return "binary"
	case Timestamp:
		return "timestamp"
	default:
		return "invalid"
	}
}

// ParseType is the inverse of Type.String.
func ParseType(s string) (Type, error) {
	for t := Bool; t <= Timestamp; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return Invalid, fmt.Errorf("schema: unknown type %q", s)
}

// Widens reports whether a physical value of type p can be read as declared
// type t without loss. Equal types always widen.
func (t Type) Widens(p Type) bool {
	if t == p {
		return true
	}
	switch t {
	case Long:
		return p == Int
	case Double:
		return p == Float
	case Timestamp:
		return p == Long
	}
	return false
}

// Field is one named, typed column of a logical schema. ID is globally stable
// across schema versions and is never reused for a different name or type.
type Field struct {
	ID       int
	Name     string
	Type     Type
	Required bool

	// Default is substituted when reading files written before this field
	// was added. nil means null.
	Default any
}

type Schema struct {
	fields []Field
	byID   map[int]int
	byName map[string]int
}

func New(fields ...Field) (*Schema, error) {
	s := &Schema{
		fields: fields,
		byID:   make(map[int]int, len(fields)),
		byName: make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if f.ID <= 0 {
			return nil, fmt.Errorf("schema: field %q has invalid id %d", f.Name, f.ID)
		}
		if f.Name == "" {
			return nil, fmt.Errorf("schema: field id %d has empty name", f.ID)
		}
		if f.Type == Invalid {
			return nil, fmt.Errorf("schema: field %q has invalid type", f.Name)
		}
		if _, ok := s.byID[f.ID]; ok {
			return nil, fmt.Errorf("schema: duplicate field id %d", f.ID)
		}
		if _, ok := s.byName[f.Name]; ok {
			return nil, fmt.Errorf("schema: duplicate field name %q", f.Name)
		}
		s.byID[f.ID] = i
		s.byName[f.Name] = i
	}
	return s, nil
}

func Must(fields ...Field) *Schema {
	s, err := New(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Len() int { return len(s.fields) }

func (s *Schema) Field(i int) Field { return s.fields[i] }

func (s *Schema) Fields() []Field { return s.fields }

func (s *Schema) ByID(id int) (Field, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

func (s *Schema) ByName(name string) (Field, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Pos returns the position of the field with the given id, or -1.
func (s *Schema) Pos(id int) int {
	i, ok := s.byID[id]
	if !ok {
		return -1
	}
	return i
}

func (s *Schema) String() string {
	var b strings.Builder
	b.WriteString("schema<")
	for i, f := range s.fields {
		if i != 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d: %s %s", f.ID, f.Name, f.Type)
	}
	b.WriteString(">")
	return b.String()
}

func (s *Schema) Equal(o *Schema) bool {
	if s.Len() != o.Len() {
		return false
	}
	for i := range s.fields {
		a, b := s.fields[i], o.fields[i]
		if a.ID != b.ID || a.Name != b.Name || a.Type != b.Type || a.Required != b.Required {
			return false
		}
	}
	return true
}

// Select resolves a projection into a read schema. The projection is a set of
// field identifiers; the result keeps the declared field order of s restricted
// to the selected identifiers. An empty projection selects everything.
func Select(s *Schema, ids []int) (*Schema, error) {
	if len(ids) == 0 {
		return s, nil
	}
	want := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := s.byID[id]; !ok {
			return nil, fmt.Errorf("%w: id %d", ErrUnresolvedField, id)
		}
		want[id] = struct{}{}
	}
	fields := make([]Field, 0, len(want))
	for _, f := range s.fields {
		if _, ok := want[f.ID]; ok {
			fields = append(fields, f)
		}
	}
	return New(fields...)
}

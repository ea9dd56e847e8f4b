package schema

import "fmt"

// PhysField describes one column of a file's physical schema as reported by a
// format decoder. ID is zero when the format carries no field identifiers, in
// which case mapping falls back to name matching.
type PhysField struct {
	ID   int
	Name string
	Type Type
}

// Physical is the on-disk schema of a single file.
type Physical struct {
	Fields []PhysField
}

func (p Physical) pos(f Field) int {
	for i, pf := range p.Fields {
		if pf.ID != 0 && pf.ID == f.ID {
			return i
		}
	}
	for i, pf := range p.Fields {
		if pf.ID == 0 && pf.Name == f.Name {
			return i
		}
	}
	return -1
}

type Source uint8

const (
	// FromFile reads the value from a physical column position.
	FromFile Source = iota
	// FromConstant substitutes a partition constant supplied by the split.
	FromConstant
	// FromDefault substitutes the field's declared default. Files written
	// before the field was added to the schema take this branch.
	FromDefault
)

// MappedField resolves one read-schema field against one file. Exactly one of
// the three sources applies.
type MappedField struct {
	Field    Field
	Source   Source
	Pos      int  // physical column, FromFile only
	PhysType Type // physical column type, FromFile only
	Constant any  // FromConstant and FromDefault value
}

// Mapping aligns every read-schema field with the file it is read from. It is
// resolved once per split, never per row.
type Mapping []MappedField

// MapPhysical aligns each field of the read schema to a physical column, a
// partition constant, or the schema-evolution default, in that order of
// preference. Constants win over physical columns so that partition values
// supplied out-of-band are authoritative even when the file also stores the
// column.
func MapPhysical(read *Schema, phys Physical, constants map[int]any) (Mapping, error) {
	m := make(Mapping, 0, read.Len())
	for _, f := range read.Fields() {
		if v, ok := constants[f.ID]; ok {
			m = append(m, MappedField{Field: f, Source: FromConstant, Constant: v})
			continue
		}
		if pos := phys.pos(f); pos >= 0 {
			pf := phys.Fields[pos]
			if !f.Type.Widens(pf.Type) {
				return nil, fmt.Errorf(
					"schema: field %q declared %s but stored as %s",
					f.Name, f.Type, pf.Type,
				)
			}
			m = append(m, MappedField{
				Field:    f,
				Source:   FromFile,
				Pos:      pos,
				PhysType: pf.Type,
			})
			continue
		}
		if f.Required && f.Default == nil {
			return nil, fmt.Errorf(
				"%w: required field %q (id %d) missing from file and has no default",
				ErrUnresolvedField, f.Name, f.ID,
			)
		}
		m = append(m, MappedField{Field: f, Source: FromDefault, Constant: f.Default})
	}
	return m, nil
}

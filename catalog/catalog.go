// Package catalog keeps versioned table metadata: the schema history, the
// partition spec, and the manifest of data files. Split planning happens
// here; the reader downstream trusts the format tags and partition constants
// planned splits carry.
package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/vinceanalytics/floe/filters"
	"github.com/vinceanalytics/floe/format"
	"github.com/vinceanalytics/floe/schema"
)

// PartitionField names one identity-partitioned logical field. Partition
// values are stored in the manifest, not in data files.
type PartitionField struct {
	FieldID int    `json:"field-id"`
	Name    string `json:"name"`
}

type Spec struct {
	Fields []PartitionField `json:"fields,omitempty"`
}

// Partitioned reports whether field id belongs to the partition spec.
func (s Spec) Partitioned(id int) bool {
	for _, f := range s.Fields {
		if f.FieldID == id {
			return true
		}
	}
	return false
}

// DataFile is one manifest entry.
type DataFile struct {
	ID       string `json:"id"`
	Path     string `json:"path"`
	Format   string `json:"format"`
	SchemaID int    `json:"schema-id"`
	// Partition maps partition field ids to this file's constant values.
	Partition map[int]any `json:"partition,omitempty"`
	Rows      int64       `json:"rows"`
	Size      int64       `json:"size"`
}

type Table struct {
	Name     string
	SchemaID int
	Schemas  map[int]*schema.Schema
	Spec     Spec
	Manifest []DataFile
}

func NewTable(name string, schemaID int, s *schema.Schema, spec Spec) *Table {
	return &Table{
		Name:     name,
		SchemaID: schemaID,
		Schemas:  map[int]*schema.Schema{schemaID: s},
		Spec:     spec,
	}
}

// Schema returns the current logical schema.
func (t *Table) Schema() *schema.Schema { return t.Schemas[t.SchemaID] }

func (t *Table) SchemaAt(id int) (*schema.Schema, bool) {
	s, ok := t.Schemas[id]
	return s, ok
}

// Evolve installs a new current schema version. Field ids carry over; the
// previous versions stay addressable so old files keep their write-time
// schema.
func (t *Table) Evolve(id int, s *schema.Schema) error {
	if _, ok := t.Schemas[id]; ok {
		return fmt.Errorf("catalog: schema version %d already exists", id)
	}
	t.Schemas[id] = s
	t.SchemaID = id
	return nil
}

// AddFile appends a manifest entry and assigns it an id. The format tag must
// name a registered decoder; files default to the current schema version.
func (t *Table) AddFile(f DataFile) (DataFile, error) {
	if _, err := format.ParseTag(f.Format); err != nil {
		return DataFile{}, err
	}
	f.ID = ulid.Make().String()
	if f.SchemaID == 0 {
		f.SchemaID = t.SchemaID
	}
	t.Manifest = append(t.Manifest, f)
	return f, nil
}

// Plan returns the manifest entries that may hold matching rows, in manifest
// order. Filters on identity-partitioned fields prune whole files; all other
// filters pass through to the reader untouched.
func (t *Table) Plan(fs filters.List) ([]DataFile, error) {
	out := make([]DataFile, 0, len(t.Manifest))
	for _, f := range t.Manifest {
		keep, err := t.keep(f, fs)
		if err != nil {
			return nil, err
		}
		if keep {
			out = append(out, f)
		}
	}
	return out, nil
}

func (t *Table) keep(f DataFile, fs filters.List) (bool, error) {
	for _, flt := range fs {
		if !t.Spec.Partitioned(flt.Field) {
			continue
		}
		field, ok := t.Schema().ByID(flt.Field)
		if !ok {
			return false, fmt.Errorf("%w: id %d", schema.ErrUnresolvedField, flt.Field)
		}
		pv, ok := f.Partition[flt.Field]
		if !ok {
			// no recorded value, cannot prune
			continue
		}
		want, err := filters.Coerce(flt.Value, field.Type)
		if err != nil {
			return false, err
		}
		have, err := filters.Coerce(pv, field.Type)
		if err != nil {
			return false, err
		}
		r, err := filters.Compare(have, want)
		if err != nil {
			return false, err
		}
		if !matches(flt.Op, r) {
			return false, nil
		}
	}
	return true, nil
}

func matches(op filters.Op, r int) bool {
	switch op {
	case filters.Eq:
		return r == 0
	case filters.Neq:
		return r != 0
	case filters.Lt:
		return r < 0
	case filters.LtEq:
		return r <= 0
	case filters.Gt:
		return r > 0
	case filters.GtEq:
		return r >= 0
	}
	return true
}

// Catalog persists tables in a key-value store.
type Catalog struct {
	db  Storage
	log *slog.Logger
}

func New(db Storage) *Catalog {
	return &Catalog{
		db: db,
		log: slog.Default().With(
			slog.String("component", "catalog"),
		),
	}
}

func Open(path string) (*Catalog, error) {
	kv, err := NewKV(path)
	if err != nil {
		return nil, err
	}
	return New(kv), nil
}

func (c *Catalog) Close() error { return c.db.Close() }

func (c *Catalog) Commit(t *Table) error {
	defer c.db.GC()
	data, err := json.Marshal(encodeTable(t))
	if err != nil {
		return err
	}
	c.log.Debug("committing table", "table", t.Name, "files", len(t.Manifest))
	return c.db.Set(key(t.Name), data)
}

func (c *Catalog) Load(name string) (*Table, error) {
	var e tableJSON
	err := c.db.Get(key(name), func(b []byte) error {
		return json.Unmarshal(b, &e)
	})
	if err != nil {
		return nil, err
	}
	return decodeTable(&e)
}

func key(name string) []byte {
	return []byte("table/" + name)
}

type fieldJSON struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required,omitempty"`
	Default  any    `json:"default,omitempty"`
}

type schemaJSON struct {
	SchemaID int         `json:"schema-id"`
	Fields   []fieldJSON `json:"fields"`
}

type tableJSON struct {
	Name     string       `json:"name"`
	SchemaID int          `json:"current-schema-id"`
	Schemas  []schemaJSON `json:"schemas"`
	Spec     Spec         `json:"partition-spec"`
	Manifest []DataFile   `json:"manifest"`
}

func encodeTable(t *Table) *tableJSON {
	e := &tableJSON{
		Name:     t.Name,
		SchemaID: t.SchemaID,
		Spec:     t.Spec,
		Manifest: t.Manifest,
	}
	for id, s := range t.Schemas {
		sj := schemaJSON{SchemaID: id}
		for _, f := range s.Fields() {
			sj.Fields = append(sj.Fields, fieldJSON{
				ID:       f.ID,
				Name:     f.Name,
				Type:     f.Type.String(),
				Required: f.Required,
				Default:  f.Default,
			})
		}
		e.Schemas = append(e.Schemas, sj)
	}
	return e
}

func decodeTable(e *tableJSON) (*Table, error) {
	t := &Table{
		Name:     e.Name,
		SchemaID: e.SchemaID,
		Schemas:  make(map[int]*schema.Schema, len(e.Schemas)),
		Spec:     e.Spec,
		Manifest: e.Manifest,
	}
	for _, sj := range e.Schemas {
		fields := make([]schema.Field, 0, len(sj.Fields))
		for _, fj := range sj.Fields {
			typ, err := schema.ParseType(fj.Type)
			if err != nil {
				return nil, fmt.Errorf("catalog: table %q: %w", e.Name, err)
			}
			fields = append(fields, schema.Field{
				ID:       fj.ID,
				Name:     fj.Name,
				Type:     typ,
				Required: fj.Required,
				Default:  fj.Default,
			})
		}
		s, err := schema.New(fields...)
		if err != nil {
			return nil, fmt.Errorf("catalog: table %q: %w", e.Name, err)
		}
		t.Schemas[sj.SchemaID] = s
	}
	if _, ok := t.Schemas[t.SchemaID]; !ok {
		return nil, fmt.Errorf("catalog: table %q: current schema %d missing", e.Name, t.SchemaID)
	}
	return t, nil
}

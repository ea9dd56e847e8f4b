// Package avro decodes the self-describing row format. Files carry their own
// writer schema in the container header; field identifiers travel as the
// "field-id" schema property, the same convention table formats use when they
// write manifest and data files as avro.
package avro

import (
	"context"
	"fmt"
	"io"

	"github.com/hamba/avro/v2"
	"github.com/hamba/avro/v2/ocf"
	"github.com/vinceanalytics/floe/blob"
	"github.com/vinceanalytics/floe/format"
	"github.com/vinceanalytics/floe/schema"
)

func init() {
	format.Register(format.TagAvro, Decoder{})
}

type Decoder struct{}

var _ format.Decoder = Decoder{}

func (Decoder) Open(ctx context.Context, src blob.Source, opts *format.Options) (format.Handle, error) {
	dec, err := ocf.NewDecoder(io.NewSectionReader(src, 0, src.Size()))
	if err != nil {
		return nil, format.Corrupt(opts.Path, err)
	}
	rs, err := recordSchema(dec.Metadata())
	if err != nil {
		return nil, format.Corrupt(opts.Path, err)
	}
	phys, err := physical(rs)
	if err != nil {
		return nil, format.Corrupt(opts.Path, err)
	}
	return &handle{
		path: opts.Path,
		dec:  dec,
		rec:  rs,
		phys: phys,
	}, nil
}

type handle struct {
	path string
	dec  *ocf.Decoder
	rec  *avro.RecordSchema
	phys schema.Physical
	row  format.Row
	done bool
}

func (h *handle) Schema() schema.Physical { return h.phys }

func (h *handle) Next() (format.Row, error) {
	if h.done {
		return nil, io.EOF
	}
	if !h.dec.HasNext() {
		h.done = true
		if err := h.dec.Error(); err != nil {
			return nil, format.Corrupt(h.path, err)
		}
		return nil, io.EOF
	}
	var m map[string]any
	if err := h.dec.Decode(&m); err != nil {
		h.done = true
		return nil, format.Corrupt(h.path, err)
	}
	if h.row == nil {
		h.row = make(format.Row, len(h.phys.Fields))
	}
	for i, f := range h.phys.Fields {
		v, err := canon(m[f.Name], f.Type)
		if err != nil {
			h.done = true
			return nil, format.Corrupt(h.path, fmt.Errorf("field %q: %w", f.Name, err))
		}
		h.row[i] = v
	}
	return h.row, nil
}

func (h *handle) Close() error {
	h.done = true
	return nil
}

func recordSchema(meta map[string][]byte) (*avro.RecordSchema, error) {
	raw, ok := meta["avro.schema"]
	if !ok {
		return nil, fmt.Errorf("container header missing avro.schema")
	}
	s, err := avro.Parse(string(raw))
	if err != nil {
		return nil, err
	}
	rs, ok := s.(*avro.RecordSchema)
	if !ok {
		return nil, fmt.Errorf("writer schema is %s, want record", s.Type())
	}
	return rs, nil
}

func physical(rs *avro.RecordSchema) (schema.Physical, error) {
	fields := make([]schema.PhysField, 0, len(rs.Fields()))
	for _, f := range rs.Fields() {
		t, err := typeOf(f.Type())
		if err != nil {
			return schema.Physical{}, fmt.Errorf("field %q: %w", f.Name(), err)
		}
		fields = append(fields, schema.PhysField{
			ID:   fieldID(f),
			Name: f.Name(),
			Type: t,
		})
	}
	return schema.Physical{Fields: fields}, nil
}

func fieldID(f *avro.Field) int {
	switch id := f.Prop("field-id").(type) {
	case float64:
		return int(id)
	case int:
		return id
	case int64:
		return int(id)
	default:
		return 0
	}
}

func typeOf(s avro.Schema) (schema.Type, error) {
	if u, ok := s.(*avro.UnionSchema); ok {
		// nullable columns are written as ["null", T]
		for _, t := range u.Types() {
			if t.Type() != avro.Null {
				return typeOf(t)
			}
		}
		return 0, fmt.Errorf("union has no non-null branch")
	}
	switch s.Type() {
	case avro.Boolean:
		return schema.Bool, nil
	case avro.Int:
		return schema.Int, nil
	case avro.Long:
		return schema.Long, nil
	case avro.Float:
		return schema.Float, nil
	case avro.Double:
		return schema.Double, nil
	case avro.String:
		return schema.String, nil
	case avro.Bytes:
		return schema.Binary, nil
	default:
		return 0, fmt.Errorf("unsupported avro type %s", s.Type())
	}
}

func canon(v any, t schema.Type) (any, error) {
	if v == nil {
		return nil, nil
	}
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
			return int32(n), nil
		case int64:
			return int32(n), nil
		}
	case schema.Long:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		}
	case schema.Float:
		if f, ok := v.(float32); ok {
			return f, nil
		}
	case schema.Double:
		if f, ok := v.(float64); ok {
			return f, nil
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
	return nil, fmt.Errorf("decoded %T for %s column", v, t)
}

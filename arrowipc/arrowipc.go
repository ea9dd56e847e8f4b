// Package arrowipc decodes the columnar format whose schema travels in a
// footer separate from the record batches. Field identifiers are carried in
// per-field metadata under the "field_id" key (with the parquet-compatible
// "PARQUET:field_id" spelling accepted too).
package arrowipc

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/apache/arrow/go/v15/arrow/ipc"
	"github.com/apache/arrow/go/v15/arrow/memory"
	"github.com/vinceanalytics/floe/blob"
	"github.com/vinceanalytics/floe/format"
	"github.com/vinceanalytics/floe/schema"
)

func init() {
	format.Register(format.TagArrow, Decoder{})
}

type Decoder struct{}

var _ format.Decoder = Decoder{}

func (Decoder) Open(ctx context.Context, src blob.Source, opts *format.Options) (format.Handle, error) {
	r, err := ipc.NewFileReader(
		io.NewSectionReader(src, 0, src.Size()),
		ipc.WithAllocator(memory.DefaultAllocator),
	)
	if err != nil {
		return nil, format.Corrupt(opts.Path, err)
	}
	phys, err := physical(r.Schema())
	if err != nil {
		r.Close()
		return nil, format.Corrupt(opts.Path, err)
	}
	return &handle{path: opts.Path, r: r, phys: phys}, nil
}

type handle struct {
	path string
	r    *ipc.FileReader
	phys schema.Physical
	rec  arrow.Record
	i    int
	row  format.Row
	done bool
}

func (h *handle) Schema() schema.Physical { return h.phys }

func (h *handle) Next() (format.Row, error) {
	if h.done {
		return nil, io.EOF
	}
	for h.rec == nil || h.i >= int(h.rec.NumRows()) {
		rec, err := h.r.Read()
		if err == io.EOF {
			h.done = true
			return nil, io.EOF
		}
		if err != nil {
			h.done = true
			return nil, format.Corrupt(h.path, err)
		}
		h.rec, h.i = rec, 0
	}
	if h.row == nil {
		h.row = make(format.Row, len(h.phys.Fields))
	}
	for col := range h.phys.Fields {
		v, err := value(h.rec.Column(col), h.i)
		if err != nil {
			h.done = true
			return nil, format.Corrupt(h.path, err)
		}
		h.row[col] = v
	}
	h.i++
	return h.row, nil
}

func (h *handle) Close() error {
	h.done = true
	h.rec = nil
	return h.r.Close()
}

func physical(s *arrow.Schema) (schema.Physical, error) {
	fields := make([]schema.PhysField, 0, len(s.Fields()))
	for _, f := range s.Fields() {
		t, err := typeOf(f.Type)
		if err != nil {
			return schema.Physical{}, fmt.Errorf("field %q: %w", f.Name, err)
		}
		fields = append(fields, schema.PhysField{
			ID:   fieldID(f.Metadata),
			Name: f.Name,
			Type: t,
		})
	}
	return schema.Physical{Fields: fields}, nil
}

func fieldID(md arrow.Metadata) int {
	for _, key := range []string{"field_id", "PARQUET:field_id"} {
		if i := md.FindKey(key); i >= 0 {
			var id int
			if _, err := fmt.Sscanf(md.Values()[i], "%d", &id); err == nil {
				return id
			}
		}
	}
	return 0
}

func typeOf(t arrow.DataType) (schema.Type, error) {
	switch t.ID() {
	case arrow.BOOL:
		return schema.Bool, nil
	case arrow.INT32:
		return schema.Int, nil
	case arrow.INT64:
		return schema.Long, nil
	case arrow.FLOAT32:
		return schema.Float, nil
	case arrow.FLOAT64:
		return schema.Double, nil
	case arrow.STRING:
		return schema.String, nil
	case arrow.BINARY:
		return schema.Binary, nil
	case arrow.TIMESTAMP:
		return schema.Timestamp, nil
	default:
		return 0, fmt.Errorf("unsupported arrow type %s", t)
	}
}

func value(a arrow.Array, i int) (any, error) {
	if a.IsNull(i) {
		return nil, nil
	}
	switch e := a.(type) {
	case *array.Boolean:
		return e.Value(i), nil
	case *array.Int32:
		return e.Value(i), nil
	case *array.Int64:
		return e.Value(i), nil
	case *array.Float32:
		return e.Value(i), nil
	case *array.Float64:
		return e.Value(i), nil
	case *array.String:
		return e.Value(i), nil
	case *array.Binary:
		return append([]byte(nil), e.Value(i)...), nil
	case *array.Timestamp:
		return int64(e.Value(i)), nil
	default:
		return nil, fmt.Errorf("unsupported array %T", a)
	}
}

// Package parquet decodes the columnar format that embeds both its schema and
// per-column statistics. Row groups whose column bounds prove no filter can
// match are skipped before any page is read.
package parquet

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/RoaringBitmap/roaring"
	"github.com/parquet-go/parquet-go"
	"github.com/vinceanalytics/floe/blob"
	"github.com/vinceanalytics/floe/filters"
	"github.com/vinceanalytics/floe/format"
	"github.com/vinceanalytics/floe/schema"
)

func init() {
	format.Register(format.TagParquet, Decoder{})
}

const batchSize = 64

type Decoder struct{}

var _ format.Decoder = Decoder{}

func (Decoder) Open(ctx context.Context, src blob.Source, opts *format.Options) (format.Handle, error) {
	f, err := parquet.OpenFile(src, src.Size())
	if err != nil {
		return nil, format.Corrupt(opts.Path, err)
	}
	phys, err := physical(f.Schema())
	if err != nil {
		return nil, format.Corrupt(opts.Path, err)
	}
	h := &handle{
		path:   opts.Path,
		file:   f,
		phys:   phys,
		groups: prune(f, phys, opts.Pushdown),
		buf:    make([]parquet.Row, batchSize),
		log: slog.Default().With(
			slog.String("component", "parquet-decoder"),
		),
	}
	return h, nil
}

type handle struct {
	path   string
	file   *parquet.File
	phys   schema.Physical
	groups *roaring.Bitmap
	group  int
	rows   parquet.Rows
	buf    []parquet.Row
	n, i   int
	row    format.Row
	done   bool
	log    *slog.Logger
}

func (h *handle) Schema() schema.Physical { return h.phys }

func (h *handle) Next() (format.Row, error) {
	if h.done {
		return nil, io.EOF
	}
	for h.i >= h.n {
		if err := h.fill(); err != nil {
			if err != io.EOF {
				h.closeRows()
				h.done = true
			}
			return nil, err
		}
	}
	r := h.buf[h.i]
	h.i++
	return h.convert(r)
}

// fill advances to the next non-empty batch, moving across row groups as they
// drain. Returns io.EOF once the last surviving group is exhausted.
func (h *handle) fill() error {
	for {
		if h.rows == nil {
			next := h.nextGroup()
			if next < 0 {
				h.done = true
				return io.EOF
			}
			h.rows = h.file.RowGroups()[next].Rows()
		}
		n, err := h.rows.ReadRows(h.buf)
		h.n, h.i = n, 0
		if n > 0 {
			return nil
		}
		if err == io.EOF || err == nil {
			h.closeRows()
			continue
		}
		return format.Corrupt(h.path, err)
	}
}

func (h *handle) nextGroup() int {
	for ; h.group < len(h.file.RowGroups()); h.group++ {
		g := h.group
		if h.groups == nil || h.groups.Contains(uint32(g)) {
			h.group++
			return g
		}
		h.log.Debug("skipping row group", "path", h.path, "group", g)
	}
	return -1
}

func (h *handle) convert(r parquet.Row) (format.Row, error) {
	if h.row == nil {
		h.row = make(format.Row, len(h.phys.Fields))
	}
	for i := range h.row {
		h.row[i] = nil
	}
	for _, v := range r {
		col := v.Column()
		if col < 0 || col >= len(h.phys.Fields) {
			return nil, format.Corrupt(h.path, fmt.Errorf("value for unknown column %d", col))
		}
		if v.IsNull() {
			continue
		}
		h.row[col] = canon(v, h.phys.Fields[col].Type)
	}
	return h.row, nil
}

func (h *handle) closeRows() {
	if h.rows != nil {
		h.rows.Close()
		h.rows = nil
	}
}

func (h *handle) Close() error {
	h.done = true
	h.closeRows()
	return nil
}

// prune returns the set of row groups that may contain matching rows, judged
// by column-index bounds. nil means read everything.
func prune(f *parquet.File, phys schema.Physical, push []*filters.Compiled) *roaring.Bitmap {
	if len(push) == 0 {
		return nil
	}
	cols := make(map[string]int, len(phys.Fields))
	for i, pf := range phys.Fields {
		cols[pf.Name] = i
	}
	keep := new(roaring.Bitmap)
	for g, rg := range f.RowGroups() {
		if survives(rg, phys, cols, push) {
			keep.Add(uint32(g))
		}
	}
	return keep
}

func survives(rg parquet.RowGroup, phys schema.Physical, cols map[string]int, push []*filters.Compiled) bool {
	chunks := rg.ColumnChunks()
	for _, c := range push {
		pos, ok := cols[c.Field.Name]
		if !ok || pos >= len(chunks) {
			// column not in this file; the mapping layer decides what the
			// value is, stats cannot prune it.
			continue
		}
		lo, hi := bounds(chunks[pos], phys.Fields[pos].Type)
		if !c.Bounds(lo, hi) {
			return false
		}
	}
	return true
}

func bounds(chunk parquet.ColumnChunk, t schema.Type) (lo, hi any) {
	idx := chunk.ColumnIndex()
	if idx == nil {
		return nil, nil
	}
	for p := 0; p < idx.NumPages(); p++ {
		if idx.NullPage(p) {
			continue
		}
		min := canon(idx.MinValue(p), t)
		max := canon(idx.MaxValue(p), t)
		if min == nil || max == nil {
			return nil, nil
		}
		if lo == nil {
			lo, hi = min, max
			continue
		}
		if r, err := filters.Compare(min, lo); err == nil && r < 0 {
			lo = min
		}
		if r, err := filters.Compare(max, hi); err == nil && r > 0 {
			hi = max
		}
	}
	return lo, hi
}

func physical(s *parquet.Schema) (schema.Physical, error) {
	fields := make([]schema.PhysField, 0, len(s.Fields()))
	for _, f := range s.Fields() {
		if !f.Leaf() {
			return schema.Physical{}, fmt.Errorf("nested column %q is not supported", f.Name())
		}
		t, err := typeOf(f.Type())
		if err != nil {
			return schema.Physical{}, fmt.Errorf("column %q: %w", f.Name(), err)
		}
		// parquet carries no field identifiers here, mapping falls back to
		// names.
		fields = append(fields, schema.PhysField{Name: f.Name(), Type: t})
	}
	return schema.Physical{Fields: fields}, nil
}

func typeOf(t parquet.Type) (schema.Type, error) {
	if lt := t.LogicalType(); lt != nil {
		switch {
		case lt.UTF8 != nil:
			return schema.String, nil
		case lt.Timestamp != nil:
			return schema.Timestamp, nil
		case lt.Integer != nil:
			if lt.Integer.BitWidth <= 32 {
				return schema.Int, nil
			}
			return schema.Long, nil
		}
	}
	switch t.Kind() {
	case parquet.Boolean:
		return schema.Bool, nil
	case parquet.Int32:
		return schema.Int, nil
	case parquet.Int64:
		return schema.Long, nil
	case parquet.Float:
		return schema.Float, nil
	case parquet.Double:
		return schema.Double, nil
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return schema.Binary, nil
	default:
		return 0, fmt.Errorf("unsupported parquet kind %s", t.Kind())
	}
}

func canon(v parquet.Value, t schema.Type) any {
	if v.IsNull() {
		return nil
	}
	switch t {
	case schema.Bool:
		return v.Boolean()
	case schema.Int:
		return v.Int32()
	case schema.Long:
		return v.Int64()
	case schema.Float:
		return v.Float()
	case schema.Double:
		return v.Double()
	case schema.String:
		return string(v.ByteArray())
	case schema.Binary:
		return append([]byte(nil), v.ByteArray()...)
	case schema.Timestamp:
		return v.Int64()
	default:
		return nil
	}
}

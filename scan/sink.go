package scan

import (
	"fmt"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/apache/arrow/go/v15/arrow/memory"

	"github.com/vinceanalytics/floe/reader"
	"github.com/vinceanalytics/floe/schema"
)

// Sink batches output records into an arrow record for engines that consume
// columnar data. Column order follows the read schema, so records from any
// file format land in the same layout.
type Sink struct {
	build  *array.RecordBuilder
	append []func(any)
}

func NewSink(mem memory.Allocator, read *schema.Schema) *Sink {
	b := array.NewRecordBuilder(mem, ArrowSchema(read))
	appends := make([]func(any), len(b.Fields()))
	for i := range appends {
		appends[i] = write(b.Field(i))
	}
	return &Sink{build: b, append: appends}
}

func (s *Sink) Append(rec reader.Record) {
	for i, v := range rec.Values() {
		s.append[i](v)
	}
}

// NewRecord flushes everything appended so far. The caller releases the
// returned record.
func (s *Sink) NewRecord() arrow.Record {
	return s.build.NewRecord()
}

func (s *Sink) Release() {
	s.build.Release()
}

// ArrowSchema converts a read schema to its arrow equivalent.
func ArrowSchema(read *schema.Schema) *arrow.Schema {
	fields := make([]arrow.Field, read.Len())
	for i, f := range read.Fields() {
		fields[i] = arrow.Field{
			Name:     f.Name,
			Type:     arrowType(f.Type),
			Nullable: !f.Required,
			Metadata: arrow.NewMetadata(
				[]string{"field_id"},
				[]string{fmt.Sprint(f.ID)},
			),
		}
	}
	return arrow.NewSchema(fields, nil)
}

func arrowType(t schema.Type) arrow.DataType {
	switch t {
	case schema.Bool:
		return arrow.FixedWidthTypes.Boolean
	case schema.Int:
		return arrow.PrimitiveTypes.Int32
	case schema.Long:
		return arrow.PrimitiveTypes.Int64
	case schema.Float:
		return arrow.PrimitiveTypes.Float32
	case schema.Double:
		return arrow.PrimitiveTypes.Float64
	case schema.String:
		return arrow.BinaryTypes.String
	case schema.Binary:
		return arrow.BinaryTypes.Binary
	case schema.Timestamp:
		return arrow.FixedWidthTypes.Timestamp_us
	default:
		panic(fmt.Sprintf("unsupported type %s", t))
	}
}

func write(b array.Builder) func(any) {
	switch e := b.(type) {
	case *array.BooleanBuilder:
		return func(v any) {
			if v == nil {
				e.AppendNull()
				return
			}
			e.Append(v.(bool))
		}
	case *array.Int32Builder:
		return func(v any) {
			if v == nil {
				e.AppendNull()
				return
			}
			e.Append(v.(int32))
		}
	case *array.Int64Builder:
		return func(v any) {
			if v == nil {
				e.AppendNull()
				return
			}
			e.Append(v.(int64))
		}
	case *array.Float32Builder:
		return func(v any) {
			if v == nil {
				e.AppendNull()
				return
			}
			e.Append(v.(float32))
		}
	case *array.Float64Builder:
		return func(v any) {
			if v == nil {
				e.AppendNull()
				return
			}
			e.Append(v.(float64))
		}
	case *array.StringBuilder:
		return func(v any) {
			if v == nil {
				e.AppendNull()
				return
			}
			e.Append(v.(string))
		}
	case *array.BinaryBuilder:
		return func(v any) {
			if v == nil {
				e.AppendNull()
				return
			}
			e.Append(v.([]byte))
		}
	case *array.TimestampBuilder:
		return func(v any) {
			if v == nil {
				e.AppendNull()
				return
			}
			e.Append(arrow.Timestamp(v.(int64)))
		}
	default:
		panic(fmt.Sprintf("%T is not a supported builder", e))
	}
}

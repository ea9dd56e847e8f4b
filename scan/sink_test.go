package scan

import (
	"testing"

	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/apache/arrow/go/v15/arrow/memory"
	"github.com/stretchr/testify/require"
	"github.com/vinceanalytics/floe/reader"
	"github.com/vinceanalytics/floe/schema"
)

func TestSink(t *testing.T) {
	read := schema.Must(
		schema.Field{ID: 1, Name: "id", Type: schema.Long, Required: true},
		schema.Field{ID: 2, Name: "data", Type: schema.String},
	)
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)

	sink := NewSink(mem, read)
	defer sink.Release()
	sink.Append(reader.NewRecord(read, []any{int64(1), "a"}))
	sink.Append(reader.NewRecord(read, []any{int64(2), nil}))

	rec := sink.NewRecord()
	defer rec.Release()
	require.EqualValues(t, 2, rec.NumRows())
	require.EqualValues(t, 2, rec.NumCols())

	id := rec.Column(0).(*array.Int64)
	require.Equal(t, int64(1), id.Value(0))
	require.Equal(t, int64(2), id.Value(1))
	data := rec.Column(1).(*array.String)
	require.Equal(t, "a", data.Value(0))
	require.True(t, data.IsNull(1))

	as := rec.Schema()
	require.Equal(t, "id", as.Field(0).Name)
	require.False(t, as.Field(0).Nullable)
	require.True(t, as.Field(1).Nullable)
}

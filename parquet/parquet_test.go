package parquet

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/require"
	"github.com/vinceanalytics/floe/filters"
	"github.com/vinceanalytics/floe/format"
	"github.com/vinceanalytics/floe/schema"
)

type row struct {
	ID   int32  `parquet:"id"`
	Data string `parquet:"data,optional"`
}

type source struct {
	*bytes.Reader
	size int64
}

func (s *source) Close() error { return nil }
func (s *source) Size() int64  { return s.size }

// encode writes one row group per batch.
func encode(t *testing.T, batches ...[]row) *source {
	t.Helper()
	var buf bytes.Buffer
	w := parquet.NewGenericWriter[row](&buf)
	for _, rows := range batches {
		_, err := w.Write(rows)
		require.NoError(t, err)
		require.NoError(t, w.Flush())
	}
	require.NoError(t, w.Close())
	return &source{Reader: bytes.NewReader(buf.Bytes()), size: int64(buf.Len())}
}

func pos(t *testing.T, phys schema.Physical, name string) int {
	t.Helper()
	for i, f := range phys.Fields {
		if f.Name == name {
			return i
		}
	}
	t.Fatalf("column %q not in physical schema", name)
	return -1
}

func drain(t *testing.T, h format.Handle) []format.Row {
	t.Helper()
	var out []format.Row
	for {
		r, err := h.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, append(format.Row(nil), r...))
	}
}

func TestDecode(t *testing.T) {
	src := encode(t, []row{{ID: 1, Data: "a"}, {ID: 2, Data: "b"}})
	h, err := Decoder{}.Open(context.Background(), src, &format.Options{Path: "f.parquet"})
	require.NoError(t, err)
	defer h.Close()

	phys := h.Schema()
	id, data := pos(t, phys, "id"), pos(t, phys, "data")
	require.Equal(t, schema.Int, phys.Fields[id].Type)
	require.Equal(t, schema.String, phys.Fields[data].Type)
	// this format carries no field identifiers, mapping goes by name
	require.Zero(t, phys.Fields[id].ID)

	rows := drain(t, h)
	require.Len(t, rows, 2)
	require.Equal(t, int32(1), rows[0][id])
	require.Equal(t, "a", rows[0][data])
	require.Equal(t, int32(2), rows[1][id])
}

func TestPruneRowGroups(t *testing.T) {
	src := encode(t,
		[]row{{ID: 1, Data: "a"}, {ID: 2, Data: "b"}},
		[]row{{ID: 101, Data: "x"}, {ID: 102, Data: "y"}},
	)
	read := schema.Must(
		schema.Field{ID: 1, Name: "id", Type: schema.Int, Required: true},
		schema.Field{ID: 2, Name: "data", Type: schema.String},
	)
	push, err := filters.Compile(filters.List{
		{Field: 1, Op: filters.GtEq, Value: 100},
	}, read)
	require.NoError(t, err)

	h, err := Decoder{}.Open(context.Background(), src, &format.Options{
		Path:     "f.parquet",
		Pushdown: push,
	})
	require.NoError(t, err)
	defer h.Close()

	id := pos(t, h.Schema(), "id")
	rows := drain(t, h)
	require.Len(t, rows, 2, "first row group should be skipped by its bounds")
	require.Equal(t, int32(101), rows[0][id])
	require.Equal(t, int32(102), rows[1][id])
}

func TestPruneEverything(t *testing.T) {
	src := encode(t, []row{{ID: 1, Data: "a"}})
	read := schema.Must(
		schema.Field{ID: 1, Name: "id", Type: schema.Int, Required: true},
	)
	push, err := filters.Compile(filters.List{
		{Field: 1, Op: filters.Gt, Value: 9000},
	}, read)
	require.NoError(t, err)

	h, err := Decoder{}.Open(context.Background(), src, &format.Options{
		Path:     "f.parquet",
		Pushdown: push,
	})
	require.NoError(t, err)
	defer h.Close()

	_, err = h.Next()
	require.Equal(t, io.EOF, err)
}

func TestOpenCorrupt(t *testing.T) {
	src := &source{Reader: bytes.NewReader([]byte("PAR1 but not really")), size: 19}
	_, err := Decoder{}.Open(context.Background(), src, &format.Options{Path: "junk"})
	require.Error(t, err)
	require.True(t, format.IsCorrupt(err))
}

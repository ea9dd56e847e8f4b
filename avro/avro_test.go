package avro

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/hamba/avro/v2/ocf"
	"github.com/stretchr/testify/require"
	"github.com/vinceanalytics/floe/format"
	"github.com/vinceanalytics/floe/schema"
)

const writerSchema = `{
	"type": "record",
	"name": "row",
	"fields": [
		{"name": "id", "type": "int", "field-id": 1},
		{"name": "data", "type": ["null", "string"], "field-id": 2}
	]
}`

type row struct {
	ID   int32   `avro:"id"`
	Data *string `avro:"data"`
}

type source struct {
	*bytes.Reader
	size int64
}

func (s *source) Close() error { return nil }
func (s *source) Size() int64  { return s.size }

func newSource(b []byte) *source {
	return &source{Reader: bytes.NewReader(b), size: int64(len(b))}
}

func encode(t *testing.T, rows []row) *source {
	t.Helper()
	var buf bytes.Buffer
	enc, err := ocf.NewEncoder(writerSchema, &buf)
	require.NoError(t, err)
	for _, r := range rows {
		require.NoError(t, enc.Encode(r))
	}
	require.NoError(t, enc.Close())
	return newSource(buf.Bytes())
}

func str(s string) *string { return &s }

func TestDecode(t *testing.T) {
	src := encode(t, []row{
		{ID: 1, Data: str("a")},
		{ID: 2},
	})
	h, err := Decoder{}.Open(context.Background(), src, &format.Options{Path: "f.avro"})
	require.NoError(t, err)
	defer h.Close()

	phys := h.Schema()
	require.Equal(t, []schema.PhysField{
		{ID: 1, Name: "id", Type: schema.Int},
		{ID: 2, Name: "data", Type: schema.String},
	}, phys.Fields)

	r, err := h.Next()
	require.NoError(t, err)
	require.Equal(t, format.Row{int32(1), "a"}, r)

	r, err = h.Next()
	require.NoError(t, err)
	require.Equal(t, int32(2), r[0])
	require.Nil(t, r[1])

	_, err = h.Next()
	require.Equal(t, io.EOF, err)
	_, err = h.Next()
	require.Equal(t, io.EOF, err)
}

func TestOpenCorrupt(t *testing.T) {
	src := newSource([]byte("not an avro container"))
	_, err := Decoder{}.Open(context.Background(), src, &format.Options{Path: "junk"})
	require.Error(t, err)
	require.True(t, format.IsCorrupt(err))
	require.Contains(t, err.Error(), "junk")
}

func TestRegistered(t *testing.T) {
	d, err := format.Lookup(format.TagAvro)
	require.NoError(t, err)
	require.NotNil(t, d)
}

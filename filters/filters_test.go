package filters

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vinceanalytics/floe/schema"
)

func readSchema() *schema.Schema {
	return schema.Must(
		schema.Field{ID: 1, Name: "data", Type: schema.String},
		schema.Field{ID: 2, Name: "id", Type: schema.Long},
	)
}

func TestCompile(t *testing.T) {
	t.Run("binds to read positions and coerces literals", func(t *testing.T) {
		cs, err := Compile(List{
			{Field: 2, Op: GtEq, Value: 5},
			{Field: 1, Op: Eq, Value: "a"},
		}, readSchema())
		require.NoError(t, err)
		require.Equal(t, 1, cs[0].Pos)
		require.Equal(t, int64(5), cs[0].Value)
		require.Equal(t, 0, cs[1].Pos)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := Compile(List{{Field: 9, Op: Eq, Value: 1}}, readSchema())
		require.ErrorIs(t, err, schema.ErrUnresolvedField)
	})

	t.Run("incompatible literal", func(t *testing.T) {
		_, err := Compile(List{{Field: 1, Op: Eq, Value: 7}}, readSchema())
		require.Error(t, err)
	})
}

func TestCoerceRejectsLossyLiterals(t *testing.T) {
	read := schema.Must(
		schema.Field{ID: 1, Name: "id", Type: schema.Int},
		schema.Field{ID: 2, Name: "ts", Type: schema.Long},
	)

	t.Run("fractional literal on an int column", func(t *testing.T) {
		_, err := Compile(List{{Field: 1, Op: Eq, Value: 1.5}}, read)
		require.Error(t, err, "id=1.5 must not truncate to id=1")
	})

	t.Run("overflowing literal on an int column", func(t *testing.T) {
		_, err := Compile(List{{Field: 1, Op: Eq, Value: int64(4294967297)}}, read)
		require.Error(t, err, "id=4294967297 must not wrap to id=1")
		_, err = Compile(List{{Field: 1, Op: Eq, Value: float64(1 << 40)}}, read)
		require.Error(t, err)
	})

	t.Run("fractional literal on a long column", func(t *testing.T) {
		_, err := Compile(List{{Field: 2, Op: Gt, Value: 2.5}}, read)
		require.Error(t, err)
	})

	t.Run("huge float on a long column", func(t *testing.T) {
		_, err := Compile(List{{Field: 2, Op: Eq, Value: float64(1 << 63)}}, read)
		require.Error(t, err)
	})

	t.Run("integral floats still coerce", func(t *testing.T) {
		v, err := Coerce(float64(5), schema.Int)
		require.NoError(t, err)
		require.Equal(t, int32(5), v)
		v, err = Coerce(float64(5), schema.Long)
		require.NoError(t, err)
		require.Equal(t, int64(5), v)
	})
}

func TestMatch(t *testing.T) {
	cs, err := Compile(List{{Field: 2, Op: Gt, Value: 10}}, readSchema())
	require.NoError(t, err)
	c := cs[0]
	require.True(t, c.Match(int64(11)))
	require.False(t, c.Match(int64(10)))
	require.False(t, c.Match(nil))
}

func TestBounds(t *testing.T) {
	cs, err := Compile(List{{Field: 2, Op: Eq, Value: 7}}, readSchema())
	require.NoError(t, err)
	c := cs[0]
	require.True(t, c.Bounds(int64(1), int64(10)))
	require.False(t, c.Bounds(int64(8), int64(10)))
	require.False(t, c.Bounds(int64(1), int64(6)))
	// unknown bounds never prune
	require.True(t, c.Bounds(nil, nil))

	cs, err = Compile(List{{Field: 2, Op: Lt, Value: 5}}, readSchema())
	require.NoError(t, err)
	require.False(t, cs[0].Bounds(int64(5), int64(9)))
	require.True(t, cs[0].Bounds(int64(4), int64(9)))
}

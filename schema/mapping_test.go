package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapPhysical(t *testing.T) {
	read := testSchema()

	t.Run("resolves all three sources", func(t *testing.T) {
		// dt is a partition column, not stored in the file. data was added
		// after this file was written.
		phys := Physical{Fields: []PhysField{
			{ID: 2, Name: "id", Type: Long},
		}}
		m, err := MapPhysical(read, phys, map[int]any{3: "2020-03-20"})
		require.NoError(t, err)
		require.Len(t, m, 3)

		require.Equal(t, FromDefault, m[0].Source)
		require.Nil(t, m[0].Constant)

		require.Equal(t, FromFile, m[1].Source)
		require.Equal(t, 0, m[1].Pos)

		require.Equal(t, FromConstant, m[2].Source)
		require.Equal(t, "2020-03-20", m[2].Constant)
	})

	t.Run("matches by name when file has no field ids", func(t *testing.T) {
		phys := Physical{Fields: []PhysField{
			{Name: "id", Type: Long},
			{Name: "data", Type: String},
		}}
		m, err := MapPhysical(read, phys, nil)
		require.NoError(t, err)
		require.Equal(t, FromFile, m[0].Source)
		require.Equal(t, 1, m[0].Pos)
		require.Equal(t, FromFile, m[1].Source)
		require.Equal(t, 0, m[1].Pos)
	})

	t.Run("field id wins over a colliding name", func(t *testing.T) {
		// Renamed column keeps its id. Mapping must follow the id, not the
		// stale name.
		phys := Physical{Fields: []PhysField{
			{ID: 1, Name: "payload", Type: String},
		}}
		m, err := MapPhysical(read, phys, map[int]any{3: "x"})
		require.NoError(t, err)
		require.Equal(t, FromFile, m[0].Source)
		require.Equal(t, 0, m[0].Pos)
	})

	t.Run("partition constant wins over stored column", func(t *testing.T) {
		phys := Physical{Fields: []PhysField{
			{ID: 3, Name: "dt", Type: String},
			{ID: 2, Name: "id", Type: Long},
		}}
		m, err := MapPhysical(read, phys, map[int]any{3: "2020-03-20"})
		require.NoError(t, err)
		require.Equal(t, FromConstant, m[2].Source)
	})

	t.Run("widening physical types are accepted", func(t *testing.T) {
		phys := Physical{Fields: []PhysField{
			{ID: 2, Name: "id", Type: Int},
		}}
		m, err := MapPhysical(read, phys, map[int]any{3: "x"})
		require.NoError(t, err)
		require.Equal(t, Int, m[1].PhysType)
	})

	t.Run("narrowing physical types are rejected", func(t *testing.T) {
		read := Must(Field{ID: 1, Name: "n", Type: Int})
		phys := Physical{Fields: []PhysField{{ID: 1, Name: "n", Type: Long}}}
		_, err := MapPhysical(read, phys, nil)
		require.Error(t, err)
	})

	t.Run("missing required field with no default fails", func(t *testing.T) {
		phys := Physical{Fields: []PhysField{
			{ID: 1, Name: "data", Type: String},
		}}
		_, err := MapPhysical(read, phys, nil)
		require.ErrorIs(t, err, ErrUnresolvedField)
	})

	t.Run("missing optional field takes its declared default", func(t *testing.T) {
		read := Must(
			Field{ID: 1, Name: "data", Type: String},
			Field{ID: 4, Name: "region", Type: String, Default: "unknown"},
		)
		phys := Physical{Fields: []PhysField{{ID: 1, Name: "data", Type: String}}}
		m, err := MapPhysical(read, phys, nil)
		require.NoError(t, err)
		require.Equal(t, FromDefault, m[1].Source)
		require.Equal(t, "unknown", m[1].Constant)
	})
}

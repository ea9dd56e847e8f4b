package format

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTag(t *testing.T) {
	for _, s := range []string{"avro", "parquet", "arrow"} {
		tag, err := ParseTag(s)
		require.NoError(t, err)
		require.Equal(t, Tag(s), tag)
	}
	_, err := ParseTag("orc")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup(Tag("csv"))
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestCorrupt(t *testing.T) {
	cause := errors.New("bad magic")
	err := Corrupt("part-0.parquet", cause)
	require.True(t, IsCorrupt(err))
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "part-0.parquet")
	require.False(t, IsCorrupt(cause))
	require.False(t, IsCorrupt(nil))
}

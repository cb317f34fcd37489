package sqlstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	query := `SELECT a FROM t WHERE x = ? AND y IN (?, ?)`

	assert.Equal(t, query, Dialect{}.Rebind(query))
	assert.Equal(t,
		`SELECT a FROM t WHERE x = $1 AND y IN ($2, $3)`,
		Dialect{Numbered: true}.Rebind(query))
}

func TestEncodeTime_SortsLexically(t *testing.T) {
	// RFC3339Nano trims trailing zeros, which breaks text ordering.
	// The fixed layout must not.
	a := time.Date(2025, 3, 4, 9, 0, 0, 500_000_000, time.UTC)
	b := time.Date(2025, 3, 4, 9, 0, 0, 123_456_789, time.UTC)
	c := time.Date(2025, 3, 4, 9, 0, 1, 0, time.UTC)

	assert.Less(t, encodeTime(b), encodeTime(a))
	assert.Less(t, encodeTime(a), encodeTime(c))
	assert.Len(t, encodeTime(a), len(encodeTime(c)))
}

func TestTimeValue_Scan(t *testing.T) {
	want := time.Date(2025, 3, 4, 9, 30, 0, 0, time.UTC)
	local := want.In(time.FixedZone("UTC-3", -3*3600))

	for _, src := range []any{encodeTime(want), []byte(encodeTime(want)), local} {
		var v timeValue
		require.NoError(t, v.Scan(src))
		assert.True(t, v.Valid)
		assert.True(t, want.Equal(v.Time))
		assert.Equal(t, time.UTC, v.Time.Location())
	}

	var v timeValue
	require.NoError(t, v.Scan(nil))
	assert.False(t, v.Valid)
	assert.Nil(t, v.ptr())

	assert.Error(t, v.Scan(42))
	assert.Error(t, v.Scan("not a time"))
}

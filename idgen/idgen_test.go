package idgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_PrefixAndLength(t *testing.T) {
	id, err := New(PrefixMovement)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(id, PrefixMovement))
	assert.Len(t, id, len(PrefixMovement)+Length)
}

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id, err := New(PrefixSession)
		require.NoError(t, err)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

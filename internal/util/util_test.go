package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlphanumericID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id, err := AlphanumericID(10)
		require.NoError(t, err)
		require.Len(t, id, 10)
		for _, r := range id {
			isDigit := r >= '0' && r <= '9'
			isLower := r >= 'a' && r <= 'z'
			isUpper := r >= 'A' && r <= 'Z'
			assert.True(t, isDigit || isLower || isUpper, "unexpected char %q", r)
		}
		assert.False(t, seen[id], "duplicate ID %q in 50 draws", id)
		seen[id] = true
	}
}

func TestHexUUID(t *testing.T) {
	a := HexUUID()
	b := HexUUID()
	require.Len(t, a, 32)
	require.NotEqual(t, a, b)
	for _, r := range a {
		assert.True(t, (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f'))
	}
}

func TestNormalize(t *testing.T) {
	// U+2460 CIRCLED DIGIT ONE decomposes to "1" under NFKD.
	assert.Equal(t, "1", Normalize("①"))
	assert.Equal(t, "plain", Normalize("plain"))
}

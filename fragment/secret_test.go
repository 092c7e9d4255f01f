package fragment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifySecret(t *testing.T) {
	hash, err := HashSecret("abc123")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$"))

	ok, err := VerifyHash("abc123", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyHash("abc124", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashSecretSaltsDiffer(t *testing.T) {
	h1, err := HashSecret("abc123")
	require.NoError(t, err)
	h2, err := HashSecret("abc123")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestVerifyHashNormalizes(t *testing.T) {
	// U+2460 CIRCLED DIGIT ONE normalizes to "1" under NFKD, so both spellings
	// of the secret must verify against either hash.
	hash, err := HashSecret("abc12①")
	require.NoError(t, err)
	ok, err := VerifyHash("abc121", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyHashMalformed(t *testing.T) {
	_, err := VerifyHash("abc123", "not-a-hash")
	assert.Error(t, err)
	_, err = VerifyHash("abc123", "$bcrypt$v=19$m=1,t=1,p=1$AAAA$BBBB")
	assert.Error(t, err)
}

package hearth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashTokenRoundTrip(t *testing.T) {
	hash, err := HashToken("swordfish")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m="))

	ok, err := verifyToken(hash, "swordfish")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = verifyToken(hash, "not-swordfish")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashTokenUniqueSalts(t *testing.T) {
	first, err := HashToken("swordfish")
	require.NoError(t, err)
	second, err := HashToken("swordfish")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestVerifyTokenMalformedHash(t *testing.T) {
	for _, hash := range []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=65536,t=1,p=4$toofewparts",
		"$argon2id$v=19$nonsense$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=1,p=4$!!bad-salt!!$aGFzaA",
	} {
		ok, err := verifyToken(hash, "swordfish")
		assert.Error(t, err, "hash %q", hash)
		assert.False(t, ok)
	}
}

func TestGenerateRandomHexString(t *testing.T) {
	s, err := generateRandomHexString(32)
	require.NoError(t, err)
	assert.Len(t, s, 32)

	other, err := generateRandomHexString(32)
	require.NoError(t, err)
	assert.NotEqual(t, s, other)
}

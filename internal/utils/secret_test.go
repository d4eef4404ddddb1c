package utils

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateOpaqueSecret(t *testing.T) {
	seen := make(map[string]struct{})

	for range 100 {
		secret, err := GenerateOpaqueSecret()
		require.NoError(t, err)

		raw, err := hex.DecodeString(secret)
		require.NoError(t, err)
		assert.Len(t, raw, OpaqueSecretBytes)

		_, dup := seen[secret]
		assert.False(t, dup)
		seen[secret] = struct{}{}
	}
}

func TestHashToken(t *testing.T) {
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		HashToken(""),
	)
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	assert.Len(t, HashToken("anything"), 64)
}

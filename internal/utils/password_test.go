package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hash, err := h.Hash("Passw0rd!")
	require.NoError(t, err)

	assert.NotEqual(t, "Passw0rd!", hash)
	assert.True(t, h.Compare(hash, "Passw0rd!"))
	assert.False(t, h.Compare(hash, "passw0rd!"))

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}

func TestPasswordHasherSaltsEachHash(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	first, err := h.Hash("Passw0rd!")
	require.NoError(t, err)
	second, err := h.Hash("Passw0rd!")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestPasswordHasherFallsBackOnBadCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(99).cost)
}

func TestCompareDummy(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	h.CompareDummy("anything")
	h.CompareDummy("anything-else")
	assert.NotEmpty(t, h.dummyHash)
}

func TestCompareAgainstMalformedHash(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	assert.False(t, h.Compare("not-a-bcrypt-hash", "Passw0rd!"))
	assert.False(t, h.Compare("", strings.Repeat("a", 10)))
}

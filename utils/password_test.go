package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct-horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct-horse", hash)

	assert.True(t, CheckPassword(hash, "correct-horse"))
	assert.False(t, CheckPassword(hash, "wrong-horse"))
	assert.False(t, CheckPassword("", "correct-horse"))
}

func TestHashesDiffer(t *testing.T) {
	first, err := HashPassword("correct-horse")
	require.NoError(t, err)
	second, err := HashPassword("correct-horse")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

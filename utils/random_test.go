package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRandomToken_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := GenerateRandomToken(32)
		require.NoError(t, err)
		assert.False(t, seen[token], "token generated twice")
		seen[token] = true
	}
}

func TestRandomPassword(t *testing.T) {
	pw, err := RandomPassword(16)
	require.NoError(t, err)
	assert.Len(t, pw, 16)
	for _, r := range pw {
		assert.True(t, strings.ContainsRune(passwordAlphabet, r), "unexpected rune %q", r)
	}

	_, err = RandomPassword(0)
	assert.Error(t, err)
}

package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueToken(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tok, err := IssueToken(now, time.Hour)
	require.NoError(t, err)

	assert.NotEmpty(t, tok.Raw)
	assert.Len(t, tok.Hash, 64)
	assert.Equal(t, now.Add(time.Hour), tok.ExpiresAt)
	assert.Equal(t, HashToken(tok.Raw), tok.Hash)
	assert.NotEqual(t, tok.Raw, tok.Hash)
}

func TestIssueTokenUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := IssueToken(time.Now(), time.Hour)
		require.NoError(t, err)
		assert.False(t, seen[tok.Raw])
		seen[tok.Raw] = true
	}
}

func TestHashTokenDeterministic(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
}

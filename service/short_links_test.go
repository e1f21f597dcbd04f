package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luximus/flowbot/persistence"
	"github.com/luximus/flowbot/persistence/memory"
)

func TestShortLinks(t *testing.T) {
	ctx := context.Background()
	links := NewShortLinkService(memory.NewMemoryShortLinkDao(), "https://bot.example.com/s/", 0)

	short, err := links.Create(ctx, "https://accounts.google.com/o/oauth2/auth?state=abc")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(short, "https://bot.example.com/s/"))
	code := strings.TrimPrefix(short, "https://bot.example.com/s/")
	assert.Len(t, code, SHORT_CODE_LENGTH)

	long, err := links.Resolve(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "https://accounts.google.com/o/oauth2/auth?state=abc", long)

	_, err = links.Resolve(ctx, "zzzzzz")
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := generateShortCode(SHORT_CODE_LENGTH)
		require.NoError(t, err)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(shortCodeAlphabet, r))
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 45)
}

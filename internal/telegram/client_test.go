package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitByBytes(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitByBytes("short", 10))

	parts := splitByBytes(strings.Repeat("a", 25), 10)
	require.Len(t, parts, 3)
	assert.Equal(t, []string{"aaaaaaaaaa", "aaaaaaaaaa", "aaaaa"}, parts)
}

func TestSplitByBytes_KeepsRunesWhole(t *testing.T) {
	text := strings.Repeat("é", 7)
	parts := splitByBytes(text, 5)
	for _, p := range parts {
		assert.LessOrEqual(t, len(p), 5)
		assert.True(t, utf8.ValidString(p))
	}
	assert.Equal(t, text, strings.Join(parts, ""))
}

func TestTruncateByBytes(t *testing.T) {
	assert.Equal(t, "abc", truncateByBytes("abc", 0))
	assert.Equal(t, "abc", truncateByBytes("abcdef", 3))

	out := truncateByBytes("ééé", 5)
	assert.Equal(t, "éé", out)
}

package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateSlug(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Hello World", "hello-world"},
		{"Summer Sale Guide", "summer-sale-guide"},
		{"  Spaces & Symbols!!  ", "spaces-symbols"},
		{"already-a-slug", "already-a-slug"},
		{"MixedCASE Title", "mixedcase-title"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, GenerateSlug(tc.in), "input %q", tc.in)
	}
}

func TestGenerateSlugLimitsLength(t *testing.T) {
	slug := GenerateSlug(strings.Repeat("word ", 30))
	assert.LessOrEqual(t, len(slug), 50)
	assert.False(t, strings.HasSuffix(slug, "-"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
	assert.Equal(t, "", Truncate("anything", 0))
	assert.Equal(t, "héllo", Truncate("héllo", 5))
}

package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveCitation_ShortTextWhole(t *testing.T) {
	r := &SearchResult{FullText: "short chunk text"}
	resolveCitation(r, 300)
	assert.Equal(t, "short chunk text", r.Excerpt)
}

func TestResolveCitation_LongTextBounded(t *testing.T) {
	words := strings.Repeat("coverage applies to sudden water discharge ", 30)
	r := &SearchResult{FullText: words}
	resolveCitation(r, 100)

	assert.LessOrEqual(t, len([]rune(r.Excerpt)), 100)
	assert.NotEmpty(t, r.Excerpt)
}

func TestResolveCitation_ExcerptIsSubstring(t *testing.T) {
	texts := []string{
		strings.Repeat("lorem ipsum dolor sit amet ", 40),
		strings.Repeat("nospaceatall", 50),
		"héllo wörld " + strings.Repeat("ünïcode téxt ", 40),
	}
	for _, text := range texts {
		r := &SearchResult{FullText: text}
		resolveCitation(r, 120)
		assert.True(t, strings.Contains(text, r.Excerpt),
			"excerpt must be a literal substring of the chunk text")
		assert.NotEmpty(t, r.Excerpt)
	}
}

func TestResolveCitation_WordBoundaries(t *testing.T) {
	text := strings.Repeat("boundary ", 100)
	r := &SearchResult{FullText: text}
	resolveCitation(r, 50)

	// Snapped to spaces: the excerpt starts and ends on whole words.
	assert.False(t, strings.HasPrefix(r.Excerpt, "oundary"))
	for _, w := range strings.Fields(r.Excerpt) {
		assert.Equal(t, "boundary", w)
	}
}

func TestResolveCitation_DefaultWhenZero(t *testing.T) {
	text := strings.Repeat("x y ", 400)
	r := &SearchResult{FullText: text}
	resolveCitation(r, 0)

	require.NotEmpty(t, r.Excerpt)
	assert.LessOrEqual(t, len([]rune(r.Excerpt)), defaultExcerptChars)
}

func TestExcerptWindow_NoSpaces(t *testing.T) {
	text := strings.Repeat("a", 500)
	out := excerptWindow(text, 100)

	// No space to snap to: raw cut keeps the window instead of collapsing.
	assert.Len(t, out, 100)
	assert.True(t, strings.Contains(text, out))
}

func TestExcerptWindow_ExactLength(t *testing.T) {
	text := strings.Repeat("b", 100)
	assert.Equal(t, text, excerptWindow(text, 100))
}

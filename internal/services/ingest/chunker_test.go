package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildChunks_SinglePageFits(t *testing.T) {
	chunks := BuildChunks([]string{"  short page  "}, 100, 10)
	require.Len(t, chunks, 1)
	assert.Equal(t, Chunk{Index: 0, Page: 1, Content: "short page"}, chunks[0])
}

func TestBuildChunks_SkipsBlankPages(t *testing.T) {
	chunks := BuildChunks([]string{"first", "   ", "third"}, 100, 0)
	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, 3, chunks[1].Page)
	assert.Equal(t, 1, chunks[1].Index)
}

func TestBuildChunks_OverlapAndBoundaries(t *testing.T) {
	words := make([]string, 200)
	for i := range words {
		words[i] = "word"
	}
	text := strings.Join(words, " ") // 999 chars

	chunks := BuildChunks([]string{text}, 50, 10) // 200 chars, 40 overlap
	require.Greater(t, len(chunks), 4)

	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
		assert.LessOrEqual(t, len([]rune(ch.Content)), 200)
		// windows end on whitespace so no word is split
		for _, w := range strings.Fields(ch.Content) {
			assert.Equal(t, "word", w)
		}
	}
}

func TestBuildChunks_MultibyteSafe(t *testing.T) {
	text := strings.Repeat("héllo wörld ", 100)
	for _, ch := range BuildChunks([]string{text}, 20, 5) {
		assert.True(t, strings.ToValidUTF8(ch.Content, "?") == ch.Content)
	}
}

func TestBuildChunks_OverlapNeverStalls(t *testing.T) {
	text := strings.Repeat("x", 1000)
	chunks := BuildChunks([]string{text}, 10, 50)
	require.NotEmpty(t, chunks)
	assert.Less(t, len(chunks), 1000)
}

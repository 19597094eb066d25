package chunking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkShortContentReturnsSingleChunk(t *testing.T) {
	c := New(Config{Size: 800, Overlap: 100})
	chunks := c.Chunk("doc-1", "policy.txt", "A short sentence. Another one.")
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].Total)
	assert.Contains(t, chunks[0].Content, "short sentence")
}

func TestChunkNeverSplitsASentence(t *testing.T) {
	c := New(Config{Size: 40, Overlap: 5})
	text := strings.Repeat("The seller relisted the item quickly. ", 10)
	chunks := c.Chunk("doc-1", "notes.txt", text)
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.True(t, strings.HasSuffix(strings.TrimSpace(ch.Content), ".") || ch.Content == "")
	}
}

func TestChunkConsecutiveChunksOverlap(t *testing.T) {
	c := New(Config{Size: 60, Overlap: 20})
	text := strings.Repeat("Velocity spiked after account creation. ", 8)
	chunks := c.Chunk("doc-1", "notes.txt", text)
	require.Greater(t, len(chunks), 1)

	firstSentences := strings.Split(strings.TrimSpace(chunks[0].Content), ". ")
	lastOfFirst := firstSentences[len(firstSentences)-1]
	assert.Contains(t, chunks[1].Content, strings.TrimSuffix(lastOfFirst, "."))
}

// Content with no sentence boundaries splits on character count at the
// nearest space instead of coming back as one oversized chunk.
func TestChunkNoSentenceBoundariesSplitsByCharacters(t *testing.T) {
	c := New(Config{Size: 50, Overlap: 10})
	text := strings.TrimSpace(strings.Repeat("velocity ", 30))
	chunks := c.Chunk("doc-1", "notes.txt", text)
	require.Greater(t, len(chunks), 1)

	var rebuilt strings.Builder
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Content), 2*50)
		rebuilt.WriteString(ch.Content)
	}
	assert.Equal(t,
		strings.ReplaceAll(text, " ", ""),
		strings.ReplaceAll(rebuilt.String(), " ", ""),
	)
}

func TestChunkMergesSmallTrailingRemainder(t *testing.T) {
	c := New(Config{Size: 50, Overlap: 10})
	// 50-char pieces plus a tiny tail: the tail folds into the last chunk.
	text := strings.TrimSpace(strings.Repeat("a", 49) + " " + strings.Repeat("b", 49) + " ab")
	chunks := c.Chunk("doc-1", "notes.txt", text)
	require.NotEmpty(t, chunks)
	last := chunks[len(chunks)-1].Content
	assert.Contains(t, last, "ab")
	assert.Greater(t, len(last), 10)
}

func TestChunkEmptyContentReturnsNoChunks(t *testing.T) {
	c := New(Config{Size: 800, Overlap: 100})
	assert.Empty(t, c.Chunk("doc-1", "empty.txt", "   "))
}

func TestConfigValidateRejectsOverlapGreaterThanSize(t *testing.T) {
	err := Config{Size: 100, Overlap: 100}.Validate()
	assert.Error(t, err)
}

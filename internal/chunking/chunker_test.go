package chunking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snorlak1/mem0-server-mcp/internal/config"
)

func testConfig(maxSize, overlap int) config.ChunkingConfig {
	return config.ChunkingConfig{MaxChunkSize: maxSize, OverlapSize: overlap}
}

func TestSplit_RejectsEmptyContent(t *testing.T) {
	s := NewSplitter(testConfig(100, 10))
	_, err := s.Split("   ")
	require.Error(t, err)
}

func TestSplit_SingleChunkWhenUnderLimit(t *testing.T) {
	s := NewSplitter(testConfig(1000, 150))
	chunks, err := s.Split("a short piece of content.")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.False(t, chunks[0].Meta.HasOverlap)
	assert.Equal(t, 0, chunks[0].Meta.ChunkIndex)
	assert.Equal(t, 1, chunks[0].Meta.TotalChunks)
}

func TestSplit_SharesOneRunIDAcrossChunks(t *testing.T) {
	s := NewSplitter(testConfig(20, 5))
	content := strings.Repeat("the quick brown fox jumps. ", 10)
	chunks, err := s.Split(content)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)

	runID := chunks[0].Meta.RunID
	for _, c := range chunks {
		assert.Equal(t, runID, c.Meta.RunID)
	}
}

func TestSplit_ExactOverlapContract(t *testing.T) {
	s := NewSplitter(testConfig(30, 8))
	content := strings.Repeat("alpha beta gamma delta epsilon ", 8)
	chunks, err := s.Split(content)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)

	for i := 1; i < len(chunks); i++ {
		assert.True(t, chunks[i].Meta.HasOverlap)
		prevTail := tailOverlap(chunks[i-1].Content, s.overlap)
		gotPrefix := string([]rune(chunks[i].Content)[:len([]rune(prevTail))])
		assert.Equal(t, prevTail, gotPrefix)
	}
}

func TestSplit_ChunkIndexAndTotalAreConsistent(t *testing.T) {
	s := NewSplitter(testConfig(15, 4))
	content := strings.Repeat("word ", 40)
	chunks, err := s.Split(content)
	require.NoError(t, err)

	for i, c := range chunks {
		assert.Equal(t, i, c.Meta.ChunkIndex)
		assert.Equal(t, len(chunks), c.Meta.TotalChunks)
	}
}

func TestSplit_OverlapContractHoldsWhenAMiddlePieceIsShorterThanOverlap(t *testing.T) {
	// Paragraph splitting produces a short middle piece ("short", 5 chars)
	// that mergeSmall can't fold into either 28-char neighbor without
	// exceeding maxSize=30, reproducing the case where the carry forward
	// must pull extra characters from the prior chunk's full content
	// rather than just the bare piece.
	s := NewSplitter(testConfig(30, 8))
	content := strings.Repeat("A", 28) + "\n\n" + "short" + "\n\n" + strings.Repeat("B", 28)
	chunks, err := s.Split(content)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	for i := 1; i < len(chunks); i++ {
		assert.True(t, chunks[i].Meta.HasOverlap)
		prevTail := tailOverlap(chunks[i-1].Content, s.overlap)
		gotPrefix := string([]rune(chunks[i].Content)[:len([]rune(prevTail))])
		assert.Equal(t, prevTail, gotPrefix, "chunk %d must begin with exactly the previous chunk's trailing overlap", i)
	}
}

func TestSplitOnMarkdownHeadings_NilForPlainProse(t *testing.T) {
	assert.Nil(t, splitOnMarkdownHeadings("just a plain paragraph with no structure."))
}

func TestSplitOnMarkdownHeadings_SplitsAtEachHeading(t *testing.T) {
	content := "# Intro\nsome intro text\n\n## Details\nsome detail text\n"
	sections := splitOnMarkdownHeadings(content)
	require.Len(t, sections, 2)
	assert.Contains(t, sections[0], "Intro")
	assert.Contains(t, sections[1], "Details")
}

func TestSplit_PrefersHeadingBoundariesWhenPresent(t *testing.T) {
	s := NewSplitter(testConfig(1000, 50))
	content := "# Section One\nfirst section body.\n\n## Section Two\nsecond section body.\n"
	chunks, err := s.Split(content)
	require.NoError(t, err)
	require.Len(t, chunks, 1, "content fits in one chunk regardless of heading structure")
	assert.Contains(t, chunks[0].Content, "Section One")
	assert.Contains(t, chunks[0].Content, "Section Two")
}

func TestHardCharSplit_RespectsMaxSize(t *testing.T) {
	out := hardCharSplit(strings.Repeat("x", 101), 40)
	require.Len(t, out, 3)
	for _, p := range out[:2] {
		assert.Len(t, []rune(p), 40)
	}
}

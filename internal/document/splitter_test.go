package document

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitShortText(t *testing.T) {
	splitter := NewTextSplitter(DefaultSplitterConfig())

	segments, err := splitter.Split("Payment is due within 30 days of invoice.")
	require.NoError(t, err)
	require.Len(t, segments, 1, "text within the chunk size should stay whole")
	assert.Equal(t, "Payment is due within 30 days of invoice.", segments[0].Text)
	assert.Equal(t, 0, segments[0].Index)
	assert.Equal(t, 0, segments[0].Page)
}

func TestSplitEmptyText(t *testing.T) {
	splitter := NewTextSplitter(DefaultSplitterConfig())

	segments, err := splitter.Split("   \n\n  ")
	require.NoError(t, err)
	assert.Empty(t, segments, "whitespace-only text should produce no chunks")
}

func TestSplitLongText(t *testing.T) {
	splitter := NewTextSplitter(SplitterConfig{ChunkSize: 100, ChunkOverlap: 20})

	sentence := "The party of the first part shall indemnify the party of the second part. "
	text := strings.Repeat(sentence, 20)

	segments, err := splitter.Split(text)
	require.NoError(t, err)
	require.Greater(t, len(segments), 1, "long text should split into multiple chunks")

	for i, segment := range segments {
		assert.LessOrEqual(t, len([]rune(segment.Text)), 100,
			"chunk %d exceeds the configured size", i)
		assert.Equal(t, i, segment.Index, "chunk indexes should be sequential")
		assert.NotEmpty(t, segment.Text)
	}
}

func TestSplitBoundaries(t *testing.T) {
	splitter := NewTextSplitter(SplitterConfig{ChunkSize: 60, ChunkOverlap: 10})

	text := "First paragraph about payment terms.\n\nSecond paragraph about termination rights and notice periods."
	segments, err := splitter.Split(text)
	require.NoError(t, err)
	require.Greater(t, len(segments), 1)

	// Paragraph breaks are preferred boundaries, so the first chunk
	// ends with the first paragraph.
	assert.Equal(t, "First paragraph about payment terms.", segments[0].Text)
}

func TestSplitDeterministic(t *testing.T) {
	splitter := NewTextSplitter(SplitterConfig{ChunkSize: 80, ChunkOverlap: 15})

	sentence := "Confidential information must not be disclosed to third parties. "
	text := strings.Repeat(sentence, 15)

	first, err := splitter.Split(text)
	require.NoError(t, err)

	for run := 0; run < 5; run++ {
		again, err := splitter.Split(text)
		require.NoError(t, err)
		require.Equal(t, first, again, "splitting must be deterministic")
	}
}

func TestSplitPages(t *testing.T) {
	splitter := NewTextSplitter(DefaultSplitterConfig())

	pages := []string{
		"Page one covers definitions.",
		"Page two covers payment terms.",
		"Page three covers termination.",
	}

	segments, err := splitter.SplitPages(pages)
	require.NoError(t, err)
	require.Len(t, segments, 3)

	for i, segment := range segments {
		assert.Equal(t, i+1, segment.Page, "pages are numbered from 1")
		assert.Equal(t, i, segment.Index, "indexes run continuously across pages")
	}
	assert.Contains(t, segments[1].Text, "payment terms")
}

func TestSplitPagesSkipsEmpty(t *testing.T) {
	splitter := NewTextSplitter(DefaultSplitterConfig())

	segments, err := splitter.SplitPages([]string{"Content here.", "", "More content."})
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, 1, segments[0].Page)
	assert.Equal(t, 3, segments[1].Page)
	assert.Equal(t, 1, segments[1].Index)
}

func TestSplitMaxChunks(t *testing.T) {
	splitter := NewTextSplitter(SplitterConfig{ChunkSize: 50, ChunkOverlap: 0, MaxChunks: 2})

	text := strings.Repeat("A clause about obligations and remedies. ", 20)
	segments, err := splitter.Split(text)
	require.NoError(t, err)
	assert.Len(t, segments, 2, "chunk cap should be enforced")
}

func TestSplitterConfigNormalization(t *testing.T) {
	// Invalid settings fall back to workable values.
	splitter := NewTextSplitter(SplitterConfig{ChunkSize: -5, ChunkOverlap: -1})
	segments, err := splitter.Split("Some text.")
	require.NoError(t, err)
	assert.Len(t, segments, 1)

	// Overlap larger than the chunk size would never advance.
	splitter = NewTextSplitter(SplitterConfig{ChunkSize: 10, ChunkOverlap: 50})
	segments, err = splitter.Split(strings.Repeat("word ", 20))
	require.NoError(t, err)
	assert.Greater(t, len(segments), 1)
}

func TestOptimalChunkSize(t *testing.T) {
	assert.Equal(t, 500, OptimalChunkSize(strings.Repeat("a", 100)))
	assert.Equal(t, 1000, OptimalChunkSize(strings.Repeat("a", 10000)))
	assert.Equal(t, 1500, OptimalChunkSize(strings.Repeat("a", 50000)))
	assert.Equal(t, 2000, OptimalChunkSize(strings.Repeat("a", 200000)))
}

package document

import (
	"fmt"
	"strings"
)

// SplitterConfig configures the text splitter.
type SplitterConfig struct {
	ChunkSize    int // maximum chunk size in runes
	ChunkOverlap int // overlap between consecutive chunks in runes
	MaxChunks    int // cap on chunk count, 0 means unlimited
}

// DefaultSplitterConfig returns the default splitter configuration.
func DefaultSplitterConfig() SplitterConfig {
	return SplitterConfig{
		ChunkSize:    1000,
		ChunkOverlap: 200,
		MaxChunks:    0,
	}
}

// separators in descending preference when looking for a chunk boundary.
var boundarySeparators = []string{"\n\n", "\n", ". ", " "}

// TextSplitter splits extracted text into bounded chunks.
// Splitting is fully deterministic: the same text and configuration always
// produce byte-identical chunks, which keeps stored embeddings and citation
// offsets reproducible.
type TextSplitter struct {
	config SplitterConfig
}

// NewTextSplitter creates a new text splitter.
func NewTextSplitter(config SplitterConfig) *TextSplitter {
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultSplitterConfig().ChunkSize
	}
	if config.ChunkOverlap < 0 {
		config.ChunkOverlap = 0
	}
	if config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = config.ChunkSize / 2
	}
	return &TextSplitter{config: config}
}

// Split chunks a single block of text.
func (s *TextSplitter) Split(text string) ([]Content, error) {
	return s.split(text, 0, 0)
}

// SplitPages chunks per-page texts. Page numbers are 1-based and the chunk
// sequence index runs continuously across pages.
func (s *TextSplitter) SplitPages(pages []string) ([]Content, error) {
	var all []Content
	for i, page := range pages {
		contents, err := s.split(page, i+1, len(all))
		if err != nil {
			return nil, err
		}
		all = append(all, contents...)
		if s.config.MaxChunks > 0 && len(all) >= s.config.MaxChunks {
			all = all[:s.config.MaxChunks]
			break
		}
	}
	return all, nil
}

func (s *TextSplitter) split(text string, page int, baseIndex int) ([]Content, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return []Content{}, nil
	}

	runes := []rune(text)
	spans := s.splitSpans(runes)

	var contents []Content
	for _, span := range spans {
		chunk := strings.TrimSpace(string(runes[span[0]:span[1]]))
		if chunk == "" {
			continue
		}
		contents = append(contents, Content{
			Text:   chunk,
			Index:  baseIndex + len(contents),
			Offset: span[0],
			Page:   page,
		})
		if s.config.MaxChunks > 0 && baseIndex+len(contents) >= s.config.MaxChunks {
			break
		}
	}
	return contents, nil
}

// splitSpans computes [start,end) rune windows over the text. Each window is
// at most ChunkSize runes; consecutive windows overlap by ChunkOverlap runes.
// Window ends are pulled back to the nearest natural boundary (paragraph,
// line, sentence, then word) so chunks do not cut words in half.
func (s *TextSplitter) splitSpans(runes []rune) [][2]int {
	size := s.config.ChunkSize
	overlap := s.config.ChunkOverlap

	// Text that fits in one chunk yields exactly one chunk.
	if len(runes) <= size {
		return [][2]int{{0, len(runes)}}
	}

	var spans [][2]int
	start := 0
	for {
		end := start + size
		if end >= len(runes) {
			spans = append(spans, [2]int{start, len(runes)})
			break
		}

		end = s.boundaryBefore(runes, start, end)
		spans = append(spans, [2]int{start, end})

		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return spans
}

// boundaryBefore finds the best break position at or before limit, never at
// or before start. Falls back to the hard limit when no separator is found.
func (s *TextSplitter) boundaryBefore(runes []rune, start, limit int) int {
	window := string(runes[start:limit])
	for _, sep := range boundarySeparators {
		if idx := strings.LastIndex(window, sep); idx > 0 {
			// Break after the separator so it stays with the left chunk.
			return start + len([]rune(window[:idx])) + len([]rune(sep))
		}
	}
	return limit
}

// OptimalChunkSize picks a chunk size from the document length. Short
// documents get finer chunks for precise retrieval, long documents get
// coarser chunks to bound the number of embeddings.
func OptimalChunkSize(text string) int {
	switch n := len([]rune(text)); {
	case n < 5000:
		return 500
	case n < 20000:
		return 1000
	case n < 100000:
		return 1500
	default:
		return 2000
	}
}

// String describes the splitter configuration.
func (s *TextSplitter) String() string {
	return fmt.Sprintf("splitter(size=%d overlap=%d)", s.config.ChunkSize, s.config.ChunkOverlap)
}

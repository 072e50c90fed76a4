package document

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Parser extracts plain text from an uploaded document.
// Implementations exist per file format.
type Parser interface {
	// Parse extracts the full text content of the file at filePath.
	Parse(filePath string) (string, error)

	// ParsePages extracts text per page. Formats without a page concept
	// return a single page containing the whole text.
	ParsePages(filePath string) ([]string, error)

	// ParseReader extracts text from a reader; filename determines the format.
	ParseReader(r io.Reader, filename string) (string, error)
}

// ContentType identifies the document format.
type ContentType string

const (
	PDF       ContentType = "pdf"
	Markdown  ContentType = "markdown"
	PlainText ContentType = "plaintext"
	Unknown   ContentType = "unknown"
)

// ErrUnsupportedType is returned when no parser exists for a file extension.
var ErrUnsupportedType = errors.New("unsupported document type")

// ExtractionError describes a failure to extract text from a document.
// The document is never partially ingested when extraction fails.
type ExtractionError struct {
	Path   string // source file
	Reason string // human-readable reason
	Err    error  // underlying cause, may be nil
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed for %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("extraction failed for %s: %s", e.Path, e.Reason)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// NewExtractionError creates an ExtractionError.
func NewExtractionError(path, reason string, err error) *ExtractionError {
	return &ExtractionError{Path: path, Reason: reason, Err: err}
}

// ParserFactory returns a parser for the given file based on its extension.
func ParserFactory(filePath string) (Parser, error) {
	switch DetectContentType(filePath) {
	case PDF:
		return NewPDFParser(), nil
	case Markdown:
		return NewMarkdownParser(), nil
	case PlainText:
		return NewPlainTextParser(), nil
	default:
		return nil, ErrUnsupportedType
	}
}

// DetectContentType determines the content type from the file extension.
func DetectContentType(filePath string) ContentType {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".pdf":
		return PDF
	case ".md", ".markdown":
		return Markdown
	case ".txt":
		return PlainText
	default:
		return Unknown
	}
}

// Content is a single text chunk produced by the splitter.
type Content struct {
	Text   string // chunk text
	Index  int    // sequence index within the document, starting at 0
	Offset int    // rune offset of the chunk start within its page text
	Page   int    // 1-based page number, 0 when the source has no pages
}

// Splitter turns extracted text into bounded, ordered chunks.
type Splitter interface {
	// Split chunks a single block of text.
	Split(text string) ([]Content, error)

	// SplitPages chunks per-page texts, tagging each chunk with its page.
	SplitPages(pages []string) ([]Content, error)
}

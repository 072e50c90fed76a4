package document

import (
	"io"
	"os"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// MarkdownParser parses Markdown files into plain text.
type MarkdownParser struct{}

// NewMarkdownParser creates a new Markdown parser.
func NewMarkdownParser() Parser {
	return &MarkdownParser{}
}

// Parse extracts the plain text content of a Markdown file.
func (p *MarkdownParser) Parse(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", NewExtractionError(filePath, "failed to open markdown file", err)
	}
	defer file.Close()

	return p.ParseReader(file, filePath)
}

// ParsePages returns the whole document as a single page.
func (p *MarkdownParser) ParsePages(filePath string) ([]string, error) {
	text, err := p.Parse(filePath)
	if err != nil {
		return nil, err
	}
	return []string{text}, nil
}

// ParseReader renders Markdown to HTML and strips the markup.
func (p *MarkdownParser) ParseReader(r io.Reader, filename string) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", NewExtractionError(filename, "failed to read markdown content", err)
	}

	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	mdParser := parser.NewWithExtensions(extensions)
	doc := mdParser.Parse(content)

	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	htmlContent := markdown.Render(doc, renderer)

	return stripHTML(string(htmlContent)), nil
}

// stripHTML converts rendered HTML into readable plain text.
func stripHTML(s string) string {
	replacements := []struct {
		old string
		new string
	}{
		{"<br>", "\n"},
		{"<br/>", "\n"},
		{"<br />", "\n"},
		{"</p>", "\n\n"},
		{"<li>", "- "},
		{"</li>", "\n"},
		{"</h1>", "\n\n"},
		{"</h2>", "\n\n"},
		{"</h3>", "\n\n"},
		{"</h4>", "\n\n"},
		{"</h5>", "\n\n"},
		{"</h6>", "\n\n"},
	}
	for _, r := range replacements {
		s = strings.ReplaceAll(s, r.old, r.new)
	}

	// Drop remaining tags.
	var b strings.Builder
	inTag := false
	for _, ch := range s {
		switch {
		case ch == '<':
			inTag = true
		case ch == '>':
			inTag = false
			b.WriteByte(' ')
		case !inTag:
			b.WriteRune(ch)
		}
	}

	return normalizeWhitespace(b.String())
}

// normalizeWhitespace collapses runs of spaces and surplus blank lines.
func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	text = strings.Join(lines, "\n")
	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(text)
}

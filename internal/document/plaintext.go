package document

import (
	"io"
	"os"
)

// PlainTextParser parses .txt files.
type PlainTextParser struct{}

// NewPlainTextParser creates a new plain text parser.
func NewPlainTextParser() Parser {
	return &PlainTextParser{}
}

// Parse reads the whole file as text.
func (p *PlainTextParser) Parse(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", NewExtractionError(filePath, "failed to open text file", err)
	}
	defer file.Close()

	return p.ParseReader(file, filePath)
}

// ParsePages returns the whole file as a single page.
func (p *PlainTextParser) ParsePages(filePath string) ([]string, error) {
	text, err := p.Parse(filePath)
	if err != nil {
		return nil, err
	}
	return []string{text}, nil
}

// ParseReader reads all text from the reader.
func (p *PlainTextParser) ParseReader(r io.Reader, filename string) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", NewExtractionError(filename, "failed to read text content", err)
	}
	return string(content), nil
}

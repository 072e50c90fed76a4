package document

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFParser extracts text from PDF files using pdfcpu.
type PDFParser struct{}

// NewPDFParser creates a new PDF parser.
func NewPDFParser() Parser {
	return &PDFParser{}
}

// Parse extracts the full text content of a PDF file.
func (p *PDFParser) Parse(filePath string) (string, error) {
	pages, err := p.ParsePages(filePath)
	if err != nil {
		return "", err
	}
	return strings.Join(pages, "\n\n"), nil
}

// ParsePages extracts text from a PDF file, one entry per page, in page order.
func (p *PDFParser) ParsePages(filePath string) ([]string, error) {
	tmpDir, err := os.MkdirTemp("", "pdf_extract_")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	conf := model.NewDefaultConfiguration()

	// Fails on corrupt or password-protected files before anything is kept.
	if err := api.ExtractContentFile(filePath, tmpDir, nil, conf); err != nil {
		reason := "unreadable PDF"
		if strings.Contains(strings.ToLower(err.Error()), "encrypt") ||
			strings.Contains(strings.ToLower(err.Error()), "password") {
			reason = "PDF is encrypted and no password was supplied"
		}
		return nil, NewExtractionError(filePath, reason, err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return nil, NewExtractionError(filePath, "failed to read extracted content", err)
	}

	// pdfcpu writes one text file per page; order them by page number.
	type pageFile struct {
		name string
		page int
	}
	var files []pageFile
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		files = append(files, pageFile{name: e.Name(), page: pageNumberFromName(e.Name())})
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].page != files[j].page {
			return files[i].page < files[j].page
		}
		return files[i].name < files[j].name
	})

	var pages []string
	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(tmpDir, f.name))
		if err != nil {
			continue
		}
		text := strings.TrimSpace(string(data))
		if text != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return nil, NewExtractionError(filePath,
			"no extractable text found, the PDF may contain only scanned images", nil)
	}
	return pages, nil
}

// ParseReader extracts text from a PDF stream by spooling it to a temp file,
// since pdfcpu content extraction operates on files.
func (p *PDFParser) ParseReader(r io.Reader, filename string) (string, error) {
	tmpFile, err := os.CreateTemp("", "pdf_upload_*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := io.Copy(tmpFile, r); err != nil {
		tmpFile.Close()
		return "", NewExtractionError(filename, "failed to buffer upload", err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %v", err)
	}

	text, err := p.Parse(tmpFile.Name())
	if err != nil {
		// Report the original filename, not the spool file.
		if extErr, ok := err.(*ExtractionError); ok {
			return "", NewExtractionError(filename, extErr.Reason, extErr.Err)
		}
		return "", err
	}
	return text, nil
}

// pageNumberFromName pulls the trailing page number out of a pdfcpu
// content file name such as "doc_Content_page_3.txt".
func pageNumberFromName(name string) int {
	base := strings.TrimSuffix(name, ".txt")
	idx := strings.LastIndexByte(base, '_')
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(base[idx+1:])
	if err != nil {
		return 0
	}
	return n
}

package storage

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
)

// ErrFileNotFound means no stored file matches the given ID.
var ErrFileNotFound = errors.New("file not found")

// FileInfo describes a stored file.
type FileInfo struct {
	ID       string // unique identifier
	Name     string // original file name
	Size     int64  // size in bytes
	MimeType string // MIME type
	Path     string // backend-specific storage path
}

// Storage stores uploaded files. Implementations exist for the local
// filesystem and MinIO.
type Storage interface {
	// Save stores the file and returns its info.
	Save(reader io.Reader, filename string) (FileInfo, error)

	// Get returns the file content.
	Get(id string) (io.ReadCloser, error)

	// Delete removes the file.
	Delete(id string) error

	// List returns all stored files.
	List() ([]FileInfo, error)

	// Exists reports whether the file is stored.
	Exists(id string) (bool, error)
}

// getMimeType maps a file extension to its MIME type.
func getMimeType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

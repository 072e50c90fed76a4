package vectordb

import (
	"errors"
	"fmt"
	"time"
)

// sentinel errors
var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrEmptyVector      = errors.New("empty vector")
	ErrInvalidID        = errors.New("invalid document ID")
	ErrInvalidDimension = errors.New("vector dimension mismatch")

	// ErrModelMismatch means the query embedding was produced by a
	// different model than the one the collection was built with.
	// Comparing such vectors yields garbage, so the query is refused.
	ErrModelMismatch = errors.New("embedding model does not match the collection's model")
)

// StoreError wraps a failed store operation with its context.
type StoreError struct {
	Op  string // operation that failed, e.g. "add", "search"
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("vector store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a StoreError.
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

// Document is a stored chunk with its vector and provenance.
type Document struct {
	ID        string                 `json:"id"`         // unique identifier
	FileID    string                 `json:"file_id"`    // owning document ID
	FileName  string                 `json:"file_name"`  // original file name
	Position  int                    `json:"position"`   // chunk index within the document
	Page      int                    `json:"page"`       // 1-based source page, 0 if unknown
	Text      string                 `json:"text"`       // chunk text
	Vector    []float32              `json:"vector"`     // embedding vector
	CreatedAt time.Time              `json:"created_at"` // insertion time
	Metadata  map[string]interface{} `json:"metadata"`   // extra metadata
}

// DistanceType selects the vector distance metric.
type DistanceType string

const (
	// Cosine distance (1 - cosine similarity)
	Cosine DistanceType = "cosine"
	// DotProduct inner product
	DotProduct DistanceType = "dot"
	// Euclidean L2 distance
	Euclidean DistanceType = "l2"
)

// SearchResult is one retrieved document with its score.
type SearchResult struct {
	Document Document // matched document
	Score    float32  // similarity score in [0, 1]
	Distance float32  // raw distance
}

// SearchFilter narrows a similarity search.
type SearchFilter struct {
	FileIDs    []string               // restrict to these documents
	Metadata   map[string]interface{} // metadata equality filters
	MinScore   float32                // drop results scoring below this
	MaxResults int                    // top-K limit
}

// DefaultSearchFilter returns the default filter.
func DefaultSearchFilter() SearchFilter {
	return SearchFilter{
		MinScore:   0.0,
		MaxResults: 3,
	}
}

// Repository is the vector store interface.
type Repository interface {
	// Add stores a single document.
	Add(doc Document) error

	// AddBatch stores multiple documents.
	AddBatch(docs []Document) error

	// Get returns a document by ID.
	Get(id string) (Document, error)

	// Delete removes a document by ID.
	Delete(id string) error

	// DeleteByFileID removes every chunk of a source document.
	DeleteByFileID(fileID string) error

	// DeleteAll removes everything, resetting the collection.
	DeleteAll() error

	// Search runs a similarity search against the query vector.
	Search(vector []float32, filter SearchFilter) ([]SearchResult, error)

	// Count returns the number of stored documents.
	Count() (int, error)

	// GetDimension returns the vector dimensionality.
	GetDimension() int

	// EmbeddingModel returns the model name the collection was built
	// with. Callers must refuse to query with vectors from any other
	// model.
	EmbeddingModel() string

	// Close releases the store, flushing to disk where applicable.
	Close() error
}

// Config holds vector store settings.
type Config struct {
	Type              string       // backend, e.g. "memory", "chromem", "faiss"
	Path              string       // file path or data directory
	Dimension         int          // vector dimensionality
	DistanceType      DistanceType // distance metric
	EmbeddingModel    string       // model name the collection is bound to
	CreateIfNotExists bool         // create the store when missing
	InMemory          bool         // skip persistence
}

// Factory builds a vector store from its configuration.
type Factory func(config Config) (Repository, error)

// RepositoryRegistry holds the registered backends.
var RepositoryRegistry = map[string]Factory{}

// RegisterRepository registers a vector store factory.
func RegisterRepository(name string, factory Factory) {
	RepositoryRegistry[name] = factory
}

// NewRepository creates a vector store from its configuration.
func NewRepository(config Config) (Repository, error) {
	factory, ok := RepositoryRegistry[config.Type]
	if !ok {
		factory = NewMemoryRepository
	}
	return factory(config)
}

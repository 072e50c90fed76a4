package vectordb

import (
	"fmt"
	"sync"
	"time"
)

// MemoryRepository is an in-memory vector store for development and
// tests. Everything is lost when the process exits.
type MemoryRepository struct {
	mu           sync.RWMutex
	dimension    int
	distType     DistanceType
	model        string
	documents    map[string]Document
	fileToDocIDs map[string][]string
}

// NewMemoryRepository creates an in-memory vector store.
func NewMemoryRepository(config Config) (Repository, error) {
	if config.Dimension <= 0 {
		return nil, NewStoreError("open", fmt.Errorf("vector dimension must be positive"))
	}

	distType := config.DistanceType
	if distType != Cosine && distType != DotProduct && distType != Euclidean {
		distType = Cosine
	}

	return &MemoryRepository{
		dimension:    config.Dimension,
		distType:     distType,
		model:        config.EmbeddingModel,
		documents:    make(map[string]Document),
		fileToDocIDs: make(map[string][]string),
	}, nil
}

// Add stores a single document.
func (r *MemoryRepository) Add(doc Document) error {
	if doc.ID == "" {
		return ErrInvalidID
	}
	if err := ValidateVector(doc.Vector, r.dimension); err != nil {
		return err
	}

	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]interface{})
	}
	if r.distType == Cosine {
		doc.Vector = normalizeVector(doc.Vector)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.documents[doc.ID] = doc
	r.fileToDocIDs[doc.FileID] = append(r.fileToDocIDs[doc.FileID], doc.ID)

	return nil
}

// AddBatch stores multiple documents under a single lock.
func (r *MemoryRepository) AddBatch(docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range docs {
		doc := &docs[i]

		if doc.ID == "" {
			return ErrInvalidID
		}
		if err := ValidateVector(doc.Vector, r.dimension); err != nil {
			return fmt.Errorf("invalid vector for document %s: %w", doc.ID, err)
		}

		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = time.Now()
		}
		if doc.Metadata == nil {
			doc.Metadata = make(map[string]interface{})
		}
		if r.distType == Cosine {
			doc.Vector = normalizeVector(doc.Vector)
		}

		r.documents[doc.ID] = *doc
		r.fileToDocIDs[doc.FileID] = append(r.fileToDocIDs[doc.FileID], doc.ID)
	}

	return nil
}

// Get returns a document by ID.
func (r *MemoryRepository) Get(id string) (Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, exists := r.documents[id]
	if !exists {
		return Document{}, ErrDocumentNotFound
	}

	return doc, nil
}

// Delete removes a document by ID.
func (r *MemoryRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, exists := r.documents[id]
	if !exists {
		return ErrDocumentNotFound
	}

	delete(r.documents, id)
	r.removeFromFileIndex(doc.FileID, id)

	return nil
}

// DeleteByFileID removes every chunk of a source document.
// Deleting an unknown file is a no-op.
func (r *MemoryRepository) DeleteByFileID(fileID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	docIDs, exists := r.fileToDocIDs[fileID]
	if !exists {
		return nil
	}

	for _, id := range docIDs {
		delete(r.documents, id)
	}
	delete(r.fileToDocIDs, fileID)

	return nil
}

// DeleteAll resets the collection.
func (r *MemoryRepository) DeleteAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.documents = make(map[string]Document)
	r.fileToDocIDs = make(map[string][]string)

	return nil
}

// Search runs an exact nearest-neighbor scan over the stored vectors.
func (r *MemoryRepository) Search(vector []float32, filter SearchFilter) ([]SearchResult, error) {
	if err := ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}
	if r.distType == Cosine {
		vector = normalizeVector(vector)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	// use the file index when the filter names documents
	var candidates []Document
	if len(filter.FileIDs) > 0 {
		for _, fileID := range filter.FileIDs {
			for _, docID := range r.fileToDocIDs[fileID] {
				doc, exists := r.documents[docID]
				if exists && matchMetadata(doc.Metadata, filter.Metadata) {
					candidates = append(candidates, doc)
				}
			}
		}
	} else {
		candidates = make([]Document, 0, len(r.documents))
		for _, doc := range r.documents {
			if matchMetadata(doc.Metadata, filter.Metadata) {
				candidates = append(candidates, doc)
			}
		}
	}

	if len(candidates) == 0 {
		return []SearchResult{}, nil
	}

	results := make([]SearchResult, 0, len(candidates))
	for _, doc := range candidates {
		dist, err := ComputeDistance(vector, doc.Vector, r.distType)
		if err != nil {
			return nil, NewStoreError("search", err)
		}

		score := DistanceToScore(dist, r.distType)
		if score < filter.MinScore {
			continue
		}

		results = append(results, SearchResult{
			Document: doc,
			Score:    score,
			Distance: dist,
		})
	}

	SortSearchResults(results)

	maxResults := filter.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultSearchFilter().MaxResults
	}
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	return results, nil
}

// Count returns the number of stored documents.
func (r *MemoryRepository) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.documents), nil
}

// GetDimension returns the vector dimensionality.
func (r *MemoryRepository) GetDimension() int {
	return r.dimension
}

// EmbeddingModel returns the model the collection is bound to.
func (r *MemoryRepository) EmbeddingModel() string {
	return r.model
}

// Close is a no-op for the in-memory store.
func (r *MemoryRepository) Close() error {
	return nil
}

// removeFromFileIndex drops one document ID from the file index.
// Caller must hold the write lock.
func (r *MemoryRepository) removeFromFileIndex(fileID, id string) {
	fileIDs, ok := r.fileToDocIDs[fileID]
	if !ok {
		return
	}

	updatedIDs := make([]string, 0, len(fileIDs)-1)
	for _, docID := range fileIDs {
		if docID != id {
			updatedIDs = append(updatedIDs, docID)
		}
	}

	if len(updatedIDs) == 0 {
		delete(r.fileToDocIDs, fileID)
	} else {
		r.fileToDocIDs[fileID] = updatedIDs
	}
}

func init() {
	RegisterRepository("memory", NewMemoryRepository)
}

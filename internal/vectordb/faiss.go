//go:build cgo

package vectordb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/DataIntelligenceCrew/go-faiss"
)

// FaissRepository is a vector store backed by a flat Faiss index with
// a JSON sidecar for document metadata.
type FaissRepository struct {
	mu             sync.RWMutex
	index          faiss.Index
	documents      map[string]Document
	fileToDocIDs   map[string][]string
	idToPosition   map[string]int
	indexPath      string
	metaPath       string
	dimension      int
	distanceType   DistanceType
	model          string
	saveOnClose    bool
	autoSave       bool
	autoSaveCount  int
	operationCount int
}

// faissMetadata is the sidecar file layout.
type faissMetadata struct {
	EmbeddingModel string              `json:"embedding_model"`
	Dimension      int                 `json:"dimension"`
	Documents      map[string]Document `json:"documents"`
	FileToDocIDs   map[string][]string `json:"file_to_doc_ids"`
	IDToPosition   map[string]int      `json:"id_to_position"`
	OperationCount int                 `json:"operation_count"`
}

// NewFaissRepository creates a Faiss-backed vector store.
func NewFaissRepository(config Config) (Repository, error) {
	if config.Dimension <= 0 {
		return nil, NewStoreError("open", fmt.Errorf("vector dimension must be positive"))
	}

	if config.Path != "" && !config.InMemory {
		if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
			return nil, NewStoreError("open", fmt.Errorf("failed to create directory: %w", err))
		}
	}

	distType := config.DistanceType
	if distType == "" {
		distType = Cosine
	}

	indexPath := config.Path
	metaPath := ""
	if indexPath != "" {
		metaPath = indexPath + ".meta.json"
	}

	repo := &FaissRepository{
		documents:     make(map[string]Document),
		fileToDocIDs:  make(map[string][]string),
		idToPosition:  make(map[string]int),
		indexPath:     indexPath,
		metaPath:      metaPath,
		dimension:     config.Dimension,
		distanceType:  distType,
		model:         config.EmbeddingModel,
		saveOnClose:   true,
		autoSave:      true,
		autoSaveCount: 100,
	}

	var index faiss.Index
	var err error

	if indexPath != "" && !config.InMemory && fileExists(indexPath) {
		index, err = faiss.ReadIndex(indexPath, 0)
		if err != nil {
			if config.CreateIfNotExists {
				index, err = createFaissIndex(config.Dimension, distType)
				if err != nil {
					return nil, NewStoreError("open", fmt.Errorf("failed to create index: %w", err))
				}
			} else {
				return nil, NewStoreError("open", fmt.Errorf("failed to read index file: %w", err))
			}
		} else {
			if err := repo.loadMetadata(metaPath); err != nil {
				return nil, NewStoreError("open", err)
			}
			// a persisted index stays bound to the model that built it
			if config.EmbeddingModel != "" && repo.model != "" && repo.model != config.EmbeddingModel {
				return nil, NewStoreError("open", ErrModelMismatch)
			}
			if repo.model == "" {
				repo.model = config.EmbeddingModel
			}
		}
	} else {
		index, err = createFaissIndex(config.Dimension, distType)
		if err != nil {
			return nil, NewStoreError("open", fmt.Errorf("failed to create index: %w", err))
		}
	}

	repo.index = index
	return repo, nil
}

func createFaissIndex(dimension int, distType DistanceType) (faiss.Index, error) {
	var metric int
	switch distType {
	case Cosine, DotProduct:
		metric = faiss.MetricInnerProduct
	case Euclidean:
		metric = faiss.MetricL2
	default:
		metric = faiss.MetricL2
	}
	return faiss.NewIndexFlat(dimension, metric)
}

// Add stores a single document.
func (r *FaissRepository) Add(doc Document) error {
	if doc.ID == "" {
		return ErrInvalidID
	}
	if err := ValidateVector(doc.Vector, r.dimension); err != nil {
		return err
	}
	if r.distanceType == Cosine {
		doc.Vector = normalizeVector(doc.Vector)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]interface{})
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	nextPos := int(r.index.Ntotal())
	if err := r.index.Add(doc.Vector); err != nil {
		return NewStoreError("add", err)
	}

	r.documents[doc.ID] = doc
	r.idToPosition[doc.ID] = nextPos
	r.fileToDocIDs[doc.FileID] = append(r.fileToDocIDs[doc.FileID], doc.ID)
	r.operationCount++

	return r.autoSaveIfNeeded()
}

// AddBatch stores multiple documents.
func (r *FaissRepository) AddBatch(docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	for i := range docs {
		if docs[i].ID == "" {
			return ErrInvalidID
		}
		if err := ValidateVector(docs[i].Vector, r.dimension); err != nil {
			return fmt.Errorf("invalid vector for document %s: %w", docs[i].ID, err)
		}
		if r.distanceType == Cosine {
			docs[i].Vector = normalizeVector(docs[i].Vector)
		}
		if docs[i].CreatedAt.IsZero() {
			docs[i].CreatedAt = time.Now()
		}
		if docs[i].Metadata == nil {
			docs[i].Metadata = make(map[string]interface{})
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	startPos := int(r.index.Ntotal())
	for _, doc := range docs {
		if err := r.index.Add(doc.Vector); err != nil {
			return NewStoreError("add", err)
		}
	}

	for i, doc := range docs {
		r.documents[doc.ID] = doc
		r.idToPosition[doc.ID] = startPos + i
		r.fileToDocIDs[doc.FileID] = append(r.fileToDocIDs[doc.FileID], doc.ID)
	}
	r.operationCount += len(docs)

	return r.autoSaveIfNeeded()
}

// Get returns a document by ID.
func (r *FaissRepository) Get(id string) (Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, exists := r.documents[id]
	if !exists {
		return Document{}, ErrDocumentNotFound
	}
	return doc, nil
}

// Delete removes a document's metadata. The vector stays in the index
// but can no longer be resolved, so it never reaches search results.
func (r *FaissRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, exists := r.documents[id]
	if !exists {
		return ErrDocumentNotFound
	}

	delete(r.documents, id)
	delete(r.idToPosition, id)
	r.removeFromFileIndex(doc.FileID, id)
	r.operationCount++

	return nil
}

// DeleteByFileID removes every chunk of a source document.
func (r *FaissRepository) DeleteByFileID(fileID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	docIDs, exists := r.fileToDocIDs[fileID]
	if !exists {
		return nil
	}

	for _, id := range docIDs {
		delete(r.documents, id)
		delete(r.idToPosition, id)
	}
	delete(r.fileToDocIDs, fileID)
	r.operationCount += len(docIDs)

	return nil
}

// DeleteAll resets the collection with a fresh index.
func (r *FaissRepository) DeleteAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	index, err := createFaissIndex(r.dimension, r.distanceType)
	if err != nil {
		return NewStoreError("clear", err)
	}

	r.index = index
	r.documents = make(map[string]Document)
	r.fileToDocIDs = make(map[string][]string)
	r.idToPosition = make(map[string]int)
	r.operationCount++

	return r.autoSaveIfNeeded()
}

// Search runs a similarity search against the query vector.
func (r *FaissRepository) Search(vector []float32, filter SearchFilter) ([]SearchResult, error) {
	if err := ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}
	if r.distanceType == Cosine {
		vector = normalizeVector(vector)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.documents) == 0 {
		return []SearchResult{}, nil
	}

	k := filter.MaxResults
	if k <= 0 {
		k = DefaultSearchFilter().MaxResults
	}

	// over-fetch to compensate for filters and deleted positions
	queryLimit := k * 4
	total := int(r.index.Ntotal())
	if queryLimit > total {
		queryLimit = total
	}
	if queryLimit == 0 {
		return []SearchResult{}, nil
	}

	distances, indices, err := r.index.Search(vector, int64(queryLimit))
	if err != nil {
		return nil, NewStoreError("search", err)
	}

	positionToID := make(map[int]string, len(r.idToPosition))
	for id, pos := range r.idToPosition {
		positionToID[pos] = id
	}

	var results []SearchResult
	for i := 0; i < len(indices); i++ {
		idx := indices[i]
		if idx < 0 {
			continue
		}

		docID, found := positionToID[int(idx)]
		if !found {
			continue
		}
		doc, exists := r.documents[docID]
		if !exists {
			continue
		}

		if len(filter.FileIDs) > 0 && !containsString(filter.FileIDs, doc.FileID) {
			continue
		}
		if !matchMetadata(doc.Metadata, filter.Metadata) {
			continue
		}

		var score float32
		dist := distances[i]
		if r.distanceType == Cosine {
			// inner product of normalized vectors is the similarity
			score = dist
			if score < 0 {
				score = 0
			}
		} else {
			score = DistanceToScore(dist, r.distanceType)
		}
		if score < filter.MinScore {
			continue
		}

		results = append(results, SearchResult{
			Document: doc,
			Score:    score,
			Distance: dist,
		})
		if len(results) >= k {
			break
		}
	}

	SortSearchResults(results)
	return results, nil
}

// Count returns the number of stored documents.
func (r *FaissRepository) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.documents), nil
}

// GetDimension returns the vector dimensionality.
func (r *FaissRepository) GetDimension() int {
	return r.dimension
}

// EmbeddingModel returns the model the collection is bound to.
func (r *FaissRepository) EmbeddingModel() string {
	return r.model
}

// Close persists the index and metadata.
func (r *FaissRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.saveOnClose && r.indexPath != "" {
		if err := r.saveIndex(); err != nil {
			return NewStoreError("close", err)
		}
	}
	return nil
}

// autoSaveIfNeeded flushes after enough mutations. Caller holds the lock.
func (r *FaissRepository) autoSaveIfNeeded() error {
	if !r.autoSave || r.operationCount < r.autoSaveCount {
		return nil
	}
	if err := r.saveIndex(); err != nil {
		return NewStoreError("save", err)
	}
	r.operationCount = 0
	return nil
}

func (r *FaissRepository) saveIndex() error {
	if r.indexPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.indexPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := faiss.WriteIndex(r.index, r.indexPath); err != nil {
		return fmt.Errorf("failed to write index to file: %w", err)
	}
	return r.saveMetadata()
}

func (r *FaissRepository) saveMetadata() error {
	if r.metaPath == "" {
		return nil
	}

	metadata := faissMetadata{
		EmbeddingModel: r.model,
		Dimension:      r.dimension,
		Documents:      r.documents,
		FileToDocIDs:   r.fileToDocIDs,
		IDToPosition:   r.idToPosition,
		OperationCount: r.operationCount,
	}
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(r.metaPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

func (r *FaissRepository) loadMetadata(path string) error {
	if path == "" || !fileExists(path) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read metadata file: %w", err)
	}

	var metadata faissMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	if metadata.Documents != nil {
		r.documents = metadata.Documents
	}
	if metadata.FileToDocIDs != nil {
		r.fileToDocIDs = metadata.FileToDocIDs
	}
	if metadata.IDToPosition != nil {
		r.idToPosition = metadata.IDToPosition
	}
	r.operationCount = metadata.OperationCount
	r.model = metadata.EmbeddingModel
	if metadata.Dimension > 0 {
		r.dimension = metadata.Dimension
	}
	return nil
}

// removeFromFileIndex drops one document ID from the file index.
// Caller must hold the write lock.
func (r *FaissRepository) removeFromFileIndex(fileID, id string) {
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

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

func init() {
	RegisterRepository("faiss", NewFaissRepository)
}

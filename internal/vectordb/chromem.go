package vectordb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
)

const chromemCollectionName = "documents"

// chromemMeta is the sidecar file that binds a persisted collection to
// its embedding model and dimension.
type chromemMeta struct {
	EmbeddingModel string `json:"embedding_model"`
	Dimension      int    `json:"dimension"`
}

// ChromemRepository is a vector store backed by chromem-go. It
// persists the collection to a data directory, mirroring how a
// standalone ChromaDB instance would hold it.
type ChromemRepository struct {
	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	path       string
	dimension  int
	model      string
}

// NewChromemRepository creates a chromem-backed vector store.
func NewChromemRepository(config Config) (Repository, error) {
	if config.Dimension <= 0 {
		return nil, NewStoreError("open", fmt.Errorf("vector dimension must be positive"))
	}

	var db *chromem.DB
	var err error

	if config.InMemory || config.Path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(config.Path, false)
		if err != nil {
			return nil, NewStoreError("open", err)
		}
	}

	repo := &ChromemRepository{
		db:        db,
		path:      config.Path,
		dimension: config.Dimension,
		model:     config.EmbeddingModel,
	}

	// a persisted collection stays bound to the model that built it
	if meta, ok := repo.loadMeta(); ok {
		if repo.model != "" && meta.EmbeddingModel != repo.model {
			return nil, NewStoreError("open", ErrModelMismatch)
		}
		repo.model = meta.EmbeddingModel
		repo.dimension = meta.Dimension
	}

	collection, err := db.GetOrCreateCollection(chromemCollectionName,
		map[string]string{"embedding_model": repo.model}, nil)
	if err != nil {
		return nil, NewStoreError("open", err)
	}
	repo.collection = collection

	if err := repo.saveMeta(); err != nil {
		return nil, err
	}

	return repo, nil
}

// Add stores a single document.
func (r *ChromemRepository) Add(doc Document) error {
	return r.AddBatch([]Document{doc})
}

// AddBatch stores multiple documents.
func (r *ChromemRepository) AddBatch(docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		if doc.ID == "" {
			return ErrInvalidID
		}
		if err := ValidateVector(doc.Vector, r.dimension); err != nil {
			return fmt.Errorf("invalid vector for document %s: %w", doc.ID, err)
		}
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = time.Now()
		}

		chromemDocs[i] = chromem.Document{
			ID:        doc.ID,
			Content:   doc.Text,
			Embedding: doc.Vector,
			Metadata:  encodeChromemMetadata(doc),
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.collection.AddDocuments(context.Background(), chromemDocs, runtime.NumCPU()); err != nil {
		return NewStoreError("add", err)
	}
	return nil
}

// Get returns a document by ID.
func (r *ChromemRepository) Get(id string) (Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, err := r.collection.GetByID(context.Background(), id)
	if err != nil {
		return Document{}, ErrDocumentNotFound
	}
	return decodeChromemDocument(doc.ID, doc.Content, doc.Embedding, doc.Metadata), nil
}

// Delete removes a document by ID.
func (r *ChromemRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.collection.GetByID(context.Background(), id); err != nil {
		return ErrDocumentNotFound
	}
	if err := r.collection.Delete(context.Background(), nil, nil, id); err != nil {
		return NewStoreError("delete", err)
	}
	return nil
}

// DeleteByFileID removes every chunk of a source document.
func (r *ChromemRepository) DeleteByFileID(fileID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.collection.Delete(context.Background(), map[string]string{"file_id": fileID}, nil)
	if err != nil {
		return NewStoreError("delete", err)
	}
	return nil
}

// DeleteAll drops and recreates the collection.
func (r *ChromemRepository) DeleteAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.db.DeleteCollection(chromemCollectionName); err != nil {
		return NewStoreError("clear", err)
	}

	collection, err := r.db.GetOrCreateCollection(chromemCollectionName,
		map[string]string{"embedding_model": r.model}, nil)
	if err != nil {
		return NewStoreError("clear", err)
	}
	r.collection = collection

	return nil
}

// Search runs a similarity search against the query vector.
func (r *ChromemRepository) Search(vector []float32, filter SearchFilter) ([]SearchResult, error) {
	if err := ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	total := r.collection.Count()
	if total == 0 {
		return []SearchResult{}, nil
	}

	maxResults := filter.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultSearchFilter().MaxResults
	}

	// chromem only takes a single metadata equality as a filter, so
	// file and metadata conditions are applied after the query. When a
	// filter is present the whole collection is ranked so the top-K is
	// still filled.
	nResults := minInt(maxResults*2, total)
	if len(filter.FileIDs) > 0 || len(filter.Metadata) > 0 {
		nResults = total
	}

	opts := chromem.QueryOptions{
		QueryEmbedding: vector,
		NResults:       nResults,
	}

	raw, err := r.collection.QueryWithOptions(context.Background(), opts)
	if err != nil {
		return nil, NewStoreError("search", err)
	}

	results := make([]SearchResult, 0, len(raw))
	for _, res := range raw {
		doc := decodeChromemDocument(res.ID, res.Content, res.Embedding, res.Metadata)

		if len(filter.FileIDs) > 0 && !containsString(filter.FileIDs, doc.FileID) {
			continue
		}
		if !matchMetadata(doc.Metadata, filter.Metadata) {
			continue
		}
		if res.Similarity < filter.MinScore {
			continue
		}

		results = append(results, SearchResult{
			Document: doc,
			Score:    res.Similarity,
			Distance: 1 - res.Similarity,
		})
	}

	SortSearchResults(results)
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	return results, nil
}

// Count returns the number of stored documents.
func (r *ChromemRepository) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collection.Count(), nil
}

// GetDimension returns the vector dimensionality.
func (r *ChromemRepository) GetDimension() int {
	return r.dimension
}

// EmbeddingModel returns the model the collection is bound to.
func (r *ChromemRepository) EmbeddingModel() string {
	return r.model
}

// Close flushes the sidecar metadata. The collection itself persists
// incrementally.
func (r *ChromemRepository) Close() error {
	return r.saveMeta()
}

func (r *ChromemRepository) metaPath() string {
	if r.path == "" {
		return ""
	}
	return filepath.Join(r.path, "collection.meta.json")
}

func (r *ChromemRepository) saveMeta() error {
	path := r.metaPath()
	if path == "" {
		return nil
	}

	data, err := json.MarshalIndent(chromemMeta{
		EmbeddingModel: r.model,
		Dimension:      r.dimension,
	}, "", "  ")
	if err != nil {
		return NewStoreError("save", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return NewStoreError("save", err)
	}
	return nil
}

func (r *ChromemRepository) loadMeta() (chromemMeta, bool) {
	path := r.metaPath()
	if path == "" {
		return chromemMeta{}, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return chromemMeta{}, false
	}

	var meta chromemMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return chromemMeta{}, false
	}
	return meta, true
}

// encodeChromemMetadata flattens provenance into chromem's string map.
func encodeChromemMetadata(doc Document) map[string]string {
	meta := map[string]string{
		"file_id":    doc.FileID,
		"file_name":  doc.FileName,
		"position":   strconv.Itoa(doc.Position),
		"page":       strconv.Itoa(doc.Page),
		"created_at": doc.CreatedAt.Format(time.RFC3339),
	}
	for key, value := range doc.Metadata {
		meta["x_"+key] = fmt.Sprintf("%v", value)
	}
	return meta
}

// decodeChromemDocument rebuilds a Document from chromem fields.
func decodeChromemDocument(id, content string, embedding []float32, meta map[string]string) Document {
	doc := Document{
		ID:       id,
		Text:     content,
		Vector:   embedding,
		Metadata: make(map[string]interface{}),
	}

	for key, value := range meta {
		switch key {
		case "file_id":
			doc.FileID = value
		case "file_name":
			doc.FileName = value
		case "position":
			doc.Position, _ = strconv.Atoi(value)
		case "page":
			doc.Page, _ = strconv.Atoi(value)
		case "created_at":
			doc.CreatedAt, _ = time.Parse(time.RFC3339, value)
		default:
			if len(key) > 2 && key[:2] == "x_" {
				doc.Metadata[key[2:]] = value
			}
		}
	}
	return doc
}

func containsString(list []string, target string) bool {
	for _, item := range list {
		if item == target {
			return true
		}
	}
	return false
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func init() {
	RegisterRepository("chromem", NewChromemRepository)
}

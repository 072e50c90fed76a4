package services

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lexidoc/legal-doc-analyzer/internal/cache"
	"github.com/lexidoc/legal-doc-analyzer/internal/document"
	"github.com/lexidoc/legal-doc-analyzer/internal/llm"
	"github.com/lexidoc/legal-doc-analyzer/internal/models"
	"github.com/lexidoc/legal-doc-analyzer/internal/repository"
	"github.com/lexidoc/legal-doc-analyzer/internal/vectordb"
	"github.com/lexidoc/legal-doc-analyzer/pkg/storage"
)

// keywordEmbedder produces deterministic vectors from keyword presence
// so retrieval tests behave predictably without a real model.
type keywordEmbedder struct {
	name  string
	calls int
}

var embedderKeywords = []string{"payment", "termination", "confidential", "liability"}

func (m *keywordEmbedder) Name() string {
	if m.name != "" {
		return m.name
	}
	return "test-embedder"
}

func (m *keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	lower := strings.ToLower(text)
	vector := make([]float32, len(embedderKeywords)+1)
	for i, kw := range embedderKeywords {
		if strings.Contains(lower, kw) {
			vector[i] = 1
		}
	}
	// Constant component keeps vectors non-zero for arbitrary text.
	vector[len(embedderKeywords)] = 0.1
	return vector, nil
}

func (m *keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vector
	}
	return vectors, nil
}

// countingLLM returns a canned answer and records how often it was called.
type countingLLM struct {
	answer     string
	calls      int
	lastPrompt string
}

func (m *countingLLM) Name() string { return "test-llm" }

func (m *countingLLM) Generate(ctx context.Context, prompt string, options ...llm.GenerateOption) (*llm.Response, error) {
	m.calls++
	m.lastPrompt = prompt
	return &llm.Response{Text: m.answer, ModelName: m.Name(), FinishTime: time.Now()}, nil
}

func (m *countingLLM) Chat(ctx context.Context, messages []llm.Message, options ...llm.ChatOption) (*llm.Response, error) {
	m.calls++
	return &llm.Response{Text: m.answer, ModelName: m.Name(), FinishTime: time.Now()}, nil
}

// testEnv bundles the service dependencies backed by in-memory and
// temp-dir implementations.
type testEnv struct {
	storage  storage.Storage
	repo     repository.DocumentRepository
	vectorDB vectordb.Repository
	embedder *keywordEmbedder
	cache    cache.Cache
	status   *DocumentStatusManager
	service  *DocumentService
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := storage.NewLocalStorage(storage.LocalConfig{Path: t.TempDir()})
	require.NoError(t, err, "should create local storage")

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "should open test database")
	require.NoError(t, db.AutoMigrate(&models.Document{}, &models.DocumentSegment{}))
	repo := repository.NewDocumentRepositoryWithDB(db)

	embedder := &keywordEmbedder{}
	vectorDB, err := vectordb.NewRepository(vectordb.Config{
		Type:           "memory",
		Dimension:      len(embedderKeywords) + 1,
		DistanceType:   vectordb.Cosine,
		EmbeddingModel: embedder.Name(),
	})
	require.NoError(t, err, "should create memory vector store")

	answerCache, err := cache.NewMemoryCache(cache.DefaultConfig())
	require.NoError(t, err, "should create memory cache")

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	status := NewDocumentStatusManager(repo, log)
	splitter := document.NewTextSplitter(document.DefaultSplitterConfig())

	service := NewDocumentService(
		store,
		splitter,
		embedder,
		vectorDB,
		WithDocumentRepository(repo),
		WithStatusManager(status),
		WithLogger(log),
		WithBatchSize(4),
	)

	return &testEnv{
		storage:  store,
		repo:     repo,
		vectorDB: vectorDB,
		embedder: embedder,
		cache:    answerCache,
		status:   status,
		service:  service,
	}
}

const testContractText = `CONTRACT FOR SERVICES

Payment is due within 30 days of invoice. Late payments accrue interest
at a rate of 1.5% per month.

Either party may terminate this agreement with 60 days written notice.
Termination does not relieve the client of payment obligations.

Both parties agree to keep all confidential information secret for a
period of five years after termination.`

// ingestTestContract uploads and processes a plain text contract,
// returning its document ID.
func ingestTestContract(t *testing.T, env *testEnv) string {
	t.Helper()

	ctx := context.Background()
	fileID, err := env.service.UploadDocument(ctx, strings.NewReader(testContractText), "contract.txt")
	require.NoError(t, err, "upload should succeed")

	doc, err := env.repo.GetByID(fileID)
	require.NoError(t, err)

	require.NoError(t, env.service.ProcessDocument(ctx, fileID, doc.FilePath), "processing should succeed")
	return fileID
}

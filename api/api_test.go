package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lexidoc/legal-doc-analyzer/api/handler"
	"github.com/lexidoc/legal-doc-analyzer/api/model"
	"github.com/lexidoc/legal-doc-analyzer/internal/cache"
	"github.com/lexidoc/legal-doc-analyzer/internal/document"
	"github.com/lexidoc/legal-doc-analyzer/internal/llm"
	"github.com/lexidoc/legal-doc-analyzer/internal/models"
	"github.com/lexidoc/legal-doc-analyzer/internal/repository"
	"github.com/lexidoc/legal-doc-analyzer/internal/services"
	"github.com/lexidoc/legal-doc-analyzer/internal/vectordb"
	"github.com/lexidoc/legal-doc-analyzer/pkg/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var apiTestKeywords = []string{"payment", "termination", "confidential", "liability"}

// flagEmbedder builds deterministic keyword-presence vectors so retrieval
// behaves predictably without a real embedding model.
type flagEmbedder struct{}

func (flagEmbedder) Name() string { return "test-embedder" }

func (flagEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	vector := make([]float32, len(apiTestKeywords)+1)
	for i, kw := range apiTestKeywords {
		if strings.Contains(lower, kw) {
			vector[i] = 1
		}
	}
	vector[len(apiTestKeywords)] = 0.1
	return vector, nil
}

func (e flagEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vector
	}
	return vectors, nil
}

// cannedLLM answers every prompt with a fixed string.
type cannedLLM struct {
	answer string
}

func (cannedLLM) Name() string { return "test-llm" }

func (m cannedLLM) Generate(ctx context.Context, prompt string, options ...llm.GenerateOption) (*llm.Response, error) {
	return &llm.Response{Text: m.answer, ModelName: "test-llm", FinishTime: time.Now()}, nil
}

func (m cannedLLM) Chat(ctx context.Context, messages []llm.Message, options ...llm.ChatOption) (*llm.Response, error) {
	return &llm.Response{Text: m.answer, ModelName: "test-llm", FinishTime: time.Now()}, nil
}

const apiTestContract = `CONTRACT FOR SERVICES

Payment is due within 30 days of invoice. Late payments accrue interest
at a rate of 1.5% per month.

Either party may terminate this agreement with 60 days written notice.
Termination does not relieve the client of payment obligations.

Both parties agree to keep all confidential information secret for a
period of five years after termination.`

type testServer struct {
	router *gin.Engine
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := storage.NewLocalStorage(storage.LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "api_test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Document{}, &models.DocumentSegment{}))
	repo := repository.NewDocumentRepositoryWithDB(db)

	embedder := flagEmbedder{}
	vectorDB, err := vectordb.NewRepository(vectordb.Config{
		Type:           "memory",
		Dimension:      len(apiTestKeywords) + 1,
		DistanceType:   vectordb.Cosine,
		EmbeddingModel: embedder.Name(),
	})
	require.NoError(t, err)

	answerCache, err := cache.NewMemoryCache(cache.DefaultConfig())
	require.NoError(t, err)

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	status := services.NewDocumentStatusManager(repo, log)
	splitter := document.NewTextSplitter(document.DefaultSplitterConfig())

	docService := services.NewDocumentService(
		store,
		splitter,
		embedder,
		vectorDB,
		services.WithDocumentRepository(repo),
		services.WithStatusManager(status),
		services.WithLogger(log),
		services.WithBatchSize(4),
	)

	rag := llm.NewRAG(cannedLLM{answer: "Payment is due within 30 days of invoice."})
	qaService := services.NewQAService(embedder, vectorDB, rag, answerCache,
		services.WithQALogger(log))
	analysisService := services.NewAnalysisService(embedder, vectorDB, rag, repo, answerCache,
		services.WithAnalysisLogger(log))

	docHandler := handler.NewDocumentHandler(docService, qaService)
	qaHandler := handler.NewQAHandler(qaService)
	analysisHandler := handler.NewAnalysisHandler(analysisService)

	return &testServer{
		router: SetupRouter(docHandler, qaHandler, analysisHandler),
	}
}

func (s *testServer) do(t *testing.T, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) doJSON(t *testing.T, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()

	body := &bytes.Buffer{}
	if payload != nil {
		require.NoError(t, json.NewEncoder(body).Encode(payload))
	}
	return s.do(t, method, path, body, "application/json")
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) model.Response {
	t.Helper()

	var envelope struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
		TraceID string          `json:"trace_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope), "response should be valid JSON")

	if out != nil && len(envelope.Data) > 0 {
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}
	return model.Response{Code: envelope.Code, Message: envelope.Message, TraceID: envelope.TraceID}
}

// uploadContract posts a plain text contract and waits for its pipeline
// to finish, returning the document ID.
func uploadContract(t *testing.T, srv *testServer, filename string, content string) string {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	rec := srv.do(t, http.MethodPost, "/api/documents", body, writer.FormDataContentType())
	require.Equal(t, http.StatusOK, rec.Code, "upload should succeed: %s", rec.Body.String())

	var uploaded model.DocumentUploadResponse
	decodeData(t, rec, &uploaded)
	require.NotEmpty(t, uploaded.FileID)

	waitForCompletion(t, srv, uploaded.FileID)
	return uploaded.FileID
}

func waitForCompletion(t *testing.T, srv *testServer, fileID string) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec := srv.do(t, http.MethodGet, "/api/documents/"+fileID+"/status", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var status model.DocumentStatusResponse
		decodeData(t, rec, &status)
		switch status.Status {
		case string(models.DocStatusCompleted):
			return
		case string(models.DocStatusFailed):
			t.Fatalf("processing failed: %s", status.Error)
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("document processing did not complete in time")
}

func TestHealthEndpoint(t *testing.T) {
	srv := setupTestServer(t)

	rec := srv.do(t, http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var data map[string]string
	envelope := decodeData(t, rec, &data)
	assert.Equal(t, "ok", data["status"])
	assert.NotEmpty(t, envelope.TraceID, "responses should carry a trace ID")
}

func TestUploadAndStatus(t *testing.T) {
	srv := setupTestServer(t)

	fileID := uploadContract(t, srv, "contract.txt", apiTestContract)

	rec := srv.do(t, http.MethodGet, "/api/documents/"+fileID+"/status", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status model.DocumentStatusResponse
	decodeData(t, rec, &status)
	assert.Equal(t, fileID, status.FileID)
	assert.Equal(t, "contract.txt", status.FileName)
	assert.Equal(t, string(models.DocStatusCompleted), status.Status)
	assert.Equal(t, 100, status.Progress)
	assert.Greater(t, status.Segments, 0, "completed document should have chunks")
}

func TestUploadUnsupportedType(t *testing.T) {
	srv := setupTestServer(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "photo.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("not a document"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	rec := srv.do(t, http.MethodPost, "/api/documents", body, writer.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadMissingFile(t *testing.T) {
	srv := setupTestServer(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("tags", "contract"))
	require.NoError(t, writer.Close())

	rec := srv.do(t, http.MethodPost, "/api/documents", body, writer.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadInvalidTags(t *testing.T) {
	srv := setupTestServer(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "contract.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte(apiTestContract))
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("tags", "not a,valid tag!"))
	require.NoError(t, writer.Close())

	rec := srv.do(t, http.MethodPost, "/api/documents", body, writer.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusUnknownDocument(t *testing.T) {
	srv := setupTestServer(t)

	rec := srv.do(t, http.MethodGet, "/api/documents/no-such-id/status", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListDocuments(t *testing.T) {
	srv := setupTestServer(t)

	fileID := uploadContract(t, srv, "contract.txt", apiTestContract)

	rec := srv.do(t, http.MethodGet, "/api/documents?page=1&page_size=10", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list model.DocumentListResponse
	decodeData(t, rec, &list)
	require.Equal(t, int64(1), list.Total)
	require.Len(t, list.Documents, 1)
	assert.Equal(t, fileID, list.Documents[0].FileID)
	assert.Equal(t, "contract.txt", list.Documents[0].FileName)
}

func TestQuestionAnswering(t *testing.T) {
	srv := setupTestServer(t)

	uploadContract(t, srv, "contract.txt", apiTestContract)

	rec := srv.doJSON(t, http.MethodPost, "/api/qa", map[string]string{
		"question": "What are the payment terms?",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var answer model.QAResponse
	decodeData(t, rec, &answer)
	assert.Contains(t, answer.Answer, "30 days")
	require.NotEmpty(t, answer.Sources, "answer should cite sources")
	assert.Equal(t, "contract.txt", answer.Sources[0].FileName)
}

func TestQuestionWithFileScope(t *testing.T) {
	srv := setupTestServer(t)

	contractID := uploadContract(t, srv, "contract.txt", apiTestContract)

	rec := srv.doJSON(t, http.MethodPost, "/api/qa", map[string]string{
		"question": "What are the payment terms?",
		"file_id":  contractID,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var answer model.QAResponse
	decodeData(t, rec, &answer)
	require.NotEmpty(t, answer.Sources)
	for _, src := range answer.Sources {
		assert.Equal(t, contractID, src.FileID)
	}
}

func TestQuestionTopK(t *testing.T) {
	srv := setupTestServer(t)

	uploadContract(t, srv, "first.txt", apiTestContract)
	uploadContract(t, srv, "second.txt", apiTestContract)

	rec := srv.doJSON(t, http.MethodPost, "/api/qa", map[string]interface{}{
		"question": "What are the payment terms?",
		"top_k":    1,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var answer model.QAResponse
	decodeData(t, rec, &answer)
	assert.Len(t, answer.Sources, 1, "top_k should cap the cited sources")
}

func TestQuestionValidation(t *testing.T) {
	srv := setupTestServer(t)

	rec := srv.doJSON(t, http.MethodPost, "/api/qa", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuestionWithoutDocuments(t *testing.T) {
	srv := setupTestServer(t)

	rec := srv.doJSON(t, http.MethodPost, "/api/qa", map[string]string{
		"question": "What is the weather like today?",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var answer model.QAResponse
	decodeData(t, rec, &answer)
	assert.True(t, llm.NoAnswerText(answer.Answer), "empty index should yield the refusal answer")
	assert.Empty(t, answer.Sources)
}

func TestClauseExtraction(t *testing.T) {
	srv := setupTestServer(t)

	fileID := uploadContract(t, srv, "contract.txt", apiTestContract)

	rec := srv.do(t, http.MethodGet, "/api/documents/"+fileID+"/clauses", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var clauses model.ClauseResponse
	decodeData(t, rec, &clauses)
	assert.Equal(t, fileID, clauses.FileID)
	require.Len(t, clauses.Clauses, len(services.DefaultClauseTopics))

	byTopic := make(map[string]model.ClauseInfo, len(clauses.Clauses))
	for _, clause := range clauses.Clauses {
		byTopic[clause.Topic] = clause
	}
	assert.True(t, byTopic["payment terms"].Found, "payment clause should be found")
	assert.NotEmpty(t, byTopic["payment terms"].Sources)
	assert.False(t, byTopic["dispute resolution"].Found, "absent clause should not be found")
}

func TestClauseExtractionCustomTopics(t *testing.T) {
	srv := setupTestServer(t)

	fileID := uploadContract(t, srv, "contract.txt", apiTestContract)

	path := fmt.Sprintf("/api/documents/%s/clauses?topics=payment+terms&topics=termination+clause", fileID)
	rec := srv.do(t, http.MethodGet, path, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var clauses model.ClauseResponse
	decodeData(t, rec, &clauses)
	require.Len(t, clauses.Clauses, 2)
	assert.Equal(t, "payment terms", clauses.Clauses[0].Topic)
	assert.Equal(t, "termination clause", clauses.Clauses[1].Topic)
}

func TestClauseExtractionUnknownDocument(t *testing.T) {
	srv := setupTestServer(t)

	rec := srv.do(t, http.MethodGet, "/api/documents/no-such-id/clauses", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSummary(t *testing.T) {
	srv := setupTestServer(t)

	fileID := uploadContract(t, srv, "contract.txt", apiTestContract)

	rec := srv.do(t, http.MethodGet, "/api/documents/"+fileID+"/summary", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary model.SummaryResponse
	decodeData(t, rec, &summary)
	assert.Equal(t, fileID, summary.FileID)
	assert.NotEmpty(t, summary.Summary)
}

func TestSummaryUnknownDocument(t *testing.T) {
	srv := setupTestServer(t)

	rec := srv.do(t, http.MethodGet, "/api/documents/no-such-id/summary", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteDocument(t *testing.T) {
	srv := setupTestServer(t)

	fileID := uploadContract(t, srv, "contract.txt", apiTestContract)

	rec := srv.do(t, http.MethodDelete, "/api/documents/"+fileID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var deleted model.DocumentDeleteResponse
	decodeData(t, rec, &deleted)
	assert.True(t, deleted.Success)
	assert.Equal(t, fileID, deleted.FileID)

	rec = srv.do(t, http.MethodGet, "/api/documents/"+fileID+"/status", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, http.MethodDelete, "/api/documents/"+fileID, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "second delete should report missing document")
}

func TestClearDocuments(t *testing.T) {
	srv := setupTestServer(t)

	uploadContract(t, srv, "contract.txt", apiTestContract)

	rec := srv.do(t, http.MethodDelete, "/api/documents", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var cleared model.ClearResponse
	decodeData(t, rec, &cleared)
	assert.True(t, cleared.Success)

	rec = srv.do(t, http.MethodGet, "/api/documents", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list model.DocumentListResponse
	decodeData(t, rec, &list)
	assert.Equal(t, int64(0), list.Total)
	assert.Empty(t, list.Documents)

	rec = srv.doJSON(t, http.MethodPost, "/api/qa", map[string]string{
		"question": "What are the payment terms?",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var answer model.QAResponse
	decodeData(t, rec, &answer)
	assert.True(t, llm.NoAnswerText(answer.Answer), "cleared index should yield the refusal answer")
}

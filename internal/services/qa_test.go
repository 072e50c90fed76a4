package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexidoc/legal-doc-analyzer/internal/llm"
	"github.com/lexidoc/legal-doc-analyzer/internal/vectordb"
)

func setupQAService(t *testing.T, env *testEnv, client *countingLLM) *QAService {
	t.Helper()

	rag := llm.NewRAG(client)
	return NewQAService(
		env.embedder,
		env.vectorDB,
		rag,
		env.cache,
		WithMinScore(0.3),
		WithSearchLimit(3),
	)
}

func TestAnswerWithRelevantDocument(t *testing.T) {
	env := setupTestEnv(t)
	ingestTestContract(t, env)

	client := &countingLLM{answer: "Payment is due within 30 days of invoice (contract.txt)."}
	qa := setupQAService(t, env, client)

	response, err := qa.Answer(context.Background(), "When is payment due?")
	require.NoError(t, err)
	assert.Contains(t, response.Answer, "30 days")
	assert.NotEmpty(t, response.Sources, "answer should cite its sources")
	assert.Equal(t, "contract.txt", response.Sources[0].FileName)
	assert.Contains(t, client.lastPrompt, "Payment is due within 30 days",
		"retrieved chunk should appear in the prompt")
}

func TestAnswerBeforeIngest(t *testing.T) {
	env := setupTestEnv(t)

	client := &countingLLM{answer: "should never be used"}
	qa := setupQAService(t, env, client)

	response, err := qa.Answer(context.Background(), "When is payment due?")
	require.NoError(t, err)
	assert.True(t, llm.NoAnswerText(response.Answer), "empty store should yield the refusal")
	assert.Empty(t, response.Sources)
	assert.Zero(t, client.calls, "generator should not run without context")
}

func TestAnswerIrrelevantQuestion(t *testing.T) {
	env := setupTestEnv(t)
	ingestTestContract(t, env)

	client := &countingLLM{answer: "should never be used"}
	qa := setupQAService(t, env, client)

	response, err := qa.Answer(context.Background(), "What is the weather like today?")
	require.NoError(t, err)
	assert.True(t, llm.NoAnswerText(response.Answer), "off-topic question should yield the refusal")
	assert.Zero(t, client.calls)
}

func TestAnswerEmptyQuestion(t *testing.T) {
	env := setupTestEnv(t)

	qa := setupQAService(t, env, &countingLLM{answer: "x"})

	_, err := qa.Answer(context.Background(), "")
	assert.Error(t, err)
}

func TestAnswerCached(t *testing.T) {
	env := setupTestEnv(t)
	ingestTestContract(t, env)

	client := &countingLLM{answer: "Payment is due within 30 days."}
	qa := setupQAService(t, env, client)

	ctx := context.Background()
	first, err := qa.Answer(ctx, "When is payment due?")
	require.NoError(t, err)
	assert.Equal(t, 1, client.calls)

	second, err := qa.Answer(ctx, "When is payment due?")
	require.NoError(t, err)
	assert.Equal(t, 1, client.calls, "repeat question should hit the cache")
	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, first.Sources, second.Sources)
}

func TestAnswerWithFileScoping(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	contractID := ingestTestContract(t, env)

	// Second document without payment language.
	otherID, err := env.service.UploadDocument(ctx,
		strings.NewReader("This memo covers office relocation logistics and parking."), "memo.txt")
	require.NoError(t, err)
	otherDoc, err := env.repo.GetByID(otherID)
	require.NoError(t, err)
	require.NoError(t, env.service.ProcessDocument(ctx, otherID, otherDoc.FilePath))

	client := &countingLLM{answer: "Payment is due within 30 days."}
	qa := setupQAService(t, env, client)

	// Scoped to the contract the question finds its answer.
	response, err := qa.AnswerWithFile(ctx, "When is payment due?", contractID)
	require.NoError(t, err)
	assert.False(t, llm.NoAnswerText(response.Answer))
	for _, source := range response.Sources {
		assert.Equal(t, contractID, source.FileID, "sources should come from the requested file only")
	}

	// Scoped to the memo there is nothing to ground an answer in.
	response, err = qa.AnswerWithFile(ctx, "When is payment due?", otherID)
	require.NoError(t, err)
	assert.True(t, llm.NoAnswerText(response.Answer))
}

func TestAnswerTopK(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	// Three small documents that all match a payment question.
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		fileID, err := env.service.UploadDocument(ctx,
			strings.NewReader("Payment is due within 30 days of invoice."), name)
		require.NoError(t, err)
		doc, err := env.repo.GetByID(fileID)
		require.NoError(t, err)
		require.NoError(t, env.service.ProcessDocument(ctx, fileID, doc.FilePath))
	}

	client := &countingLLM{answer: "Payment is due within 30 days."}
	qa := setupQAService(t, env, client)

	response, err := qa.Ask(ctx, "When is payment due?", "", 0)
	require.NoError(t, err)
	assert.Len(t, response.Sources, 3, "default limit should admit all matching chunks")

	response, err = qa.Ask(ctx, "When is payment due?", "", 1)
	require.NoError(t, err)
	assert.Len(t, response.Sources, 1, "custom limit should cap retrieval")
}

func TestAnswerModelMismatch(t *testing.T) {
	env := setupTestEnv(t)
	ingestTestContract(t, env)

	client := &countingLLM{answer: "x"}
	rag := llm.NewRAG(client)

	// A QA service configured with a different embedding model must
	// refuse to query the collection.
	wrongEmbedder := &keywordEmbedder{name: "other-model"}
	qa := NewQAService(wrongEmbedder, env.vectorDB, rag, env.cache)

	_, err := qa.Answer(context.Background(), "When is payment due?")
	assert.ErrorIs(t, err, vectordb.ErrModelMismatch)
	assert.Zero(t, client.calls)
}

func TestClearCache(t *testing.T) {
	env := setupTestEnv(t)
	ingestTestContract(t, env)

	client := &countingLLM{answer: "Payment is due within 30 days."}
	qa := setupQAService(t, env, client)

	ctx := context.Background()
	_, err := qa.Answer(ctx, "When is payment due?")
	require.NoError(t, err)

	require.NoError(t, qa.ClearCache())

	_, err = qa.Answer(ctx, "When is payment due?")
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls, "cleared cache should force regeneration")
}

package llm

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLLMClient records the last prompt and returns a canned answer
type mockLLMClient struct {
	answer     string
	lastPrompt string
}

func (m *mockLLMClient) Name() string { return "mock-model" }

func (m *mockLLMClient) Generate(ctx context.Context, prompt string, options ...GenerateOption) (*Response, error) {
	m.lastPrompt = prompt
	return &Response{
		Text:       m.answer,
		ModelName:  m.Name(),
		FinishTime: time.Now(),
	}, nil
}

func (m *mockLLMClient) Chat(ctx context.Context, messages []Message, options ...ChatOption) (*Response, error) {
	if len(messages) > 0 {
		m.lastPrompt = messages[len(messages)-1].Content
	}
	return &Response{
		Text:       m.answer,
		ModelName:  m.Name(),
		FinishTime: time.Now(),
	}, nil
}

func testPassages() []Passage {
	return []Passage{
		{
			ID:       "chunk-1",
			FileID:   "doc-1",
			FileName: "contract.pdf",
			Page:     2,
			Text:     "Payment is due within 30 days of invoice.",
			Score:    0.92,
		},
		{
			ID:       "chunk-2",
			FileID:   "doc-1",
			FileName: "contract.pdf",
			Page:     5,
			Text:     "Either party may terminate with 60 days written notice.",
			Score:    0.71,
		},
	}
}

func TestRAGAnswer(t *testing.T) {
	mock := &mockLLMClient{answer: "Payment is due within 30 days (contract.pdf, p. 2)."}
	rag := NewRAG(mock)

	resp, err := rag.Answer(context.Background(), "When is payment due?", testPassages())
	require.NoError(t, err, "Should generate answer without error")

	assert.Contains(t, resp.Answer, "30 days")
	require.Len(t, resp.Sources, 2, "Should attach all passages as sources")
	assert.Equal(t, "contract.pdf", resp.Sources[0].FileName)
	assert.Equal(t, 2, resp.Sources[0].Page)
	assert.Equal(t, float32(0.92), resp.Sources[0].Score)

	// the prompt should carry the question and provenance-tagged context
	assert.Contains(t, mock.lastPrompt, "When is payment due?")
	assert.Contains(t, mock.lastPrompt, "(contract.pdf, p. 2)")
	assert.Contains(t, mock.lastPrompt, "Payment is due within 30 days of invoice.")
}

func TestRAGAnswerEmptyQuestion(t *testing.T) {
	rag := NewRAG(&mockLLMClient{answer: "whatever"})

	_, err := rag.Answer(context.Background(), "", testPassages())
	require.Error(t, err, "Should reject empty question")

	var llmErr LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrCodeEmptyPrompt, llmErr.Code)
}

func TestRAGAnswerWithoutSources(t *testing.T) {
	mock := &mockLLMClient{answer: "answer"}
	rag := NewRAG(mock, WithSources(false))

	resp, err := rag.Answer(context.Background(), "question", testPassages())
	require.NoError(t, err)
	assert.Empty(t, resp.Sources, "Should not attach sources when disabled")
}

func TestRAGExtractClause(t *testing.T) {
	mock := &mockLLMClient{answer: "\"Payment is due within 30 days of invoice.\" (contract.pdf, p. 2)"}
	rag := NewRAG(mock)

	resp, err := rag.ExtractClause(context.Background(), "payment terms", testPassages())
	require.NoError(t, err, "Should extract clause without error")

	assert.Contains(t, mock.lastPrompt, "payment terms", "Prompt should name the clause topic")
	assert.Contains(t, resp.Answer, "30 days")

	_, err = rag.ExtractClause(context.Background(), "", testPassages())
	require.Error(t, err, "Should reject empty topic")
}

func TestRAGSummarize(t *testing.T) {
	mock := &mockLLMClient{answer: "The contract covers payment and termination terms."}
	rag := NewRAG(mock)

	resp, err := rag.Summarize(context.Background(), testPassages())
	require.NoError(t, err, "Should summarize without error")
	assert.Contains(t, resp.Answer, "contract")
	assert.Contains(t, mock.lastPrompt, "summary", "Prompt should ask for a summary")
}

func TestRAGSummarizeNoPassages(t *testing.T) {
	rag := NewRAG(&mockLLMClient{answer: "unused"})

	resp, err := rag.Summarize(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, NoAnswerText(resp.Answer), "Should refuse when there is nothing to summarize")
}

func TestNoAnswerText(t *testing.T) {
	assert.True(t, NoAnswerText("No relevant information found"))
	assert.True(t, NoAnswerText("no relevant information found."))
	assert.False(t, NoAnswerText("Payment is due within 30 days."))
}

func TestRenderTemplate(t *testing.T) {
	out := renderTemplate("Q: {{.Question}} C: {{.Context}}", map[string]string{
		"Question": "when?",
		"Context":  "now",
	})
	assert.Equal(t, "Q: when? C: now", out)
	assert.False(t, strings.Contains(out, "{{"), "All placeholders should be substituted")
}

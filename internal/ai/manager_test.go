package ai

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type scriptedChatter struct {
	reply     string
	gotSystem string
	gotMsgs   []Message
}

func (c *scriptedChatter) Chat(ctx context.Context, system string, msgs []Message) (string, error) {
	c.gotSystem = system
	c.gotMsgs = msgs
	return c.reply, nil
}

func (c *scriptedChatter) ChatStream(ctx context.Context, system string, msgs []Message, onChunk ChunkFunc) (string, error) {
	c.gotSystem = system
	c.gotMsgs = msgs
	if err := onChunk(c.reply); err != nil {
		return "", err
	}
	return c.reply, nil
}

type countingEmbedder struct {
	calls      int
	batchSizes []int
}

func (e *countingEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	e.calls++
	e.batchSizes = append(e.batchSizes, len(texts))
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(e.calls)}
	}
	return out, nil
}

func (e *countingEmbedder) ModelName() string { return "counting" }

func TestBuildAnswerSystemFormat(t *testing.T) {
	long := strings.Repeat("x", 1500)
	system := buildAnswerSystem([]ContextDoc{
		{Title: "first", Content: "alpha"},
		{Title: "second", Content: long},
	})
	require.True(t, strings.HasPrefix(system, ragSystemPrompt))
	require.Contains(t, system, "Relevant context from user's documents:\n")
	require.Contains(t, system, "[1] first:\nalpha")
	require.Contains(t, system, "[2] second:\n"+long[:contextSnippetLimit])
	require.NotContains(t, system, long)
}

func TestBuildAnswerSystemNoDocs(t *testing.T) {
	require.Equal(t, ragSystemPrompt, buildAnswerSystem(nil))
}

func TestAnswerAppendsQuestionAfterHistory(t *testing.T) {
	chatter := &scriptedChatter{reply: "sure"}
	m := NewManager(chatter, nil, ManagerConfig{})

	history := []Message{
		{Role: RoleUser, Content: "earlier"},
		{Role: RoleAssistant, Content: "reply"},
	}
	answer, err := m.Answer(context.Background(), "now?", []ContextDoc{{Title: "t", Content: "c"}}, history)
	require.NoError(t, err)
	require.Equal(t, "sure", answer)
	require.Len(t, chatter.gotMsgs, 3)
	require.Equal(t, Message{Role: RoleUser, Content: "now?"}, chatter.gotMsgs[2])
	require.Contains(t, chatter.gotSystem, "[1] t:")
}

func TestAnswerWithoutChatterUnavailable(t *testing.T) {
	m := NewManager(nil, nil, ManagerConfig{})
	_, err := m.Answer(context.Background(), "q", nil, nil)
	require.ErrorIs(t, err, ErrUnavailable)
	_, err = m.EmbedBatch(context.Background(), []string{"x"}, "RETRIEVAL_DOCUMENT")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestEmbedBatchSplitsAndPreservesOrder(t *testing.T) {
	embedder := &countingEmbedder{}
	m := NewManager(nil, embedder, ManagerConfig{EmbedBatchSize: 100})

	texts := make([]string, 250)
	for i := range texts {
		texts[i] = fmt.Sprintf("text-%d", i)
	}
	out, err := m.EmbedBatch(context.Background(), texts, "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Len(t, out, 250)
	require.Equal(t, 3, embedder.calls)
	require.Equal(t, []int{100, 100, 50}, embedder.batchSizes)
	require.Equal(t, float32(1), out[0][0])
	require.Equal(t, float32(2), out[100][0])
	require.Equal(t, float32(3), out[249][0])
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	embedder := &countingEmbedder{}
	m := NewManager(nil, embedder, ManagerConfig{})

	out, err := m.EmbedBatch(context.Background(), nil, "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Empty(t, out)
	require.Zero(t, embedder.calls)
}

func TestClassifyDocumentNormalizesLabel(t *testing.T) {
	chatter := &scriptedChatter{reply: "```json\n{\"classification\": \"Work\", \"confidence\": 1.7}\n```"}
	m := NewManager(chatter, nil, ManagerConfig{})

	result, err := m.ClassifyDocument(context.Background(), "standup notes", "we discussed the roadmap")
	require.NoError(t, err)
	require.Equal(t, "work", result.Label)
	require.Equal(t, 1.0, result.Confidence)
}

func TestClassifyDocumentRejectsUnknownLabel(t *testing.T) {
	chatter := &scriptedChatter{reply: `{"classification": "other", "confidence": 0.5}`}
	m := NewManager(chatter, nil, ManagerConfig{})

	_, err := m.ClassifyDocument(context.Background(), "t", "c")
	require.Error(t, err)
}

func TestDetectKnowledgeGapsClampsAndBounds(t *testing.T) {
	var items []string
	for i := 0; i < 7; i++ {
		items = append(items, fmt.Sprintf(`{"question": "q%d", "category": "ops", "priority": %d}`, i, i*2))
	}
	chatter := &scriptedChatter{reply: "[" + strings.Join(items, ",") + "]"}
	m := NewManager(chatter, nil, ManagerConfig{})

	gaps, err := m.DetectKnowledgeGaps(context.Background(), []ContextDoc{{Title: "t", Content: "c"}})
	require.NoError(t, err)
	require.Len(t, gaps, 5)
	require.Equal(t, 1, gaps[0].Priority)
	require.Equal(t, 5, gaps[4].Priority)
}

func TestDetectKnowledgeGapsNoDocs(t *testing.T) {
	m := NewManager(&scriptedChatter{}, nil, ManagerConfig{})
	gaps, err := m.DetectKnowledgeGaps(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, gaps)
}

func TestGenerateTitleStripsQuotes(t *testing.T) {
	chatter := &scriptedChatter{reply: "\"Road Trip Plans\"\n"}
	m := NewManager(chatter, nil, ManagerConfig{})

	title, err := m.GenerateTitle(context.Background(), "let's plan the road trip")
	require.NoError(t, err)
	require.Equal(t, "Road Trip Plans", title)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		open   string
		end    string
		expect string
	}{
		{"plain object", `{"a": 1}`, "{", "}", `{"a": 1}`},
		{"fenced", "```json\n{\"a\": 1}\n```", "{", "}", `{"a": 1}`},
		{"leading prose", `Here you go: [{"a": 1}]`, "[", "]", `[{"a": 1}]`},
		{"no marker", "nothing here", "{", "}", "nothing here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expect, extractJSON(tt.input, tt.open, tt.end))
		})
	}
}

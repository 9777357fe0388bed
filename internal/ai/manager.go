package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const ragSystemPrompt = `You are a helpful assistant that answers questions using the user's synced documents.
- Base your answer on the provided context and cite sources inline like [1], [2].
- If the context does not contain the answer, say so honestly instead of guessing.
- Be concise and direct.`

const contextSnippetLimit = 1000

const embedBatchDelay = 100 * time.Millisecond

type ManagerConfig struct {
	Timeout        int
	EmbedBatchSize int
}

// ContextDoc is a retrieved document fed into the answer prompt.
type ContextDoc struct {
	Title   string
	Content string
}

// GapSuggestion is one knowledge gap proposed by the model.
type GapSuggestion struct {
	Question string `json:"question"`
	Category string `json:"category"`
	Priority int    `json:"priority"`
}

type Classification struct {
	Label      string  `json:"classification"`
	Confidence float64 `json:"confidence"`
}

type Manager struct {
	chatter  IChatter
	embedder IEmbedder
	cfg      ManagerConfig
}

func NewManager(chatter IChatter, embedder IEmbedder, cfg ManagerConfig) *Manager {
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = 100
	}
	return &Manager{
		chatter:  chatter,
		embedder: embedder,
		cfg:      cfg,
	}
}

func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
	}
	return ctx, func() {}
}

func buildAnswerSystem(docs []ContextDoc) string {
	if len(docs) == 0 {
		return ragSystemPrompt
	}
	blocks := make([]string, 0, len(docs))
	for i, doc := range docs {
		content := doc.Content
		if len(content) > contextSnippetLimit {
			content = content[:contextSnippetLimit]
		}
		blocks = append(blocks, fmt.Sprintf("[%d] %s:\n%s", i+1, doc.Title, content))
	}
	return ragSystemPrompt + "\n\nRelevant context from user's documents:\n" + strings.Join(blocks, "\n\n")
}

// Answer runs one RAG turn: history is oldest-first and the question is
// appended as the final user message.
func (m *Manager) Answer(ctx context.Context, question string, docs []ContextDoc, history []Message) (string, error) {
	if m.chatter == nil {
		return "", ErrUnavailable
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	msgs := append(append([]Message{}, history...), Message{Role: RoleUser, Content: question})
	answer, err := m.chatter.Chat(ctx, buildAnswerSystem(docs), msgs)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(answer) == "" {
		return "", fmt.Errorf("empty ai response")
	}
	return answer, nil
}

func (m *Manager) AnswerStream(ctx context.Context, question string, docs []ContextDoc, history []Message, onChunk ChunkFunc) (string, error) {
	if m.chatter == nil {
		return "", ErrUnavailable
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	msgs := append(append([]Message{}, history...), Message{Role: RoleUser, Content: question})
	return m.chatter.ChatStream(ctx, buildAnswerSystem(docs), msgs, onChunk)
}

// EmbedBatch embeds all texts, splitting the work into provider-sized
// batches with a short pause between them. The result preserves input
// order.
func (m *Manager) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if m.embedder == nil {
		return nil, ErrUnavailable
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += m.cfg.EmbedBatchSize {
		end := start + m.cfg.EmbedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := m.embedder.EmbedBatch(ctx, texts[start:end], taskType)
		if err != nil {
			return nil, err
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("embedding count mismatch: want %d got %d", end-start, len(batch))
		}
		out = append(out, batch...)
		if end < len(texts) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(embedBatchDelay):
			}
		}
	}
	return out, nil
}

func (m *Manager) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	res, err := m.EmbedBatch(ctx, []string{text}, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

func (m *Manager) EmbeddingModelName() string {
	if m.embedder == nil {
		return ""
	}
	return m.embedder.ModelName()
}

// ClassifyDocument labels a document as work or personal with a
// confidence in [0, 1].
func (m *Manager) ClassifyDocument(ctx context.Context, title, content string) (*Classification, error) {
	if m.chatter == nil {
		return nil, ErrUnavailable
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	snippet := content
	if len(snippet) > contextSnippetLimit {
		snippet = snippet[:contextSnippetLimit]
	}
	prompt := fmt.Sprintf(`Classify the following document as "work" or "personal".
Return a JSON object only, no extra text: {"classification": "work" or "personal", "confidence": 0.0-1.0}

TITLE: %s
CONTENT:
%s`, title, snippet)
	raw, err := m.chatter.Chat(ctx, "", []Message{{Role: RoleUser, Content: prompt}})
	if err != nil {
		return nil, err
	}
	var result Classification
	if err := json.Unmarshal([]byte(extractJSON(raw, "{", "}")), &result); err != nil {
		return nil, fmt.Errorf("parse classification: %w", err)
	}
	result.Label = strings.ToLower(strings.TrimSpace(result.Label))
	if result.Label != "work" && result.Label != "personal" {
		return nil, fmt.Errorf("unexpected classification: %s", result.Label)
	}
	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}
	return &result, nil
}

// DetectKnowledgeGaps asks the model for 3-5 unanswered questions the
// given documents raise.
func (m *Manager) DetectKnowledgeGaps(ctx context.Context, docs []ContextDoc) ([]GapSuggestion, error) {
	if m.chatter == nil {
		return nil, ErrUnavailable
	}
	if len(docs) == 0 {
		return []GapSuggestion{}, nil
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	blocks := make([]string, 0, len(docs))
	for i, doc := range docs {
		content := doc.Content
		if len(content) > contextSnippetLimit {
			content = content[:contextSnippetLimit]
		}
		blocks = append(blocks, fmt.Sprintf("[%d] %s:\n%s", i+1, doc.Title, content))
	}
	prompt := fmt.Sprintf(`Analyze the documents below and identify 3-5 knowledge gaps: questions the documents raise but do not answer.
Return a JSON array only, no extra text. Each item: {"question": "...", "category": "...", "priority": 1-5}
Priority 5 means most important to resolve.

DOCUMENTS:
%s`, strings.Join(blocks, "\n\n"))
	raw, err := m.chatter.Chat(ctx, "", []Message{{Role: RoleUser, Content: prompt}})
	if err != nil {
		return nil, err
	}
	var gaps []GapSuggestion
	if err := json.Unmarshal([]byte(extractJSON(raw, "[", "]")), &gaps); err != nil {
		return nil, fmt.Errorf("parse knowledge gaps: %w", err)
	}
	out := make([]GapSuggestion, 0, len(gaps))
	for _, gap := range gaps {
		gap.Question = strings.TrimSpace(gap.Question)
		if gap.Question == "" {
			continue
		}
		if gap.Priority < 1 {
			gap.Priority = 1
		}
		if gap.Priority > 5 {
			gap.Priority = 5
		}
		out = append(out, gap)
		if len(out) >= 5 {
			break
		}
	}
	return out, nil
}

// GenerateTitle derives a short session title from the opening message.
func (m *Manager) GenerateTitle(ctx context.Context, firstMessage string) (string, error) {
	if m.chatter == nil {
		return "", ErrUnavailable
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	prompt := fmt.Sprintf(`Generate a short title (at most 6 words) for a conversation that starts with the message below.
Output ONLY the title, no quotes.

MESSAGE:
%s`, firstMessage)
	title, err := m.chatter.Chat(ctx, "", []Message{{Role: RoleUser, Content: prompt}})
	if err != nil {
		return "", err
	}
	return strings.Trim(strings.TrimSpace(title), `"`), nil
}

func extractJSON(output, open, end string) string {
	clean := strings.TrimSpace(output)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)
	start := strings.Index(clean, open)
	stop := strings.LastIndex(clean, end)
	if start >= 0 && stop > start {
		return clean[start : stop+1]
	}
	return clean
}

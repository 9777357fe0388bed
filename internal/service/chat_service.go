package service

import (
	"context"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/knowhub/internal/ai"
	"github.com/xxxsen/knowhub/internal/model"
	appErr "github.com/xxxsen/knowhub/internal/pkg/errors"
	"github.com/xxxsen/knowhub/internal/vector"
)

const (
	chatHistoryWindow = 10
	chatTopK          = 5
)

type chatStore interface {
	CreateSession(ctx context.Context, session *model.ChatSession) error
	GetSession(ctx context.Context, tenantID, sessionID string) (*model.ChatSession, error)
	ListSessions(ctx context.Context, tenantID string, limit, offset uint) ([]*model.ChatSession, error)
	UpdateSessionTitle(ctx context.Context, tenantID, sessionID, title string, mtime int64) error
	DeleteSession(ctx context.Context, tenantID, sessionID string) error
	AddMessage(ctx context.Context, msg *model.ChatMessage) error
	ListMessages(ctx context.Context, sessionID string) ([]*model.ChatMessage, error)
	LastMessages(ctx context.Context, sessionID string, limit int) ([]*model.ChatMessage, error)
}

type answerClient interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Answer(ctx context.Context, question string, docs []ai.ContextDoc, history []ai.Message) (string, error)
	AnswerStream(ctx context.Context, question string, docs []ai.ContextDoc, history []ai.Message, onChunk ai.ChunkFunc) (string, error)
	GenerateTitle(ctx context.Context, firstMessage string) (string, error)
}

type ChatResult struct {
	MessageID string   `json:"message_id"`
	Message   string   `json:"message"`
	Sources   []string `json:"sources"`
}

// ChatService runs retrieval-augmented conversation turns. Retrieval is
// fresh per turn and reads context straight from vector metadata.
type ChatService struct {
	store   chatStore
	answers answerClient
	index   vector.Index
}

func NewChatService(store chatStore, answers answerClient, index vector.Index) *ChatService {
	return &ChatService{
		store:   store,
		answers: answers,
		index:   index,
	}
}

func (s *ChatService) CreateSession(ctx context.Context, tenantID, title string) (*model.ChatSession, error) {
	now := time.Now().Unix()
	session := &model.ChatSession{
		ID:       newID(),
		TenantID: tenantID,
		Title:    strings.TrimSpace(title),
		Ctime:    now,
		Mtime:    now,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *ChatService) GetSession(ctx context.Context, tenantID, sessionID string) (*model.ChatSession, error) {
	return s.store.GetSession(ctx, tenantID, sessionID)
}

func (s *ChatService) ListSessions(ctx context.Context, tenantID string, limit, offset uint) ([]*model.ChatSession, error) {
	return s.store.ListSessions(ctx, tenantID, limit, offset)
}

func (s *ChatService) DeleteSession(ctx context.Context, tenantID, sessionID string) error {
	return s.store.DeleteSession(ctx, tenantID, sessionID)
}

func (s *ChatService) ListMessages(ctx context.Context, tenantID, sessionID string) ([]*model.ChatMessage, error) {
	if _, err := s.store.GetSession(ctx, tenantID, sessionID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, sessionID)
}

// Chat runs one batch turn: persist the user message, retrieve, answer,
// persist the assistant message. A retrieval or generation failure
// aborts before the assistant message exists, leaving the user free to
// retry.
func (s *ChatService) Chat(ctx context.Context, tenantID, sessionID, question string) (*ChatResult, error) {
	turn, err := s.prepareTurn(ctx, tenantID, sessionID, question)
	if err != nil {
		return nil, err
	}
	answer, err := s.answers.Answer(ctx, question, turn.docs, turn.history)
	if err != nil {
		return nil, mapAIErr(err)
	}
	return s.finishTurn(ctx, tenantID, turn, answer)
}

// ChatStream is the streamed variant: chunks are forwarded as they
// arrive and the assistant message is persisted after the final chunk.
func (s *ChatService) ChatStream(ctx context.Context, tenantID, sessionID, question string, onChunk ai.ChunkFunc) (*ChatResult, error) {
	turn, err := s.prepareTurn(ctx, tenantID, sessionID, question)
	if err != nil {
		return nil, err
	}
	answer, err := s.answers.AnswerStream(ctx, question, turn.docs, turn.history, onChunk)
	if err != nil {
		return nil, mapAIErr(err)
	}
	return s.finishTurn(ctx, tenantID, turn, answer)
}

type chatTurn struct {
	session *model.ChatSession
	history []ai.Message
	docs    []ai.ContextDoc
	sources []string
	first   bool
}

func (s *ChatService) prepareTurn(ctx context.Context, tenantID, sessionID, question string) (*chatTurn, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, appErr.ErrInvalid
	}
	session, err := s.store.GetSession(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	userMsg := &model.ChatMessage{
		ID:        newID(),
		SessionID: sessionID,
		Role:      model.ChatRoleUser,
		Content:   question,
		Ctime:     now,
	}
	if err := s.store.AddMessage(ctx, userMsg); err != nil {
		return nil, err
	}

	recent, err := s.store.LastMessages(ctx, sessionID, chatHistoryWindow)
	if err != nil {
		return nil, err
	}
	// The window includes the just-saved user message; the generation
	// call re-appends the question, so drop it from history.
	history := make([]ai.Message, 0, len(recent))
	for _, msg := range recent {
		if msg.ID == userMsg.ID {
			continue
		}
		role := ai.RoleUser
		if msg.Role == model.ChatRoleAssistant {
			role = ai.RoleAssistant
		}
		history = append(history, ai.Message{Role: role, Content: msg.Content})
	}

	docs, sources, err := s.retrieve(ctx, tenantID, question)
	if err != nil {
		return nil, err
	}
	return &chatTurn{
		session: session,
		history: history,
		docs:    docs,
		sources: sources,
		first:   len(recent) == 1,
	}, nil
}

// retrieve embeds the question and pulls the top-k nearest documents
// from the tenant namespace. Empty retrieval is a valid empty context,
// never an error.
func (s *ChatService) retrieve(ctx context.Context, tenantID, question string) ([]ai.ContextDoc, []string, error) {
	embedding, err := s.answers.EmbedQuery(ctx, question)
	if err != nil {
		return nil, nil, mapAIErr(err)
	}
	matches, err := s.index.Query(ctx, tenantID, embedding, chatTopK, nil)
	if err != nil {
		return nil, nil, err
	}
	docs := make([]ai.ContextDoc, 0, len(matches))
	sources := make([]string, 0, len(matches))
	for _, match := range matches {
		docID := match.Metadata["document_id"]
		if docID == "" {
			docID = match.ID
		}
		docs = append(docs, ai.ContextDoc{
			Title:   match.Metadata["title"],
			Content: match.Metadata["content"],
		})
		sources = append(sources, docID)
	}
	return docs, sources, nil
}

func (s *ChatService) finishTurn(ctx context.Context, tenantID string, turn *chatTurn, answer string) (*ChatResult, error) {
	assistantMsg := &model.ChatMessage{
		ID:        newID(),
		SessionID: turn.session.ID,
		Role:      model.ChatRoleAssistant,
		Content:   answer,
		Sources:   turn.sources,
		Ctime:     time.Now().Unix(),
	}
	if err := s.store.AddMessage(ctx, assistantMsg); err != nil {
		return nil, err
	}
	if turn.first && turn.session.Title == "" {
		s.titleSession(ctx, tenantID, turn.session.ID)
	}
	return &ChatResult{
		MessageID: assistantMsg.ID,
		Message:   answer,
		Sources:   turn.sources,
	}, nil
}

// titleSession derives a title for a fresh session; failures degrade to
// leaving the session untitled.
func (s *ChatService) titleSession(ctx context.Context, tenantID, sessionID string) {
	msgs, err := s.store.LastMessages(ctx, sessionID, chatHistoryWindow)
	if err != nil || len(msgs) == 0 {
		return
	}
	first := msgs[0].Content
	title, err := s.answers.GenerateTitle(ctx, first)
	if err != nil || strings.TrimSpace(title) == "" {
		title = first
		if len(title) > 60 {
			title = title[:60]
		}
	}
	if err := s.store.UpdateSessionTitle(ctx, tenantID, sessionID, title, time.Now().Unix()); err != nil {
		logutil.GetLogger(ctx).Warn("set session title failed",
			zap.String("session_id", sessionID), zap.Error(err))
	}
}

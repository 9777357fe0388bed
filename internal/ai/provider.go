package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable marks a provider that is not configured or whose
// upstream rejected the call; callers map it to a service-level error.
var ErrUnavailable = errors.New("ai provider unavailable")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChunkFunc receives incremental answer text during streaming. A
// non-nil return aborts the stream.
type ChunkFunc func(chunk string) error

type IChatProvider interface {
	Name() string
	Chat(ctx context.Context, model string, system string, msgs []Message) (string, error)
	ChatStream(ctx context.Context, model string, system string, msgs []Message, onChunk ChunkFunc) (string, error)
}

type IEmbedProvider interface {
	Name() string
	EmbedBatch(ctx context.Context, model string, texts []string, taskType string) ([][]float32, error)
}

type IChatter interface {
	Chat(ctx context.Context, system string, msgs []Message) (string, error)
	ChatStream(ctx context.Context, system string, msgs []Message, onChunk ChunkFunc) (string, error)
}

type IEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error)
	ModelName() string
}

type chatter struct {
	provider IChatProvider
	model    string
}

func NewChatter(p IChatProvider, model string) IChatter {
	return &chatter{provider: p, model: model}
}

func (c *chatter) Chat(ctx context.Context, system string, msgs []Message) (string, error) {
	return c.provider.Chat(ctx, c.model, system, msgs)
}

func (c *chatter) ChatStream(ctx context.Context, system string, msgs []Message, onChunk ChunkFunc) (string, error) {
	return c.provider.ChatStream(ctx, c.model, system, msgs, onChunk)
}

type embedder struct {
	provider IEmbedProvider
	model    string
}

func NewEmbedder(p IEmbedProvider, model string) IEmbedder {
	return &embedder{provider: p, model: model}
}

func (e *embedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	return e.provider.EmbedBatch(ctx, e.model, texts, taskType)
}

func (e *embedder) ModelName() string {
	return e.model
}

type ChatFactory func(args interface{}) (IChatProvider, error)
type EmbedFactory func(args interface{}) (IEmbedProvider, error)

var chatRegistry = map[string]ChatFactory{}
var embedRegistry = map[string]EmbedFactory{}

func Register(name string, factory ChatFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	chatRegistry[key] = factory
}

func RegisterEmbed(name string, factory EmbedFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	embedRegistry[key] = factory
}

func NewChatProvider(name string, args interface{}) (IChatProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	factory := chatRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai provider: %s", name)
	}
	return factory(args)
}

func NewEmbedProvider(name string, args interface{}) (IEmbedProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	factory := embedRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai embed provider: %s", name)
	}
	return factory(args)
}

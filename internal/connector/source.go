package connector

import (
	"context"
	"fmt"
	"strings"
)

// Item is one unit of content pulled from an external source. The
// ExternalID must be stable across fetches so re-syncs can dedup.
type Item struct {
	ExternalID string            `json:"external_id"`
	Title      string            `json:"title"`
	Content    string            `json:"content"`
	SourceURL  string            `json:"source_url"`
	MimeType   string            `json:"mime_type"`
	Metadata   map[string]string `json:"metadata"`
}

// Source pulls content from one external system.
type Source interface {
	Type() string
	// FetchItems returns the full current item set of the source.
	FetchItems(ctx context.Context) ([]Item, error)
	TestConnection(ctx context.Context) error
	// RefreshCredentials returns updated credentials when the source
	// rotated them, with refreshed=false when nothing changed.
	RefreshCredentials(ctx context.Context) (credentials string, refreshed bool, err error)
}

// SourceFactory builds a source from the connector's decrypted
// credentials JSON.
type SourceFactory func(credentials string) (Source, error)

var registry = map[string]SourceFactory{}

func Register(connectorType string, factory SourceFactory) {
	key := strings.ToLower(strings.TrimSpace(connectorType))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func NewSource(connectorType string, credentials string) (Source, error) {
	key := strings.ToLower(strings.TrimSpace(connectorType))
	if key == "" {
		return nil, fmt.Errorf("connector type is required")
	}
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported connector type: %s", connectorType)
	}
	return factory(credentials)
}

func SupportedTypes() []string {
	types := make([]string, 0, len(registry))
	for key := range registry {
		types = append(types, key)
	}
	return types
}

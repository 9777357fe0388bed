package vector

import "context"

// Entry is one stored vector with its payload.
type Entry struct {
	ID        string
	Embedding []float32
	Metadata  map[string]string
}

// Match is a query hit. Score is cosine similarity mapped to [0, 1],
// higher is closer.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// Index is a namespaced vector store. Namespaces isolate tenants; an
// id is unique within its namespace and Upsert replaces in place.
type Index interface {
	Upsert(ctx context.Context, namespace string, entries []Entry) error
	Query(ctx context.Context, namespace string, embedding []float32, topK int, filter map[string]string) ([]Match, error)
	Delete(ctx context.Context, namespace string, ids []string) error
	DeleteNamespace(ctx context.Context, namespace string) error
	Count(ctx context.Context, namespace string) (int, error)
}

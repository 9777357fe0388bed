package model

const (
	DocumentStatusPending    = "pending"
	DocumentStatusProcessing = "processing"
	DocumentStatusClassified = "classified"
	DocumentStatusIndexed    = "indexed"
	DocumentStatusFailed     = "failed"
)

type Document struct {
	ID                       string            `json:"id"`
	TenantID                 string            `json:"tenant_id"`
	ConnectorID              string            `json:"connector_id,omitempty"`
	ExternalID               string            `json:"external_id,omitempty"`
	Title                    string            `json:"title"`
	Content                  string            `json:"content"`
	ContentHash              string            `json:"content_hash,omitempty"`
	SourceURL                string            `json:"source_url,omitempty"`
	MimeType                 string            `json:"mime_type,omitempty"`
	Status                   string            `json:"status"`
	Classification           string            `json:"classification,omitempty"`
	ClassificationConfidence float64           `json:"classification_confidence,omitempty"`
	ProjectID                string            `json:"project_id,omitempty"`
	Metadata                 map[string]string `json:"metadata,omitempty"`
	VectorID                 string            `json:"vector_id,omitempty"`
	IsIndexed                bool              `json:"is_indexed"`
	Ctime                    int64             `json:"ctime"`
	Mtime                    int64             `json:"mtime"`
}

// DocumentStats is the per-tenant status breakdown computed by a single
// aggregate query.
type DocumentStats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Classified int `json:"classified"`
	Indexed    int `json:"indexed"`
	Failed     int `json:"failed"`
	InVectorDB int `json:"in_vector_db"`
}

package model

const (
	GapStatusOpen      = "open"
	GapStatusAnswered  = "answered"
	GapStatusDismissed = "dismissed"
)

type KnowledgeGap struct {
	ID                string   `json:"id"`
	TenantID          string   `json:"tenant_id"`
	Question          string   `json:"question"`
	Category          string   `json:"category,omitempty"`
	Priority          int      `json:"priority"`
	Status            string   `json:"status"`
	Answer            string   `json:"answer,omitempty"`
	AnsweredAt        int64    `json:"answered_at,omitempty"`
	SourceDocumentIDs []string `json:"source_document_ids,omitempty"`
	Ctime             int64    `json:"ctime"`
	Mtime             int64    `json:"mtime"`
}

type GapStats struct {
	Total        int `json:"total"`
	Open         int `json:"open"`
	Answered     int `json:"answered"`
	Dismissed    int `json:"dismissed"`
	HighPriority int `json:"high_priority"`
}

type GapCategory struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

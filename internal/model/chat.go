package model

const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
	ChatRoleSystem    = "system"
)

type ChatSession struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Title    string `json:"title,omitempty"`
	Ctime    int64  `json:"ctime"`
	Mtime    int64  `json:"mtime"`
}

// ChatMessage is immutable once created; ordering is ctime ascending.
type ChatMessage struct {
	ID        string   `json:"id"`
	SessionID string   `json:"session_id"`
	Role      string   `json:"role"`
	Content   string   `json:"content"`
	Sources   []string `json:"sources,omitempty"`
	Ctime     int64    `json:"ctime"`
}

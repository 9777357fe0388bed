package model

type Project struct {
	ID             string `json:"id"`
	TenantID       string `json:"tenant_id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	Color          string `json:"color,omitempty"`
	IsAutoDetected bool   `json:"is_auto_detected"`
	Ctime          int64  `json:"ctime"`
	Mtime          int64  `json:"mtime"`
}

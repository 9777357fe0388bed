package model

// SyncProgress is a snapshot of a connector's latest sync attempt. It is
// reset in place when a new sync starts, never appended to.
type SyncProgress struct {
	ConnectorID    string `json:"connector_id"`
	Status         string `json:"status"`
	TotalItems     int    `json:"total_items"`
	ProcessedItems int    `json:"processed_items"`
	IndexedItems   int    `json:"indexed_items"`
	FailedItems    int    `json:"failed_items"`
	CurrentStep    string `json:"current_step,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	StartedAt      int64  `json:"started_at,omitempty"`
	CompletedAt    int64  `json:"completed_at,omitempty"`
}

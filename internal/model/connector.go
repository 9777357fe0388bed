package model

const (
	SyncStatusIdle      = "idle"
	SyncStatusSyncing   = "syncing"
	SyncStatusCompleted = "completed"
	SyncStatusFailed    = "failed"
)

type Connector struct {
	ID            string `json:"id"`
	TenantID      string `json:"tenant_id"`
	ConnectorType string `json:"connector_type"`
	Name          string `json:"name"`
	// Credentials holds the sealed credential blob; never exposed on the
	// wire.
	Credentials string `json:"-"`
	IsActive    bool   `json:"is_active"`
	SyncStatus  string `json:"sync_status"`
	SyncError   string `json:"sync_error,omitempty"`
	LastSyncAt  int64  `json:"last_sync_at,omitempty"`
	Ctime       int64  `json:"ctime"`
	Mtime       int64  `json:"mtime"`
}

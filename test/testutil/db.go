package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xxxsen/knowhub/internal/config"
	"github.com/xxxsen/knowhub/internal/db"
	"github.com/xxxsen/knowhub/internal/model"
	"github.com/xxxsen/knowhub/internal/repo"
)

var idSeq int64

func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := db.Open(config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     "knowhub",
		Password: "knowhub_pass",
		DBName:   "knowhub_test",
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
	}
}

// NewID returns an id unique across test runs so reruns never collide
// on primary keys.
func NewID(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), atomic.AddInt64(&idSeq, 1))
}

func SeedTenant(t *testing.T, conn *sql.DB) string {
	t.Helper()
	tenantID := NewID("tenant")
	tenants := repo.NewTenantRepo(conn)
	if err := tenants.Ensure(context.Background(), &model.Tenant{
		ID:    tenantID,
		Name:  "test tenant",
		Ctime: time.Now().Unix(),
	}); err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
	return tenantID
}

func SeedConnector(t *testing.T, conn *sql.DB, tenantID string) string {
	t.Helper()
	connectorID := NewID("conn")
	connectors := repo.NewConnectorRepo(conn)
	now := time.Now().Unix()
	if err := connectors.Create(context.Background(), &model.Connector{
		ID:            connectorID,
		TenantID:      tenantID,
		ConnectorType: "feed",
		Name:          "test connector",
		IsActive:      true,
		SyncStatus:    model.SyncStatusIdle,
		Ctime:         now,
		Mtime:         now,
	}); err != nil {
		t.Fatalf("seed connector: %v", err)
	}
	return connectorID
}

package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/knowhub/internal/model"
	appErr "github.com/xxxsen/knowhub/internal/pkg/errors"
	"github.com/xxxsen/knowhub/internal/repo"
	"github.com/xxxsen/knowhub/test/testutil"
)

func TestConnectorRepoCRUD(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	tenantID := testutil.SeedTenant(t, conn)
	otherTenant := testutil.SeedTenant(t, conn)
	connectors := repo.NewConnectorRepo(conn)

	connectorID := testutil.SeedConnector(t, conn, tenantID)

	fetched, err := connectors.GetByID(context.Background(), tenantID, connectorID)
	require.NoError(t, err)
	require.Equal(t, "feed", fetched.ConnectorType)
	require.True(t, fetched.IsActive)
	require.Equal(t, model.SyncStatusIdle, fetched.SyncStatus)

	_, err = connectors.GetByID(context.Background(), otherTenant, connectorID)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	fetched.Name = "renamed"
	fetched.IsActive = false
	fetched.Mtime = time.Now().Unix()
	require.NoError(t, connectors.Update(context.Background(), fetched))

	listed, err := connectors.List(context.Background(), tenantID, "feed")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, "renamed", listed[0].Name)
	require.False(t, listed[0].IsActive)

	listed, err = connectors.List(context.Background(), tenantID, "unknown-type")
	require.NoError(t, err)
	require.Empty(t, listed)

	require.NoError(t, connectors.UpdateCredentials(context.Background(), tenantID, connectorID, "sealed-blob", time.Now().Unix()))
	fetched, err = connectors.GetByID(context.Background(), tenantID, connectorID)
	require.NoError(t, err)
	require.Equal(t, "sealed-blob", fetched.Credentials)

	require.NoError(t, connectors.Delete(context.Background(), tenantID, connectorID))
	_, err = connectors.GetByID(context.Background(), tenantID, connectorID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestConnectorRepoSetSyncingIfIsExclusive(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	tenantID := testutil.SeedTenant(t, conn)
	connectors := repo.NewConnectorRepo(conn)
	connectorID := testutil.SeedConnector(t, conn, tenantID)

	ok, err := connectors.SetSyncingIf(context.Background(), tenantID, connectorID, time.Now().Unix())
	require.NoError(t, err)
	require.True(t, ok)

	// The slot is taken until FinishSync releases it.
	ok, err = connectors.SetSyncingIf(context.Background(), tenantID, connectorID, time.Now().Unix())
	require.NoError(t, err)
	require.False(t, ok)

	now := time.Now().Unix()
	require.NoError(t, connectors.FinishSync(context.Background(), tenantID, connectorID, model.SyncStatusCompleted, "", now, now))

	fetched, err := connectors.GetByID(context.Background(), tenantID, connectorID)
	require.NoError(t, err)
	require.Equal(t, model.SyncStatusCompleted, fetched.SyncStatus)
	require.Equal(t, now, fetched.LastSyncAt)

	ok, err = connectors.SetSyncingIf(context.Background(), tenantID, connectorID, time.Now().Unix())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestConnectorRepoFinishSyncRecordsError(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	tenantID := testutil.SeedTenant(t, conn)
	connectors := repo.NewConnectorRepo(conn)
	connectorID := testutil.SeedConnector(t, conn, tenantID)

	ok, err := connectors.SetSyncingIf(context.Background(), tenantID, connectorID, time.Now().Unix())
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, connectors.FinishSync(context.Background(), tenantID, connectorID, model.SyncStatusFailed, "feed unreachable", 0, time.Now().Unix()))

	fetched, err := connectors.GetByID(context.Background(), tenantID, connectorID)
	require.NoError(t, err)
	require.Equal(t, model.SyncStatusFailed, fetched.SyncStatus)
	require.Equal(t, "feed unreachable", fetched.SyncError)
	require.Zero(t, fetched.LastSyncAt)
}

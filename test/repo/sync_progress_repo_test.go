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

func TestSyncProgressLifecycle(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	tenantID := testutil.SeedTenant(t, conn)
	connectorID := testutil.SeedConnector(t, conn, tenantID)
	progress := repo.NewSyncProgressRepo(conn)

	_, err := progress.Get(context.Background(), connectorID)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	startedAt := time.Now().Unix()
	require.NoError(t, progress.Reset(context.Background(), connectorID, startedAt))

	snapshot, err := progress.Get(context.Background(), connectorID)
	require.NoError(t, err)
	require.Equal(t, model.SyncStatusSyncing, snapshot.Status)
	require.Equal(t, "starting", snapshot.CurrentStep)
	require.Equal(t, startedAt, snapshot.StartedAt)

	require.NoError(t, progress.SetTotal(context.Background(), connectorID, 10))
	require.NoError(t, progress.SetStep(context.Background(), connectorID, "indexing documents"))
	require.NoError(t, progress.Advance(context.Background(), connectorID, 10, 0, 0))
	require.NoError(t, progress.Advance(context.Background(), connectorID, 0, 7, 3))

	snapshot, err = progress.Get(context.Background(), connectorID)
	require.NoError(t, err)
	require.Equal(t, 10, snapshot.TotalItems)
	require.Equal(t, 10, snapshot.ProcessedItems)
	require.Equal(t, 7, snapshot.IndexedItems)
	require.Equal(t, 3, snapshot.FailedItems)
	require.Equal(t, "indexing documents", snapshot.CurrentStep)

	completedAt := time.Now().Unix()
	require.NoError(t, progress.Finish(context.Background(), connectorID, model.SyncStatusCompleted, "", completedAt))

	snapshot, err = progress.Get(context.Background(), connectorID)
	require.NoError(t, err)
	require.Equal(t, model.SyncStatusCompleted, snapshot.Status)
	require.Equal(t, completedAt, snapshot.CompletedAt)
}

func TestSyncProgressResetClearsPreviousRun(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	tenantID := testutil.SeedTenant(t, conn)
	connectorID := testutil.SeedConnector(t, conn, tenantID)
	progress := repo.NewSyncProgressRepo(conn)

	require.NoError(t, progress.Reset(context.Background(), connectorID, 1))
	require.NoError(t, progress.SetTotal(context.Background(), connectorID, 5))
	require.NoError(t, progress.Advance(context.Background(), connectorID, 5, 2, 3))
	require.NoError(t, progress.Finish(context.Background(), connectorID, model.SyncStatusFailed, "boom", 2))

	// A new run reuses the single row per connector.
	require.NoError(t, progress.Reset(context.Background(), connectorID, 3))

	snapshot, err := progress.Get(context.Background(), connectorID)
	require.NoError(t, err)
	require.Equal(t, model.SyncStatusSyncing, snapshot.Status)
	require.Zero(t, snapshot.TotalItems)
	require.Zero(t, snapshot.ProcessedItems)
	require.Zero(t, snapshot.IndexedItems)
	require.Zero(t, snapshot.FailedItems)
	require.Empty(t, snapshot.ErrorMessage)
	require.Equal(t, int64(3), snapshot.StartedAt)
	require.Zero(t, snapshot.CompletedAt)
}

package repo_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/knowhub/internal/model"
	appErr "github.com/xxxsen/knowhub/internal/pkg/errors"
	"github.com/xxxsen/knowhub/internal/repo"
	"github.com/xxxsen/knowhub/test/testutil"
)

func seedDocument(t *testing.T, docs *repo.DocumentRepo, tenantID, connectorID, externalID, status string) *model.Document {
	t.Helper()
	now := time.Now().Unix()
	doc := &model.Document{
		ID:          testutil.NewID("doc"),
		TenantID:    tenantID,
		ConnectorID: connectorID,
		ExternalID:  externalID,
		Title:       "title " + externalID,
		Content:     "content " + externalID,
		ContentHash: "hash-" + externalID,
		Status:      status,
		Ctime:       now,
		Mtime:       now,
	}
	require.NoError(t, docs.Create(context.Background(), doc))
	return doc
}

func TestDocumentRepoCRUDAndIsolation(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	tenantID := testutil.SeedTenant(t, conn)
	otherTenant := testutil.SeedTenant(t, conn)
	connectorID := testutil.SeedConnector(t, conn, tenantID)
	docs := repo.NewDocumentRepo(conn)

	doc := seedDocument(t, docs, tenantID, connectorID, "ext-1", model.DocumentStatusPending)

	fetched, err := docs.GetByID(context.Background(), tenantID, doc.ID)
	require.NoError(t, err)
	require.Equal(t, doc.Title, fetched.Title)
	require.Equal(t, connectorID, fetched.ConnectorID)
	require.False(t, fetched.IsIndexed)

	_, err = docs.GetByID(context.Background(), otherTenant, doc.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	doc.Title = "updated"
	doc.Mtime = time.Now().Unix()
	require.NoError(t, docs.Update(context.Background(), doc))

	require.NoError(t, docs.MarkIndexed(context.Background(), tenantID, doc.ID, doc.ID, time.Now().Unix()))
	fetched, err = docs.GetByID(context.Background(), tenantID, doc.ID)
	require.NoError(t, err)
	require.True(t, fetched.IsIndexed)
	require.Equal(t, model.DocumentStatusIndexed, fetched.Status)

	require.NoError(t, docs.Delete(context.Background(), tenantID, doc.ID))
	_, err = docs.GetByID(context.Background(), tenantID, doc.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestDocumentRepoCreateBulkAndFindByExternalIDs(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	tenantID := testutil.SeedTenant(t, conn)
	connectorID := testutil.SeedConnector(t, conn, tenantID)
	docs := repo.NewDocumentRepo(conn)

	now := time.Now().Unix()
	batch := make([]*model.Document, 0, 3)
	for i := 0; i < 3; i++ {
		batch = append(batch, &model.Document{
			ID:          testutil.NewID("doc"),
			TenantID:    tenantID,
			ConnectorID: connectorID,
			ExternalID:  fmt.Sprintf("bulk-%d", i),
			Title:       fmt.Sprintf("bulk doc %d", i),
			Status:      model.DocumentStatusProcessing,
			Ctime:       now,
			Mtime:       now,
		})
	}
	require.NoError(t, docs.CreateBulk(context.Background(), batch))

	found, err := docs.FindByExternalIDs(context.Background(), connectorID, []string{"bulk-0", "bulk-2", "bulk-missing"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	require.Equal(t, batch[0].ID, found["bulk-0"].ID)
	require.Equal(t, batch[2].ID, found["bulk-2"].ID)

	// Duplicate primary key fails the whole batch.
	err = docs.CreateBulk(context.Background(), []*model.Document{batch[0]})
	require.ErrorIs(t, err, appErr.ErrConflict)
}

func TestDocumentRepoListFilters(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	tenantID := testutil.SeedTenant(t, conn)
	connectorID := testutil.SeedConnector(t, conn, tenantID)
	docs := repo.NewDocumentRepo(conn)

	seedDocument(t, docs, tenantID, connectorID, "list-1", model.DocumentStatusPending)
	seedDocument(t, docs, tenantID, connectorID, "list-2", model.DocumentStatusIndexed)
	seedDocument(t, docs, tenantID, connectorID, "list-3", model.DocumentStatusIndexed)

	listed, total, err := docs.List(context.Background(), tenantID, repo.DocumentListFilter{
		Status: model.DocumentStatusIndexed,
	})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, listed, 2)

	listed, total, err = docs.List(context.Background(), tenantID, repo.DocumentListFilter{
		Search: "list-1",
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "title list-1", listed[0].Title)

	listed, total, err = docs.List(context.Background(), tenantID, repo.DocumentListFilter{
		Limit: 2,
	})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, listed, 2)
}

func TestDocumentRepoBulkDeleteChunks(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	tenantID := testutil.SeedTenant(t, conn)
	connectorID := testutil.SeedConnector(t, conn, tenantID)
	docs := repo.NewDocumentRepo(conn)

	ids := make([]string, 0, 250)
	for i := 0; i < 250; i++ {
		doc := seedDocument(t, docs, tenantID, connectorID, fmt.Sprintf("del-%d", i), model.DocumentStatusPending)
		ids = append(ids, doc.ID)
	}
	// Unknown ids are counted as zero, not errors.
	ids = append(ids, "does-not-exist")

	deleted, err := docs.BulkDelete(context.Background(), tenantID, ids)
	require.NoError(t, err)
	require.Equal(t, int64(250), deleted)

	_, total, err := docs.List(context.Background(), tenantID, repo.DocumentListFilter{})
	require.NoError(t, err)
	require.Equal(t, 0, total)
}

func TestDocumentRepoStats(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	tenantID := testutil.SeedTenant(t, conn)
	connectorID := testutil.SeedConnector(t, conn, tenantID)
	docs := repo.NewDocumentRepo(conn)

	seedDocument(t, docs, tenantID, connectorID, "st-1", model.DocumentStatusPending)
	seedDocument(t, docs, tenantID, connectorID, "st-2", model.DocumentStatusFailed)
	indexed := seedDocument(t, docs, tenantID, connectorID, "st-3", model.DocumentStatusProcessing)
	require.NoError(t, docs.MarkIndexed(context.Background(), tenantID, indexed.ID, indexed.ID, time.Now().Unix()))

	stats, err := docs.Stats(context.Background(), tenantID)
	require.NoError(t, err)
	require.Equal(t, 3, stats.Total)
	require.Equal(t, 1, stats.Pending)
	require.Equal(t, 1, stats.Failed)
	require.Equal(t, 1, stats.Indexed)
	require.Equal(t, 1, stats.InVectorDB)
	require.Equal(t, stats.Total, stats.Pending+stats.Processing+stats.Classified+stats.Indexed+stats.Failed)
}

func TestDocumentRepoBulkClassify(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	tenantID := testutil.SeedTenant(t, conn)
	connectorID := testutil.SeedConnector(t, conn, tenantID)
	docs := repo.NewDocumentRepo(conn)

	a := seedDocument(t, docs, tenantID, connectorID, "cl-1", model.DocumentStatusPending)
	b := seedDocument(t, docs, tenantID, connectorID, "cl-2", model.DocumentStatusPending)

	count, err := docs.BulkClassify(context.Background(), tenantID, []string{a.ID, b.ID}, "work", 0.9, time.Now().Unix())
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	fetched, err := docs.GetByID(context.Background(), tenantID, a.ID)
	require.NoError(t, err)
	require.Equal(t, "work", fetched.Classification)
	require.Equal(t, model.DocumentStatusClassified, fetched.Status)
	require.InDelta(t, 0.9, fetched.ClassificationConfidence, 0.0001)
}

func TestDocumentRepoListUnindexedIncludesFailed(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	tenantID := testutil.SeedTenant(t, conn)
	connectorID := testutil.SeedConnector(t, conn, tenantID)
	docs := repo.NewDocumentRepo(conn)

	pending := seedDocument(t, docs, tenantID, connectorID, "ui-1", model.DocumentStatusPending)
	failed := seedDocument(t, docs, tenantID, connectorID, "ui-2", model.DocumentStatusFailed)
	indexed := seedDocument(t, docs, tenantID, connectorID, "ui-3", model.DocumentStatusProcessing)
	require.NoError(t, docs.MarkIndexed(context.Background(), tenantID, indexed.ID, indexed.ID, time.Now().Unix()))

	unindexed, err := docs.ListUnindexed(context.Background(), 1000)
	require.NoError(t, err)
	ids := map[string]bool{}
	for _, doc := range unindexed {
		ids[doc.ID] = true
	}
	require.True(t, ids[pending.ID])
	require.True(t, ids[failed.ID])
	require.False(t, ids[indexed.ID])
}

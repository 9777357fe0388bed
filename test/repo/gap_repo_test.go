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

func seedGap(t *testing.T, gaps *repo.GapRepo, tenantID, category string, priority int) *model.KnowledgeGap {
	t.Helper()
	now := time.Now().Unix()
	gap := &model.KnowledgeGap{
		ID:       testutil.NewID("gap"),
		TenantID: tenantID,
		Question: "what is missing?",
		Category: category,
		Priority: priority,
		Status:   model.GapStatusOpen,
		Ctime:    now,
		Mtime:    now,
	}
	require.NoError(t, gaps.Create(context.Background(), gap))
	return gap
}

func TestGapRepoAnswerIsCompareAndSwap(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	tenantID := testutil.SeedTenant(t, conn)
	gaps := repo.NewGapRepo(conn)
	gap := seedGap(t, gaps, tenantID, "ops", 3)

	ok, err := gaps.Answer(context.Background(), tenantID, gap.ID, "the answer", time.Now().Unix())
	require.NoError(t, err)
	require.True(t, ok)

	fetched, err := gaps.GetByID(context.Background(), tenantID, gap.ID)
	require.NoError(t, err)
	require.Equal(t, model.GapStatusAnswered, fetched.Status)
	require.Equal(t, "the answer", fetched.Answer)
	require.NotZero(t, fetched.AnsweredAt)

	// Only open gaps transition.
	ok, err = gaps.Answer(context.Background(), tenantID, gap.ID, "again", time.Now().Unix())
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = gaps.Dismiss(context.Background(), tenantID, gap.ID, time.Now().Unix())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGapRepoBulkDismiss(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	tenantID := testutil.SeedTenant(t, conn)
	gaps := repo.NewGapRepo(conn)
	a := seedGap(t, gaps, tenantID, "ops", 2)
	b := seedGap(t, gaps, tenantID, "ops", 2)
	answered := seedGap(t, gaps, tenantID, "ops", 2)
	ok, err := gaps.Answer(context.Background(), tenantID, answered.ID, "done", time.Now().Unix())
	require.NoError(t, err)
	require.True(t, ok)

	count, err := gaps.BulkDismiss(context.Background(), tenantID, []string{a.ID, b.ID, answered.ID}, time.Now().Unix())
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	fetched, err := gaps.GetByID(context.Background(), tenantID, answered.ID)
	require.NoError(t, err)
	require.Equal(t, model.GapStatusAnswered, fetched.Status)
}

func TestGapRepoListStatsAndCategories(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	tenantID := testutil.SeedTenant(t, conn)
	gaps := repo.NewGapRepo(conn)

	seedGap(t, gaps, tenantID, "ops", 5)
	seedGap(t, gaps, tenantID, "ops", 4)
	low := seedGap(t, gaps, tenantID, "billing", 1)
	ok, err := gaps.Dismiss(context.Background(), tenantID, low.ID, time.Now().Unix())
	require.NoError(t, err)
	require.True(t, ok)

	listed, total, err := gaps.List(context.Background(), tenantID, repo.GapListFilter{Status: model.GapStatusOpen})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, listed, 2)
	// Ordered by priority, highest first.
	require.Equal(t, 5, listed[0].Priority)

	listed, total, err = gaps.List(context.Background(), tenantID, repo.GapListFilter{Category: "billing"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, model.GapStatusDismissed, listed[0].Status)

	stats, err := gaps.Stats(context.Background(), tenantID)
	require.NoError(t, err)
	require.Equal(t, 3, stats.Total)
	require.Equal(t, 2, stats.Open)
	require.Equal(t, 1, stats.Dismissed)
	require.Equal(t, 2, stats.HighPriority)

	categories, err := gaps.Categories(context.Background(), tenantID)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	require.Equal(t, "ops", categories[0].Category)
	require.Equal(t, 2, categories[0].Count)
}

func TestGapRepoDelete(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	tenantID := testutil.SeedTenant(t, conn)
	gaps := repo.NewGapRepo(conn)
	gap := seedGap(t, gaps, tenantID, "ops", 3)

	require.NoError(t, gaps.Delete(context.Background(), tenantID, gap.ID))
	_, err := gaps.GetByID(context.Background(), tenantID, gap.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

package job

import (
	"context"
	"time"

	"github.com/xxxsen/knowhub/internal/repo"
)

// EmbeddingCacheCleanupJob expires persisted embeddings so the cache
// table does not grow without bound.
type EmbeddingCacheCleanupJob struct {
	cacheRepo  *repo.EmbeddingCacheRepo
	maxAgeDays int
}

func NewEmbeddingCacheCleanupJob(cacheRepo *repo.EmbeddingCacheRepo, maxAgeDays int) *EmbeddingCacheCleanupJob {
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}
	return &EmbeddingCacheCleanupJob{cacheRepo: cacheRepo, maxAgeDays: maxAgeDays}
}

func (j *EmbeddingCacheCleanupJob) Name() string {
	return "embedding_cache_cleanup"
}

func (j *EmbeddingCacheCleanupJob) Run(ctx context.Context) error {
	cutoff := time.Now().Add(-time.Duration(j.maxAgeDays) * 24 * time.Hour).Unix()
	_, err := j.cacheRepo.DeleteBefore(ctx, cutoff)
	return err
}

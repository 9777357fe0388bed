package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/knowhub/internal/ai"
	"github.com/xxxsen/knowhub/internal/model"
	"github.com/xxxsen/knowhub/internal/repo"
	"github.com/xxxsen/knowhub/internal/vector"
)

const reindexBatchSize = 100

// ReindexJob sweeps documents that never made it into the vector index
// (is_indexed=false, including batches the sync marked failed) and
// retries embedding and upserting them.
type ReindexJob struct {
	docRepo *repo.DocumentRepo
	manager *ai.Manager
	index   vector.Index
	limit   int
}

func NewReindexJob(docRepo *repo.DocumentRepo, manager *ai.Manager, index vector.Index, limit int) *ReindexJob {
	if limit <= 0 {
		limit = 200
	}
	return &ReindexJob{
		docRepo: docRepo,
		manager: manager,
		index:   index,
		limit:   limit,
	}
}

func (j *ReindexJob) Name() string {
	return "reindex_sweep"
}

func (j *ReindexJob) Run(ctx context.Context) error {
	docs, err := j.docRepo.ListUnindexed(ctx, j.limit)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}
	logger := logutil.GetLogger(ctx).With(zap.String("job", j.Name()))

	// Upserts are namespaced per tenant, so group first.
	byTenant := make(map[string][]*model.Document)
	for _, doc := range docs {
		byTenant[doc.TenantID] = append(byTenant[doc.TenantID], doc)
	}
	var reindexed int
	for tenantID, tenantDocs := range byTenant {
		for start := 0; start < len(tenantDocs); start += reindexBatchSize {
			end := start + reindexBatchSize
			if end > len(tenantDocs) {
				end = len(tenantDocs)
			}
			batch := tenantDocs[start:end]
			if err := j.reindexBatch(ctx, tenantID, batch); err != nil {
				logger.Warn("reindex batch failed",
					zap.String("tenant_id", tenantID),
					zap.Int("size", len(batch)),
					zap.Error(err))
				continue
			}
			reindexed += len(batch)
		}
	}
	logger.Info("reindex sweep finished",
		zap.Int("candidates", len(docs)),
		zap.Int("reindexed", reindexed))
	return nil
}

func (j *ReindexJob) reindexBatch(ctx context.Context, tenantID string, batch []*model.Document) error {
	texts := make([]string, 0, len(batch))
	for _, doc := range batch {
		texts = append(texts, ai.BuildEmbedInput(doc.Title, doc.Content))
	}
	embeddings, err := j.manager.EmbedBatch(ctx, texts, "RETRIEVAL_DOCUMENT")
	if err != nil {
		return err
	}
	entries := make([]vector.Entry, 0, len(batch))
	for i, doc := range batch {
		content := doc.Content
		if len(content) > 1000 {
			content = content[:1000]
		}
		meta := map[string]string{
			"document_id": doc.ID,
			"title":       doc.Title,
			"content":     content,
		}
		if doc.SourceURL != "" {
			meta["source_url"] = doc.SourceURL
		}
		entries = append(entries, vector.Entry{
			ID:        doc.ID,
			Embedding: embeddings[i],
			Metadata:  meta,
		})
	}
	if err := j.index.Upsert(ctx, tenantID, entries); err != nil {
		return err
	}
	now := time.Now().Unix()
	for _, doc := range batch {
		if err := j.docRepo.MarkIndexed(ctx, tenantID, doc.ID, doc.ID, now); err != nil {
			logutil.GetLogger(ctx).Warn("mark indexed failed",
				zap.String("document_id", doc.ID), zap.Error(err))
		}
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/knowhub/internal/ai"
	"github.com/xxxsen/knowhub/internal/connector"
	"github.com/xxxsen/knowhub/internal/model"
	appErr "github.com/xxxsen/knowhub/internal/pkg/errors"
	"github.com/xxxsen/knowhub/internal/vector"
)

const (
	defaultIndexBatchSize = 100
	indexBatchDelay       = 100 * time.Millisecond
	embedTaskDocument     = "RETRIEVAL_DOCUMENT"
)

type syncConnectorStore interface {
	GetByID(ctx context.Context, tenantID, connectorID string) (*model.Connector, error)
	SetSyncingIf(ctx context.Context, tenantID, connectorID string, mtime int64) (bool, error)
	FinishSync(ctx context.Context, tenantID, connectorID, status, syncError string, lastSyncAt, mtime int64) error
	UpdateCredentials(ctx context.Context, tenantID, connectorID, credentials string, mtime int64) error
}

type syncProgressStore interface {
	Reset(ctx context.Context, connectorID string, startedAt int64) error
	Get(ctx context.Context, connectorID string) (*model.SyncProgress, error)
	SetStep(ctx context.Context, connectorID, step string) error
	SetTotal(ctx context.Context, connectorID string, total int) error
	Advance(ctx context.Context, connectorID string, processed, indexed, failed int) error
	Finish(ctx context.Context, connectorID, status, errorMessage string, completedAt int64) error
}

type syncDocumentStore interface {
	documentFinder
	CreateBulk(ctx context.Context, docs []*model.Document) error
	MarkIndexed(ctx context.Context, tenantID, docID, vectorID string, mtime int64) error
	BulkUpdateStatus(ctx context.Context, tenantID string, docIDs []string, status string, mtime int64) (int64, error)
}

type sourceOpener interface {
	OpenSource(conn *model.Connector) (connector.Source, error)
	SealCredentials(credentials string) (string, error)
}

type embedClient interface {
	EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error)
}

// SyncService drives the connector sync pipeline: fetch, dedup, bulk
// persist, embed and index, finalize. Execution is detached from the
// request that starts it.
type SyncService struct {
	connStore     syncConnectorStore
	progressStore syncProgressStore
	docStore      syncDocumentStore
	dedup         *Deduplicator
	opener        sourceOpener
	embedder      embedClient
	index         vector.Index
	batchSize     int
}

func NewSyncService(
	connStore syncConnectorStore,
	progressStore syncProgressStore,
	docStore syncDocumentStore,
	opener sourceOpener,
	embedder embedClient,
	index vector.Index,
) *SyncService {
	return &SyncService{
		connStore:     connStore,
		progressStore: progressStore,
		docStore:      docStore,
		dedup:         NewDeduplicator(docStore),
		opener:        opener,
		embedder:      embedder,
		index:         index,
		batchSize:     defaultIndexBatchSize,
	}
}

// StartSync transitions the connector into the syncing state and kicks
// off the pipeline in the background. Only one sync may run per
// connector; a concurrent start gets ErrConflict from the conditional
// status update.
func (s *SyncService) StartSync(ctx context.Context, tenantID, connectorID string) error {
	conn, err := s.connStore.GetByID(ctx, tenantID, connectorID)
	if err != nil {
		return err
	}
	if !conn.IsActive {
		return appErr.ErrInvalid
	}
	now := time.Now().Unix()
	ok, err := s.connStore.SetSyncingIf(ctx, tenantID, connectorID, now)
	if err != nil {
		return err
	}
	if !ok {
		return appErr.ErrConflict
	}
	if err := s.progressStore.Reset(ctx, connectorID, now); err != nil {
		// The connector already holds the syncing slot; release it so a
		// retry is possible.
		_ = s.connStore.FinishSync(ctx, tenantID, connectorID, model.SyncStatusFailed, err.Error(), conn.LastSyncAt, time.Now().Unix())
		return err
	}
	go s.runSync(context.Background(), conn)
	return nil
}

// Progress reads the latest sync snapshot; a connector never synced
// reports an idle zero snapshot.
func (s *SyncService) Progress(ctx context.Context, tenantID, connectorID string) (*model.SyncProgress, error) {
	if _, err := s.connStore.GetByID(ctx, tenantID, connectorID); err != nil {
		return nil, err
	}
	progress, err := s.progressStore.Get(ctx, connectorID)
	if err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return &model.SyncProgress{
				ConnectorID: connectorID,
				Status:      model.SyncStatusIdle,
			}, nil
		}
		return nil, err
	}
	return progress, nil
}

func (s *SyncService) runSync(ctx context.Context, conn *model.Connector) {
	logger := logutil.GetLogger(ctx).With(
		zap.String("connector_id", conn.ID),
		zap.String("connector_type", conn.ConnectorType),
	)
	logger.Info("sync started")

	fail := func(err error) {
		logger.Error("sync failed", zap.Error(err))
		now := time.Now().Unix()
		_ = s.progressStore.Finish(ctx, conn.ID, model.SyncStatusFailed, err.Error(), now)
		_ = s.connStore.FinishSync(ctx, conn.TenantID, conn.ID, model.SyncStatusFailed, err.Error(), conn.LastSyncAt, now)
	}

	source, err := s.opener.OpenSource(conn)
	if err != nil {
		fail(err)
		return
	}
	s.refreshCredentials(ctx, conn, source, logger)

	_ = s.progressStore.SetStep(ctx, conn.ID, "fetching items")
	items, err := source.FetchItems(ctx)
	if err != nil {
		fail(err)
		return
	}
	if err := s.progressStore.SetTotal(ctx, conn.ID, len(items)); err != nil {
		fail(err)
		return
	}
	_ = s.progressStore.SetStep(ctx, conn.ID, fmt.Sprintf("processing %d items", len(items)))

	fresh, known, err := s.dedup.Classify(ctx, conn.ID, items)
	if err != nil {
		fail(err)
		return
	}
	logger.Info("items deduplicated",
		zap.Int("total", len(items)),
		zap.Int("new", len(fresh)),
		zap.Int("known", len(known)))

	docs := buildDocuments(conn, fresh)
	if err := s.docStore.CreateBulk(ctx, docs); err != nil {
		fail(err)
		return
	}
	if err := s.progressStore.Advance(ctx, conn.ID, len(docs), 0, 0); err != nil {
		fail(err)
		return
	}

	_ = s.progressStore.SetStep(ctx, conn.ID, "indexing documents")
	indexed, failed := s.indexDocuments(ctx, conn, docs, logger)

	now := time.Now().Unix()
	if err := s.progressStore.Finish(ctx, conn.ID, model.SyncStatusCompleted, "", now); err != nil {
		logger.Error("finalize progress failed", zap.Error(err))
	}
	if err := s.connStore.FinishSync(ctx, conn.TenantID, conn.ID, model.SyncStatusCompleted, "", now, now); err != nil {
		logger.Error("finalize connector failed", zap.Error(err))
	}
	logger.Info("sync completed",
		zap.Int("total", len(items)),
		zap.Int("processed", len(docs)),
		zap.Int("indexed", indexed),
		zap.Int("failed", failed))
}

// refreshCredentials persists rotated credentials before the fetch; a
// refresh failure degrades to using the stored ones.
func (s *SyncService) refreshCredentials(ctx context.Context, conn *model.Connector, source connector.Source, logger *zap.Logger) {
	credentials, refreshed, err := source.RefreshCredentials(ctx)
	if err != nil {
		logger.Warn("credential refresh failed", zap.Error(err))
		return
	}
	if !refreshed {
		return
	}
	sealed, err := s.opener.SealCredentials(credentials)
	if err != nil {
		logger.Warn("seal refreshed credentials failed", zap.Error(err))
		return
	}
	if err := s.connStore.UpdateCredentials(ctx, conn.TenantID, conn.ID, sealed, time.Now().Unix()); err != nil {
		logger.Warn("persist refreshed credentials failed", zap.Error(err))
		return
	}
	conn.Credentials = sealed
	logger.Info("connector credentials refreshed")
}

// indexDocuments embeds and upserts in fixed-size batches. A failing
// batch marks its documents failed and the sync moves on to the next
// batch.
func (s *SyncService) indexDocuments(ctx context.Context, conn *model.Connector, docs []*model.Document, logger *zap.Logger) (indexed int, failed int) {
	for start := 0; start < len(docs); start += s.batchSize {
		end := start + s.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]
		if err := s.indexBatch(ctx, conn, batch); err != nil {
			logger.Warn("index batch failed",
				zap.Int("offset", start),
				zap.Int("size", len(batch)),
				zap.Error(err))
			ids := make([]string, 0, len(batch))
			for _, doc := range batch {
				ids = append(ids, doc.ID)
			}
			_, _ = s.docStore.BulkUpdateStatus(ctx, conn.TenantID, ids, model.DocumentStatusFailed, time.Now().Unix())
			_ = s.progressStore.Advance(ctx, conn.ID, 0, 0, len(batch))
			failed += len(batch)
		} else {
			_ = s.progressStore.Advance(ctx, conn.ID, 0, len(batch), 0)
			indexed += len(batch)
		}
		if end < len(docs) {
			time.Sleep(indexBatchDelay)
		}
	}
	return indexed, failed
}

func (s *SyncService) indexBatch(ctx context.Context, conn *model.Connector, batch []*model.Document) error {
	texts := make([]string, 0, len(batch))
	for _, doc := range batch {
		texts = append(texts, ai.BuildEmbedInput(doc.Title, doc.Content))
	}
	embeddings, err := s.embedder.EmbedBatch(ctx, texts, embedTaskDocument)
	if err != nil {
		return err
	}
	if len(embeddings) != len(batch) {
		return fmt.Errorf("embedding count mismatch: want %d got %d", len(batch), len(embeddings))
	}
	entries := make([]vector.Entry, 0, len(batch))
	for i, doc := range batch {
		entries = append(entries, vector.Entry{
			ID:        doc.ID,
			Embedding: embeddings[i],
			Metadata:  vectorMetadata(doc),
		})
	}
	if err := s.index.Upsert(ctx, conn.TenantID, entries); err != nil {
		return err
	}
	now := time.Now().Unix()
	for _, doc := range batch {
		if err := s.docStore.MarkIndexed(ctx, conn.TenantID, doc.ID, doc.ID, now); err != nil {
			logutil.GetLogger(ctx).Warn("mark indexed failed",
				zap.String("document_id", doc.ID), zap.Error(err))
		}
	}
	return nil
}

func buildDocuments(conn *model.Connector, items []connector.Item) []*model.Document {
	now := time.Now().Unix()
	docs := make([]*model.Document, 0, len(items))
	for _, item := range items {
		docs = append(docs, &model.Document{
			ID:          newID(),
			TenantID:    conn.TenantID,
			ConnectorID: conn.ID,
			ExternalID:  item.ExternalID,
			Title:       item.Title,
			Content:     item.Content,
			ContentHash: contentHash(item.Content),
			SourceURL:   item.SourceURL,
			MimeType:    item.MimeType,
			Status:      model.DocumentStatusProcessing,
			Metadata:    item.Metadata,
			Ctime:       now,
			Mtime:       now,
		})
	}
	return docs
}

// vectorMetadata is what chat retrieval reads back from the index; it
// carries enough to build grounding context without a relational
// lookup.
func vectorMetadata(doc *model.Document) map[string]string {
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
	return meta
}

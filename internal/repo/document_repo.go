package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/knowhub/internal/model"
	"github.com/xxxsen/knowhub/internal/pkg/dbutil"
	appErr "github.com/xxxsen/knowhub/internal/pkg/errors"
)

// bulkDeleteChunkSize bounds the number of ids per DELETE statement.
const bulkDeleteChunkSize = 100

var documentColumns = []string{
	"id", "tenant_id", "connector_id", "external_id", "title", "content",
	"content_hash", "source_url", "mime_type", "status", "classification",
	"classification_confidence", "project_id", "metadata_json", "vector_id",
	"is_indexed", "ctime", "mtime",
}

type DocumentListFilter struct {
	Status         string
	Classification string
	ProjectID      string
	ConnectorID    string
	Search         string
	Limit          uint
	Offset         uint
}

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func documentRow(doc *model.Document) map[string]interface{} {
	metaJSON := []byte("{}")
	if len(doc.Metadata) > 0 {
		metaJSON, _ = json.Marshal(doc.Metadata)
	}
	return map[string]interface{}{
		"id":                        doc.ID,
		"tenant_id":                 doc.TenantID,
		"connector_id":              nullableStr(doc.ConnectorID),
		"external_id":               doc.ExternalID,
		"title":                     doc.Title,
		"content":                   doc.Content,
		"content_hash":              doc.ContentHash,
		"source_url":                doc.SourceURL,
		"mime_type":                 doc.MimeType,
		"status":                    doc.Status,
		"classification":            doc.Classification,
		"classification_confidence": doc.ClassificationConfidence,
		"project_id":                nullableStr(doc.ProjectID),
		"metadata_json":             string(metaJSON),
		"vector_id":                 doc.VectorID,
		"is_indexed":                boolToInt(doc.IsIndexed),
		"ctime":                     doc.Ctime,
		"mtime":                     doc.Mtime,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var doc model.Document
	var connectorID, projectID sql.NullString
	var metaJSON string
	var isIndexed int
	if err := row.Scan(
		&doc.ID,
		&doc.TenantID,
		&connectorID,
		&doc.ExternalID,
		&doc.Title,
		&doc.Content,
		&doc.ContentHash,
		&doc.SourceURL,
		&doc.MimeType,
		&doc.Status,
		&doc.Classification,
		&doc.ClassificationConfidence,
		&projectID,
		&metaJSON,
		&doc.VectorID,
		&isIndexed,
		&doc.Ctime,
		&doc.Mtime,
	); err != nil {
		return nil, err
	}
	doc.ConnectorID = connectorID.String
	doc.ProjectID = projectID.String
	doc.IsIndexed = isIndexed == 1
	if metaJSON != "" && metaJSON != "{}" {
		_ = json.Unmarshal([]byte(metaJSON), &doc.Metadata)
	}
	return &doc, nil
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{documentRow(doc)})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

// CreateBulk inserts all documents in one transaction, preserving input
// order. Either every row lands or none does.
func (r *DocumentRepo) CreateBulk(ctx context.Context, docs []*model.Document) error {
	if len(docs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, doc := range docs {
		sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{documentRow(doc)})
		if err != nil {
			return err
		}
		sqlStr, args = dbutil.Finalize(sqlStr, args)
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			if dbutil.IsConflict(err) {
				return appErr.ErrConflict
			}
			return err
		}
	}
	return tx.Commit()
}

func (r *DocumentRepo) GetByID(ctx context.Context, tenantID, docID string) (*model.Document, error) {
	where := map[string]interface{}{
		"id":        docID,
		"tenant_id": tenantID,
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	doc, err := scanDocument(r.db.QueryRowContext(ctx, sqlStr, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (r *DocumentRepo) List(ctx context.Context, tenantID string, filter DocumentListFilter) ([]*model.Document, int, error) {
	where := map[string]interface{}{
		"tenant_id": tenantID,
	}
	if filter.Status != "" {
		where["status"] = filter.Status
	}
	if filter.Classification != "" {
		where["classification"] = filter.Classification
	}
	if filter.ProjectID != "" {
		where["project_id"] = filter.ProjectID
	}
	if filter.ConnectorID != "" {
		where["connector_id"] = filter.ConnectorID
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		where["_custom_search"] = builder.Custom("(title ILIKE ? OR content ILIKE ?)", like, like)
	}

	countStr, countArgs, err := builder.BuildSelect("documents", where, []string{"count(1)"})
	if err != nil {
		return nil, 0, err
	}
	countStr, countArgs = dbutil.Finalize(countStr, countArgs)
	var total int
	if err := r.db.QueryRowContext(ctx, countStr, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	where["_orderby"] = "ctime desc"
	if filter.Limit > 0 {
		where["_limit"] = []uint{filter.Offset, filter.Limit}
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentColumns)
	if err != nil {
		return nil, 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	docs := make([]*model.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, doc)
	}
	return docs, total, rows.Err()
}

func (r *DocumentRepo) ListByIDs(ctx context.Context, tenantID string, docIDs []string) ([]*model.Document, error) {
	if len(docIDs) == 0 {
		return []*model.Document{}, nil
	}
	where := map[string]interface{}{
		"tenant_id":   tenantID,
		"_custom_ids": builder.In{"id": toInterfaces(docIDs)},
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	docs := make([]*model.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// FindByExternalIDs resolves existing documents for a connector in one
// round trip. The result maps external_id to document.
func (r *DocumentRepo) FindByExternalIDs(ctx context.Context, connectorID string, externalIDs []string) (map[string]*model.Document, error) {
	out := make(map[string]*model.Document)
	if len(externalIDs) == 0 {
		return out, nil
	}
	where := map[string]interface{}{
		"connector_id": connectorID,
		"_custom_ext":  builder.In{"external_id": toInterfaces(externalIDs)},
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out[doc.ExternalID] = doc
	}
	return out, rows.Err()
}

func (r *DocumentRepo) FindByContentHashes(ctx context.Context, tenantID string, hashes []string) (map[string]*model.Document, error) {
	out := make(map[string]*model.Document)
	if len(hashes) == 0 {
		return out, nil
	}
	where := map[string]interface{}{
		"tenant_id":    tenantID,
		"_custom_hash": builder.In{"content_hash": toInterfaces(hashes)},
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out[doc.ContentHash] = doc
	}
	return out, rows.Err()
}

func (r *DocumentRepo) Update(ctx context.Context, doc *model.Document) error {
	metaJSON := []byte("{}")
	if len(doc.Metadata) > 0 {
		metaJSON, _ = json.Marshal(doc.Metadata)
	}
	const query = `
		UPDATE documents
		SET title = $1,
			content = $2,
			content_hash = $3,
			source_url = $4,
			mime_type = $5,
			status = $6,
			metadata_json = $7,
			is_indexed = $8,
			mtime = $9
		WHERE id = $10 AND tenant_id = $11
	`
	res, err := r.db.ExecContext(ctx, query,
		doc.Title,
		doc.Content,
		doc.ContentHash,
		doc.SourceURL,
		doc.MimeType,
		doc.Status,
		string(metaJSON),
		boolToInt(doc.IsIndexed),
		doc.Mtime,
		doc.ID,
		doc.TenantID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *DocumentRepo) UpdateStatus(ctx context.Context, tenantID, docID, status string, mtime int64) error {
	const query = `UPDATE documents SET status = $1, mtime = $2 WHERE id = $3 AND tenant_id = $4`
	res, err := r.db.ExecContext(ctx, query, status, mtime, docID, tenantID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *DocumentRepo) BulkUpdateStatus(ctx context.Context, tenantID string, docIDs []string, status string, mtime int64) (int64, error) {
	if len(docIDs) == 0 {
		return 0, nil
	}
	where := map[string]interface{}{
		"tenant_id":   tenantID,
		"_custom_ids": builder.In{"id": toInterfaces(docIDs)},
	}
	update := map[string]interface{}{
		"status": status,
		"mtime":  mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("documents", where, update)
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *DocumentRepo) SetClassification(ctx context.Context, tenantID, docID, classification string, confidence float64, mtime int64) error {
	const query = `
		UPDATE documents
		SET classification = $1, classification_confidence = $2, status = $3, mtime = $4
		WHERE id = $5 AND tenant_id = $6
	`
	res, err := r.db.ExecContext(ctx, query, classification, confidence, model.DocumentStatusClassified, mtime, docID, tenantID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// BulkClassify applies one label to the whole id set in a single
// conditional update.
func (r *DocumentRepo) BulkClassify(ctx context.Context, tenantID string, docIDs []string, classification string, confidence float64, mtime int64) (int64, error) {
	if len(docIDs) == 0 {
		return 0, nil
	}
	where := map[string]interface{}{
		"tenant_id":   tenantID,
		"_custom_ids": builder.In{"id": toInterfaces(docIDs)},
	}
	update := map[string]interface{}{
		"classification":            classification,
		"classification_confidence": confidence,
		"status":                    model.DocumentStatusClassified,
		"mtime":                     mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("documents", where, update)
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *DocumentRepo) BulkAssignProject(ctx context.Context, tenantID string, docIDs []string, projectID string, mtime int64) (int64, error) {
	if len(docIDs) == 0 {
		return 0, nil
	}
	where := map[string]interface{}{
		"tenant_id":   tenantID,
		"_custom_ids": builder.In{"id": toInterfaces(docIDs)},
	}
	update := map[string]interface{}{
		"project_id": nullableStr(projectID),
		"mtime":      mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("documents", where, update)
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkIndexed records a successful vector index write.
func (r *DocumentRepo) MarkIndexed(ctx context.Context, tenantID, docID, vectorID string, mtime int64) error {
	const query = `
		UPDATE documents
		SET vector_id = $1, is_indexed = 1, status = $2, mtime = $3
		WHERE id = $4 AND tenant_id = $5
	`
	res, err := r.db.ExecContext(ctx, query, vectorID, model.DocumentStatusIndexed, mtime, docID, tenantID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *DocumentRepo) Delete(ctx context.Context, tenantID, docID string) error {
	const query = `DELETE FROM documents WHERE id = $1 AND tenant_id = $2`
	res, err := r.db.ExecContext(ctx, query, docID, tenantID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// BulkDelete removes ids in chunks of bulkDeleteChunkSize. Chunks that
// match nothing are not an error; the returned count is the total rows
// actually removed.
func (r *DocumentRepo) BulkDelete(ctx context.Context, tenantID string, docIDs []string) (int64, error) {
	var deleted int64
	for start := 0; start < len(docIDs); start += bulkDeleteChunkSize {
		end := start + bulkDeleteChunkSize
		if end > len(docIDs) {
			end = len(docIDs)
		}
		chunk := docIDs[start:end]
		where := map[string]interface{}{
			"tenant_id":   tenantID,
			"_custom_ids": builder.In{"id": toInterfaces(chunk)},
		}
		sqlStr, args, err := builder.BuildDelete("documents", where)
		if err != nil {
			return deleted, err
		}
		sqlStr, args = dbutil.Finalize(sqlStr, args)
		res, err := r.db.ExecContext(ctx, sqlStr, args...)
		if err != nil {
			return deleted, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return deleted, err
		}
		deleted += affected
	}
	return deleted, nil
}

// Stats computes the full status breakdown in one aggregate query.
func (r *DocumentRepo) Stats(ctx context.Context, tenantID string) (*model.DocumentStats, error) {
	const query = `
		SELECT
			COUNT(1),
			COUNT(1) FILTER (WHERE status = 'pending'),
			COUNT(1) FILTER (WHERE status = 'processing'),
			COUNT(1) FILTER (WHERE status = 'classified'),
			COUNT(1) FILTER (WHERE status = 'indexed'),
			COUNT(1) FILTER (WHERE status = 'failed'),
			COUNT(1) FILTER (WHERE is_indexed = 1)
		FROM documents
		WHERE tenant_id = $1
	`
	var stats model.DocumentStats
	if err := r.db.QueryRowContext(ctx, query, tenantID).Scan(
		&stats.Total,
		&stats.Pending,
		&stats.Processing,
		&stats.Classified,
		&stats.Indexed,
		&stats.Failed,
		&stats.InVectorDB,
	); err != nil {
		return nil, err
	}
	return &stats, nil
}

// ListUnindexed feeds the background reindex sweep.
func (r *DocumentRepo) ListUnindexed(ctx context.Context, limit int) ([]*model.Document, error) {
	where := map[string]interface{}{
		"is_indexed": 0,
		"_orderby":   "mtime asc",
		"_limit":     []uint{0, uint(limit)},
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	docs := make([]*model.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}

func nullableStr(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

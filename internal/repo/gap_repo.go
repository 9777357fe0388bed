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

var gapColumns = []string{
	"id", "tenant_id", "question", "category", "priority", "status",
	"answer", "answered_at", "source_document_ids_json", "ctime", "mtime",
}

type GapListFilter struct {
	Status   string
	Category string
	Limit    uint
	Offset   uint
}

type GapRepo struct {
	db *sql.DB
}

func NewGapRepo(db *sql.DB) *GapRepo {
	return &GapRepo{db: db}
}

func gapRow(gap *model.KnowledgeGap) map[string]interface{} {
	sourcesJSON := []byte("[]")
	if len(gap.SourceDocumentIDs) > 0 {
		sourcesJSON, _ = json.Marshal(gap.SourceDocumentIDs)
	}
	return map[string]interface{}{
		"id":                       gap.ID,
		"tenant_id":                gap.TenantID,
		"question":                 gap.Question,
		"category":                 gap.Category,
		"priority":                 gap.Priority,
		"status":                   gap.Status,
		"answer":                   gap.Answer,
		"answered_at":              gap.AnsweredAt,
		"source_document_ids_json": string(sourcesJSON),
		"ctime":                    gap.Ctime,
		"mtime":                    gap.Mtime,
	}
}

func scanGap(row rowScanner) (*model.KnowledgeGap, error) {
	var gap model.KnowledgeGap
	var sourcesJSON string
	if err := row.Scan(
		&gap.ID,
		&gap.TenantID,
		&gap.Question,
		&gap.Category,
		&gap.Priority,
		&gap.Status,
		&gap.Answer,
		&gap.AnsweredAt,
		&sourcesJSON,
		&gap.Ctime,
		&gap.Mtime,
	); err != nil {
		return nil, err
	}
	if sourcesJSON != "" && sourcesJSON != "[]" {
		_ = json.Unmarshal([]byte(sourcesJSON), &gap.SourceDocumentIDs)
	}
	return &gap, nil
}

func (r *GapRepo) Create(ctx context.Context, gap *model.KnowledgeGap) error {
	sqlStr, args, err := builder.BuildInsert("knowledge_gaps", []map[string]interface{}{gapRow(gap)})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *GapRepo) CreateBulk(ctx context.Context, gaps []*model.KnowledgeGap) error {
	if len(gaps) == 0 {
		return nil
	}
	rows := make([]map[string]interface{}, 0, len(gaps))
	for _, gap := range gaps {
		rows = append(rows, gapRow(gap))
	}
	sqlStr, args, err := builder.BuildInsert("knowledge_gaps", rows)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *GapRepo) GetByID(ctx context.Context, tenantID, gapID string) (*model.KnowledgeGap, error) {
	where := map[string]interface{}{
		"id":        gapID,
		"tenant_id": tenantID,
	}
	sqlStr, args, err := builder.BuildSelect("knowledge_gaps", where, gapColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	gap, err := scanGap(r.db.QueryRowContext(ctx, sqlStr, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return gap, nil
}

func (r *GapRepo) List(ctx context.Context, tenantID string, filter GapListFilter) ([]*model.KnowledgeGap, int, error) {
	where := map[string]interface{}{
		"tenant_id": tenantID,
	}
	if filter.Status != "" {
		where["status"] = filter.Status
	}
	if filter.Category != "" {
		where["category"] = filter.Category
	}

	countStr, countArgs, err := builder.BuildSelect("knowledge_gaps", where, []string{"count(1)"})
	if err != nil {
		return nil, 0, err
	}
	countStr, countArgs = dbutil.Finalize(countStr, countArgs)
	var total int
	if err := r.db.QueryRowContext(ctx, countStr, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	where["_orderby"] = "priority desc, ctime desc"
	if filter.Limit > 0 {
		where["_limit"] = []uint{filter.Offset, filter.Limit}
	}
	sqlStr, args, err := builder.BuildSelect("knowledge_gaps", where, gapColumns)
	if err != nil {
		return nil, 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	gaps := make([]*model.KnowledgeGap, 0)
	for rows.Next() {
		gap, err := scanGap(rows)
		if err != nil {
			return nil, 0, err
		}
		gaps = append(gaps, gap)
	}
	return gaps, total, rows.Err()
}

// Answer transitions an open gap to answered. Answering an already
// resolved gap is a conflict.
func (r *GapRepo) Answer(ctx context.Context, tenantID, gapID, answer string, now int64) (bool, error) {
	const query = `
		UPDATE knowledge_gaps
		SET status = $1, answer = $2, answered_at = $3, mtime = $3
		WHERE id = $4 AND tenant_id = $5 AND status = $6
	`
	res, err := r.db.ExecContext(ctx, query, model.GapStatusAnswered, answer, now, gapID, tenantID, model.GapStatusOpen)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *GapRepo) Dismiss(ctx context.Context, tenantID, gapID string, now int64) (bool, error) {
	const query = `
		UPDATE knowledge_gaps
		SET status = $1, mtime = $2
		WHERE id = $3 AND tenant_id = $4 AND status = $5
	`
	res, err := r.db.ExecContext(ctx, query, model.GapStatusDismissed, now, gapID, tenantID, model.GapStatusOpen)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *GapRepo) BulkDismiss(ctx context.Context, tenantID string, gapIDs []string, now int64) (int64, error) {
	if len(gapIDs) == 0 {
		return 0, nil
	}
	where := map[string]interface{}{
		"tenant_id":   tenantID,
		"status":      model.GapStatusOpen,
		"_custom_ids": builder.In{"id": toInterfaces(gapIDs)},
	}
	update := map[string]interface{}{
		"status": model.GapStatusDismissed,
		"mtime":  now,
	}
	sqlStr, args, err := builder.BuildUpdate("knowledge_gaps", where, update)
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

func (r *GapRepo) Delete(ctx context.Context, tenantID, gapID string) error {
	const query = `DELETE FROM knowledge_gaps WHERE id = $1 AND tenant_id = $2`
	res, err := r.db.ExecContext(ctx, query, gapID, tenantID)
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

func (r *GapRepo) Stats(ctx context.Context, tenantID string) (*model.GapStats, error) {
	const query = `
		SELECT
			COUNT(1),
			COUNT(1) FILTER (WHERE status = 'open'),
			COUNT(1) FILTER (WHERE status = 'answered'),
			COUNT(1) FILTER (WHERE status = 'dismissed'),
			COUNT(1) FILTER (WHERE status = 'open' AND priority >= 4)
		FROM knowledge_gaps
		WHERE tenant_id = $1
	`
	var stats model.GapStats
	if err := r.db.QueryRowContext(ctx, query, tenantID).Scan(
		&stats.Total,
		&stats.Open,
		&stats.Answered,
		&stats.Dismissed,
		&stats.HighPriority,
	); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *GapRepo) Categories(ctx context.Context, tenantID string) ([]model.GapCategory, error) {
	const query = `
		SELECT category, COUNT(1)
		FROM knowledge_gaps
		WHERE tenant_id = $1 AND category <> ''
		GROUP BY category
		ORDER BY COUNT(1) DESC
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	categories := make([]model.GapCategory, 0)
	for rows.Next() {
		var c model.GapCategory
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

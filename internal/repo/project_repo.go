package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/knowhub/internal/model"
	"github.com/xxxsen/knowhub/internal/pkg/dbutil"
	appErr "github.com/xxxsen/knowhub/internal/pkg/errors"
)

var projectColumns = []string{
	"id", "tenant_id", "name", "description", "color", "is_auto_detected", "ctime", "mtime",
}

type ProjectRepo struct {
	db *sql.DB
}

func NewProjectRepo(db *sql.DB) *ProjectRepo {
	return &ProjectRepo{db: db}
}

func scanProject(row rowScanner) (*model.Project, error) {
	var project model.Project
	var autoDetected int
	if err := row.Scan(
		&project.ID,
		&project.TenantID,
		&project.Name,
		&project.Description,
		&project.Color,
		&autoDetected,
		&project.Ctime,
		&project.Mtime,
	); err != nil {
		return nil, err
	}
	project.IsAutoDetected = autoDetected == 1
	return &project, nil
}

func (r *ProjectRepo) Create(ctx context.Context, project *model.Project) error {
	data := map[string]interface{}{
		"id":               project.ID,
		"tenant_id":        project.TenantID,
		"name":             project.Name,
		"description":      project.Description,
		"color":            project.Color,
		"is_auto_detected": boolToInt(project.IsAutoDetected),
		"ctime":            project.Ctime,
		"mtime":            project.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("projects", []map[string]interface{}{data})
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

func (r *ProjectRepo) GetByID(ctx context.Context, tenantID, projectID string) (*model.Project, error) {
	where := map[string]interface{}{
		"id":        projectID,
		"tenant_id": tenantID,
	}
	sqlStr, args, err := builder.BuildSelect("projects", where, projectColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	project, err := scanProject(r.db.QueryRowContext(ctx, sqlStr, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return project, nil
}

func (r *ProjectRepo) GetByName(ctx context.Context, tenantID, name string) (*model.Project, error) {
	where := map[string]interface{}{
		"tenant_id": tenantID,
		"name":      name,
		"_limit":    []uint{0, 1},
	}
	sqlStr, args, err := builder.BuildSelect("projects", where, projectColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	project, err := scanProject(r.db.QueryRowContext(ctx, sqlStr, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return project, nil
}

func (r *ProjectRepo) List(ctx context.Context, tenantID string) ([]*model.Project, error) {
	where := map[string]interface{}{
		"tenant_id": tenantID,
		"_orderby":  "ctime desc",
	}
	sqlStr, args, err := builder.BuildSelect("projects", where, projectColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	projects := make([]*model.Project, 0)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

func (r *ProjectRepo) Update(ctx context.Context, project *model.Project) error {
	where := map[string]interface{}{
		"id":        project.ID,
		"tenant_id": project.TenantID,
	}
	update := map[string]interface{}{
		"name":        project.Name,
		"description": project.Description,
		"color":       project.Color,
		"mtime":       project.Mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("projects", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *ProjectRepo) Delete(ctx context.Context, tenantID, projectID string) error {
	const query = `DELETE FROM projects WHERE id = $1 AND tenant_id = $2`
	res, err := r.db.ExecContext(ctx, query, projectID, tenantID)
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

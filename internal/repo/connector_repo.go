package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/knowhub/internal/model"
	"github.com/xxxsen/knowhub/internal/pkg/dbutil"
	appErr "github.com/xxxsen/knowhub/internal/pkg/errors"
)

var connectorColumns = []string{
	"id", "tenant_id", "connector_type", "name", "credentials", "is_active",
	"sync_status", "sync_error", "last_sync_at", "ctime", "mtime",
}

type ConnectorRepo struct {
	db *sql.DB
}

func NewConnectorRepo(db *sql.DB) *ConnectorRepo {
	return &ConnectorRepo{db: db}
}

func scanConnector(row rowScanner) (*model.Connector, error) {
	var conn model.Connector
	var isActive int
	if err := row.Scan(
		&conn.ID,
		&conn.TenantID,
		&conn.ConnectorType,
		&conn.Name,
		&conn.Credentials,
		&isActive,
		&conn.SyncStatus,
		&conn.SyncError,
		&conn.LastSyncAt,
		&conn.Ctime,
		&conn.Mtime,
	); err != nil {
		return nil, err
	}
	conn.IsActive = isActive == 1
	return &conn, nil
}

func (r *ConnectorRepo) Create(ctx context.Context, conn *model.Connector) error {
	data := map[string]interface{}{
		"id":             conn.ID,
		"tenant_id":      conn.TenantID,
		"connector_type": conn.ConnectorType,
		"name":           conn.Name,
		"credentials":    conn.Credentials,
		"is_active":      boolToInt(conn.IsActive),
		"sync_status":    conn.SyncStatus,
		"sync_error":     conn.SyncError,
		"last_sync_at":   conn.LastSyncAt,
		"ctime":          conn.Ctime,
		"mtime":          conn.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("connectors", []map[string]interface{}{data})
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

func (r *ConnectorRepo) GetByID(ctx context.Context, tenantID, connectorID string) (*model.Connector, error) {
	where := map[string]interface{}{
		"id":        connectorID,
		"tenant_id": tenantID,
	}
	sqlStr, args, err := builder.BuildSelect("connectors", where, connectorColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	conn, err := scanConnector(r.db.QueryRowContext(ctx, sqlStr, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return conn, nil
}

func (r *ConnectorRepo) List(ctx context.Context, tenantID, connectorType string) ([]*model.Connector, error) {
	where := map[string]interface{}{
		"tenant_id": tenantID,
		"_orderby":  "ctime desc",
	}
	if connectorType != "" {
		where["connector_type"] = connectorType
	}
	sqlStr, args, err := builder.BuildSelect("connectors", where, connectorColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	conns := make([]*model.Connector, 0)
	for rows.Next() {
		conn, err := scanConnector(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, conn)
	}
	return conns, rows.Err()
}

func (r *ConnectorRepo) Update(ctx context.Context, conn *model.Connector) error {
	where := map[string]interface{}{
		"id":        conn.ID,
		"tenant_id": conn.TenantID,
	}
	update := map[string]interface{}{
		"name":      conn.Name,
		"is_active": boolToInt(conn.IsActive),
		"mtime":     conn.Mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("connectors", where, update)
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

func (r *ConnectorRepo) UpdateCredentials(ctx context.Context, tenantID, connectorID, credentials string, mtime int64) error {
	const query = `UPDATE connectors SET credentials = $1, mtime = $2 WHERE id = $3 AND tenant_id = $4`
	res, err := r.db.ExecContext(ctx, query, credentials, mtime, connectorID, tenantID)
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

// SetSyncingIf flips the connector into the syncing state only when no
// sync is currently running. Returns false when another sync holds the
// slot.
func (r *ConnectorRepo) SetSyncingIf(ctx context.Context, tenantID, connectorID string, mtime int64) (bool, error) {
	const query = `
		UPDATE connectors
		SET sync_status = $1, sync_error = '', mtime = $2
		WHERE id = $3 AND tenant_id = $4 AND sync_status <> $1
	`
	res, err := r.db.ExecContext(ctx, query, model.SyncStatusSyncing, mtime, connectorID, tenantID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *ConnectorRepo) FinishSync(ctx context.Context, tenantID, connectorID, status, syncError string, lastSyncAt, mtime int64) error {
	const query = `
		UPDATE connectors
		SET sync_status = $1, sync_error = $2, last_sync_at = $3, mtime = $4
		WHERE id = $5 AND tenant_id = $6
	`
	res, err := r.db.ExecContext(ctx, query, status, syncError, lastSyncAt, mtime, connectorID, tenantID)
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

func (r *ConnectorRepo) Delete(ctx context.Context, tenantID, connectorID string) error {
	const query = `DELETE FROM connectors WHERE id = $1 AND tenant_id = $2`
	res, err := r.db.ExecContext(ctx, query, connectorID, tenantID)
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

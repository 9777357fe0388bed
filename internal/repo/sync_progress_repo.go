package repo

import (
	"context"
	"database/sql"

	"github.com/xxxsen/knowhub/internal/model"
	appErr "github.com/xxxsen/knowhub/internal/pkg/errors"
)

type SyncProgressRepo struct {
	db *sql.DB
}

func NewSyncProgressRepo(db *sql.DB) *SyncProgressRepo {
	return &SyncProgressRepo{db: db}
}

// Reset overwrites the connector's progress row in place for a fresh
// sync attempt.
func (r *SyncProgressRepo) Reset(ctx context.Context, connectorID string, startedAt int64) error {
	const query = `
		INSERT INTO sync_progress (connector_id, status, total_items, processed_items, indexed_items, failed_items, current_step, error_message, started_at, completed_at)
		VALUES ($1, $2, 0, 0, 0, 0, $3, '', $4, 0)
		ON CONFLICT (connector_id) DO UPDATE SET
			status = EXCLUDED.status,
			total_items = 0,
			processed_items = 0,
			indexed_items = 0,
			failed_items = 0,
			current_step = EXCLUDED.current_step,
			error_message = '',
			started_at = EXCLUDED.started_at,
			completed_at = 0
	`
	_, err := r.db.ExecContext(ctx, query, connectorID, model.SyncStatusSyncing, "starting", startedAt)
	return err
}

func (r *SyncProgressRepo) Get(ctx context.Context, connectorID string) (*model.SyncProgress, error) {
	const query = `
		SELECT connector_id, status, total_items, processed_items, indexed_items, failed_items, current_step, error_message, started_at, completed_at
		FROM sync_progress
		WHERE connector_id = $1
	`
	row := r.db.QueryRowContext(ctx, query, connectorID)
	var p model.SyncProgress
	if err := row.Scan(
		&p.ConnectorID,
		&p.Status,
		&p.TotalItems,
		&p.ProcessedItems,
		&p.IndexedItems,
		&p.FailedItems,
		&p.CurrentStep,
		&p.ErrorMessage,
		&p.StartedAt,
		&p.CompletedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *SyncProgressRepo) SetStep(ctx context.Context, connectorID, step string) error {
	const query = `UPDATE sync_progress SET current_step = $1 WHERE connector_id = $2`
	_, err := r.db.ExecContext(ctx, query, step, connectorID)
	return err
}

func (r *SyncProgressRepo) SetTotal(ctx context.Context, connectorID string, total int) error {
	const query = `UPDATE sync_progress SET total_items = $1 WHERE connector_id = $2`
	_, err := r.db.ExecContext(ctx, query, total, connectorID)
	return err
}

// Advance adds batch deltas to the running counters.
func (r *SyncProgressRepo) Advance(ctx context.Context, connectorID string, processed, indexed, failed int) error {
	const query = `
		UPDATE sync_progress
		SET processed_items = processed_items + $1,
			indexed_items = indexed_items + $2,
			failed_items = failed_items + $3
		WHERE connector_id = $4
	`
	_, err := r.db.ExecContext(ctx, query, processed, indexed, failed, connectorID)
	return err
}

func (r *SyncProgressRepo) Finish(ctx context.Context, connectorID, status, errorMessage string, completedAt int64) error {
	const query = `
		UPDATE sync_progress
		SET status = $1, error_message = $2, current_step = $3, completed_at = $4
		WHERE connector_id = $5
	`
	step := "completed"
	if status == model.SyncStatusFailed {
		step = "failed"
	}
	_, err := r.db.ExecContext(ctx, query, status, errorMessage, step, completedAt, connectorID)
	return err
}

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

type ChatRepo struct {
	db *sql.DB
}

func NewChatRepo(db *sql.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

func (r *ChatRepo) CreateSession(ctx context.Context, session *model.ChatSession) error {
	data := map[string]interface{}{
		"id":        session.ID,
		"tenant_id": session.TenantID,
		"title":     session.Title,
		"ctime":     session.Ctime,
		"mtime":     session.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("chat_sessions", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *ChatRepo) GetSession(ctx context.Context, tenantID, sessionID string) (*model.ChatSession, error) {
	const query = `SELECT id, tenant_id, title, ctime, mtime FROM chat_sessions WHERE id = $1 AND tenant_id = $2`
	row := r.db.QueryRowContext(ctx, query, sessionID, tenantID)
	var session model.ChatSession
	if err := row.Scan(&session.ID, &session.TenantID, &session.Title, &session.Ctime, &session.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *ChatRepo) ListSessions(ctx context.Context, tenantID string, limit, offset uint) ([]*model.ChatSession, error) {
	where := map[string]interface{}{
		"tenant_id": tenantID,
		"_orderby":  "mtime desc",
	}
	if limit > 0 {
		where["_limit"] = []uint{offset, limit}
	}
	sqlStr, args, err := builder.BuildSelect("chat_sessions", where, []string{"id", "tenant_id", "title", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	sessions := make([]*model.ChatSession, 0)
	for rows.Next() {
		var session model.ChatSession
		if err := rows.Scan(&session.ID, &session.TenantID, &session.Title, &session.Ctime, &session.Mtime); err != nil {
			return nil, err
		}
		sessions = append(sessions, &session)
	}
	return sessions, rows.Err()
}

func (r *ChatRepo) UpdateSessionTitle(ctx context.Context, tenantID, sessionID, title string, mtime int64) error {
	const query = `UPDATE chat_sessions SET title = $1, mtime = $2 WHERE id = $3 AND tenant_id = $4`
	res, err := r.db.ExecContext(ctx, query, title, mtime, sessionID, tenantID)
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

func (r *ChatRepo) DeleteSession(ctx context.Context, tenantID, sessionID string) error {
	const query = `DELETE FROM chat_sessions WHERE id = $1 AND tenant_id = $2`
	res, err := r.db.ExecContext(ctx, query, sessionID, tenantID)
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

// AddMessage appends a message and bumps the session mtime so session
// listings surface recent conversations first.
func (r *ChatRepo) AddMessage(ctx context.Context, msg *model.ChatMessage) error {
	sourcesJSON := []byte("[]")
	if len(msg.Sources) > 0 {
		var err error
		sourcesJSON, err = json.Marshal(msg.Sources)
		if err != nil {
			return err
		}
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	const insertQuery = `
		INSERT INTO chat_messages (id, session_id, role, content, sources_json, ctime)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.ExecContext(ctx, insertQuery, msg.ID, msg.SessionID, msg.Role, msg.Content, string(sourcesJSON), msg.Ctime); err != nil {
		return err
	}
	const touchQuery = `UPDATE chat_sessions SET mtime = $1 WHERE id = $2`
	if _, err := tx.ExecContext(ctx, touchQuery, msg.Ctime, msg.SessionID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *ChatRepo) ListMessages(ctx context.Context, sessionID string) ([]*model.ChatMessage, error) {
	const query = `
		SELECT id, session_id, role, content, sources_json, ctime
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY ctime ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// LastMessages returns up to limit most recent messages in oldest-first
// order.
func (r *ChatRepo) LastMessages(ctx context.Context, sessionID string, limit int) ([]*model.ChatMessage, error) {
	const query = `
		SELECT id, session_id, role, content, sources_json, ctime FROM (
			SELECT id, session_id, role, content, sources_json, ctime
			FROM chat_messages
			WHERE session_id = $1
			ORDER BY ctime DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY ctime ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]*model.ChatMessage, error) {
	msgs := make([]*model.ChatMessage, 0)
	for rows.Next() {
		var msg model.ChatMessage
		var sourcesJSON string
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &sourcesJSON, &msg.Ctime); err != nil {
			return nil, err
		}
		if sourcesJSON != "" && sourcesJSON != "[]" {
			_ = json.Unmarshal([]byte(sourcesJSON), &msg.Sources)
		}
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

package vector

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"
)

// PGIndex stores vectors in the vector_entries table using pgvector's
// cosine distance operator.
type PGIndex struct {
	db *sql.DB
}

func NewPGIndex(db *sql.DB) *PGIndex {
	return &PGIndex{db: db}
}

var _ Index = (*PGIndex)(nil)

func (i *PGIndex) Upsert(ctx context.Context, namespace string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	const query = `
		INSERT INTO vector_entries (namespace, id, embedding, metadata_json, ctime)
		VALUES ($1, $2, $3, $4, extract(epoch from now())::bigint)
		ON CONFLICT (namespace, id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			metadata_json = EXCLUDED.metadata_json,
			ctime = EXCLUDED.ctime
	`
	for _, entry := range entries {
		metaJSON := []byte("{}")
		if len(entry.Metadata) > 0 {
			metaJSON, err = json.Marshal(entry.Metadata)
			if err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, query, namespace, entry.ID, pgvector.NewVector(entry.Embedding), string(metaJSON)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (i *PGIndex) Query(ctx context.Context, namespace string, embedding []float32, topK int, filter map[string]string) ([]Match, error) {
	query := `
		SELECT id, metadata_json, embedding <=> $1 AS distance
		FROM vector_entries
		WHERE namespace = $2
	`
	args := []interface{}{pgvector.NewVector(embedding), namespace}
	if len(filter) > 0 {
		filterJSON, err := json.Marshal(filter)
		if err != nil {
			return nil, err
		}
		query += ` AND metadata_json @> $3`
		args = append(args, string(filterJSON))
	}
	query += ` ORDER BY distance ASC LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, topK)

	rows, err := i.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	matches := make([]Match, 0, topK)
	for rows.Next() {
		var match Match
		var metaJSON string
		var distance float64
		if err := rows.Scan(&match.ID, &metaJSON, &distance); err != nil {
			return nil, err
		}
		match.Score = 1 - distance
		if metaJSON != "" && metaJSON != "{}" {
			_ = json.Unmarshal([]byte(metaJSON), &match.Metadata)
		}
		matches = append(matches, match)
	}
	return matches, rows.Err()
}

func (i *PGIndex) Delete(ctx context.Context, namespace string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM vector_entries WHERE namespace = ? AND id IN (?)`, namespace, ids)
	if err != nil {
		return err
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)
	_, err = i.db.ExecContext(ctx, query, args...)
	return err
}

func (i *PGIndex) DeleteNamespace(ctx context.Context, namespace string) error {
	const query = `DELETE FROM vector_entries WHERE namespace = $1`
	_, err := i.db.ExecContext(ctx, query, namespace)
	return err
}

func (i *PGIndex) Count(ctx context.Context, namespace string) (int, error) {
	const query = `SELECT COUNT(1) FROM vector_entries WHERE namespace = $1`
	var count int
	if err := i.db.QueryRowContext(ctx, query, namespace).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/scrypster/chronicle/internal/storage"
	"github.com/scrypster/chronicle/pkg/types"
)

const relationshipColumns = `id, from_type, from_id, to_type, to_id, type, description,
	chapter, created_chapter, created_at, updated_at`

func scanRelationship(row rowScanner) (types.Relationship, error) {
	var (
		r                    types.Relationship
		fromType, toType     string
		createdAt, updatedAt string
	)
	err := row.Scan(&r.ID, &fromType, &r.From.ID, &toType, &r.To.ID, &r.Type, &r.Description,
		&r.Chapter, &r.CreatedChapter, &createdAt, &updatedAt)
	if err != nil {
		return r, err
	}
	r.From.Type = types.EntityType(fromType)
	r.To.Type = types.EntityType(toType)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return r, nil
}

// Relationships implements storage.RelationshipReader.
func (r *reader) Relationships(ctx context.Context, ref types.EntityRef, dir types.Direction) ([]types.Relationship, error) {
	var (
		where string
		args  []any
	)
	switch dir {
	case types.DirectionOutgoing:
		where = `from_type = ? AND from_id = ?`
		args = []any{string(ref.Type), ref.ID}
	case types.DirectionIncoming:
		where = `to_type = ? AND to_id = ?`
		args = []any{string(ref.Type), ref.ID}
	default:
		where = `(from_type = ? AND from_id = ?) OR (to_type = ? AND to_id = ?)`
		args = []any{string(ref.Type), ref.ID, string(ref.Type), ref.ID}
	}

	rows, err := r.q.QueryContext(ctx,
		`SELECT `+relationshipColumns+` FROM relationships WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, wrapErr("list relationships", err)
	}
	defer rows.Close()

	var out []types.Relationship
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, wrapErr("list relationships", err)
		}
		out = append(out, rel)
	}
	return out, wrapErr("list relationships", rows.Err())
}

// UpsertRelationship implements storage.Writer. Re-asserting an existing
// (from, to, type) edge overwrites description and chapter; the first
// assertion's chapter is kept in CreatedChapter.
func (w *writer) UpsertRelationship(ctx context.Context, rel *types.Relationship) (bool, error) {
	if rel == nil || rel.From.ID == "" || rel.To.ID == "" || rel.Type == "" {
		return false, fmt.Errorf("%w: relationship needs from, to and type", storage.ErrInvalidInput)
	}
	if rel.UpdatedAt.IsZero() {
		rel.UpdatedAt = time.Now().UTC()
	}

	row := w.q.QueryRowContext(ctx, `
		SELECT `+relationshipColumns+` FROM relationships
		WHERE from_type = ? AND from_id = ? AND to_type = ? AND to_id = ? AND type = ?`,
		string(rel.From.Type), rel.From.ID, string(rel.To.Type), rel.To.ID, rel.Type)
	existing, err := scanRelationship(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		rel.CreatedChapter = rel.Chapter
		now := formatTime(rel.UpdatedAt)
		res, err := w.q.ExecContext(ctx, `
			INSERT INTO relationships (from_type, from_id, to_type, to_id, type, description,
				chapter, created_chapter, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(rel.From.Type), rel.From.ID, string(rel.To.Type), rel.To.ID, rel.Type,
			rel.Description, rel.Chapter, rel.CreatedChapter, now, now)
		if err != nil {
			return false, wrapErr("insert relationship", err)
		}
		if rel.ID, err = res.LastInsertId(); err != nil {
			return false, wrapErr("insert relationship", err)
		}
		rel.CreatedAt = rel.UpdatedAt
		return true, nil
	case err != nil:
		return false, wrapErr("get relationship", err)
	}

	rel.ID = existing.ID
	rel.CreatedAt = existing.CreatedAt
	rel.CreatedChapter = min(existing.CreatedChapter, rel.Chapter)
	_, err = w.q.ExecContext(ctx, `
		UPDATE relationships SET description = ?, chapter = ?, created_chapter = ?, updated_at = ?
		WHERE id = ?`,
		rel.Description, rel.Chapter, rel.CreatedChapter, formatTime(rel.UpdatedAt), rel.ID)
	return false, wrapErr("update relationship", err)
}

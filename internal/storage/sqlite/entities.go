package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/scrypster/chronicle/internal/storage"
	"github.com/scrypster/chronicle/pkg/types"
)

const entityColumns = `type, id, canonical_name, tier, description, status, parent,
	is_protagonist, aliases, current, first_appearance, last_appearance, archived,
	created_at, updated_at`

func scanEntity(row rowScanner) (*types.Entity, error) {
	var (
		e                        types.Entity
		typ, tier                string
		aliasesJSON, currentJSON string
		isProtagonist, archived  int
		createdAt, updatedAt     string
	)
	err := row.Scan(&typ, &e.ID, &e.CanonicalName, &tier, &e.Description, &e.Status, &e.Parent,
		&isProtagonist, &aliasesJSON, &currentJSON, &e.FirstAppearance, &e.LastAppearance, &archived,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	e.Type = types.EntityType(typ)
	e.Tier = types.Tier(tier)
	e.IsProtagonist = isProtagonist != 0
	e.Archived = archived != 0
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)

	if err := json.Unmarshal([]byte(aliasesJSON), &e.Aliases); err != nil {
		return nil, fmt.Errorf("decode aliases of %s:%s: %w", typ, e.ID, err)
	}
	if err := json.Unmarshal([]byte(currentJSON), &e.Current); err != nil {
		return nil, fmt.Errorf("decode current of %s:%s: %w", typ, e.ID, err)
	}
	return &e, nil
}

// GetEntity implements storage.EntityReader.
func (r *reader) GetEntity(ctx context.Context, ref types.EntityRef) (*types.Entity, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE type = ? AND id = ?`,
		string(ref.Type), ref.ID)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &types.NotFoundError{Kind: "entity", Ref: ref}
	}
	if err != nil {
		return nil, wrapErr("get entity", err)
	}
	return e, nil
}

// FindByID implements storage.EntityReader.
func (r *reader) FindByID(ctx context.Context, id string) ([]types.EntityRef, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT type FROM entities WHERE id = ? ORDER BY type`, id)
	if err != nil {
		return nil, wrapErr("find entity by id", err)
	}
	defer rows.Close()

	var refs []types.EntityRef
	for rows.Next() {
		var typ string
		if err := rows.Scan(&typ); err != nil {
			return nil, wrapErr("find entity by id", err)
		}
		refs = append(refs, types.EntityRef{Type: types.EntityType(typ), ID: id})
	}
	return refs, wrapErr("find entity by id", rows.Err())
}

// ListEntities implements storage.EntityReader.
func (r *reader) ListEntities(ctx context.Context, filter storage.EntityFilter) ([]*types.Entity, error) {
	var (
		where []string
		args  []any
	)
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(filter.Type))
	}
	if len(filter.Tiers) > 0 {
		marks := make([]string, len(filter.Tiers))
		for i, t := range filter.Tiers {
			marks[i] = "?"
			args = append(args, string(t))
		}
		where = append(where, "tier IN ("+strings.Join(marks, ",")+")")
	}
	if !filter.IncludeArchived {
		where = append(where, "archived = 0")
	}
	if filter.LastAppearanceAtMost > 0 {
		where = append(where, "last_appearance <= ?")
		args = append(args, filter.LastAppearanceAtMost)
	}
	if filter.ProtagonistOnly {
		where = append(where, "is_protagonist = 1")
	}

	query := `SELECT ` + entityColumns + ` FROM entities`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY type, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list entities", err)
	}
	defer rows.Close()

	var out []*types.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, wrapErr("list entities", err)
		}
		out = append(out, e)
	}
	return out, wrapErr("list entities", rows.Err())
}

func entityArgs(e *types.Entity) ([]any, error) {
	aliases := e.Aliases
	if aliases == nil {
		aliases = []string{}
	}
	aliasesJSON, err := marshalJSON(aliases)
	if err != nil {
		return nil, err
	}
	current := e.Current
	if current == nil {
		current = types.Attributes{}
	}
	currentJSON, err := marshalJSON(current)
	if err != nil {
		return nil, err
	}
	return []any{
		e.CanonicalName, string(e.Tier), e.Description, e.Status, e.Parent,
		boolInt(e.IsProtagonist), aliasesJSON, currentJSON,
		e.FirstAppearance, e.LastAppearance, boolInt(e.Archived),
	}, nil
}

// InsertEntity implements storage.Writer.
func (w *writer) InsertEntity(ctx context.Context, e *types.Entity) error {
	if e == nil || e.ID == "" || e.Type == "" {
		return fmt.Errorf("%w: entity type and id are required", storage.ErrInvalidInput)
	}
	args, err := entityArgs(e)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	args = append([]any{string(e.Type), e.ID}, args...)
	args = append(args, formatTime(e.CreatedAt), formatTime(e.UpdatedAt))

	_, err = w.q.ExecContext(ctx, `
		INSERT INTO entities (`+entityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	return wrapErr("insert entity", err)
}

// SaveEntity implements storage.Writer.
func (w *writer) SaveEntity(ctx context.Context, e *types.Entity) error {
	args, err := entityArgs(e)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	args = append(args, formatTime(e.UpdatedAt), string(e.Type), e.ID)

	res, err := w.q.ExecContext(ctx, `
		UPDATE entities SET
			canonical_name = ?, tier = ?, description = ?, status = ?, parent = ?,
			is_protagonist = ?, aliases = ?, current = ?,
			first_appearance = ?, last_appearance = ?, archived = ?, updated_at = ?
		WHERE type = ? AND id = ?`, args...)
	if err != nil {
		return wrapErr("save entity", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr("save entity", err)
	}
	if n == 0 {
		return &types.NotFoundError{Kind: "entity", Ref: e.Ref()}
	}
	return nil
}

package sqlite

import (
	"context"

	"github.com/scrypster/chronicle/pkg/types"
)

// LookupAlias implements storage.AliasReader.
func (r *reader) LookupAlias(ctx context.Context, alias string, typ types.EntityType) ([]types.EntityRef, error) {
	query := `SELECT entity_type, entity_id FROM aliases WHERE alias = ?`
	args := []any{alias}
	if typ != "" {
		query += ` AND entity_type = ?`
		args = append(args, string(typ))
	}
	query += ` ORDER BY seq`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("lookup alias", err)
	}
	defer rows.Close()

	var refs []types.EntityRef
	for rows.Next() {
		var t, id string
		if err := rows.Scan(&t, &id); err != nil {
			return nil, wrapErr("lookup alias", err)
		}
		refs = append(refs, types.EntityRef{Type: types.EntityType(t), ID: id})
	}
	return refs, wrapErr("lookup alias", rows.Err())
}

// SearchAliases implements storage.AliasReader.
func (r *reader) SearchAliases(ctx context.Context, text string, typ types.EntityType, limit int) ([]types.AliasEntry, error) {
	if text == "" {
		return nil, nil
	}
	if limit < 1 {
		limit = 50
	}
	query := `SELECT alias, entity_type, entity_id FROM aliases
		WHERE (instr(alias, ?) > 0 OR instr(?, alias) > 0)`
	args := []any{text, text}
	if typ != "" {
		query += ` AND entity_type = ?`
		args = append(args, string(typ))
	}
	query += ` ORDER BY seq LIMIT ?`
	args = append(args, limit)

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("search aliases", err)
	}
	defer rows.Close()

	var out []types.AliasEntry
	for rows.Next() {
		var e types.AliasEntry
		var t string
		if err := rows.Scan(&e.Alias, &t, &e.ID); err != nil {
			return nil, wrapErr("search aliases", err)
		}
		e.Type = types.EntityType(t)
		out = append(out, e)
	}
	return out, wrapErr("search aliases", rows.Err())
}

// InsertAlias implements storage.Writer.
func (w *writer) InsertAlias(ctx context.Context, entry types.AliasEntry) (bool, error) {
	res, err := w.q.ExecContext(ctx, `
		INSERT INTO aliases (alias, entity_type, entity_id) VALUES (?, ?, ?)
		ON CONFLICT(alias, entity_type, entity_id) DO NOTHING`,
		entry.Alias, string(entry.Type), entry.ID)
	if err != nil {
		return false, wrapErr("insert alias", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapErr("insert alias", err)
	}
	return n > 0, nil
}

// ClearAliases implements storage.Writer.
func (w *writer) ClearAliases(ctx context.Context) error {
	_, err := w.q.ExecContext(ctx, `DELETE FROM aliases`)
	return wrapErr("clear aliases", err)
}

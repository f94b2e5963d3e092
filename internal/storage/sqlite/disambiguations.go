package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/scrypster/chronicle/internal/storage"
	"github.com/scrypster/chronicle/pkg/types"
)

const disambiguationColumns = `id, chapter, mention, tier, chosen_type, chosen_id, confidence,
	candidates, context, run_id, resolved, resolved_type, resolved_id, created_at, resolved_at`

func scanDisambiguation(row rowScanner) (types.DisambiguationRecord, error) {
	var (
		d                     types.DisambiguationRecord
		tier, chosenType      string
		candidates, createdAt string
		resolvedType          string
		resolved              int
		resolvedAt            sql.NullString
	)
	err := row.Scan(&d.ID, &d.Chapter, &d.Mention, &tier, &chosenType, &d.Chosen.ID, &d.Confidence,
		&candidates, &d.Context, &d.RunID, &resolved, &resolvedType, &d.ResolvedRef.ID,
		&createdAt, &resolvedAt)
	if err != nil {
		return d, err
	}
	d.Tier = types.ActionTier(tier)
	d.Chosen.Type = types.EntityType(chosenType)
	d.ResolvedRef.Type = types.EntityType(resolvedType)
	d.Resolved = resolved != 0
	d.CreatedAt = parseTime(createdAt)
	if resolvedAt.Valid {
		t := parseTime(resolvedAt.String)
		d.ResolvedAt = &t
	}
	if err := json.Unmarshal([]byte(candidates), &d.Candidates); err != nil {
		return d, fmt.Errorf("decode candidates of %s: %w", d.ID, err)
	}
	return d, nil
}

// GetDisambiguation implements storage.ChapterReader.
func (r *reader) GetDisambiguation(ctx context.Context, id string) (*types.DisambiguationRecord, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+disambiguationColumns+` FROM disambiguations WHERE id = ?`, id)
	d, err := scanDisambiguation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &types.NotFoundError{Kind: "disambiguation", Mention: id}
	}
	if err != nil {
		return nil, wrapErr("get disambiguation", err)
	}
	return &d, nil
}

// ListDisambiguations implements storage.ChapterReader.
func (r *reader) ListDisambiguations(ctx context.Context, filter storage.DisambiguationFilter) ([]types.DisambiguationRecord, error) {
	filter.Normalize()

	var (
		where []string
		args  []any
	)
	if filter.Tier != "" {
		where = append(where, "tier = ?")
		args = append(args, string(filter.Tier))
	}
	if filter.OpenOnly {
		where = append(where, "resolved = 0")
	}
	if filter.FromChapter > 0 {
		where = append(where, "chapter >= ?")
		args = append(args, filter.FromChapter)
	}
	if filter.ToChapter > 0 {
		where = append(where, "chapter <= ?")
		args = append(args, filter.ToChapter)
	}

	query := `SELECT ` + disambiguationColumns + ` FROM disambiguations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY chapter, created_at, id LIMIT ?"
	args = append(args, filter.Limit)

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list disambiguations", err)
	}
	defer rows.Close()

	var out []types.DisambiguationRecord
	for rows.Next() {
		d, err := scanDisambiguation(rows)
		if err != nil {
			return nil, wrapErr("list disambiguations", err)
		}
		out = append(out, d)
	}
	return out, wrapErr("list disambiguations", rows.Err())
}

// InsertDisambiguation implements storage.Writer.
func (w *writer) InsertDisambiguation(ctx context.Context, d *types.DisambiguationRecord) error {
	if d == nil || d.ID == "" || d.Mention == "" {
		return fmt.Errorf("%w: disambiguation needs an id and a mention", storage.ErrInvalidInput)
	}
	cands := d.Candidates
	if cands == nil {
		cands = []types.Candidate{}
	}
	candJSON, err := marshalJSON(cands)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	_, err = w.q.ExecContext(ctx, `
		INSERT INTO disambiguations (`+disambiguationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Chapter, d.Mention, string(d.Tier), string(d.Chosen.Type), d.Chosen.ID, d.Confidence,
		candJSON, d.Context, d.RunID, boolInt(d.Resolved), string(d.ResolvedRef.Type), d.ResolvedRef.ID,
		formatTime(d.CreatedAt), nullableTime(d.ResolvedAt))
	return wrapErr("insert disambiguation", err)
}

// ResolveDisambiguation implements storage.Writer.
func (w *writer) ResolveDisambiguation(ctx context.Context, id string, ref types.EntityRef, at time.Time) error {
	res, err := w.q.ExecContext(ctx, `
		UPDATE disambiguations SET resolved = 1, resolved_type = ?, resolved_id = ?, resolved_at = ?
		WHERE id = ? AND resolved = 0`,
		string(ref.Type), ref.ID, formatTime(at), id)
	if err != nil {
		return wrapErr("resolve disambiguation", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr("resolve disambiguation", err)
	}
	if n == 0 {
		return &types.NotFoundError{Kind: "open disambiguation", Mention: id}
	}
	return nil
}

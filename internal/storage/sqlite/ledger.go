package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/scrypster/chronicle/internal/storage"
	"github.com/scrypster/chronicle/pkg/types"
)

const changeColumns = `id, entity_type, entity_id, field, old_value, new_value, snapshot,
	reason, chapter, run_id, recorded_at`

func scanChange(row rowScanner) (types.StateChange, error) {
	var (
		c                  types.StateChange
		typ, recordedAt    string
		oldV, newV, snapNS sql.NullString
	)
	if err := row.Scan(&c.ID, &typ, &c.Entity.ID, &c.Field, &oldV, &newV, &snapNS,
		&c.Reason, &c.Chapter, &c.RunID, &recordedAt); err != nil {
		return c, err
	}
	c.Entity.Type = types.EntityType(typ)
	c.RecordedAt = parseTime(recordedAt)

	var err error
	if c.OldValue, err = scanValue(oldV); err != nil {
		return c, fmt.Errorf("decode old_value of change %d: %w", c.ID, err)
	}
	if c.NewValue, err = scanValue(newV); err != nil {
		return c, fmt.Errorf("decode new_value of change %d: %w", c.ID, err)
	}
	if snapNS.Valid {
		if err := json.Unmarshal([]byte(snapNS.String), &c.Snapshot); err != nil {
			return c, fmt.Errorf("decode snapshot of change %d: %w", c.ID, err)
		}
	}
	return c, nil
}

func (r *reader) queryChanges(ctx context.Context, op, query string, args ...any) ([]types.StateChange, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()

	var out []types.StateChange
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, wrapErr(op, err)
		}
		out = append(out, c)
	}
	return out, wrapErr(op, rows.Err())
}

// Changes implements storage.LedgerReader.
func (r *reader) Changes(ctx context.Context, ref types.EntityRef) ([]types.StateChange, error) {
	return r.queryChanges(ctx, "list changes", `
		SELECT `+changeColumns+` FROM state_changes
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY chapter, id`, string(ref.Type), ref.ID)
}

// ChangesInRange implements storage.LedgerReader. A zero to means no upper
// bound.
func (r *reader) ChangesInRange(ctx context.Context, from, to int) ([]types.StateChange, error) {
	if to <= 0 {
		return r.queryChanges(ctx, "list changes in range", `
			SELECT `+changeColumns+` FROM state_changes
			WHERE chapter >= ? ORDER BY chapter, id`, from)
	}
	return r.queryChanges(ctx, "list changes in range", `
		SELECT `+changeColumns+` FROM state_changes
		WHERE chapter BETWEEN ? AND ? ORDER BY chapter, id`, from, to)
}

// AppendChange implements storage.Writer.
func (w *writer) AppendChange(ctx context.Context, c *types.StateChange) (int64, error) {
	if c == nil || c.Entity.ID == "" || c.Field == "" {
		return 0, fmt.Errorf("%w: change needs an entity and a field", storage.ErrInvalidInput)
	}
	oldV, err := nullableValue(c.OldValue)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	newV, err := nullableValue(c.NewValue)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	var snap sql.NullString
	if c.Snapshot != nil {
		s, err := marshalJSON(c.Snapshot)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		snap = sql.NullString{String: s, Valid: true}
	}

	res, err := w.q.ExecContext(ctx, `
		INSERT INTO state_changes (entity_type, entity_id, field, old_value, new_value, snapshot,
			reason, chapter, run_id, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(c.Entity.Type), c.Entity.ID, c.Field, oldV, newV, snap,
		c.Reason, c.Chapter, c.RunID, formatTime(c.RecordedAt))
	if err != nil {
		return 0, wrapErr("append change", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, wrapErr("append change", err)
	}
	c.ID = id
	return id, nil
}

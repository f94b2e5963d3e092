package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/scrypster/chronicle/internal/storage"
	"github.com/scrypster/chronicle/pkg/types"
)

const chapterColumns = `chapter, title, location, word_count, summary, hook, strand, run_id, ingested_at`

func scanChapter(row rowScanner) (types.ChapterMeta, error) {
	var (
		m          types.ChapterMeta
		ingestedAt string
	)
	err := row.Scan(&m.Chapter, &m.Title, &m.Location, &m.WordCount, &m.Summary, &m.Hook,
		&m.Strand, &m.RunID, &ingestedAt)
	m.IngestedAt = parseTime(ingestedAt)
	return m, err
}

// GetChapter implements storage.ChapterReader.
func (r *reader) GetChapter(ctx context.Context, chapter int) (*types.ChapterMeta, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+chapterColumns+` FROM chapters WHERE chapter = ?`, chapter)
	m, err := scanChapter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &types.NotFoundError{Kind: "chapter", Chapter: chapter}
	}
	if err != nil {
		return nil, wrapErr("get chapter", err)
	}
	return &m, nil
}

// ListChapters implements storage.ChapterReader. A zero to means no upper
// bound.
func (r *reader) ListChapters(ctx context.Context, from, to int) ([]types.ChapterMeta, error) {
	query := `SELECT ` + chapterColumns + ` FROM chapters WHERE chapter >= ?`
	args := []any{from}
	if to > 0 {
		query += ` AND chapter <= ?`
		args = append(args, to)
	}
	rows, err := r.q.QueryContext(ctx, query+` ORDER BY chapter`, args...)
	if err != nil {
		return nil, wrapErr("list chapters", err)
	}
	defer rows.Close()

	var out []types.ChapterMeta
	for rows.Next() {
		m, err := scanChapter(rows)
		if err != nil {
			return nil, wrapErr("list chapters", err)
		}
		out = append(out, m)
	}
	return out, wrapErr("list chapters", rows.Err())
}

// InsertChapter implements storage.Writer.
func (w *writer) InsertChapter(ctx context.Context, m *types.ChapterMeta) error {
	if m == nil || m.Chapter < 1 {
		return fmt.Errorf("%w: chapter number must be positive", storage.ErrInvalidInput)
	}
	_, err := w.q.ExecContext(ctx, `
		INSERT INTO chapters (`+chapterColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Chapter, m.Title, m.Location, m.WordCount, m.Summary, m.Hook, m.Strand, m.RunID,
		formatTime(m.IngestedAt))
	return wrapErr("insert chapter", err)
}

// ListScenes implements storage.ChapterReader.
func (r *reader) ListScenes(ctx context.Context, chapter int) ([]types.Scene, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT chapter, scene_index, location, summary, characters
		FROM scenes WHERE chapter = ? ORDER BY scene_index`, chapter)
	if err != nil {
		return nil, wrapErr("list scenes", err)
	}
	defer rows.Close()

	var out []types.Scene
	for rows.Next() {
		var (
			s     types.Scene
			chars string
		)
		if err := rows.Scan(&s.Chapter, &s.Index, &s.Location, &s.Summary, &chars); err != nil {
			return nil, wrapErr("list scenes", err)
		}
		if err := json.Unmarshal([]byte(chars), &s.Characters); err != nil {
			return nil, wrapErr("list scenes", err)
		}
		out = append(out, s)
	}
	return out, wrapErr("list scenes", rows.Err())
}

// InsertScene implements storage.Writer.
func (w *writer) InsertScene(ctx context.Context, s *types.Scene) error {
	chars := s.Characters
	if chars == nil {
		chars = []string{}
	}
	charsJSON, err := marshalJSON(chars)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	_, err = w.q.ExecContext(ctx, `
		INSERT INTO scenes (chapter, scene_index, location, summary, characters)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chapter, scene_index) DO UPDATE SET
			location = excluded.location, summary = excluded.summary, characters = excluded.characters`,
		s.Chapter, s.Index, s.Location, s.Summary, charsJSON)
	return wrapErr("insert scene", err)
}

// AppearancesInRange implements storage.ChapterReader. A zero to means no
// upper bound.
func (r *reader) AppearancesInRange(ctx context.Context, from, to int) ([]types.Appearance, error) {
	query := `SELECT entity_type, entity_id, chapter, mentions, confidence FROM appearances WHERE chapter >= ?`
	args := []any{from}
	if to > 0 {
		query += ` AND chapter <= ?`
		args = append(args, to)
	}
	rows, err := r.q.QueryContext(ctx, query+` ORDER BY chapter, entity_type, entity_id`, args...)
	if err != nil {
		return nil, wrapErr("list appearances", err)
	}
	defer rows.Close()

	var out []types.Appearance
	for rows.Next() {
		var (
			a             types.Appearance
			typ, mentions string
		)
		if err := rows.Scan(&typ, &a.Entity.ID, &a.Chapter, &mentions, &a.Confidence); err != nil {
			return nil, wrapErr("list appearances", err)
		}
		a.Entity.Type = types.EntityType(typ)
		if err := json.Unmarshal([]byte(mentions), &a.Mentions); err != nil {
			return nil, wrapErr("list appearances", err)
		}
		out = append(out, a)
	}
	return out, wrapErr("list appearances", rows.Err())
}

// UpsertAppearance implements storage.Writer. Mentions are unioned and the
// higher confidence kept.
func (w *writer) UpsertAppearance(ctx context.Context, a types.Appearance) error {
	var (
		existing string
		conf     float64
	)
	err := w.q.QueryRowContext(ctx, `
		SELECT mentions, confidence FROM appearances
		WHERE entity_type = ? AND entity_id = ? AND chapter = ?`,
		string(a.Entity.Type), a.Entity.ID, a.Chapter).Scan(&existing, &conf)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return wrapErr("get appearance", err)
	default:
		var prev []string
		if err := json.Unmarshal([]byte(existing), &prev); err != nil {
			return wrapErr("get appearance", err)
		}
		a.Mentions = unionStrings(prev, a.Mentions)
		a.Confidence = max(a.Confidence, conf)
	}

	mentions := a.Mentions
	if mentions == nil {
		mentions = []string{}
	}
	mentionsJSON, err := marshalJSON(mentions)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	_, err = w.q.ExecContext(ctx, `
		INSERT INTO appearances (entity_type, entity_id, chapter, mentions, confidence)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(entity_type, entity_id, chapter) DO UPDATE SET
			mentions = excluded.mentions, confidence = excluded.confidence`,
		string(a.Entity.Type), a.Entity.ID, a.Chapter, mentionsJSON, a.Confidence)
	return wrapErr("upsert appearance", err)
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

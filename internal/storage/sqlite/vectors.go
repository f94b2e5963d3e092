package sqlite

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/scrypster/chronicle/internal/storage"
)

// SaveSceneVectors implements storage.VectorStore. Vectors are stored as
// little-endian float32 blobs.
func (s *Store) SaveSceneVectors(ctx context.Context, vectors []storage.SceneVector) error {
	if len(vectors) == 0 {
		return nil
	}
	return storage.Retry(ctx, s.retry, func() error {
		tx, err := s.writeDB.BeginTx(ctx, nil)
		if err != nil {
			return wrapErr("begin", err)
		}
		defer func() { _ = tx.Rollback() }()

		for _, v := range vectors {
			if len(v.Vector) == 0 {
				return fmt.Errorf("%w: empty vector for chapter %d scene %d", storage.ErrInvalidInput, v.Chapter, v.SceneIndex)
			}
			created := v.CreatedAt
			if created.IsZero() {
				created = time.Now()
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO scene_vectors (chapter, scene_index, model, dims, vector, summary, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(chapter, scene_index, model) DO UPDATE SET
					dims = excluded.dims, vector = excluded.vector,
					summary = excluded.summary, created_at = excluded.created_at`,
				v.Chapter, v.SceneIndex, v.Model, len(v.Vector), encodeVector(v.Vector), v.Summary,
				formatTime(created))
			if err != nil {
				return wrapErr("save scene vector", err)
			}
		}
		return wrapErr("commit", tx.Commit())
	})
}

// SceneVectors implements storage.VectorStore.
func (s *Store) SceneVectors(ctx context.Context, chapter int) ([]storage.SceneVector, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT chapter, scene_index, model, dims, vector, summary, created_at
		FROM scene_vectors WHERE chapter = ? ORDER BY scene_index, model`, chapter)
	if err != nil {
		return nil, wrapErr("list scene vectors", err)
	}
	defer rows.Close()

	var out []storage.SceneVector
	for rows.Next() {
		var (
			v         storage.SceneVector
			dims      int
			blob      []byte
			createdAt string
		)
		if err := rows.Scan(&v.Chapter, &v.SceneIndex, &v.Model, &dims, &blob, &v.Summary, &createdAt); err != nil {
			return nil, wrapErr("list scene vectors", err)
		}
		if len(blob) != dims*4 {
			return nil, wrapErr("list scene vectors",
				fmt.Errorf("vector blob for chapter %d scene %d has %d bytes, want %d", v.Chapter, v.SceneIndex, len(blob), dims*4))
		}
		v.Vector = decodeVector(blob)
		v.CreatedAt = parseTime(createdAt)
		out = append(out, v)
	}
	return out, wrapErr("list scene vectors", rows.Err())
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

// Package embedding hands committed scene summaries to an external
// embedding service and stores the resulting vectors.
//
// Emission happens after a chapter commits and outside the engine's write
// lock. It is best effort: the Emitter rate-limits calls, trips a circuit
// breaker on repeated failures, and never fails the ingestion that
// triggered it.
package embedding

import (
	"context"

	"github.com/scrypster/chronicle/pkg/types"
)

// SceneSummary is one scene handed to the indexer.
type SceneSummary struct {
	Chapter    int
	SceneIndex int
	Summary    string
}

// FromScenes converts stored scenes, skipping empty summaries.
func FromScenes(scenes []types.Scene) []SceneSummary {
	out := make([]SceneSummary, 0, len(scenes))
	for _, s := range scenes {
		if s.Summary == "" {
			continue
		}
		out = append(out, SceneSummary{Chapter: s.Chapter, SceneIndex: s.Index, Summary: s.Summary})
	}
	return out
}

// Indexer accepts scene summaries for semantic indexing.
type Indexer interface {
	IndexScenes(ctx context.Context, scenes []SceneSummary) error
}

// Embedder turns text into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// Nop is an Indexer that does nothing. Used when embedding is disabled.
type Nop struct{}

// IndexScenes implements Indexer.
func (Nop) IndexScenes(context.Context, []SceneSummary) error { return nil }

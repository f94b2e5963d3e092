package embedding

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/scrypster/chronicle/internal/logging"
	"github.com/scrypster/chronicle/internal/storage"
)

// DefaultBatchSize caps the summaries sent in one request.
const DefaultBatchSize = 16

// EmitterOptions configures an Emitter.
type EmitterOptions struct {
	RatePerSecond float64 // Sustained requests per second (default: 2)
	Burst         int     // Default: 4
	BatchSize     int     // Default: DefaultBatchSize
	Breaker       BreakerConfig
	Logger        *logging.Logger
}

// Emitter is the default Indexer: it embeds summaries with an Embedder and
// persists the vectors in a VectorStore.
type Emitter struct {
	embedder  Embedder
	store     storage.VectorStore
	limiter   *rate.Limiter
	breaker   *Breaker
	batchSize int
	logger    *logging.Logger
}

// NewEmitter wires an embedder to a vector store.
func NewEmitter(embedder Embedder, store storage.VectorStore, opts EmitterOptions) *Emitter {
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 2
	}
	if opts.Burst < 1 {
		opts.Burst = 4
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = DefaultBatchSize
	}
	logger := logging.OrNop(opts.Logger)

	bc := opts.Breaker
	if bc.OnStateChange == nil {
		bc.OnStateChange = func(from, to string) {
			logger.Warn("embedding breaker state change", "from", from, "to", to)
		}
	}

	return &Emitter{
		embedder:  embedder,
		store:     store,
		limiter:   rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst),
		breaker:   NewBreaker(bc),
		batchSize: opts.BatchSize,
		logger:    logger,
	}
}

// Breaker exposes the circuit breaker for status reporting.
func (e *Emitter) Breaker() *Breaker {
	return e.breaker
}

// IndexScenes implements Indexer. Batches are embedded in order; the first
// failure stops the run and is returned. Vectors from earlier batches stay
// stored.
func (e *Emitter) IndexScenes(ctx context.Context, scenes []SceneSummary) error {
	for start := 0; start < len(scenes); start += e.batchSize {
		end := min(start+e.batchSize, len(scenes))
		if err := e.indexBatch(ctx, scenes[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Emitter) indexBatch(ctx context.Context, batch []SceneSummary) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("embedding: rate limit wait: %w", err)
	}

	texts := make([]string, len(batch))
	for i, s := range batch {
		texts[i] = s.Summary
	}

	var vectors [][]float32
	err := e.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		vectors, err = e.embedder.Embed(ctx, texts)
		return err
	})
	if err != nil {
		return err
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("embedding: got %d vectors for %d scenes", len(vectors), len(batch))
	}

	now := time.Now().UTC()
	model := e.embedder.Model()
	rows := make([]storage.SceneVector, len(batch))
	for i, s := range batch {
		rows[i] = storage.SceneVector{
			Chapter:    s.Chapter,
			SceneIndex: s.SceneIndex,
			Model:      model,
			Summary:    s.Summary,
			Vector:     vectors[i],
			CreatedAt:  now,
		}
	}
	if err := e.store.SaveSceneVectors(ctx, rows); err != nil {
		return err
	}
	e.logger.Debug("scene vectors stored", "chapter", batch[0].Chapter, "count", len(rows), "model", model)
	return nil
}

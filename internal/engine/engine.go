// Package engine ties the Chronicle components together: it owns the store,
// applies extraction batches chapter by chapter, answers queries, and
// assembles context packages.
//
// Mutating operations (Ingest, ResolvePending, DismissPending,
// RebuildAliases, Archive) are serialised by one mutex and each runs in a
// single sqlite write transaction. Queries read the last committed state
// through the read pool and never take the mutex.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/scrypster/chronicle/internal/config"
	"github.com/scrypster/chronicle/internal/contextpack"
	"github.com/scrypster/chronicle/internal/embedding"
	"github.com/scrypster/chronicle/internal/graph"
	"github.com/scrypster/chronicle/internal/ledger"
	"github.com/scrypster/chronicle/internal/logging"
	"github.com/scrypster/chronicle/internal/progress"
	"github.com/scrypster/chronicle/internal/registry"
	"github.com/scrypster/chronicle/internal/resolver"
	"github.com/scrypster/chronicle/internal/storage"
	"github.com/scrypster/chronicle/internal/storage/sqlite"
)

// ErrClosed is returned by operations on a closed engine.
var ErrClosed = errors.New("engine closed")

// Options overrides components built from the configuration.
type Options struct {
	// Logger defaults to a logger built from cfg.Log.
	Logger *logging.Logger

	// Indexer receives committed scene summaries. Nil builds the OpenAI
	// emitter when embedding is enabled, otherwise embedding.Nop.
	Indexer embedding.Indexer
}

// Engine is the Chronicle core.
type Engine struct {
	cfg *config.Config

	store    *sqlite.Store
	ledger   *ledger.Ledger
	registry *registry.Registry
	graph    *graph.Graph
	resolver *resolver.Resolver
	progress *progress.File
	indexer  embedding.Indexer
	ranker   *contextpack.Ranker
	logger   *logging.Logger

	// mu serialises writers. Queries do not take it.
	mu     sync.Mutex
	closed bool

	// Callbacks
	onChapterIngested func(report *IngestReport)
	onDecision        func(ev TraceEvent)

	now func() time.Time
}

// Open creates the data directory if needed, opens the store and wires the
// components described by cfg.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("engine: config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		var err error
		logger, err = logging.New(cfg.Log.Mode, cfg.Log.Level)
		if err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("engine: create data dir: %w", err)
	}

	led, err := ledger.New(cfg.Ledger.CacheSize)
	if err != nil {
		return nil, err
	}
	res, err := resolver.New(resolver.Options{
		AdoptThreshold:  cfg.Resolver.AdoptThreshold,
		ReviewThreshold: cfg.Resolver.ReviewThreshold,
		MaxCandidates:   cfg.Resolver.MaxCandidates,
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}
	decay, err := contextpack.ParseDecay(cfg.Context.Decay, cfg.Context.HalfLife)
	if err != nil {
		return nil, err
	}
	ranker := contextpack.NewRanker(contextpack.Weights{
		Recency:   cfg.Context.WeightRecency,
		Frequency: cfg.Context.WeightFrequency,
		Signal:    cfg.Context.WeightSignal,
	}, decay, cfg.Context.SignalKeywords)

	store, err := sqlite.Open(ctx, cfg.DatabasePath(), sqlite.Options{
		BusyTimeout: cfg.Storage.BusyTimeout,
		ReadConns:   cfg.Storage.ReadConns,
		Retry: storage.RetryPolicy{
			MaxTries:   cfg.Storage.RetryMaxTries,
			MaxElapsed: cfg.Storage.RetryMaxElapsed,
			OnRetry: func(err error, wait time.Duration) {
				logger.Warn("write transaction busy, retrying", "wait", wait, "error", err)
			},
		},
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	indexer := opts.Indexer
	if indexer == nil {
		indexer, err = newIndexer(cfg.Embedding, store, logger)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	e := &Engine{
		cfg:      cfg,
		store:    store,
		ledger:   led,
		registry: registry.New(led, registry.Options{SignificantFields: cfg.Ledger.SignificantFields, Logger: logger}),
		graph:    graph.New(logger),
		resolver: res,
		progress: progress.NewFile(filepath.Join(cfg.DataDir, progress.FileName)),
		indexer:  indexer,
		ranker:   ranker,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	logger.Info("engine opened", "db", store.Path(), "progress", e.progress.Path())
	return e, nil
}

func newIndexer(cfg config.EmbeddingConfig, store storage.VectorStore, logger *logging.Logger) (embedding.Indexer, error) {
	if !cfg.Enabled {
		return embedding.Nop{}, nil
	}
	client, err := embedding.NewOpenAIClient(embedding.OpenAIConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return embedding.NewEmitter(client, store, embedding.EmitterOptions{
		RatePerSecond: cfg.RatePerSecond,
		Burst:         cfg.Burst,
		Breaker: embedding.BreakerConfig{
			MaxFailures: cfg.BreakerFailures,
			Cooldown:    cfg.BreakerCooldown,
		},
		Logger: logger,
	}), nil
}

// Close releases the store. Further calls return ErrClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.closed = true
	e.logger.Sync()
	return e.store.Close()
}

// Config returns the engine's configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// SetOnChapterIngested sets a callback fired after a chapter commits, with
// the lock released.
func (e *Engine) SetOnChapterIngested(callback func(report *IngestReport)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onChapterIngested = callback
}

// SetOnDecision sets a callback fired for every warned or held mention
// resolution after its chapter commits.
func (e *Engine) SetOnDecision(callback func(ev TraceEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onDecision = callback
}

// writeTx runs fn in a write transaction and drops cached replays
// afterwards, whether or not it committed. Callers hold e.mu.
func (e *Engine) writeTx(ctx context.Context, fn func(w storage.Writer) error) error {
	if e.closed {
		return ErrClosed
	}
	defer e.ledger.Invalidate()
	return e.store.WriteTx(ctx, fn)
}

package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/scrypster/chronicle/internal/storage"
	"github.com/scrypster/chronicle/pkg/types"
)

// DefaultCacheSize is the replay cache capacity used when none is given.
const DefaultCacheSize = 512

type runIDKey struct{}

// WithRunID returns a context whose appended records are stamped with runID.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunID returns the ingestion run id carried by ctx, if any.
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

type cacheKey struct {
	ref  types.EntityRef
	upTo int
}

// Ledger appends and replays state change records. Replays read through an
// LRU cache of committed state; call Invalidate after every commit.
type Ledger struct {
	cache *lru.Cache[cacheKey, Snapshot]

	// gen counts invalidations. A replay only caches its fold if no
	// invalidation happened since it started reading.
	mu  sync.Mutex
	gen uint64
}

// New returns a Ledger with a replay cache of the given size.
func New(cacheSize int) (*Ledger, error) {
	if cacheSize < 1 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[cacheKey, Snapshot](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("ledger: create replay cache: %w", err)
	}
	return &Ledger{cache: cache}, nil
}

// Append validates and appends a record. It is the only way records enter
// the ledger.
func (l *Ledger) Append(ctx context.Context, w storage.Writer, rec *types.StateChange) (int64, error) {
	if rec == nil {
		return 0, fmt.Errorf("%w: nil state change", storage.ErrInvalidInput)
	}
	if rec.Entity.ID == "" || !types.IsValidEntityType(rec.Entity.Type) {
		return 0, fmt.Errorf("%w: state change needs a valid entity ref, got %q", storage.ErrInvalidInput, rec.Entity)
	}
	if rec.Field == "" {
		return 0, fmt.Errorf("%w: state change for %s needs a field", storage.ErrInvalidInput, rec.Entity)
	}
	if rec.Chapter < 1 {
		return 0, fmt.Errorf("%w: state change for %s has chapter %d", storage.ErrInvalidInput, rec.Entity, rec.Chapter)
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	if rec.RunID == "" {
		rec.RunID = RunID(ctx)
	}
	return w.AppendChange(ctx, rec)
}

// History returns the ordered log for ref.
func (l *Ledger) History(ctx context.Context, r storage.LedgerReader, ref types.EntityRef) ([]types.StateChange, error) {
	records, err := r.Changes(ctx, ref)
	if err != nil {
		return nil, err
	}
	Sort(records)
	return records, nil
}

// Replay folds the log for ref up to and including chapter upTo (all
// records when upTo <= 0).
func (l *Ledger) Replay(ctx context.Context, r storage.LedgerReader, ref types.EntityRef, upTo int) (Snapshot, error) {
	key := cacheKey{ref: ref, upTo: upTo}
	if s, ok := l.cache.Get(key); ok {
		return s.clone(), nil
	}
	gen := l.generation()
	records, err := r.Changes(ctx, ref)
	if err != nil {
		return Snapshot{}, err
	}
	s := Fold(ref, records, upTo)

	l.mu.Lock()
	if l.gen == gen {
		l.cache.Add(key, s.clone())
	}
	l.mu.Unlock()
	return s, nil
}

// Invalidate drops every cached replay and fences off replays already in
// flight.
func (l *Ledger) Invalidate() {
	l.mu.Lock()
	l.gen++
	l.cache.Purge()
	l.mu.Unlock()
}

func (l *Ledger) generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen
}

func (s Snapshot) clone() Snapshot {
	c := s
	c.Attributes = s.Attributes.Clone()
	c.Identity = make(map[string]string, len(s.Identity))
	for k, v := range s.Identity {
		c.Identity[k] = v
	}
	return c
}

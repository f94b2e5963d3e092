// Package storage provides composable storage interfaces for Chronicle.
//
// The storage layer is split into small read interfaces, one per table
// family, composed into Reader. Writer adds the mutators and is only ever
// handed out inside a write transaction, so every mutation belongs to exactly
// one commit. The sqlite package implements both.
package storage

import (
	"context"
	"time"

	"github.com/scrypster/chronicle/pkg/types"
)

// EntityReader looks up entity rows. Returned entities never carry History;
// the ledger fills that in.
type EntityReader interface {
	// GetEntity returns the entity for ref.
	// Returns a *types.NotFoundError if it does not exist.
	GetEntity(ctx context.Context, ref types.EntityRef) (*types.Entity, error)

	// FindByID returns every ref whose id matches, across types.
	FindByID(ctx context.Context, id string) ([]types.EntityRef, error)

	// ListEntities returns entities matching the filter, ordered by type then id.
	ListEntities(ctx context.Context, filter EntityFilter) ([]*types.Entity, error)
}

// AliasReader queries the alias index.
type AliasReader interface {
	// LookupAlias returns every ref registered under alias, in registration
	// order. An empty typ means no type filter.
	LookupAlias(ctx context.Context, alias string, typ types.EntityType) ([]types.EntityRef, error)

	// SearchAliases returns entries where alias contains text or text
	// contains alias. Used for fuzzy resolution.
	SearchAliases(ctx context.Context, text string, typ types.EntityType, limit int) ([]types.AliasEntry, error)
}

// LedgerReader reads the append-only state change log.
type LedgerReader interface {
	// Changes returns every record for ref ordered by chapter, then insertion.
	Changes(ctx context.Context, ref types.EntityRef) ([]types.StateChange, error)

	// ChangesInRange returns records with from <= chapter <= to, same order.
	ChangesInRange(ctx context.Context, from, to int) ([]types.StateChange, error)
}

// RelationshipReader queries the relationship graph.
type RelationshipReader interface {
	// Relationships returns edges touching ref in the given direction,
	// ordered by id.
	Relationships(ctx context.Context, ref types.EntityRef, dir types.Direction) ([]types.Relationship, error)
}

// ChapterReader reads chapter, scene, appearance and audit rows.
type ChapterReader interface {
	GetChapter(ctx context.Context, chapter int) (*types.ChapterMeta, error)
	ListChapters(ctx context.Context, from, to int) ([]types.ChapterMeta, error)
	ListScenes(ctx context.Context, chapter int) ([]types.Scene, error)
	AppearancesInRange(ctx context.Context, from, to int) ([]types.Appearance, error)
	GetDisambiguation(ctx context.Context, id string) (*types.DisambiguationRecord, error)
	ListDisambiguations(ctx context.Context, filter DisambiguationFilter) ([]types.DisambiguationRecord, error)
}

// Reader composes every read interface. Both the read pool and a write
// transaction satisfy it; reads inside a transaction see its own writes.
type Reader interface {
	EntityReader
	AliasReader
	LedgerReader
	RelationshipReader
	ChapterReader
}

// Writer is the transaction-scoped mutation surface.
type Writer interface {
	Reader

	// InsertEntity adds a new entity row. Returns ErrConflict if (type, id)
	// is taken.
	InsertEntity(ctx context.Context, e *types.Entity) error

	// SaveEntity rewrites the mutable columns of an existing entity.
	// Returns a *types.NotFoundError if it does not exist.
	SaveEntity(ctx context.Context, e *types.Entity) error

	// InsertAlias adds an alias row; duplicates are ignored and reported
	// with added=false.
	InsertAlias(ctx context.Context, entry types.AliasEntry) (added bool, err error)

	// ClearAliases empties the alias index before a rebuild.
	ClearAliases(ctx context.Context) error

	// AppendChange appends a ledger record and returns its sequence id.
	AppendChange(ctx context.Context, c *types.StateChange) (int64, error)

	// UpsertRelationship inserts or updates the (from, to, type) edge.
	UpsertRelationship(ctx context.Context, r *types.Relationship) (created bool, err error)

	// InsertChapter records an ingested chapter. Returns ErrConflict if the
	// chapter is already recorded.
	InsertChapter(ctx context.Context, m *types.ChapterMeta) error

	InsertScene(ctx context.Context, s *types.Scene) error

	// UpsertAppearance records or merges an appearance for (entity, chapter).
	UpsertAppearance(ctx context.Context, a types.Appearance) error

	InsertDisambiguation(ctx context.Context, d *types.DisambiguationRecord) error

	// ResolveDisambiguation closes an open audit row.
	ResolveDisambiguation(ctx context.Context, id string, ref types.EntityRef, at time.Time) error
}

// Store is a Reader over the last committed state plus transactional writes.
type Store interface {
	Reader

	// WriteTx runs fn inside a single write transaction. fn's error rolls
	// everything back. Transient lock contention is retried with backoff, so
	// fn may run more than once and must not have side effects outside w.
	WriteTx(ctx context.Context, fn func(w Writer) error) error

	// Close releases the connection pools.
	Close() error
}

// VectorStore persists scene embeddings produced by the external embedding
// service. It lives outside chapter transactions.
type VectorStore interface {
	// SaveSceneVectors upserts vectors keyed by (chapter, scene, model).
	SaveSceneVectors(ctx context.Context, vectors []SceneVector) error

	// SceneVectors returns the stored vectors for a chapter.
	SceneVectors(ctx context.Context, chapter int) ([]SceneVector, error)
}

package storage

import (
	"errors"
	"time"

	"github.com/scrypster/chronicle/pkg/types"
)

// Sentinel errors for storage operations.
var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = types.ErrNotFound

	// ErrInvalidInput indicates that the input provided was invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict indicates a uniqueness or optimistic version conflict.
	ErrConflict = errors.New("conflict")

	// ErrGraphBoundsExceeded indicates that graph traversal exceeded bounds.
	ErrGraphBoundsExceeded = errors.New("graph bounds exceeded")
)

// EntityFilter narrows ListEntities.
type EntityFilter struct {
	// Type restricts to one entity type. Empty means all.
	Type types.EntityType

	// Tiers restricts to the listed tiers. Empty means all.
	Tiers []types.Tier

	// IncludeArchived includes archived entities.
	IncludeArchived bool

	// LastAppearanceAtMost keeps entities last seen at or before this
	// chapter. Zero means no bound.
	LastAppearanceAtMost int

	// ProtagonistOnly keeps only protagonist entities.
	ProtagonistOnly bool

	// Limit caps the result size (default: no limit).
	Limit int
}

// DisambiguationFilter narrows ListDisambiguations.
type DisambiguationFilter struct {
	// Tier restricts to one action tier. Empty means warned and pending.
	Tier types.ActionTier

	// OpenOnly drops resolved rows.
	OpenOnly bool

	// FromChapter and ToChapter bound the chapter (zero = open).
	FromChapter int
	ToChapter   int

	// Limit caps the result size (default: 100, max: 1000).
	Limit int
}

// Normalize applies defaults and enforces limits.
func (f *DisambiguationFilter) Normalize() {
	if f.Limit < 1 {
		f.Limit = 100
	}
	if f.Limit > 1000 {
		f.Limit = 1000
	}
}

// GraphBounds prevents combinatorial explosion during graph traversal.
type GraphBounds struct {
	// MaxHops is the maximum number of hops from the starting entity.
	MaxHops int

	// MaxNodes is the maximum number of entities to return.
	MaxNodes int

	// MaxEdges is the maximum number of edges to traverse.
	MaxEdges int

	// Timeout is the maximum duration for the traversal operation.
	Timeout time.Duration

	// RelationshipTypes restricts traversal to these edge types. Empty
	// means all.
	RelationshipTypes []string
}

// Normalize applies defaults and validates the GraphBounds.
func (g *GraphBounds) Normalize() {
	if g.MaxHops < 1 {
		g.MaxHops = 2
	}
	if g.MaxHops > 6 {
		g.MaxHops = 6
	}
	if g.MaxNodes < 1 {
		g.MaxNodes = 50
	}
	if g.MaxNodes > 1000 {
		g.MaxNodes = 1000
	}
	if g.MaxEdges < 1 {
		g.MaxEdges = 200
	}
	if g.MaxEdges > 5000 {
		g.MaxEdges = 5000
	}
	if g.Timeout <= 0 {
		g.Timeout = 2 * time.Second
	}
}

// Allows reports whether an edge type passes the RelationshipTypes filter.
func (g GraphBounds) Allows(relType string) bool {
	if len(g.RelationshipTypes) == 0 {
		return true
	}
	for _, t := range g.RelationshipTypes {
		if t == relType {
			return true
		}
	}
	return false
}

// SceneVector is an embedding of one scene summary.
type SceneVector struct {
	Chapter    int
	SceneIndex int
	Model      string
	Summary    string
	Vector     []float32
	CreatedAt  time.Time
}

// Package graph maintains the relationship graph between entities: a
// directed multigraph keyed by (from, to, type) in which cycles are normal
// (mutual allies, rival sects).
package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/scrypster/chronicle/internal/logging"
	"github.com/scrypster/chronicle/internal/storage"
	"github.com/scrypster/chronicle/pkg/types"
)

// Graph upserts and walks relationships.
type Graph struct {
	logger *logging.Logger
}

// New returns a Graph.
func New(logger *logging.Logger) *Graph {
	return &Graph{logger: logging.OrNop(logger)}
}

// Node is an entity reached by a neighbourhood walk.
type Node struct {
	Ref   types.EntityRef `json:"ref"`
	Depth int             `json:"depth"` // Hops from the root
}

// Subgraph is the result of Neighborhood. When a bound stops the walk early
// Truncated is set and Reason says which one.
type Subgraph struct {
	Root      types.EntityRef      `json:"root"`
	Nodes     []Node               `json:"nodes"`
	Edges     []types.Relationship `json:"edges"`
	Truncated bool                 `json:"truncated,omitempty"`
	Reason    string               `json:"reason,omitempty"`
	Stats     BoundsStats          `json:"stats"`
}

// Upsert inserts or refreshes the (from, to, type) edge. Both endpoints
// must exist.
func (g *Graph) Upsert(ctx context.Context, w storage.Writer, rel types.Relationship) (bool, error) {
	rel.Type = strings.TrimSpace(rel.Type)
	if rel.Type == "" {
		return false, fmt.Errorf("%w: relationship %s -> %s needs a type", storage.ErrInvalidInput, rel.From, rel.To)
	}
	if rel.Chapter < 1 {
		return false, fmt.Errorf("%w: relationship %s -> %s needs a chapter", storage.ErrInvalidInput, rel.From, rel.To)
	}
	for _, ref := range []types.EntityRef{rel.From, rel.To} {
		if _, err := w.GetEntity(ctx, ref); err != nil {
			return false, err
		}
	}
	rel.UpdatedAt = time.Now().UTC()

	created, err := w.UpsertRelationship(ctx, &rel)
	if err != nil {
		return false, err
	}
	g.logger.Debug("graph: relationship upserted",
		"from", rel.From.String(), "to", rel.To.String(), "type", rel.Type, "created", created)
	return created, nil
}

// Query returns every edge touching ref in the given direction. An empty
// direction means both.
func (g *Graph) Query(ctx context.Context, r storage.RelationshipReader, ref types.EntityRef, dir types.Direction) ([]types.Relationship, error) {
	if dir == "" {
		dir = types.DirectionBoth
	}
	return r.Relationships(ctx, ref, dir)
}

// Neighborhood walks breadth-first from root over edges in both directions.
// A visited set keeps cycles from being re-entered. Hitting a node, edge or
// time bound returns the partial subgraph with Truncated set; cancellation
// returns an error.
func (g *Graph) Neighborhood(ctx context.Context, r storage.RelationshipReader, root types.EntityRef, bounds storage.GraphBounds) (*Subgraph, error) {
	checker := NewBoundsChecker(bounds)
	sub := &Subgraph{Root: root}

	type queueItem struct {
		ref   types.EntityRef
		depth int
	}
	queue := []queueItem{{root, 0}}
	visited := map[types.EntityRef]bool{root: true}
	seenEdge := map[int64]bool{}

	stop := func(err error) (*Subgraph, error) {
		if !errors.Is(err, storage.ErrGraphBoundsExceeded) {
			return nil, err
		}
		sub.Truncated = true
		sub.Reason = err.Error()
		sub.Stats = checker.Stats()
		return sub, nil
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if err := checker.CanContinue(ctx); err != nil {
			return stop(err)
		}
		if err := checker.CanVisitNode(); err != nil {
			return stop(err)
		}
		checker.RecordNode(current.depth)
		sub.Nodes = append(sub.Nodes, Node{Ref: current.ref, Depth: current.depth})

		if !checker.CanExpand(current.depth) {
			continue
		}
		edges, err := r.Relationships(ctx, current.ref, types.DirectionBoth)
		if err != nil {
			return nil, fmt.Errorf("neighbours of %s: %w", current.ref, err)
		}
		for _, e := range edges {
			if !checker.bounds.Allows(e.Type) || seenEdge[e.ID] {
				continue
			}
			if err := checker.CanTraverseEdge(); err != nil {
				return stop(err)
			}
			seenEdge[e.ID] = true
			checker.RecordEdge()
			sub.Edges = append(sub.Edges, e)

			next := e.Other(current.ref)
			if !visited[next] {
				visited[next] = true
				queue = append(queue, queueItem{next, current.depth + 1})
			}
		}
	}

	sub.Stats = checker.Stats()
	return sub, nil
}

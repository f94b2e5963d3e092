package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/scrypster/chronicle/internal/storage"
)

// BoundsChecker tracks and enforces traversal limits so that densely
// connected casts cannot blow up a neighbourhood query.
type BoundsChecker struct {
	bounds       storage.GraphBounds
	nodesVisited int
	edgesVisited int
	depthReached int
	startTime    time.Time
}

// BoundsStats reports traversal progress.
type BoundsStats struct {
	NodesVisited int           `json:"nodes_visited"`
	EdgesVisited int           `json:"edges_visited"`
	DepthReached int           `json:"depth_reached"`
	Elapsed      time.Duration `json:"elapsed"`
}

// NewBoundsChecker creates a checker for the normalized bounds.
func NewBoundsChecker(bounds storage.GraphBounds) *BoundsChecker {
	bounds.Normalize()
	return &BoundsChecker{bounds: bounds, startTime: time.Now()}
}

// CanVisitNode returns ErrGraphBoundsExceeded once MaxNodes nodes have been
// visited.
func (b *BoundsChecker) CanVisitNode() error {
	if b.nodesVisited >= b.bounds.MaxNodes {
		return fmt.Errorf("%w: max nodes (%d) exceeded", storage.ErrGraphBoundsExceeded, b.bounds.MaxNodes)
	}
	return nil
}

// CanTraverseEdge returns ErrGraphBoundsExceeded once MaxEdges edges have
// been collected.
func (b *BoundsChecker) CanTraverseEdge() error {
	if b.edgesVisited >= b.bounds.MaxEdges {
		return fmt.Errorf("%w: max edges (%d) exceeded", storage.ErrGraphBoundsExceeded, b.bounds.MaxEdges)
	}
	return nil
}

// CanContinue checks cancellation and the timeout. Context errors are
// returned unwrapped from ErrGraphBoundsExceeded so callers can tell them
// apart from a truncated walk.
func (b *BoundsChecker) CanContinue(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("graph traversal cancelled: %w", ctx.Err())
	default:
	}
	if elapsed := time.Since(b.startTime); elapsed >= b.bounds.Timeout {
		return fmt.Errorf("%w: timeout (%v) exceeded after %v", storage.ErrGraphBoundsExceeded, b.bounds.Timeout, elapsed)
	}
	return nil
}

// CanExpand reports whether nodes at depth may have their edges followed.
func (b *BoundsChecker) CanExpand(depth int) bool {
	return depth < b.bounds.MaxHops
}

func (b *BoundsChecker) RecordNode(depth int) {
	b.nodesVisited++
	b.depthReached = max(b.depthReached, depth)
}

func (b *BoundsChecker) RecordEdge() {
	b.edgesVisited++
}

// Stats returns current traversal statistics.
func (b *BoundsChecker) Stats() BoundsStats {
	return BoundsStats{
		NodesVisited: b.nodesVisited,
		EdgesVisited: b.edgesVisited,
		DepthReached: b.depthReached,
		Elapsed:      time.Since(b.startTime),
	}
}

package graph

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/chronicle/internal/storage"
	"github.com/scrypster/chronicle/internal/storage/sqlite"
	"github.com/scrypster/chronicle/pkg/types"
)

func char(id string) types.EntityRef {
	return types.EntityRef{Type: types.EntityCharacter, ID: id}
}

func newTestStore(t *testing.T, ids ...string) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "chronicle.db"), sqlite.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.WriteTx(context.Background(), func(w storage.Writer) error {
		for _, id := range ids {
			err := w.InsertEntity(context.Background(), &types.Entity{
				ID: id, Type: types.EntityCharacter, CanonicalName: id, Tier: types.TierMinor,
				Aliases: []string{id}, FirstAppearance: 1, LastAppearance: 1,
			})
			if err != nil {
				return err
			}
		}
		return nil
	}))
	return store
}

func upsert(t *testing.T, g *Graph, store *sqlite.Store, rel types.Relationship) bool {
	t.Helper()
	var created bool
	require.NoError(t, store.WriteTx(context.Background(), func(w storage.Writer) error {
		var err error
		created, err = g.Upsert(context.Background(), w, rel)
		return err
	}))
	return created
}

func TestUpsert_TwiceKeepsOneEdge(t *testing.T) {
	store := newTestStore(t, "lintian", "suyao")
	g := New(nil)
	ctx := context.Background()

	assert.True(t, upsert(t, g, store, types.Relationship{
		From: char("lintian"), To: char("suyao"), Type: "ally", Description: "初识", Chapter: 3,
	}))
	assert.False(t, upsert(t, g, store, types.Relationship{
		From: char("lintian"), To: char("suyao"), Type: "ally", Description: "生死之交", Chapter: 40,
	}))

	edges, err := g.Query(ctx, store, char("lintian"), "")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "生死之交", edges[0].Description)
	assert.Equal(t, 40, edges[0].Chapter)
	assert.Equal(t, 3, edges[0].CreatedChapter)
}

func TestUpsert_UnknownEndpoint(t *testing.T) {
	store := newTestStore(t, "lintian")
	g := New(nil)
	err := store.WriteTx(context.Background(), func(w storage.Writer) error {
		_, err := g.Upsert(context.Background(), w, types.Relationship{
			From: char("lintian"), To: char("ghost"), Type: "enemy", Chapter: 2,
		})
		return err
	})
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestQuery_Directions(t *testing.T) {
	store := newTestStore(t, "lintian", "suyao", "zhaofeng")
	g := New(nil)
	ctx := context.Background()
	upsert(t, g, store, types.Relationship{From: char("lintian"), To: char("suyao"), Type: "ally", Chapter: 1})
	upsert(t, g, store, types.Relationship{From: char("zhaofeng"), To: char("lintian"), Type: "enemy", Chapter: 2})

	out, err := g.Query(ctx, store, char("lintian"), types.DirectionOutgoing)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, char("suyao"), out[0].To)

	in, err := g.Query(ctx, store, char("lintian"), types.DirectionIncoming)
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, char("zhaofeng"), in[0].From)

	both, err := g.Query(ctx, store, char("lintian"), types.DirectionBoth)
	require.NoError(t, err)
	assert.Len(t, both, 2)
}

func TestNeighborhood_CyclesTerminate(t *testing.T) {
	store := newTestStore(t, "a", "b", "c", "d")
	g := New(nil)
	// a -> b -> c -> a, plus c -> d
	upsert(t, g, store, types.Relationship{From: char("a"), To: char("b"), Type: "ally", Chapter: 1})
	upsert(t, g, store, types.Relationship{From: char("b"), To: char("c"), Type: "ally", Chapter: 1})
	upsert(t, g, store, types.Relationship{From: char("c"), To: char("a"), Type: "ally", Chapter: 1})
	upsert(t, g, store, types.Relationship{From: char("c"), To: char("d"), Type: "rival", Chapter: 1})

	sub, err := g.Neighborhood(context.Background(), store, char("a"), storage.GraphBounds{MaxHops: 3})
	require.NoError(t, err)
	assert.False(t, sub.Truncated)
	assert.Len(t, sub.Nodes, 4)
	assert.Len(t, sub.Edges, 4)

	depth := map[string]int{}
	for _, n := range sub.Nodes {
		depth[n.Ref.ID] = n.Depth
	}
	assert.Equal(t, map[string]int{"a": 0, "b": 1, "c": 1, "d": 2}, depth)
}

func TestNeighborhood_HopAndTypeBounds(t *testing.T) {
	store := newTestStore(t, "a", "b", "c")
	g := New(nil)
	upsert(t, g, store, types.Relationship{From: char("a"), To: char("b"), Type: "ally", Chapter: 1})
	upsert(t, g, store, types.Relationship{From: char("b"), To: char("c"), Type: "ally", Chapter: 1})

	sub, err := g.Neighborhood(context.Background(), store, char("a"), storage.GraphBounds{MaxHops: 1})
	require.NoError(t, err)
	assert.Len(t, sub.Nodes, 2)

	sub, err = g.Neighborhood(context.Background(), store, char("a"),
		storage.GraphBounds{MaxHops: 2, RelationshipTypes: []string{"enemy"}})
	require.NoError(t, err)
	assert.Len(t, sub.Nodes, 1)
	assert.Empty(t, sub.Edges)
}

func TestNeighborhood_NodeLimitTruncates(t *testing.T) {
	store := newTestStore(t, "hub", "s1", "s2", "s3", "s4")
	g := New(nil)
	for _, id := range []string{"s1", "s2", "s3", "s4"} {
		upsert(t, g, store, types.Relationship{From: char("hub"), To: char(id), Type: "disciple", Chapter: 1})
	}

	sub, err := g.Neighborhood(context.Background(), store, char("hub"), storage.GraphBounds{MaxHops: 2, MaxNodes: 3})
	require.NoError(t, err)
	assert.True(t, sub.Truncated)
	assert.Len(t, sub.Nodes, 3)
	assert.Contains(t, sub.Reason, "max nodes")
}

func TestNeighborhood_Cancelled(t *testing.T) {
	store := newTestStore(t, "a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(nil).Neighborhood(ctx, store, char("a"), storage.GraphBounds{})
	assert.True(t, errors.Is(err, context.Canceled))
}

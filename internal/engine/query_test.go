package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/chronicle/internal/config"
	"github.com/scrypster/chronicle/internal/resolver"
	"github.com/scrypster/chronicle/internal/storage"
	"github.com/scrypster/chronicle/pkg/types"
)

func TestEntitiesInRange(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	ctx := context.Background()
	ingest(t, eng, 1, chapterOne)
	ingest(t, eng, 2, chapterTwo)

	active, err := eng.EntitiesInRange(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, active, 4)

	byID := make(map[string]EntityActivity)
	for _, a := range active {
		byID[a.Entity.ID] = a
	}
	assert.Equal(t, 2, byID["lintian"].Appearances)
	assert.Equal(t, 2, byID["lintian"].LastChapter)
	assert.Equal(t, 1, byID["faction_tianyunzong"].Appearances)

	// Ordered by type then id.
	for i := 1; i < len(active); i++ {
		assert.True(t, active[i-1].Entity.Ref().Less(active[i].Entity.Ref()))
	}

	only2, err := eng.EntitiesInRange(ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, only2, 2)
}

func TestHistory_UnknownEntity(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	_, err := eng.History(context.Background(), char("ghost"))
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestResolve_TiersByConfidence(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	ctx := context.Background()
	ingest(t, eng, 1, chapterOne)

	d, err := eng.Resolve(ctx, "林天", resolver.Hints{Chapter: 2})
	require.NoError(t, err)
	assert.Equal(t, types.TierAdopted, d.Tier)
	assert.Equal(t, char("lintian"), d.Chosen)

	d, err = eng.Resolve(ctx, "无名氏", resolver.Hints{Chapter: 2})
	require.NoError(t, err)
	assert.Equal(t, types.TierPendingReview, d.Tier)
	assert.True(t, d.Chosen.IsZero())
}

func TestNeighborhood(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	ingest(t, eng, 1, chapterOne)

	sub, err := eng.Neighborhood(context.Background(), char("lintian"), storage.GraphBounds{MaxHops: 1})
	require.NoError(t, err)
	assert.Len(t, sub.Edges, 1)
}

func TestArchive_Manual(t *testing.T) {
	eng, _ := newTestEngine(t, func(cfg *config.Config) {
		cfg.Archive.InactiveChapters = 3
	})
	ctx := context.Background()
	ingest(t, eng, 1, chapterOne)

	n, err := eng.Archive(ctx, 3)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing is stale yet")

	n, err = eng.Archive(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Already archived entities are not counted again.
	n, err = eng.Archive(ctx, 5)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = eng.Archive(ctx, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestRebuildAliases(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	ctx := context.Background()
	ingest(t, eng, 1, chapterOne)

	n, err := eng.RebuildAliases(ctx)
	require.NoError(t, err)
	// 林天 and 小天, plus one name for each of the other three.
	assert.Equal(t, 5, n)

	refs, err := eng.ResolveAlias(ctx, "小天", types.EntityCharacter)
	require.NoError(t, err)
	assert.Equal(t, []types.EntityRef{char("lintian")}, refs)
}

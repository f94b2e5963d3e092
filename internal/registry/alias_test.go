package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/chronicle/internal/storage"
	"github.com/scrypster/chronicle/pkg/types"
)

// 天云宗 is both a sect and its mountain: two entities, one alias.
func TestResolveAlias_SameNameAcrossTypes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	loc := f.create(t, types.NewEntity{Type: types.EntityLocation, Name: "天云宗", Chapter: 1})
	fac := f.create(t, types.NewEntity{Type: types.EntityFaction, Name: "天云宗", Chapter: 1})
	assert.Equal(t, "loc_tianyunzong", loc.ID)
	assert.Equal(t, "faction_tianyunzong", fac.ID)

	refs, err := f.reg.ResolveAlias(ctx, f.store, "天云宗", "")
	require.NoError(t, err)
	assert.Equal(t, []types.EntityRef{loc, fac}, refs)

	refs, err = f.reg.ResolveAlias(ctx, f.store, "天云宗", types.EntityFaction)
	require.NoError(t, err)
	assert.Equal(t, []types.EntityRef{fac}, refs)
}

func TestResolveAlias_ReturnsEveryRef(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.create(t, types.NewEntity{Type: types.EntityCharacter, Name: "林天", Chapter: 1})
	b := f.create(t, types.NewEntity{Type: types.EntityCharacter, Name: "林雨", Chapter: 1})
	c := f.create(t, types.NewEntity{Type: types.EntityCharacter, Name: "林峰", Chapter: 1})
	for _, ref := range []types.EntityRef{a, b, c} {
		require.NoError(t, f.tx(t, func(w storage.Writer) error {
			_, err := f.reg.RegisterAlias(ctx, w, "林公子", ref)
			return err
		}))
	}

	refs, err := f.reg.ResolveAlias(ctx, f.store, "林公子", "")
	require.NoError(t, err)
	assert.Equal(t, []types.EntityRef{a, b, c}, refs)
}

func TestRegisterAlias_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := f.create(t, types.NewEntity{Type: types.EntityCharacter, Name: "林天", Chapter: 1})

	var first, second bool
	require.NoError(t, f.tx(t, func(w storage.Writer) error {
		var err error
		if first, err = f.reg.RegisterAlias(ctx, w, "天哥", ref); err != nil {
			return err
		}
		second, err = f.reg.RegisterAlias(ctx, w, " 天哥 ", ref)
		return err
	}))
	assert.True(t, first)
	assert.False(t, second)

	e, err := f.store.GetEntity(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []string{"林天", "天哥"}, e.Aliases)
}

func TestRegisterAlias_UnknownEntity(t *testing.T) {
	f := newFixture(t)
	err := f.tx(t, func(w storage.Writer) error {
		_, err := f.reg.RegisterAlias(context.Background(), w, "无名", types.EntityRef{Type: types.EntityCharacter, ID: "nobody"})
		return err
	})
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestRebuildAliases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ref := f.create(t, types.NewEntity{Type: types.EntityCharacter, Name: "林天", Aliases: []string{"小天"}, Chapter: 1})
	f.create(t, types.NewEntity{Type: types.EntityFaction, Name: "天云宗", Chapter: 1})

	var n int
	require.NoError(t, f.tx(t, func(w storage.Writer) error {
		var err error
		n, err = f.reg.RebuildAliases(ctx, w)
		return err
	}))
	assert.Equal(t, 3, n)

	refs, err := f.reg.ResolveAlias(ctx, f.store, "小天", "")
	require.NoError(t, err)
	assert.Equal(t, []types.EntityRef{ref}, refs)
}

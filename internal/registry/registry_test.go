package registry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/chronicle/internal/ledger"
	"github.com/scrypster/chronicle/internal/storage"
	"github.com/scrypster/chronicle/internal/storage/sqlite"
	"github.com/scrypster/chronicle/pkg/types"
)

type fixture struct {
	store *sqlite.Store
	reg   *Registry
	led   *ledger.Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "chronicle.db"), sqlite.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	led, err := ledger.New(16)
	require.NoError(t, err)
	return &fixture{store: store, reg: New(led, Options{}), led: led}
}

// tx runs fn in a write transaction and drops cached replays afterwards.
func (f *fixture) tx(t *testing.T, fn func(w storage.Writer) error) error {
	t.Helper()
	err := f.store.WriteTx(context.Background(), fn)
	f.led.Invalidate()
	return err
}

func (f *fixture) create(t *testing.T, ne types.NewEntity) types.EntityRef {
	t.Helper()
	var ref types.EntityRef
	require.NoError(t, f.tx(t, func(w storage.Writer) error {
		var err error
		ref, err = f.reg.Create(context.Background(), w, ne)
		return err
	}))
	return ref
}

func (f *fixture) update(t *testing.T, ref types.EntityRef, chapter int, ops ...types.AttributeOp) []string {
	t.Helper()
	var changed []string
	require.NoError(t, f.tx(t, func(w storage.Writer) error {
		var err error
		changed, err = f.reg.Update(context.Background(), w, ref, ops, "", chapter)
		return err
	}))
	return changed
}

func TestCreate_AssignsIDAndHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ref := f.create(t, types.NewEntity{
		Type: types.EntityCharacter, Name: "林天", Tier: types.TierCore, IsProtagonist: true,
		Aliases: []string{"小天"}, Current: types.Attributes{"realm": types.String("炼气")}, Chapter: 1,
	})
	assert.Equal(t, types.EntityRef{Type: types.EntityCharacter, ID: "lintian"}, ref)

	e, err := f.reg.Get(ctx, f.store, ref)
	require.NoError(t, err)
	assert.Equal(t, []string{"林天", "小天"}, e.Aliases)
	assert.Equal(t, 1, e.FirstAppearance)
	require.Len(t, e.History, 1)
	assert.Equal(t, types.FieldCreated, e.History[0].Field)
	assert.Equal(t, types.String("炼气"), e.History[0].Snapshot.Get("realm"))
	assert.Equal(t, types.String("core"), e.History[0].Snapshot.Get("meta.tier"))

	refs, err := f.reg.ResolveAlias(ctx, f.store, "小天", "")
	require.NoError(t, err)
	assert.Equal(t, []types.EntityRef{ref}, refs)
}

func TestCreate_SuffixesCollidingIDs(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, types.NewEntity{Type: types.EntityCharacter, Name: "林天", Chapter: 1})
	second := f.create(t, types.NewEntity{Type: types.EntityCharacter, Name: "林天", Chapter: 3})
	assert.Equal(t, "lintian", first.ID)
	assert.Equal(t, "lintian_1", second.ID)
}

func TestCreate_UsesFreeSuggestedID(t *testing.T) {
	f := newFixture(t)
	ref := f.create(t, types.NewEntity{Type: types.EntityItem, Name: "青锋剑", SuggestedID: "qingfeng", Chapter: 2})
	assert.Equal(t, "qingfeng", ref.ID)

	// Taken or malformed suggestions fall back to generation.
	ref = f.create(t, types.NewEntity{Type: types.EntityItem, Name: "青锋剑", SuggestedID: "qingfeng", Chapter: 2})
	assert.Equal(t, "item_qingfengjian", ref.ID)
	ref = f.create(t, types.NewEntity{Type: types.EntityItem, Name: "玄铁", SuggestedID: "Bad ID", Chapter: 2})
	assert.Equal(t, "item_xuantie", ref.ID)
}

func TestCreate_RejectsBadInput(t *testing.T) {
	f := newFixture(t)
	err := f.tx(t, func(w storage.Writer) error {
		_, err := f.reg.Create(context.Background(), w, types.NewEntity{Type: "spaceship", Name: "x", Chapter: 1})
		return err
	})
	assert.True(t, errors.Is(err, storage.ErrInvalidInput))

	err = f.tx(t, func(w storage.Writer) error {
		_, err := f.reg.Create(context.Background(), w, types.NewEntity{Type: types.EntityCharacter, Name: " ", Chapter: 1})
		return err
	})
	assert.True(t, errors.Is(err, storage.ErrInvalidInput))
}

// The protagonist's realm is 炼气 at chapter 1, 筑基 from chapter 10 and 金丹
// from chapter 30; asking for chapter 25 must give 筑基.
func TestGetAtChapter_LintianRealm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ref := f.create(t, types.NewEntity{
		Type: types.EntityCharacter, Name: "林天", Tier: types.TierCore,
		Current: types.Attributes{"realm": types.String("炼气")}, Chapter: 1,
	})
	f.update(t, ref, 10, types.Set("realm", types.String("筑基")))
	f.update(t, ref, 30, types.Set("realm", types.String("金丹")))

	at25, err := f.reg.GetAtChapter(ctx, f.store, ref, 25)
	require.NoError(t, err)
	assert.Equal(t, types.String("筑基"), at25.Current.Get("realm"))
	assert.Len(t, at25.History, 2)

	now, err := f.reg.Get(ctx, f.store, ref)
	require.NoError(t, err)
	assert.Equal(t, types.String("金丹"), now.Current.Get("realm"))
	assert.Equal(t, 30, now.LastAppearance)
}

func TestGetAtChapter_BeforeFirstAppearance(t *testing.T) {
	f := newFixture(t)
	ref := f.create(t, types.NewEntity{Type: types.EntityCharacter, Name: "苏瑶", Chapter: 12})

	_, err := f.reg.GetAtChapter(context.Background(), f.store, ref, 5)
	var nf *types.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, 5, nf.Chapter)
}

func TestUpdate_OnlySignificantFieldsReachLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := f.create(t, types.NewEntity{Type: types.EntityCharacter, Name: "林天", Chapter: 1})

	changed := f.update(t, ref, 4,
		types.Set("realm", types.String("炼气二层")),
		types.Set("mood", types.String("愤怒")),
	)
	assert.Equal(t, []string{"realm", "mood"}, changed)

	history, err := f.led.History(ctx, f.store, ref)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "realm", history[1].Field)
	assert.Nil(t, history[1].OldValue)

	e, err := f.store.GetEntity(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, types.String("愤怒"), e.Current.Get("mood"))
}

func TestUpdate_Ops(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := f.create(t, types.NewEntity{
		Type: types.EntityCharacter, Name: "林天", Chapter: 1,
		Current: types.Attributes{"layer": types.Int(1), "skills": types.List("剑诀")},
	})

	f.update(t, ref, 2,
		types.AttributeOp{Op: types.OpInc, Field: "layer", Value: types.Int(2)},
		types.AttributeOp{Op: types.OpAdd, Field: "skills", Value: types.String("雷诀")},
		types.AttributeOp{Op: types.OpAdd, Field: "skills", Value: types.String("剑诀")},
	)
	e, err := f.store.GetEntity(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, types.Int(3), e.Current.Get("layer"))
	assert.Equal(t, types.List("剑诀", "雷诀"), e.Current.Get("skills"))

	f.update(t, ref, 3,
		types.AttributeOp{Op: types.OpRemove, Field: "skills", Value: types.String("剑诀")},
		types.AttributeOp{Op: types.OpUnset, Field: "layer"},
	)
	e, err = f.store.GetEntity(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, types.List("雷诀"), e.Current.Get("skills"))
	_, ok := e.Current["layer"]
	assert.False(t, ok)
}

func TestUpdate_NoOpWritesNoHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := f.create(t, types.NewEntity{
		Type: types.EntityCharacter, Name: "林天", Chapter: 1,
		Current: types.Attributes{"realm": types.String("炼气")},
	})
	changed := f.update(t, ref, 2, types.Set("realm", types.String("炼气")))
	assert.Empty(t, changed)

	history, err := f.led.History(ctx, f.store, ref)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestUpdate_TypeMismatch(t *testing.T) {
	f := newFixture(t)
	ref := f.create(t, types.NewEntity{
		Type: types.EntityCharacter, Name: "林天", Chapter: 1,
		Current: types.Attributes{"realm": types.String("炼气")},
	})
	err := f.tx(t, func(w storage.Writer) error {
		_, err := f.reg.Update(context.Background(), w, ref,
			[]types.AttributeOp{{Op: types.OpInc, Field: "realm", Value: types.Int(1)}}, "", 2)
		return err
	})
	assert.True(t, errors.Is(err, storage.ErrInvalidInput))
}

func TestUpdate_UnknownEntity(t *testing.T) {
	f := newFixture(t)
	err := f.tx(t, func(w storage.Writer) error {
		_, err := f.reg.Update(context.Background(), w, types.EntityRef{Type: types.EntityCharacter, ID: "ghost"},
			[]types.AttributeOp{types.Set("realm", types.String("x"))}, "", 2)
		return err
	})
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestUpdate_Unarchives(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := f.create(t, types.NewEntity{Type: types.EntityCharacter, Name: "路人甲", Chapter: 1})

	require.NoError(t, f.tx(t, func(w storage.Writer) error {
		e, err := w.GetEntity(ctx, ref)
		if err != nil {
			return err
		}
		e.Archived = true
		return w.SaveEntity(ctx, e)
	}))
	f.update(t, ref, 80, types.Set("injury", types.String("重伤")))

	e, err := f.store.GetEntity(ctx, ref)
	require.NoError(t, err)
	assert.False(t, e.Archived)
	assert.Equal(t, 80, e.LastAppearance)
}

func TestUpdateIdentity_RenameKeepsOldAlias(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := f.create(t, types.NewEntity{Type: types.EntityCharacter, Name: "林天", Tier: types.TierMajor, Chapter: 1})

	name := "林天帝"
	tier := types.Tier("核心")
	var fields []string
	require.NoError(t, f.tx(t, func(w storage.Writer) error {
		var err error
		fields, err = f.reg.UpdateIdentity(ctx, w, ref, types.IdentityChange{CanonicalName: &name, Tier: &tier}, "称帝", 50)
		return err
	}))
	assert.ElementsMatch(t, []string{"tier", "canonical_name"}, fields)

	e, err := f.reg.Get(ctx, f.store, ref)
	require.NoError(t, err)
	assert.Equal(t, "林天帝", e.CanonicalName)
	assert.Equal(t, types.TierCore, e.Tier)
	assert.True(t, e.HasAlias("林天"))
	assert.True(t, e.HasAlias("林天帝"))

	for _, alias := range []string{"林天", "林天帝"} {
		refs, err := f.reg.ResolveAlias(ctx, f.store, alias, types.EntityCharacter)
		require.NoError(t, err)
		assert.Equal(t, []types.EntityRef{ref}, refs, alias)
	}

	before, err := f.reg.GetAtChapter(ctx, f.store, ref, 49)
	require.NoError(t, err)
	assert.Equal(t, "林天", before.CanonicalName)
	assert.Equal(t, types.TierMajor, before.Tier)

	var meta []string
	for _, h := range e.History {
		if h.IsMeta() {
			meta = append(meta, h.Field)
		}
	}
	assert.ElementsMatch(t, []string{"meta.tier", "meta.canonical_name"}, meta)
}

// Chapter 10 is ingested after chapter 50. The current realm stays the
// chapter 50 value and the backfilled record diffs against chapter 1.
func TestUpdate_BackfilledChapter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ref := f.create(t, types.NewEntity{
		Type: types.EntityCharacter, Name: "林天", Tier: types.TierCore,
		Current: types.Attributes{"realm": types.String("练气")}, Chapter: 1,
	})
	f.update(t, ref, 50, types.Set("realm", types.String("筑基期一层")))
	changed := f.update(t, ref, 10,
		types.Set("realm", types.String("练气期九层")),
		types.Set("location", types.String("青石镇")))
	assert.ElementsMatch(t, []string{"realm", "location"}, changed)

	now, err := f.reg.Get(ctx, f.store, ref)
	require.NoError(t, err)
	assert.Equal(t, types.String("筑基期一层"), now.Current.Get("realm"))
	assert.Equal(t, types.String("青石镇"), now.Current.Get("location"), "no later record for location")
	assert.Equal(t, 50, now.LastAppearance)

	require.Len(t, now.History, 4)
	back := now.History[1]
	assert.Equal(t, 10, back.Chapter)
	assert.Equal(t, "realm", back.Field)
	require.NotNil(t, back.OldValue)
	assert.Equal(t, types.String("练气"), *back.OldValue)

	at20, err := f.reg.GetAtChapter(ctx, f.store, ref, 20)
	require.NoError(t, err)
	assert.Equal(t, types.String("练气期九层"), at20.Current.Get("realm"))

	at60, err := f.reg.GetAtChapter(ctx, f.store, ref, 60)
	require.NoError(t, err)
	assert.True(t, now.Current.Equal(at60.Current), "current state must match the full replay")
}

func TestUpdateIdentity_BackfilledChapter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := f.create(t, types.NewEntity{Type: types.EntityCharacter, Name: "王五", Chapter: 1})

	identity := func(chapter int, desc string) {
		t.Helper()
		require.NoError(t, f.tx(t, func(w storage.Writer) error {
			_, err := f.reg.UpdateIdentity(ctx, w, ref, types.IdentityChange{Description: &desc}, "", chapter)
			return err
		}))
	}
	identity(30, "后来成为宗主")

	// Nothing was known about him at chapter 10.
	at10, err := f.reg.GetAtChapter(ctx, f.store, ref, 10)
	require.NoError(t, err)
	assert.Empty(t, at10.Description)

	identity(10, "外门弟子")

	now, err := f.reg.Get(ctx, f.store, ref)
	require.NoError(t, err)
	assert.Equal(t, "后来成为宗主", now.Description)

	at10, err = f.reg.GetAtChapter(ctx, f.store, ref, 10)
	require.NoError(t, err)
	assert.Equal(t, "外门弟子", at10.Description)

	back := now.History[1]
	assert.Equal(t, 10, back.Chapter)
	assert.Nil(t, back.OldValue, "diffed against chapter 9, not the current description")
}

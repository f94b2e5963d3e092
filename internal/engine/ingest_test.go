package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/chronicle/internal/config"
	"github.com/scrypster/chronicle/pkg/types"
)

func TestIngest_FirstChapter(t *testing.T) {
	eng, idx := newTestEngine(t, nil)
	ctx := context.Background()

	report := ingest(t, eng, 1, chapterOne)
	assert.Len(t, report.Created, 4)
	assert.Equal(t, 1, report.Relationships)
	assert.Equal(t, 2, report.Scenes)
	assert.Equal(t, 2, report.Indexed)
	assert.Len(t, idx.scenes, 2)
	assert.NotEmpty(t, report.RunID)

	lintian, err := eng.Entity(ctx, char("lintian"))
	require.NoError(t, err)
	assert.Equal(t, "林天", lintian.CanonicalName)
	assert.Equal(t, types.TierCore, lintian.Tier)
	assert.True(t, lintian.IsProtagonist)
	require.NotEmpty(t, lintian.History)
	assert.Equal(t, types.FieldCreated, lintian.History[0].Field)
	assert.Equal(t, report.RunID, lintian.History[0].RunID)

	refs, err := eng.ResolveAlias(ctx, "小天", "")
	require.NoError(t, err)
	assert.Equal(t, []types.EntityRef{char("lintian")}, refs)

	rels, err := eng.Relationships(ctx, char("lintian"), types.DirectionOutgoing)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "member_of", rels[0].Type)

	chapters, err := eng.Chapters(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, chapters, 1)
	assert.Equal(t, report.RunID, chapters[0].RunID)

	rec, err := eng.Progress()
	require.NoError(t, err)
	assert.Equal(t, 1, rec.CurrentChapter)
	assert.Equal(t, 3000, rec.TotalWords)
	assert.Equal(t, "lintian", rec.Protagonist.ID)
	assert.Equal(t, "练气", rec.Protagonist.Realm)
	assert.Equal(t, 1, rec.Pacing.LastQuest)
}

func TestIngest_LowConfidenceMentionLeavesStateUntouched(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	ctx := context.Background()
	ingest(t, eng, 1, chapterOne)

	before, err := eng.Entity(ctx, char("lintian"))
	require.NoError(t, err)

	report := ingest(t, eng, 2, `{
		"chapter_meta": {"summary": "夜里有人喊天哥"},
		"mention_resolutions": [{"mention": "天哥", "entity_id": "lintian", "confidence": 0.3, "context": "黑衣人低声道"}]
	}`)
	assert.Equal(t, 1, report.Pending)
	assert.Zero(t, report.Adopted)
	assert.Empty(t, report.Appeared)

	after, err := eng.Entity(ctx, char("lintian"))
	require.NoError(t, err)
	assert.Equal(t, before.LastAppearance, after.LastAppearance)
	assert.Equal(t, before.Aliases, after.Aliases)
	assert.Equal(t, len(before.History), len(after.History))

	refs, err := eng.ResolveAlias(ctx, "天哥", "")
	require.NoError(t, err)
	assert.Empty(t, refs)

	active, err := eng.EntitiesInRange(ctx, 2, 2)
	require.NoError(t, err)
	assert.Empty(t, active)

	open, err := eng.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, types.TierPendingReview, open[0].Tier)
	assert.True(t, open[0].Chosen.IsZero())
	assert.Equal(t, "黑衣人低声道", open[0].Context)
	assert.Equal(t, report.RunID, open[0].RunID)
}

func TestIngest_UnknownRelationshipTargetRollsBackChapter(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	ctx := context.Background()
	ingest(t, eng, 1, chapterOne)

	bad := `{
		"chapter_meta": {"summary": "林天结识王五", "word_count": 2000},
		"entities_new": [{"name": "王五", "type": "character"}],
		"entities_appeared": [{"entity": "lintian"}],
		"state_changes": [{"entity": "lintian", "field": "realm", "new_value": "筑基", "reason": "突破"}],
		"relationships_new": [{"from": "lintian", "to": "character:nobody", "type": "ally"}]
	}`
	_, err := eng.Ingest(ctx, 2, parseBatch(t, bad))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrValidation))

	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 2, verr.Chapter)
	require.Len(t, verr.Issues, 1)
	assert.Equal(t, "relationships_new[0].to", verr.Issues[0].Path)

	// Nothing from chapter 2 survived.
	refs, err := eng.ResolveAlias(ctx, "王五", "")
	require.NoError(t, err)
	assert.Empty(t, refs)

	lintian, err := eng.Entity(ctx, char("lintian"))
	require.NoError(t, err)
	assert.Equal(t, "练气", lintian.Current["realm"].String())
	assert.Equal(t, 1, lintian.LastAppearance)

	chapters, err := eng.Chapters(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, chapters, 1)

	rec, err := eng.Progress()
	require.NoError(t, err)
	assert.Equal(t, 3000, rec.TotalWords)

	// The chapter can be retried once fixed.
	fixed := `{
		"chapter_meta": {"summary": "林天结识王五", "word_count": 2000},
		"entities_new": [{"name": "王五", "type": "character"}],
		"state_changes": [{"entity": "lintian", "field": "realm", "new_value": "筑基", "reason": "突破"}],
		"relationships_new": [{"from": "lintian", "to": "wangwu", "type": "ally"}]
	}`
	report := ingest(t, eng, 2, fixed)
	assert.Equal(t, 1, report.Changes)
	assert.Equal(t, []types.EntityRef{char("wangwu")}, report.Created)
}

func TestIngest_ReportsEveryIssue(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	ingest(t, eng, 1, chapterOne)

	_, err := eng.Ingest(context.Background(), 2, parseBatch(t, `{
		"chapter_meta": {"strand": "romance"},
		"scenes": [{"index": 0, "summary": ""}],
		"entities_new": [{"name": "", "type": "character"}, {"name": "剑", "type": "weapon"}],
		"state_changes": [
			{"entity": "ghost", "field": "realm", "new_value": "金丹"},
			{"entity": "lintian", "field": "layer", "op": "inc", "new_value": "three"}
		]
	}`))
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)

	paths := make([]string, 0, len(verr.Issues))
	for _, is := range verr.Issues {
		paths = append(paths, is.Path)
	}
	assert.ElementsMatch(t, []string{
		"chapter_meta.strand",
		"scenes[0].summary",
		"entities_new[0]",
		"entities_new[1]",
		"state_changes[0].entity",
		"state_changes[1]",
	}, paths)
}

func TestIngest_DuplicateChapterRejected(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	ingest(t, eng, 1, chapterOne)

	_, err := eng.Ingest(context.Background(), 1, parseBatch(t, chapterOne))
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Issues, 1)
	assert.Equal(t, "chapter_meta", verr.Issues[0].Path)

	refs, err := eng.ResolveAlias(context.Background(), "林天", types.EntityCharacter)
	require.NoError(t, err)
	assert.Len(t, refs, 1, "rejected chapter must not create lintian_1")
}

func TestIngest_StateHistoryReplays(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	ctx := context.Background()
	ingest(t, eng, 1, chapterOne)
	ingest(t, eng, 10, `{"state_changes": [{"entity": "lintian", "field": "realm", "new_value": "筑基", "reason": "突破"}]}`)
	ingest(t, eng, 30, `{"state_changes": [
		{"entity": "lintian", "field": "realm", "new_value": "金丹"},
		{"entity": "lintian", "field": "skills", "op": "add", "new_value": "九天雷诀"},
		{"entity": "lintian", "field": "mood", "new_value": "calm"}
	]}`)

	at25, err := eng.EntityAt(ctx, char("lintian"), 25)
	require.NoError(t, err)
	assert.Equal(t, "筑基", at25.Current["realm"].String())
	assert.NotContains(t, at25.Current, "skills")

	now, err := eng.Entity(ctx, char("lintian"))
	require.NoError(t, err)
	assert.Equal(t, "金丹", now.Current["realm"].String())
	assert.Equal(t, "calm", now.Current["mood"].String(), "insignificant fields still update current state")

	changes, err := eng.ChangesInRange(ctx, 2, 40)
	require.NoError(t, err)
	fields := make([]string, 0, len(changes))
	for _, c := range changes {
		fields = append(fields, c.Field)
	}
	assert.Equal(t, []string{"realm", "realm", "skills"}, fields)
}

func TestIngest_IdentityChanges(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	ctx := context.Background()
	ingest(t, eng, 1, chapterOne)

	report := ingest(t, eng, 5, `{
		"identity_changes": [{"entity": "路人甲", "field": "canonical_name", "value": "甲先生", "reason": "报上姓名"}],
		"state_changes": [{"entity": "甲先生", "field": "importance", "new_value": "重要"}]
	}`)
	assert.Equal(t, 2, report.Changes)

	ent, err := eng.Entity(ctx, char("lurenjia"))
	require.NoError(t, err)
	assert.Equal(t, "甲先生", ent.CanonicalName)
	assert.Equal(t, types.TierMajor, ent.Tier)
	assert.Contains(t, ent.Aliases, "路人甲")

	old, err := eng.EntityAt(ctx, char("lurenjia"), 3)
	require.NoError(t, err)
	assert.Equal(t, "路人甲", old.CanonicalName)
}

func TestIngest_AmbiguousNameRejected(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	ingest(t, eng, 1, `{"entities_new": [
		{"name": "林公子", "type": "character", "suggested_id": "lin_a"},
		{"name": "林公子", "type": "character", "suggested_id": "lin_b"}
	]}`)

	_, err := eng.Ingest(context.Background(), 2, parseBatch(t,
		`{"state_changes": [{"entity": "林公子", "field": "injury", "new_value": "轻伤"}]}`))
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Issues, 1)
	assert.Equal(t, "ambiguous reference", verr.Issues[0].Message)
	assert.ElementsMatch(t, []types.EntityRef{char("lin_a"), char("lin_b")}, verr.Issues[0].Candidates)
}

func TestIngest_AutoArchiveAndRevive(t *testing.T) {
	eng, _ := newTestEngine(t, func(cfg *config.Config) {
		cfg.Archive.InactiveChapters = 5
		cfg.Archive.CheckEvery = 10
	})
	ctx := context.Background()
	ingest(t, eng, 1, chapterOne)

	report := ingest(t, eng, 10, `{"entities_appeared": [{"entity": "lintian"}]}`)
	// Only the core-tier protagonist survives the sweep.
	assert.Equal(t, 3, report.Archived)

	ent, err := eng.Entity(ctx, char("lurenjia"))
	require.NoError(t, err)
	assert.True(t, ent.Archived)

	lintian, err := eng.Entity(ctx, char("lintian"))
	require.NoError(t, err)
	assert.False(t, lintian.Archived)

	// Archived entities stay resolvable and revive on update.
	refs, err := eng.ResolveAlias(ctx, "路人甲", "")
	require.NoError(t, err)
	assert.Equal(t, []types.EntityRef{char("lurenjia")}, refs)

	ingest(t, eng, 11, `{"state_changes": [{"entity": "lurenjia", "field": "injury", "new_value": "重伤"}]}`)
	ent, err = eng.Entity(ctx, char("lurenjia"))
	require.NoError(t, err)
	assert.False(t, ent.Archived)
	assert.Equal(t, 11, ent.LastAppearance)
}

func TestIngest_BackfilledChapterKeepsLaterState(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	ctx := context.Background()
	ingest(t, eng, 1, chapterOne)
	ingest(t, eng, 50, `{"state_changes": [{"entity": "lintian", "field": "realm", "new_value": "筑基期一层"}]}`)
	ingest(t, eng, 10, `{"state_changes": [{"entity": "lintian", "field": "realm", "new_value": "练气期九层"}]}`)

	now, err := eng.Entity(ctx, char("lintian"))
	require.NoError(t, err)
	assert.Equal(t, "筑基期一层", now.Current["realm"].String())
	assert.Equal(t, 50, now.LastAppearance)

	latest, err := eng.EntityAt(ctx, char("lintian"), 60)
	require.NoError(t, err)
	assert.Equal(t, now.Current["realm"], latest.Current["realm"])

	at20, err := eng.EntityAt(ctx, char("lintian"), 20)
	require.NoError(t, err)
	assert.Equal(t, "练气期九层", at20.Current["realm"].String())

	changes, err := eng.ChangesInRange(ctx, 10, 10)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.NotNil(t, changes[0].OldValue)
	assert.Equal(t, "练气", changes[0].OldValue.String())

	rec, err := eng.Progress()
	require.NoError(t, err)
	assert.Equal(t, 50, rec.CurrentChapter)
	assert.Equal(t, "筑基期一层", rec.Protagonist.Realm)
}

func TestIngest_ReannouncedEntityMerges(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	ctx := context.Background()
	ingest(t, eng, 1, chapterOne)

	report := ingest(t, eng, 2, `{"entities_new": [
		{"name": "林天", "type": "character", "mentions": ["天哥"], "current": {"mood": "怒"}}
	]}`)
	assert.Empty(t, report.Created)
	assert.Equal(t, []types.EntityRef{char("lintian")}, report.Appeared)
	assert.NotEmpty(t, report.Warnings)

	for _, alias := range []string{"林天", "天哥"} {
		refs, err := eng.ResolveAlias(ctx, alias, types.EntityCharacter)
		require.NoError(t, err)
		assert.Equal(t, []types.EntityRef{char("lintian")}, refs, alias)
	}

	lintian, err := eng.Entity(ctx, char("lintian"))
	require.NoError(t, err)
	assert.Equal(t, "怒", lintian.Current["mood"].String())
	assert.Equal(t, "练气", lintian.Current["realm"].String())
	assert.Equal(t, 2, lintian.LastAppearance)

	ingest(t, eng, 3, `{"state_changes": [{"entity": "林天", "field": "realm", "new_value": "筑基"}]}`)
	lintian, err = eng.Entity(ctx, char("lintian"))
	require.NoError(t, err)
	assert.Equal(t, "筑基", lintian.Current["realm"].String())
}

func TestIngest_NamesakeNeedsDistinctID(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	ctx := context.Background()
	ingest(t, eng, 1, chapterOne)

	report := ingest(t, eng, 2, `{"entities_new": [
		{"name": "林天", "type": "character", "suggested_id": "lintian_cousin"}
	]}`)
	assert.Equal(t, []types.EntityRef{char("lintian_cousin")}, report.Created)

	// With two namesakes a bare re-announcement cannot be placed.
	_, err := eng.Ingest(ctx, 3, parseBatch(t, `{"entities_new": [{"name": "林天", "type": "character"}]}`))
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Issues, 1)
	assert.Equal(t, "entities_new[0]", verr.Issues[0].Path)
	assert.Equal(t, "ambiguous reference", verr.Issues[0].Message)
	assert.ElementsMatch(t, []types.EntityRef{char("lintian"), char("lintian_cousin")}, verr.Issues[0].Candidates)
}

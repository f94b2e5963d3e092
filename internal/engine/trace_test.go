package engine

import (
	"testing"

	"github.com/scrypster/chronicle/pkg/types"
)

// ---------------------------------------------------------------------------
// TraceEvent constructors
// ---------------------------------------------------------------------------

func TestEventEntityCreated(t *testing.T) {
	e := EventEntityCreated(3, char("lintian"), "林天")
	if e.Kind != KindEntityCreated {
		t.Errorf("Kind: got %q, want %q", e.Kind, KindEntityCreated)
	}
	if e.Chapter != 3 {
		t.Errorf("Chapter: got %d, want 3", e.Chapter)
	}
	if e.Entity != char("lintian") {
		t.Errorf("Entity: got %s", e.Entity)
	}
	if e.Detail != "林天" {
		t.Errorf("Detail: got %q", e.Detail)
	}
	if e.At.IsZero() {
		t.Error("At should not be zero")
	}
}

func TestEventMentionResolved(t *testing.T) {
	d := types.Decision{
		Tier:   types.TierAdoptedWithWarning,
		Chosen: char("lintian"),
		Resolution: types.Resolution{
			Mention:    "天哥",
			Candidates: []types.Candidate{{Ref: char("lintian"), Confidence: 0.6}},
		},
	}
	e := EventMentionResolved(7, d)
	if e.Kind != KindMentionResolved {
		t.Errorf("Kind: got %q, want %q", e.Kind, KindMentionResolved)
	}
	if e.Mention != "天哥" {
		t.Errorf("Mention: got %q", e.Mention)
	}
	if e.Tier != types.TierAdoptedWithWarning {
		t.Errorf("Tier: got %q", e.Tier)
	}
	if e.Confidence != 0.6 {
		t.Errorf("Confidence: got %f, want 0.6", e.Confidence)
	}
}

func TestEventRelationshipUpserted(t *testing.T) {
	rel := types.Relationship{From: char("lintian"), To: char("wangwu"), Type: "ally"}

	created := EventRelationshipUpserted(2, rel, true)
	if created.Detail != "ally -> character:wangwu" {
		t.Errorf("Detail: got %q", created.Detail)
	}
	updated := EventRelationshipUpserted(2, rel, false)
	if updated.Detail != "ally -> character:wangwu (updated)" {
		t.Errorf("Detail: got %q", updated.Detail)
	}
}

func TestEventArchived(t *testing.T) {
	e := EventArchived(10, 3)
	if e.Kind != KindArchived || e.Count != 3 {
		t.Errorf("got %+v", e)
	}
}

// ---------------------------------------------------------------------------
// Events on the ingest report
// ---------------------------------------------------------------------------

func TestIngestReport_Events(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	report := ingest(t, eng, 1, chapterOne)

	counts := map[TraceEventKind]int{}
	for _, ev := range report.Events {
		counts[ev.Kind]++
		if ev.Chapter != 1 {
			t.Errorf("%s event carries chapter %d", ev.Kind, ev.Chapter)
		}
	}
	if counts[KindEntityCreated] != 4 {
		t.Errorf("entity_created: got %d, want 4", counts[KindEntityCreated])
	}
	if counts[KindRelationshipUpserted] != 1 {
		t.Errorf("relationship_upserted: got %d, want 1", counts[KindRelationshipUpserted])
	}
}

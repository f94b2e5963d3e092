package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/chronicle/internal/config"
	"github.com/scrypster/chronicle/internal/embedding"
	"github.com/scrypster/chronicle/internal/logging"
	"github.com/scrypster/chronicle/pkg/types"
)

// recordingIndexer captures the scenes handed to it.
type recordingIndexer struct {
	mu     sync.Mutex
	scenes []embedding.SceneSummary
	err    error
}

func (r *recordingIndexer) IndexScenes(_ context.Context, scenes []embedding.SceneSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.scenes = append(r.scenes, scenes...)
	return nil
}

// newTestEngine opens an engine on a temp data dir. tweak, if set, edits the
// defaults before opening.
func newTestEngine(t *testing.T, tweak func(cfg *config.Config)) (*Engine, *recordingIndexer) {
	t.Helper()

	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.DataDir = t.TempDir()
	if tweak != nil {
		tweak(cfg)
	}

	idx := &recordingIndexer{}
	eng, err := Open(context.Background(), cfg, Options{Logger: logging.Nop(), Indexer: idx})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng, idx
}

// parseBatch decodes an extraction result the way an extractor would send it.
func parseBatch(t *testing.T, raw string) *types.ExtractionResult {
	t.Helper()
	var b types.ExtractionResult
	require.NoError(t, json.Unmarshal([]byte(raw), &b))
	return &b
}

func ingest(t *testing.T, eng *Engine, chapter int, raw string) *IngestReport {
	t.Helper()
	report, err := eng.Ingest(context.Background(), chapter, parseBatch(t, raw))
	require.NoError(t, err)
	return report
}

func char(id string) types.EntityRef {
	return types.EntityRef{Type: types.EntityCharacter, ID: id}
}

// chapterOne seeds the protagonist, a sect and a bystander.
const chapterOne = `{
	"chapter_meta": {"title": "入门", "location": "青石镇", "word_count": 3000, "summary": "林天离开青石镇，拜入天云宗。", "hook": "玉佩发光", "strand": "quest"},
	"scenes": [
		{"index": 0, "location": "青石镇", "summary": "林天告别家人"},
		{"index": 1, "location": "天云宗", "summary": "外门考核"}
	],
	"entities_new": [
		{"suggested_id": "lintian", "name": "林天", "type": "character", "tier": "core", "is_protagonist": true,
		 "current": {"realm": "练气", "layer": 3, "location": "青石镇"}, "mentions": ["小天"]},
		{"name": "天云宗", "type": "faction", "tier": "major"},
		{"name": "青石镇", "type": "location", "tier": "minor"},
		{"name": "路人甲", "type": "character", "tier": "decorative"}
	],
	"relationships_new": [
		{"from": "lintian", "to": "faction:faction_tianyunzong", "type": "member_of", "description": "外门弟子"}
	]
}`

func TestOpen_RejectsInvalidConfig(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.DataDir = t.TempDir()
	cfg.Resolver.AdoptThreshold = 0.3

	_, err = Open(context.Background(), cfg, Options{Logger: logging.Nop()})
	assert.Error(t, err)
}

func TestClose_Twice(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	require.NoError(t, eng.Close())
	assert.ErrorIs(t, eng.Close(), ErrClosed)

	_, err := eng.Ingest(context.Background(), 1, parseBatch(t, chapterOne))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCallbacks_FireAfterCommit(t *testing.T) {
	eng, _ := newTestEngine(t, nil)

	var reports []*IngestReport
	var decisions []TraceEvent
	eng.SetOnChapterIngested(func(r *IngestReport) { reports = append(reports, r) })
	eng.SetOnDecision(func(ev TraceEvent) { decisions = append(decisions, ev) })

	ingest(t, eng, 1, chapterOne)
	ingest(t, eng, 2, `{"mention_resolutions": [{"mention": "天哥", "entity_id": "lintian", "confidence": 0.3}]}`)

	require.Len(t, reports, 2)
	assert.Equal(t, 2, reports[1].Chapter)
	require.Len(t, decisions, 1)
	assert.Equal(t, types.TierPendingReview, decisions[0].Tier)
	assert.Equal(t, "天哥", decisions[0].Mention)

	// Rejected chapters fire nothing.
	_, err := eng.Ingest(context.Background(), 2, parseBatch(t, `{}`))
	require.Error(t, err)
	assert.Len(t, reports, 2)
}

func TestIndexerFailureDoesNotFailChapter(t *testing.T) {
	eng, idx := newTestEngine(t, nil)
	idx.err = errors.New("embedding service down")

	report := ingest(t, eng, 1, chapterOne)
	assert.Zero(t, report.Indexed)
	assert.NotEmpty(t, report.Warnings)

	_, err := eng.Entity(context.Background(), char("lintian"))
	assert.NoError(t, err)
}

package embedding

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/chronicle/internal/storage"
	"github.com/scrypster/chronicle/pkg/types"
)

type fakeEmbedder struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (f *fakeEmbedder) Model() string { return "fake-embed" }

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), texts...))
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

type memVectors struct {
	rows []storage.SceneVector
}

func (m *memVectors) SaveSceneVectors(_ context.Context, v []storage.SceneVector) error {
	m.rows = append(m.rows, v...)
	return nil
}

func (m *memVectors) SceneVectors(_ context.Context, chapter int) ([]storage.SceneVector, error) {
	var out []storage.SceneVector
	for _, r := range m.rows {
		if r.Chapter == chapter {
			out = append(out, r)
		}
	}
	return out, nil
}

func fastOptions() EmitterOptions {
	return EmitterOptions{RatePerSecond: 1000, Burst: 100, BatchSize: 2}
}

func TestEmitter_BatchesAndStores(t *testing.T) {
	emb := &fakeEmbedder{}
	store := &memVectors{}
	e := NewEmitter(emb, store, fastOptions())

	scenes := []SceneSummary{
		{Chapter: 3, SceneIndex: 0, Summary: "林天入山门"},
		{Chapter: 3, SceneIndex: 1, Summary: "外门考核"},
		{Chapter: 3, SceneIndex: 2, Summary: "夜访藏经阁"},
	}
	require.NoError(t, e.IndexScenes(context.Background(), scenes))

	assert.Len(t, emb.calls, 2)
	got, err := store.SceneVectors(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "fake-embed", got[2].Model)
	assert.Equal(t, 2, got[2].SceneIndex)
	assert.Equal(t, "夜访藏经阁", got[2].Summary)
}

func TestEmitter_BreakerOpensAfterFailures(t *testing.T) {
	emb := &fakeEmbedder{err: errors.New("503")}
	opts := fastOptions()
	opts.Breaker = BreakerConfig{MaxFailures: 2, Cooldown: time.Hour}
	e := NewEmitter(emb, &memVectors{}, opts)

	one := []SceneSummary{{Chapter: 1, Summary: "x"}}
	for i := 0; i < 2; i++ {
		assert.Error(t, e.IndexScenes(context.Background(), one))
	}
	assert.Equal(t, "open", e.Breaker().State())

	err := e.IndexScenes(context.Background(), one)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Len(t, emb.calls, 2, "open circuit must not reach the service")

	m := e.Breaker().Metrics()
	assert.Equal(t, uint64(2), m.TotalFailures)
	assert.Equal(t, uint64(1), m.Rejected)
}

func TestEmitter_CancelledContext(t *testing.T) {
	emb := &fakeEmbedder{}
	e := NewEmitter(emb, &memVectors{}, fastOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := e.IndexScenes(ctx, []SceneSummary{{Chapter: 1, Summary: "x"}})
	assert.Error(t, err)
	assert.Empty(t, emb.calls)
}

func TestFromScenes_SkipsEmpty(t *testing.T) {
	got := FromScenes([]types.Scene{
		{Chapter: 4, Index: 0, Summary: "a"},
		{Chapter: 4, Index: 1},
		{Chapter: 4, Index: 2, Summary: "c"},
	})
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[1].SceneIndex)
}

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	_, err := NewOpenAIClient(OpenAIConfig{})
	assert.Error(t, err)

	c, err := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, c.Model())
}

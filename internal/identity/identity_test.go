package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/chronicle/pkg/types"
)

func TestBase(t *testing.T) {
	tests := []struct {
		typ  types.EntityType
		name string
		want string
	}{
		{types.EntityCharacter, "林天", "lintian"},
		{types.EntityFaction, "天云宗", "faction_tianyunzong"},
		{types.EntityLocation, "天云宗", "loc_tianyunzong"},
		{types.EntityAbility, "九天雷诀", "skill_jiutianleijue"},
		{types.EntityItem, "Éclair Blade", "item_eclair_blade"},
		{types.EntityCharacter, "  Old  Man-Li ", "old_man_li"},
		{types.EntityCharacter, "林天2号", "lintian2hao"},
	}
	for _, tt := range tests {
		if got := Base(tt.typ, tt.name); got != tt.want {
			t.Errorf("Base(%s, %q): got %q, want %q", tt.typ, tt.name, got, tt.want)
		}
	}
}

func TestBase_HashFallback(t *testing.T) {
	got := Base(types.EntityItem, "★☆")
	assert.Regexp(t, `^item_[0-9a-f]{8}$`, got)
	assert.Equal(t, got, Base(types.EntityItem, "★☆"), "fallback must be deterministic")
	assert.True(t, Valid(got))
}

func TestGenerate_SuffixOnCollision(t *testing.T) {
	used := map[string]bool{"lintian": true, "lintian_1": true}
	taken := func(_ context.Context, id string) (bool, error) { return used[id], nil }

	id, err := Generate(context.Background(), types.EntityCharacter, "林天", taken)
	require.NoError(t, err)
	assert.Equal(t, "lintian_2", id)
}

func TestGenerate_PropagatesLookupError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Generate(context.Background(), types.EntityCharacter, "林天", func(context.Context, string) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("faction_tianyunzong"))
	assert.False(t, Valid("Lintian"))
	assert.False(t, Valid(""))
	assert.False(t, Valid("lin tian"))
}

package types_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/chronicle/pkg/types"
)

func TestParseTier(t *testing.T) {
	cases := map[string]types.Tier{
		"core":  types.TierCore,
		"MAJOR": types.TierMajor,
		"核心":    types.TierCore,
		"次要":    types.TierMinor,
		"装饰":    types.TierDecorative,
	}
	for in, want := range cases {
		got, ok := types.ParseTier(in)
		if !ok || got != want {
			t.Errorf("ParseTier(%q): got %q/%v, want %q", in, got, ok, want)
		}
	}
	if _, ok := types.ParseTier("legendary"); ok {
		t.Error("ParseTier should reject unknown labels")
	}
}

func TestTierRank(t *testing.T) {
	assert.Less(t, types.TierCore.Rank(), types.TierMajor.Rank())
	assert.Less(t, types.TierMinor.Rank(), types.TierDecorative.Rank())
	assert.Equal(t, len(types.ValidTiers), types.Tier("other").Rank())
}

func TestParseEntityRef(t *testing.T) {
	ref, err := types.ParseEntityRef("faction:tianyunzong")
	require.NoError(t, err)
	assert.Equal(t, types.EntityRef{Type: types.EntityFaction, ID: "tianyunzong"}, ref)

	_, err = types.ParseEntityRef("planet:x")
	assert.Error(t, err)
	_, err = types.ParseEntityRef("lintian")
	assert.Error(t, err)
}

func TestRefInput_StringShorthand(t *testing.T) {
	var in struct {
		A types.RefInput `json:"a"`
		B types.RefInput `json:"b"`
		C types.RefInput `json:"c"`
		D types.RefInput `json:"d"`
	}
	raw := `{"a":"location:tianyunzong","b":"lintian","c":"天云宗","d":{"name":"林天","type":"character"}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &in))

	assert.Equal(t, types.RefInput{Type: types.EntityLocation, ID: "tianyunzong"}, in.A)
	assert.Equal(t, types.RefInput{ID: "lintian"}, in.B)
	assert.Equal(t, types.RefInput{Name: "天云宗"}, in.C)
	assert.Equal(t, types.RefInput{Name: "林天", Type: types.EntityCharacter}, in.D)
}

func TestIdentityChangeFromField(t *testing.T) {
	c, err := types.IdentityChangeFromField("importance", types.String("重要"))
	require.NoError(t, err)
	require.NotNil(t, c.Tier)
	assert.Equal(t, types.TierMajor, *c.Tier)

	_, err = types.IdentityChangeFromField("canonical_name", types.String(""))
	assert.Error(t, err)
	_, err = types.IdentityChangeFromField("realm", types.String("x"))
	assert.Error(t, err)
	_, err = types.IdentityChangeFromField("tier", types.Int(1))
	assert.Error(t, err)
}

type recordingHandler struct{ got types.ActionTier }

func (h *recordingHandler) Adopted(d types.Decision) error {
	h.got = types.TierAdopted
	return nil
}

func (h *recordingHandler) AdoptedWithWarning(d types.Decision) error {
	h.got = types.TierAdoptedWithWarning
	return nil
}

func (h *recordingHandler) PendingReview(d types.Decision) error {
	h.got = types.TierPendingReview
	return nil
}

func TestDecision_HandleDispatchesByTier(t *testing.T) {
	for _, tier := range []types.ActionTier{types.TierAdopted, types.TierAdoptedWithWarning, types.TierPendingReview} {
		h := &recordingHandler{}
		require.NoError(t, types.Decision{Tier: tier}.Handle(h))
		assert.Equal(t, tier, h.got)
	}
}

func TestTypedErrorsMatchSentinels(t *testing.T) {
	var err error = &types.ValidationError{Chapter: 3, Issues: []types.Issue{{Path: "relationships_new[0].to", Message: "unknown entity", Mention: "ghost"}}}
	wrapped := fmt.Errorf("ingest: %w", err)
	assert.True(t, errors.Is(wrapped, types.ErrValidation))
	assert.Contains(t, err.Error(), "ghost")

	var ve *types.ValidationError
	require.True(t, errors.As(wrapped, &ve))
	assert.Equal(t, 3, ve.Chapter)

	nf := &types.NotFoundError{Kind: "entity", Ref: types.EntityRef{Type: types.EntityCharacter, ID: "x"}}
	assert.True(t, errors.Is(nf, types.ErrNotFound))
	assert.Equal(t, "entity character:x: resource not found", nf.Error())

	cause := errors.New("database is locked")
	se := &types.StorageError{Op: "commit", Err: cause, Transient: true}
	assert.True(t, errors.Is(se, types.ErrStorage))
	assert.True(t, errors.Is(se, cause))

	amb := &types.AmbiguityError{Mention: "老者", Confidence: 0.3}
	assert.True(t, errors.Is(amb, types.ErrAmbiguous))
}

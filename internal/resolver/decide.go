package resolver

import (
	"github.com/scrypster/chronicle/pkg/types"
)

// Decide tiers a resolution: above the adopt threshold it is adopted, at or
// above the review threshold it is adopted with a warning, otherwise it
// waits for review and carries no chosen ref.
func (r *Resolver) Decide(res types.Resolution) types.Decision {
	d := types.Decision{Resolution: res}
	top, ok := res.Top()
	switch {
	case ok && top.Confidence > r.adopt:
		d.Tier = types.TierAdopted
		d.Chosen = top.Ref
	case ok && top.Confidence >= r.review:
		d.Tier = types.TierAdoptedWithWarning
		d.Chosen = top.Ref
	default:
		d.Tier = types.TierPendingReview
	}
	return d
}

// Require returns the chosen candidate, or a *types.AmbiguityError when the
// resolution is not confident enough to act on.
func (r *Resolver) Require(res types.Resolution) (types.Candidate, error) {
	d := r.Decide(res)
	if d.Tier == types.TierPendingReview {
		return types.Candidate{}, &types.AmbiguityError{
			Mention:    res.Mention,
			Chapter:    res.Chapter,
			Confidence: res.Confidence(),
			Candidates: res.Candidates,
		}
	}
	top, _ := res.Top()
	return top, nil
}

// Asserted builds a resolution from an extractor's own pick. The
// extractor's confidence replaces the resolver's; a missing confidence is
// treated as certain.
func Asserted(mention string, chapter int, ref types.EntityRef, name string, confidence *float64) types.Resolution {
	c := 1.0
	if confidence != nil {
		c = min(1, max(0, *confidence))
	}
	return types.Resolution{
		Mention: mention,
		Chapter: chapter,
		Candidates: []types.Candidate{{
			Ref: ref, Name: name, Confidence: c, Match: types.MatchAsserted, Reason: "asserted by extractor",
		}},
	}
}

// Capped bounds every candidate's confidence by limit, the extractor's own
// confidence in a mention it did not pin to an entity. Candidates are
// already ranked by confidence and capping each one keeps that order.
func Capped(res types.Resolution, limit float64) types.Resolution {
	limit = min(1, max(0, limit))
	cs := make([]types.Candidate, len(res.Candidates))
	for i, c := range res.Candidates {
		c.Confidence = min(c.Confidence, limit)
		cs[i] = c
	}
	res.Candidates = cs
	return res
}

// Package resolver maps a surface mention to ranked entity candidates and
// tiers the result into an action.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/scrypster/chronicle/internal/logging"
	"github.com/scrypster/chronicle/internal/storage"
	"github.com/scrypster/chronicle/pkg/types"
)

// Options configures a Resolver. Zero values take the defaults.
type Options struct {
	// AdoptThreshold: confidence strictly above it is adopted (default: 0.8).
	AdoptThreshold float64

	// ReviewThreshold: confidence below it goes to review (default: 0.5).
	ReviewThreshold float64

	// MaxCandidates caps the candidates kept on a resolution (default: 5).
	MaxCandidates int

	Logger *logging.Logger
}

// Resolver confidences per rule.
const (
	ExactConfidence  = 0.95
	AmbiguousBase    = 0.4
	AmbiguousCeiling = 0.8
	FuzzyFloor       = 0.4
	FuzzyCeiling     = 0.7

	// minFuzzyRunes is the shortest alias or mention allowed into a
	// substring match; single characters match half the cast.
	minFuzzyRunes    = 2
	fuzzySearchLimit = 50
)

// Proximity weights for ranking same-alias candidates.
const (
	weightLocation = 0.4
	weightRecent   = 0.3
	weightSeen     = 0.2
	weightTier     = 0.1
)

// Hints carries optional scene context for a mention.
type Hints struct {
	Type          types.EntityType  // Restrict candidates to one type
	SceneLocation string            // Name of the location the scene is set in
	Recent        []types.EntityRef // Entities active in recent chapters
	Chapter       int               // Chapter the mention occurs in
}

// Resolver ranks entity candidates for mentions.
type Resolver struct {
	adopt  float64
	review float64
	max    int
	logger *logging.Logger
}

// New returns a Resolver, or an error when the thresholds are inconsistent.
func New(opts Options) (*Resolver, error) {
	if opts.AdoptThreshold == 0 {
		opts.AdoptThreshold = 0.8
	}
	if opts.ReviewThreshold == 0 {
		opts.ReviewThreshold = 0.5
	}
	if opts.MaxCandidates < 1 {
		opts.MaxCandidates = 5
	}
	if opts.ReviewThreshold < 0 || opts.ReviewThreshold > opts.AdoptThreshold || opts.AdoptThreshold >= 1 {
		return nil, fmt.Errorf("resolver: need 0 <= review (%.2f) <= adopt (%.2f) < 1",
			opts.ReviewThreshold, opts.AdoptThreshold)
	}
	return &Resolver{
		adopt:  opts.AdoptThreshold,
		review: opts.ReviewThreshold,
		max:    opts.MaxCandidates,
		logger: logging.OrNop(opts.Logger),
	}, nil
}

// Thresholds returns the adopt and review thresholds.
func (r *Resolver) Thresholds() (adopt, review float64) {
	return r.adopt, r.review
}

// Resolve ranks candidates for mention. Exact alias hits are tried first,
// then substring matches; with neither the resolution is marked NewEntity.
func (r *Resolver) Resolve(ctx context.Context, rd storage.Reader, mention string, h Hints) (types.Resolution, error) {
	mention = strings.TrimSpace(mention)
	res := types.Resolution{Mention: mention, Chapter: h.Chapter}
	if mention == "" {
		res.NewEntity = true
		return res, nil
	}

	refs, err := rd.LookupAlias(ctx, mention, h.Type)
	if err != nil {
		return res, err
	}
	entities, err := loadAll(ctx, rd, refs)
	if err != nil {
		return res, err
	}

	switch {
	case len(entities) == 1:
		e := entities[0]
		res.Candidates = []types.Candidate{{
			Ref: e.Ref(), Name: e.CanonicalName, Confidence: ExactConfidence,
			Match: types.MatchExact, Reason: "unique alias",
		}}
	case len(entities) > 1:
		res.Candidates = rankByProximity(entities, h)
	default:
		res.Candidates, err = r.fuzzy(ctx, rd, mention, h)
		if err != nil {
			return res, err
		}
	}

	if len(res.Candidates) > r.max {
		res.Candidates = res.Candidates[:r.max]
	}
	res.NewEntity = len(res.Candidates) == 0
	r.logger.Debug("resolver: resolved mention",
		"mention", mention, "candidates", len(res.Candidates), "confidence", res.Confidence())
	return res, nil
}

// loadAll fetches the entities behind refs, skipping refs left behind in a
// stale alias index.
func loadAll(ctx context.Context, rd storage.EntityReader, refs []types.EntityRef) ([]*types.Entity, error) {
	out := make([]*types.Entity, 0, len(refs))
	seen := map[types.EntityRef]bool{}
	for _, ref := range refs {
		if seen[ref] {
			continue
		}
		seen[ref] = true
		e, err := rd.GetEntity(ctx, ref)
		if errors.Is(err, types.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// rankByProximity scores same-alias candidates by scene context and turns
// each candidate's share of the total into a confidence in [0.4, 0.8].
func rankByProximity(entities []*types.Entity, h Hints) []types.Candidate {
	recent := make(map[types.EntityRef]bool, len(h.Recent))
	for _, ref := range h.Recent {
		recent[ref] = true
	}
	latest := 0
	for _, e := range entities {
		latest = max(latest, e.LastAppearance)
	}
	if h.Chapter > 0 {
		latest = max(latest, h.Chapter)
	}

	scores := make([]float64, len(entities))
	reasons := make([]string, len(entities))
	total := 0.0
	for i, e := range entities {
		var s float64
		var why []string
		if h.SceneLocation != "" && atLocation(e, h.SceneLocation) {
			s += weightLocation
			why = append(why, "same location")
		}
		if recent[e.Ref()] {
			s += weightRecent
			why = append(why, "recently active")
		}
		if latest > 0 && e.LastAppearance > 0 {
			gap := float64(latest - e.LastAppearance)
			s += weightSeen / (1 + gap/10)
		}
		s += weightTier * tierScore(e.Tier)
		scores[i] = s
		reasons[i] = strings.Join(why, ", ")
		total += s
	}

	out := make([]types.Candidate, len(entities))
	for i, e := range entities {
		share := 1 / float64(len(entities))
		if total > 0 {
			share = scores[i] / total
		}
		out[i] = types.Candidate{
			Ref:        e.Ref(),
			Name:       e.CanonicalName,
			Confidence: round(math.Min(AmbiguousCeiling, AmbiguousBase+(AmbiguousCeiling-AmbiguousBase)*share)),
			Match:      types.MatchAmbiguous,
			Reason:     reasons[i],
		}
	}
	sortCandidates(out)
	return out
}

// tierScore maps core to 1 and decorative to 0.
func tierScore(t types.Tier) float64 {
	lowest := len(types.ValidTiers) - 1
	return float64(lowest-min(t.Rank(), lowest)) / float64(lowest)
}

func atLocation(e *types.Entity, location string) bool {
	if loc, ok := e.Current.Get("location").AsString(); ok && loc == location {
		return true
	}
	return e.Type == types.EntityLocation && (e.CanonicalName == location || e.HasAlias(location))
}

// fuzzy scores aliases that contain the mention or are contained in it by
// rune-length ratio.
func (r *Resolver) fuzzy(ctx context.Context, rd storage.Reader, mention string, h Hints) ([]types.Candidate, error) {
	mlen := utf8.RuneCountInString(mention)
	if mlen < minFuzzyRunes {
		return nil, nil
	}
	entries, err := rd.SearchAliases(ctx, mention, h.Type, fuzzySearchLimit)
	if err != nil {
		return nil, err
	}

	best := map[types.EntityRef]float64{}
	alias := map[types.EntityRef]string{}
	var order []types.EntityRef
	for _, en := range entries {
		alen := utf8.RuneCountInString(en.Alias)
		if alen < minFuzzyRunes {
			continue
		}
		sim := float64(min(alen, mlen)) / float64(max(alen, mlen))
		ref := en.Ref()
		prev, ok := best[ref]
		if !ok {
			order = append(order, ref)
		}
		if !ok || sim > prev {
			best[ref] = sim
			alias[ref] = en.Alias
		}
	}

	out := make([]types.Candidate, 0, len(order))
	for _, ref := range order {
		e, err := rd.GetEntity(ctx, ref)
		if errors.Is(err, types.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, types.Candidate{
			Ref:        ref,
			Name:       e.CanonicalName,
			Confidence: round(FuzzyFloor + (FuzzyCeiling-FuzzyFloor)*best[ref]),
			Match:      types.MatchFuzzy,
			Reason:     fmt.Sprintf("partial match on %q", alias[ref]),
		})
	}
	sortCandidates(out)
	return out, nil
}

// sortCandidates orders by confidence, then ref.
func sortCandidates(cs []types.Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Confidence != cs[j].Confidence {
			return cs[i].Confidence > cs[j].Confidence
		}
		return cs[i].Ref.Less(cs[j].Ref)
	})
}

// round trims float noise so that equal shares compare equal.
func round(f float64) float64 {
	return math.Round(f*1e6) / 1e6
}

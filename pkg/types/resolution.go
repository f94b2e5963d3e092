package types

// MatchKind records which resolver rule produced a candidate.
type MatchKind string

// Match kinds, in policy order
const (
	MatchExact     MatchKind = "exact"
	MatchAmbiguous MatchKind = "exact_ambiguous"
	MatchFuzzy     MatchKind = "fuzzy"
	MatchNone      MatchKind = "none"
	MatchAsserted  MatchKind = "asserted" // Confidence supplied by the extractor
)

// Candidate is one ranked resolution for a mention.
type Candidate struct {
	Ref        EntityRef `json:"ref"`
	Name       string    `json:"name,omitempty"`
	Confidence float64   `json:"confidence"`
	Match      MatchKind `json:"match"`
	Reason     string    `json:"reason,omitempty"`
}

// Resolution is the resolver's answer for a mention. Candidates are sorted
// by confidence, highest first.
type Resolution struct {
	Mention    string      `json:"mention"`
	Chapter    int         `json:"chapter,omitempty"`
	Candidates []Candidate `json:"candidates,omitempty"`
	NewEntity  bool        `json:"new_entity,omitempty"` // No match; candidate for creation
}

// Top returns the best candidate, if any.
func (r Resolution) Top() (Candidate, bool) {
	if len(r.Candidates) == 0 {
		return Candidate{}, false
	}
	return r.Candidates[0], true
}

// Confidence is the best candidate's confidence, or 0.
func (r Resolution) Confidence() float64 {
	if c, ok := r.Top(); ok {
		return c.Confidence
	}
	return 0
}

// Refs lists candidate refs in rank order.
func (r Resolution) Refs() []EntityRef {
	out := make([]EntityRef, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		out = append(out, c.Ref)
	}
	return out
}

// ActionTier is the confidence tier applied to a resolution.
type ActionTier string

// Action tiers
const (
	TierAdopted            ActionTier = "adopted"
	TierAdoptedWithWarning ActionTier = "adopted_with_warning"
	TierPendingReview      ActionTier = "pending_review"
)

// Decision is a resolution tagged with its action tier. Every tier carries
// the same payload; Chosen is empty for PendingReview.
type Decision struct {
	Tier       ActionTier `json:"tier"`
	Resolution Resolution `json:"resolution"`
	Chosen     EntityRef  `json:"chosen,omitempty"`
}

// DecisionHandler has one method per action tier so that callers handle all
// of them.
type DecisionHandler interface {
	Adopted(d Decision) error
	AdoptedWithWarning(d Decision) error
	PendingReview(d Decision) error
}

// Handle dispatches the decision to the handler method for its tier.
func (d Decision) Handle(h DecisionHandler) error {
	switch d.Tier {
	case TierAdopted:
		return h.Adopted(d)
	case TierAdoptedWithWarning:
		return h.AdoptedWithWarning(d)
	default:
		return h.PendingReview(d)
	}
}

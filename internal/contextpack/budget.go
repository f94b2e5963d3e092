package contextpack

import (
	"sort"
)

// DefaultCompactionFloor is the smallest remaining allowance, in tokens,
// worth truncating a fragment into.
const DefaultCompactionFloor = 32

// Budgeter packs ranked fragments into a token budget.
type Budgeter struct {
	// Budget is the total token allowance.
	Budget int

	// Order is the section priority (default: SectionOrder). Sections not
	// listed are dropped.
	Order []Section

	// Floors reserves a minimum allowance per section before the shared
	// remainder is handed out in priority order.
	Floors map[Section]int

	// CompactionFloor: a fragment that does not fit is truncated only when
	// at least this many tokens remain (default: DefaultCompactionFloor).
	CompactionFloor int

	// Ranker scores fragments. Nil keeps the scores already on them.
	Ranker *Ranker
}

// Pack ranks and packs fragments. Within a section fragments are taken by
// score, ties by input order. Identical input always yields an identical
// package.
func (b *Budgeter) Pack(fragments []Fragment) *Package {
	order := b.Order
	if len(order) == 0 {
		order = SectionOrder
	}
	floorTokens := b.CompactionFloor
	if floorTokens <= 0 {
		floorTokens = DefaultCompactionFloor
	}

	bySection := make(map[Section][]Fragment, len(order))
	for i, f := range fragments {
		f.index = i
		if f.Tokens <= 0 {
			f.Tokens = EstimateTokens(f.Text)
		}
		if b.Ranker != nil {
			f.Score = b.Ranker.Score(f)
		}
		bySection[f.Section] = append(bySection[f.Section], f)
	}

	pkg := &Package{Budget: b.Budget}
	listed := make(map[Section]bool, len(order))

	// Reserve floors first, in priority order.
	shared := max(b.Budget, 0)
	reserved := make(map[Section]int, len(order))
	for _, s := range order {
		listed[s] = true
		if fl := b.Floors[s]; fl > 0 {
			r := min(fl, shared)
			reserved[s] = r
			shared -= r
		}
	}

	for _, s := range order {
		frags := bySection[s]
		sort.SliceStable(frags, func(i, j int) bool {
			if frags[i].Score != frags[j].Score {
				return frags[i].Score > frags[j].Score
			}
			return frags[i].index < frags[j].index
		})

		own := reserved[s]
		ps := PackedSection{Section: s}
		for _, f := range frags {
			allowance := own + shared
			if f.Tokens > allowance {
				fitted, ok := fit(f, allowance, floorTokens)
				if !ok {
					pkg.Dropped = append(pkg.Dropped, dropped(f))
					continue
				}
				f = fitted
			}
			ps.Fragments = append(ps.Fragments, f)
			ps.Tokens += f.Tokens

			// Spend the section's own reservation before the shared pool.
			fromOwn := min(own, f.Tokens)
			own -= fromOwn
			shared -= f.Tokens - fromOwn
		}
		// Unused reservation goes back to lower-priority sections.
		shared += own

		if len(ps.Fragments) > 0 {
			pkg.Sections = append(pkg.Sections, ps)
			pkg.Used += ps.Tokens
		}
	}

	for _, f := range fragments {
		if !listed[f.Section] {
			pkg.Dropped = append(pkg.Dropped, dropped(f))
		}
	}
	return pkg
}

// fit squeezes f into allowance tokens: first its compact rendering, then
// truncation when the allowance is at least floorTokens.
func fit(f Fragment, allowance, floorTokens int) (Fragment, bool) {
	if f.Compact != "" {
		if t := EstimateTokens(f.Compact); t <= allowance {
			f.Text, f.Tokens, f.Compacted = f.Compact, t, true
			return f, true
		}
	}
	if allowance < floorTokens {
		return f, false
	}
	text, ok := Compact(f.Text, allowance)
	if !ok {
		return f, false
	}
	f.Text, f.Tokens, f.Compacted = text, EstimateTokens(text), true
	return f, true
}

func dropped(f Fragment) DroppedFragment {
	return DroppedFragment{Section: f.Section, Key: f.Key, Tokens: f.Tokens, Score: f.Score}
}

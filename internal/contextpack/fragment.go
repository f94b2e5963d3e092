// Package contextpack ranks context fragments and packs them into a
// token-budgeted package for the next chapter's generation.
package contextpack

// Section is a package section. Sections are packed in SectionOrder.
type Section string

// Sections, highest priority first
const (
	SectionCore          Section = "core"
	SectionScene         Section = "scene"
	SectionGlobal        Section = "global"
	SectionStorySkeleton Section = "story_skeleton"
	SectionAlerts        Section = "alerts"
)

// SectionOrder is the default packing priority.
var SectionOrder = []Section{SectionCore, SectionScene, SectionGlobal, SectionStorySkeleton, SectionAlerts}

// Kind classifies a fragment.
type Kind string

// Fragment kinds
const (
	KindSummary        Kind = "summary"
	KindEntitySnapshot Kind = "entity_snapshot"
	KindAlert          Kind = "alert"
	KindReferenceHint  Kind = "reference_hint"
)

// Severity marks alerts. Warning and above count as a ranking signal.
type Severity string

// Severities
const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Elevated reports whether the severity boosts ranking.
func (s Severity) Elevated() bool {
	return s == SeverityWarning || s == SeverityCritical
}

// Fragment is one candidate piece of context.
type Fragment struct {
	Section Section `json:"section"`
	Kind    Kind    `json:"kind"`
	Key     string  `json:"key"`  // Stable identifier (entity ref, chapter number ...)
	Text    string  `json:"text"` // Rendered content
	Tokens  int     `json:"tokens"`

	// Ranking inputs
	Distance  int      `json:"distance"`            // Chapters between the source and the target chapter
	Frequency int      `json:"frequency,omitempty"` // Occurrences in the lookback window
	Severity  Severity `json:"severity,omitempty"`

	// Compact is an optional shorter rendering tried before truncation.
	Compact string `json:"-"`

	Score     float64 `json:"score"`
	Compacted bool    `json:"compacted,omitempty"`

	index int
}

// NewFragment returns a fragment with its token cost estimated.
func NewFragment(section Section, kind Kind, key, text string) Fragment {
	return Fragment{Section: section, Kind: kind, Key: key, Text: text, Tokens: EstimateTokens(text)}
}

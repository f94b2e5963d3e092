package types

import "time"

// Pacing strands tracked per chapter.
const (
	StrandQuest         = "quest"         // Main-line progress
	StrandFire          = "fire"          // Emotional or relationship beats
	StrandConstellation = "constellation" // World expansion
)

// IsValidStrand reports whether s is a known strand. Empty is valid.
func IsValidStrand(s string) bool {
	switch s {
	case "", StrandQuest, StrandFire, StrandConstellation:
		return true
	}
	return false
}

// ChapterMeta is the per-chapter index row.
type ChapterMeta struct {
	Chapter    int       `json:"chapter"`
	Title      string    `json:"title,omitempty"`
	Location   string    `json:"location,omitempty"`
	WordCount  int       `json:"word_count,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	Hook       string    `json:"hook,omitempty"`   // Closing cliffhanger carried into the next chapter
	Strand     string    `json:"strand,omitempty"` // Dominant pacing strand
	RunID      string    `json:"run_id,omitempty"`
	IngestedAt time.Time `json:"ingested_at"`
}

// Scene is one scene of a chapter.
type Scene struct {
	Chapter    int      `json:"chapter"`
	Index      int      `json:"scene_index"`
	Location   string   `json:"location,omitempty"`
	Summary    string   `json:"summary"`
	Characters []string `json:"characters,omitempty"`
}

// Appearance records an entity showing up in a chapter.
type Appearance struct {
	Entity     EntityRef `json:"entity"`
	Chapter    int       `json:"chapter"`
	Mentions   []string  `json:"mentions,omitempty"`
	Confidence float64   `json:"confidence"`
}

// DisambiguationRecord is the audit row for a warned or held resolution.
type DisambiguationRecord struct {
	ID          string      `json:"id"`
	Chapter     int         `json:"chapter"`
	Mention     string      `json:"mention"`
	Tier        ActionTier  `json:"tier"`
	Chosen      EntityRef   `json:"chosen,omitempty"`
	Confidence  float64     `json:"confidence"`
	Candidates  []Candidate `json:"candidates,omitempty"`
	Context     string      `json:"context,omitempty"`
	RunID       string      `json:"run_id,omitempty"`
	Resolved    bool        `json:"resolved"`
	ResolvedRef EntityRef   `json:"resolved_ref,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	ResolvedAt  *time.Time  `json:"resolved_at,omitempty"`
}

package progress

import (
	"fmt"
	"sort"

	"github.com/scrypster/chronicle/pkg/types"
)

// Pacing thresholds, in chapters.
const (
	MaxQuestRun         = 5
	MaxFireGap          = 10
	MaxConstellationGap = 15
	pacingHistoryLimit  = 100
)

// StrandEntry is one chapter's dominant strand.
type StrandEntry struct {
	Chapter int    `yaml:"chapter" json:"chapter"`
	Strand  string `yaml:"strand" json:"strand"`
}

// Pacing tracks which narrative strand each chapter advanced.
type Pacing struct {
	LastQuest         int           `yaml:"last_quest" json:"last_quest"`
	LastFire          int           `yaml:"last_fire" json:"last_fire"`
	LastConstellation int           `yaml:"last_constellation" json:"last_constellation"`
	History           []StrandEntry `yaml:"history,omitempty" json:"history,omitempty"`
}

// Alert is a pacing warning.
type Alert struct {
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// Record notes that chapter advanced strand. Unknown strands are ignored.
func (p *Pacing) Record(chapter int, strand string) {
	if strand == "" || !types.IsValidStrand(strand) || chapter < 1 {
		return
	}
	switch strand {
	case types.StrandQuest:
		p.LastQuest = max(p.LastQuest, chapter)
	case types.StrandFire:
		p.LastFire = max(p.LastFire, chapter)
	case types.StrandConstellation:
		p.LastConstellation = max(p.LastConstellation, chapter)
	}

	i := sort.Search(len(p.History), func(i int) bool { return p.History[i].Chapter >= chapter })
	if i < len(p.History) && p.History[i].Chapter == chapter {
		p.History[i].Strand = strand
	} else {
		p.History = append(p.History, StrandEntry{})
		copy(p.History[i+1:], p.History[i:])
		p.History[i] = StrandEntry{Chapter: chapter, Strand: strand}
	}
	if n := len(p.History); n > pacingHistoryLimit {
		p.History = append([]StrandEntry(nil), p.History[n-pacingHistoryLimit:]...)
	}
}

// QuestRun counts the consecutive quest chapters ending the history.
func (p *Pacing) QuestRun() int {
	run := 0
	for i := len(p.History) - 1; i >= 0; i-- {
		if p.History[i].Strand != types.StrandQuest {
			break
		}
		if i < len(p.History)-1 && p.History[i+1].Chapter != p.History[i].Chapter+1 {
			break
		}
		run++
	}
	return run
}

// Alerts reports pacing problems as of chapter.
func (p *Pacing) Alerts(chapter int) []Alert {
	var alerts []Alert
	if run := p.QuestRun(); run > MaxQuestRun {
		alerts = append(alerts, Alert{
			Kind:     "quest_run",
			Message:  fmt.Sprintf("quest strand has run %d consecutive chapters; consider a fire or constellation beat", run),
			Severity: "warning",
		})
	}
	if gap := chapter - p.LastFire; gap > MaxFireGap {
		alerts = append(alerts, Alert{
			Kind:     "fire_gap",
			Message:  fmt.Sprintf("no fire (relationship) chapter for %d chapters", gap),
			Severity: "warning",
		})
	}
	if gap := chapter - p.LastConstellation; gap > MaxConstellationGap {
		alerts = append(alerts, Alert{
			Kind:     "constellation_gap",
			Message:  fmt.Sprintf("no constellation (world) chapter for %d chapters", gap),
			Severity: "info",
		})
	}
	return alerts
}

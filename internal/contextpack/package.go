package contextpack

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Package is the packed context for one chapter.
type Package struct {
	Chapter  int               `json:"chapter"`
	Template string            `json:"template,omitempty"`
	Budget   int               `json:"budget"`
	Used     int               `json:"used"`
	Sections []PackedSection   `json:"sections"`
	Dropped  []DroppedFragment `json:"dropped,omitempty"`
}

// PackedSection is one section's selected fragments in rank order.
type PackedSection struct {
	Section   Section    `json:"section"`
	Tokens    int        `json:"tokens"`
	Fragments []Fragment `json:"fragments"`
}

// DroppedFragment records a fragment that did not fit.
type DroppedFragment struct {
	Section Section `json:"section"`
	Key     string  `json:"key"`
	Tokens  int     `json:"tokens"`
	Score   float64 `json:"score"`
}

// Section returns the packed section s, if present.
func (p *Package) Section(s Section) (PackedSection, bool) {
	for _, ps := range p.Sections {
		if ps.Section == s {
			return ps, true
		}
	}
	return PackedSection{}, false
}

// Keys lists the keys of every packed fragment in output order.
func (p *Package) Keys() []string {
	var keys []string
	for _, ps := range p.Sections {
		for _, f := range ps.Fragments {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

// JSON renders the package as indented JSON.
func (p *Package) JSON() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// Render renders the package as plain text for a prompt.
func (p *Package) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Context for chapter %d", p.Chapter)
	if p.Template != "" {
		fmt.Fprintf(&b, " (%s)", p.Template)
	}
	fmt.Fprintf(&b, "\n# tokens: %d/%d\n", p.Used, p.Budget)

	for _, ps := range p.Sections {
		fmt.Fprintf(&b, "\n## %s\n", ps.Section)
		for _, f := range ps.Fragments {
			fmt.Fprintf(&b, "\n[%s %s score=%.4f]\n%s\n", f.Kind, f.Key, f.Score, f.Text)
		}
	}
	return b.String()
}

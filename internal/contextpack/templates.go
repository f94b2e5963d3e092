package contextpack

import (
	"fmt"
	"sort"
	"strings"
)

// Template presets the per-section floors as shares of the budget.
type Template struct {
	Name   string
	Shares map[Section]float64
}

// Built-in templates
var (
	TemplatePlot = Template{Name: "plot", Shares: map[Section]float64{
		SectionCore: 0.30, SectionScene: 0.30, SectionGlobal: 0.20, SectionStorySkeleton: 0.10, SectionAlerts: 0.05,
	}}
	TemplateBattle = Template{Name: "battle", Shares: map[Section]float64{
		SectionCore: 0.25, SectionScene: 0.45, SectionGlobal: 0.10, SectionStorySkeleton: 0.05, SectionAlerts: 0.05,
	}}
	TemplateEmotion = Template{Name: "emotion", Shares: map[Section]float64{
		SectionCore: 0.35, SectionScene: 0.35, SectionGlobal: 0.15, SectionStorySkeleton: 0.05, SectionAlerts: 0.05,
	}}
	TemplateTransition = Template{Name: "transition", Shares: map[Section]float64{
		SectionCore: 0.25, SectionScene: 0.20, SectionGlobal: 0.25, SectionStorySkeleton: 0.20, SectionAlerts: 0.05,
	}}
)

var templates = map[string]Template{
	TemplatePlot.Name:       TemplatePlot,
	TemplateBattle.Name:     TemplateBattle,
	TemplateEmotion.Name:    TemplateEmotion,
	TemplateTransition.Name: TemplateTransition,
}

// LookupTemplate returns the named template. The empty name is plot.
func LookupTemplate(name string) (Template, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return TemplatePlot, nil
	}
	t, ok := templates[name]
	if !ok {
		return Template{}, fmt.Errorf("contextpack: unknown template %q (want one of %s)",
			name, strings.Join(TemplateNames(), ", "))
	}
	return t, nil
}

// TemplateNames lists the built-in template names, sorted.
func TemplateNames() []string {
	names := make([]string, 0, len(templates))
	for n := range templates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Floors converts the shares into token floors for budget.
func (t Template) Floors(budget int) map[Section]int {
	floors := make(map[Section]int, len(t.Shares))
	for s, share := range t.Shares {
		floors[s] = int(float64(budget) * share)
	}
	return floors
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/scrypster/chronicle/internal/contextpack"
	"github.com/scrypster/chronicle/internal/progress"
	"github.com/scrypster/chronicle/internal/storage"
	"github.com/scrypster/chronicle/pkg/types"
)

// loadConcurrency caps parallel entity loads while building context.
const loadConcurrency = 4

// ContextOptions overrides the configured context settings for one call.
type ContextOptions struct {
	Budget   int    // Zero means Context.Budget
	Template string // Empty means Context.Template
}

// contextSources is everything BuildContext reads before ranking.
type contextSources struct {
	chapters    []types.ChapterMeta
	appearances []types.Appearance
	core        []*types.Entity
	protagonist *types.Entity
	relations   []types.Relationship
	open        []types.DisambiguationRecord
	progress    *progress.Record

	// Second phase
	active   []*types.Entity // Parallel to activeRefs
	location *types.Entity
	names    map[types.EntityRef]string
}

// BuildContext assembles the context package for writing chapter. Only
// chapters before it are used as sources.
func (e *Engine) BuildContext(ctx context.Context, chapter int, opts ContextOptions) (*contextpack.Package, error) {
	if chapter < 1 {
		return nil, fmt.Errorf("%w: context needs a positive chapter, got %d", storage.ErrInvalidInput, chapter)
	}
	cc := e.cfg.Context
	budget := opts.Budget
	if budget <= 0 {
		budget = cc.Budget
	}
	tmplName := opts.Template
	if tmplName == "" {
		tmplName = cc.Template
	}
	tmpl, err := contextpack.LookupTemplate(tmplName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	src, err := e.loadContextSources(ctx, chapter)
	if err != nil {
		return nil, err
	}
	activity, activeRefs := sceneActivity(src.appearances, src.protagonist)
	if err := e.loadSecondPhase(ctx, src, activeRefs); err != nil {
		return nil, err
	}
	// Later chapters are already ingested; show entities as they stood.
	if src.progress != nil && src.progress.CurrentChapter >= chapter {
		if err := e.rollBack(ctx, src, chapter-1); err != nil {
			return nil, err
		}
	}

	frags := buildFragments(chapter, cc.SummaryWindow, cc.SkeletonEvery, src, activity, activeRefs)

	b := contextpack.Budgeter{
		Budget:          budget,
		Floors:          tmpl.Floors(budget),
		CompactionFloor: cc.CompactionFloor,
		Ranker:          e.ranker,
	}
	pkg := b.Pack(frags)
	pkg.Chapter = chapter
	pkg.Template = tmpl.Name

	e.logger.Debug("context built",
		"chapter", chapter,
		"template", tmpl.Name,
		"fragments", len(frags),
		"used", pkg.Used,
		"budget", budget,
		"dropped", len(pkg.Dropped))
	return pkg, nil
}

// loadContextSources runs the independent reads in parallel on the read
// pool.
func (e *Engine) loadContextSources(ctx context.Context, chapter int) (*contextSources, error) {
	cc := e.cfg.Context
	src := &contextSources{}
	prev := chapter - 1

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if prev < 1 {
			return nil
		}
		var err error
		src.chapters, err = e.store.ListChapters(gctx, 1, prev)
		return err
	})
	g.Go(func() error {
		if prev < 1 {
			return nil
		}
		var err error
		src.appearances, err = e.store.AppearancesInRange(gctx, max(1, chapter-cc.SceneWindow), prev)
		return err
	})
	g.Go(func() error {
		var err error
		src.core, err = e.store.ListEntities(gctx, storage.EntityFilter{Tiers: []types.Tier{types.TierCore}})
		return err
	})
	g.Go(func() error {
		p, err := e.protagonist(gctx)
		if err != nil || p == nil {
			return err
		}
		src.protagonist = p
		src.relations, err = e.store.Relationships(gctx, p.Ref(), types.DirectionBoth)
		return err
	})
	g.Go(func() error {
		var err error
		src.open, err = e.store.ListDisambiguations(gctx, storage.DisambiguationFilter{OpenOnly: true, ToChapter: prev})
		return err
	})
	g.Go(func() error {
		var err error
		src.progress, err = e.progress.Load()
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return src, nil
}

// loadSecondPhase loads the active entities, the scene location and the
// display names of relationship endpoints.
func (e *Engine) loadSecondPhase(ctx context.Context, src *contextSources, activeRefs []types.EntityRef) error {
	src.active = make([]*types.Entity, len(activeRefs))
	src.names = make(map[types.EntityRef]string)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for i, ref := range activeRefs {
		g.Go(func() error {
			ent, err := e.store.GetEntity(gctx, ref)
			if err != nil {
				return err
			}
			src.active[i] = ent
			return nil
		})
	}

	var location string
	if n := len(src.chapters); n > 0 {
		location = src.chapters[n-1].Location
	}
	if location != "" {
		g.Go(func() error {
			refs, err := e.store.LookupAlias(gctx, location, types.EntityLocation)
			if err != nil || len(refs) == 0 {
				return err
			}
			src.location, err = e.store.GetEntity(gctx, refs[0])
			return err
		})
	}

	others := make([]types.EntityRef, 0, len(src.relations))
	for _, r := range src.relations {
		others = append(others, r.Other(src.protagonist.Ref()))
	}
	names := make([]string, len(others))
	for i, ref := range others {
		g.Go(func() error {
			ent, err := e.store.GetEntity(gctx, ref)
			if err != nil {
				return err
			}
			names[i] = ent.CanonicalName
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	for i, ref := range others {
		src.names[ref] = names[i]
	}
	if src.protagonist != nil {
		src.names[src.protagonist.Ref()] = src.protagonist.CanonicalName
	}
	return nil
}

// rollBack replaces every loaded entity with its state as of chapter prev.
// Entities created after prev are dropped.
func (e *Engine) rollBack(ctx context.Context, src *contextSources, prev int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	roll := func(p **types.Entity) {
		if *p == nil {
			return
		}
		g.Go(func() error {
			at, err := e.asOf(gctx, *p, prev)
			if err != nil {
				return err
			}
			*p = at
			return nil
		})
	}
	roll(&src.protagonist)
	roll(&src.location)
	for i := range src.core {
		roll(&src.core[i])
	}
	for i := range src.active {
		roll(&src.active[i])
	}
	if err := g.Wait(); err != nil {
		return err
	}

	src.core = slices.DeleteFunc(src.core, func(ent *types.Entity) bool { return ent == nil })
	if src.protagonist == nil {
		src.relations = nil
		return nil
	}
	src.names[src.protagonist.Ref()] = src.protagonist.CanonicalName
	return nil
}

// asOf returns ent as of chapter prev, or nil if it did not exist yet.
func (e *Engine) asOf(ctx context.Context, ent *types.Entity, prev int) (*types.Entity, error) {
	if prev < 1 {
		return nil, nil
	}
	at, err := e.registry.GetAtChapter(ctx, e.store, ent.Ref(), prev)
	if errors.Is(err, types.ErrNotFound) {
		return nil, nil
	}
	return at, err
}

// activityStat is an entity's appearance count and last chapter in the
// scene window.
type activityStat struct {
	count int
	last  int
}

// sceneActivity counts appearances per entity, excluding the protagonist.
// Refs come back in first-appearance order, which is deterministic because
// appearances are sorted by chapter then ref.
func sceneActivity(apps []types.Appearance, protagonist *types.Entity) (map[types.EntityRef]activityStat, []types.EntityRef) {
	stats := make(map[types.EntityRef]activityStat)
	var refs []types.EntityRef
	for _, a := range apps {
		if protagonist != nil && a.Entity == protagonist.Ref() {
			continue
		}
		s, ok := stats[a.Entity]
		if !ok {
			refs = append(refs, a.Entity)
		}
		s.count++
		s.last = max(s.last, a.Chapter)
		stats[a.Entity] = s
	}
	return stats, refs
}

func buildFragments(chapter, summaryWindow, skeletonEvery int, src *contextSources, activity map[types.EntityRef]activityStat, activeRefs []types.EntityRef) []contextpack.Fragment {
	var frags []contextpack.Fragment
	included := make(map[types.EntityRef]bool)

	// Core
	if p := src.protagonist; p != nil {
		f := entityFragment(contextpack.SectionCore, p, chapter-p.LastAppearance)
		frags = append(frags, f)
		included[p.Ref()] = true
	}
	for i := len(src.chapters) - 1; i >= 0; i-- {
		m := src.chapters[i]
		if chapter-m.Chapter > summaryWindow {
			break
		}
		if m.Summary == "" {
			continue
		}
		f := contextpack.NewFragment(contextpack.SectionCore, contextpack.KindSummary,
			fmt.Sprintf("chapter:%d", m.Chapter), chapterLine(m))
		f.Distance = chapter - m.Chapter
		frags = append(frags, f)
	}
	if n := len(src.chapters); n > 0 && src.chapters[n-1].Hook != "" {
		m := src.chapters[n-1]
		f := contextpack.NewFragment(contextpack.SectionCore, contextpack.KindSummary,
			fmt.Sprintf("hook:%d", m.Chapter), "Open hook from chapter "+fmt.Sprint(m.Chapter)+": "+m.Hook)
		f.Distance = chapter - m.Chapter
		frags = append(frags, f)
	}

	// Scene
	if loc := src.location; loc != nil {
		f := entityFragment(contextpack.SectionScene, loc, chapter-loc.LastAppearance)
		frags = append(frags, f)
		included[loc.Ref()] = true
	}
	for i, ref := range activeRefs {
		ent := src.active[i]
		if ent == nil || included[ref] {
			continue
		}
		st := activity[ref]
		f := entityFragment(contextpack.SectionScene, ent, chapter-st.last)
		f.Frequency = st.count
		frags = append(frags, f)
		included[ref] = true
	}

	// Global
	for _, ent := range src.core {
		if included[ent.Ref()] {
			continue
		}
		frags = append(frags, entityFragment(contextpack.SectionGlobal, ent, chapter-ent.LastAppearance))
		included[ent.Ref()] = true
	}
	for _, r := range src.relations {
		if r.Chapter >= chapter {
			continue
		}
		text := fmt.Sprintf("%s -[%s]-> %s", nameOf(src.names, r.From), r.Type, nameOf(src.names, r.To))
		if r.Description != "" {
			text += ": " + r.Description
		}
		f := contextpack.NewFragment(contextpack.SectionGlobal, contextpack.KindReferenceHint,
			fmt.Sprintf("relationship:%d", r.ID), text)
		f.Distance = chapter - r.Chapter
		frags = append(frags, f)
	}

	// Story skeleton: sampled summaries older than the summary window.
	for _, m := range src.chapters {
		if chapter-m.Chapter <= summaryWindow {
			break
		}
		if m.Summary == "" || (m.Chapter != 1 && m.Chapter%skeletonEvery != 0) {
			continue
		}
		f := contextpack.NewFragment(contextpack.SectionStorySkeleton, contextpack.KindReferenceHint,
			fmt.Sprintf("skeleton:%d", m.Chapter), chapterLine(m))
		f.Distance = chapter - m.Chapter
		frags = append(frags, f)
	}

	// Alerts
	if src.progress != nil {
		for _, a := range src.progress.Pacing.Alerts(chapter) {
			f := contextpack.NewFragment(contextpack.SectionAlerts, contextpack.KindAlert, "pacing:"+a.Kind, a.Message)
			f.Severity = contextpack.Severity(a.Severity)
			frags = append(frags, f)
		}
	}
	for _, d := range src.open {
		sev := contextpack.SeverityInfo
		text := fmt.Sprintf("Mention %q in chapter %d was adopted as %s with confidence %.2f; unconfirmed.",
			d.Mention, d.Chapter, d.Chosen, d.Confidence)
		if d.Tier == types.TierPendingReview {
			sev = contextpack.SeverityWarning
			text = fmt.Sprintf("Mention %q in chapter %d is unresolved (confidence %.2f); avoid relying on it.",
				d.Mention, d.Chapter, d.Confidence)
		}
		f := contextpack.NewFragment(contextpack.SectionAlerts, contextpack.KindAlert, "disambiguation:"+d.ID, text)
		f.Severity = sev
		f.Distance = chapter - d.Chapter
		frags = append(frags, f)
	}
	return frags
}

// entityFragment renders an entity snapshot with a compact fallback that
// keeps only the headline attributes.
func entityFragment(section contextpack.Section, ent *types.Entity, distance int) contextpack.Fragment {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s, %s)", ent.CanonicalName, ent.Ref(), ent.Tier)
	if ent.Description != "" {
		b.WriteString(": " + ent.Description)
	}
	head := b.String()

	for _, k := range ent.Current.Keys() {
		fmt.Fprintf(&b, "\n- %s: %s", k, ent.Current[k])
	}
	if len(ent.Aliases) > 1 {
		fmt.Fprintf(&b, "\n- aliases: %s", strings.Join(ent.Aliases, ", "))
	}

	f := contextpack.NewFragment(section, contextpack.KindEntitySnapshot, ent.Ref().String(), b.String())
	f.Distance = max(distance, 0)
	if f.Text != head {
		f.Compact = head
	}
	return f
}

func chapterLine(m types.ChapterMeta) string {
	if m.Title != "" {
		return fmt.Sprintf("Chapter %d %s: %s", m.Chapter, m.Title, m.Summary)
	}
	return fmt.Sprintf("Chapter %d: %s", m.Chapter, m.Summary)
}

func nameOf(names map[types.EntityRef]string, ref types.EntityRef) string {
	if n := names[ref]; n != "" {
		return n
	}
	return ref.String()
}

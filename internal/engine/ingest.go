package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/chronicle/internal/embedding"
	"github.com/scrypster/chronicle/internal/ledger"
	"github.com/scrypster/chronicle/internal/resolver"
	"github.com/scrypster/chronicle/internal/storage"
	"github.com/scrypster/chronicle/pkg/types"
)

// IngestReport summarises an applied chapter.
type IngestReport struct {
	Chapter int    `json:"chapter"`
	RunID   string `json:"run_id"`

	Created       []types.EntityRef `json:"created,omitempty"`
	Appeared      []types.EntityRef `json:"appeared,omitempty"` // Sorted by type, then id
	Changes       int               `json:"changes"`            // Ledger records written
	Relationships int               `json:"relationships"`      // Edges upserted
	Scenes        int               `json:"scenes"`

	// Mention resolutions per action tier
	Adopted int `json:"adopted"`
	Warned  int `json:"warned"`
	Pending int `json:"pending"`

	Archived int `json:"archived,omitempty"`
	Indexed  int `json:"indexed,omitempty"` // Scene summaries embedded

	Warnings []string      `json:"warnings,omitempty"`
	Events   []TraceEvent  `json:"events,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Ingest validates and applies one chapter's extraction batch in a single
// transaction. Any blocking problem rolls the whole chapter back and comes
// back as a *types.ValidationError listing every issue found; the stored
// state is then exactly what it was before the call.
//
// After the commit the progress record is advanced, the inactivity sweep
// runs when due, and scene summaries are handed to the indexer once the
// write lock has been released. Failures in those steps are logged and
// reported as warnings; they never undo the chapter.
func (e *Engine) Ingest(ctx context.Context, chapter int, batch *types.ExtractionResult) (*IngestReport, error) {
	if chapter < 1 {
		return nil, &types.ValidationError{Chapter: chapter, Issues: []types.Issue{
			{Path: "chapter", Message: fmt.Sprintf("chapter must be positive, got %d", chapter)},
		}}
	}
	if batch == nil {
		return nil, &types.ValidationError{Chapter: chapter, Issues: []types.Issue{
			{Path: "", Message: "extraction result is required"},
		}}
	}

	start := time.Now()
	runID := uuid.NewString()
	ctx = ledger.WithRunID(ctx, runID)

	e.mu.Lock()
	report, scenes, err := e.ingestLocked(ctx, chapter, runID, batch)
	onIngested, onDecision := e.onChapterIngested, e.onDecision
	e.mu.Unlock()

	if err != nil {
		var verr *types.ValidationError
		if errors.As(err, &verr) {
			e.logger.Warn("chapter rejected", "chapter", chapter, "run_id", runID, "issues", len(verr.Issues))
		} else {
			e.logger.Error("chapter ingestion failed", "chapter", chapter, "run_id", runID, "error", err)
		}
		return nil, err
	}

	e.index(ctx, report, scenes)
	report.Duration = time.Since(start)

	e.logger.Info("chapter ingested",
		"chapter", chapter,
		"run_id", runID,
		"created", len(report.Created),
		"changes", report.Changes,
		"pending", report.Pending,
		"duration", report.Duration)

	if onDecision != nil {
		for _, ev := range report.Events {
			if ev.Kind == KindMentionResolved && ev.Tier != types.TierAdopted {
				onDecision(ev)
			}
		}
	}
	if onIngested != nil {
		onIngested(report)
	}
	return report, nil
}

func (e *Engine) ingestLocked(ctx context.Context, chapter int, runID string, batch *types.ExtractionResult) (*IngestReport, []types.Scene, error) {
	var in *ingestion
	err := e.writeTx(ctx, func(w storage.Writer) error {
		// WriteTx may run this more than once; start from scratch each time.
		in = newIngestion(e, w, chapter, runID, batch)
		return in.apply(ctx)
	})
	if err != nil {
		return nil, nil, err
	}

	report := in.report
	e.advanceProgress(ctx, report, in.meta)

	if e.cfg.Archive.Enabled && chapter%e.cfg.Archive.CheckEvery == 0 {
		n, err := e.archiveLocked(ctx, chapter)
		if err != nil {
			e.logger.Warn("inactivity sweep failed", "chapter", chapter, "error", err)
			report.Warnings = append(report.Warnings, "archive sweep failed: "+err.Error())
		} else if n > 0 {
			report.Archived = n
			report.Events = append(report.Events, EventArchived(chapter, n))
		}
	}
	return report, in.scenes, nil
}

// advanceProgress folds the committed chapter into the progress record.
func (e *Engine) advanceProgress(ctx context.Context, report *IngestReport, meta types.ChapterMeta) {
	warn := func(msg string, err error) {
		e.logger.Warn(msg, "chapter", meta.Chapter, "error", err)
		report.Warnings = append(report.Warnings, msg+": "+err.Error())
	}

	rec, err := e.progress.Load()
	if err != nil {
		warn("progress record not loaded", err)
		return
	}
	protagonist, err := e.protagonist(ctx)
	if err != nil {
		warn("protagonist not loaded", err)
	}
	rec.Advance(meta, protagonist)
	if err := e.progress.Save(rec); err != nil {
		warn("progress record not saved", err)
	}
}

// index hands scene summaries to the indexer. Called without the lock.
func (e *Engine) index(ctx context.Context, report *IngestReport, scenes []types.Scene) {
	summaries := embedding.FromScenes(scenes)
	if len(summaries) == 0 {
		return
	}
	if err := e.indexer.IndexScenes(ctx, summaries); err != nil {
		e.logger.Warn("scene embedding failed", "chapter", report.Chapter, "error", err)
		report.Warnings = append(report.Warnings, "scene embedding failed: "+err.Error())
		return
	}
	report.Indexed = len(summaries)
}

// ingestion is the state of one attempt at applying a batch.
type ingestion struct {
	e       *Engine
	w       storage.Writer
	chapter int
	runID   string
	batch   *types.ExtractionResult

	meta      types.ChapterMeta
	scenes    []types.Scene
	report    *IngestReport
	issues    []types.Issue
	duplicate bool

	appearances map[types.EntityRef]*types.Appearance
	seen        []types.EntityRef // Appearance order; doubles as resolver recency hints
}

func newIngestion(e *Engine, w storage.Writer, chapter int, runID string, batch *types.ExtractionResult) *ingestion {
	return &ingestion{
		e:           e,
		w:           w,
		chapter:     chapter,
		runID:       runID,
		batch:       batch,
		report:      &IngestReport{Chapter: chapter, RunID: runID},
		appearances: make(map[types.EntityRef]*types.Appearance),
	}
}

func (in *ingestion) apply(ctx context.Context) error {
	steps := []func(context.Context) error{
		in.applyChapterMeta,
		in.applyScenes,
		in.applyNewEntities,
		in.applyAppearances,
		in.applyMentions,
		in.applyStateChanges,
		in.applyIdentityChanges,
		in.applyRelationships,
		in.flushAppearances,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return err
		}
		// A duplicate chapter makes everything after it meaningless.
		if in.duplicate {
			break
		}
	}
	if len(in.issues) > 0 {
		return &types.ValidationError{Chapter: in.chapter, Issues: in.issues}
	}
	return nil
}

// issue records a blocking problem.
func (in *ingestion) issue(path, message, mention string, candidates ...types.EntityRef) {
	in.issues = append(in.issues, types.Issue{Path: path, Message: message, Mention: mention, Candidates: candidates})
}

// check turns validation-class errors into issues. Anything else is a
// storage failure and is returned.
func (in *ingestion) check(path, mention string, err error) error {
	if err == nil {
		return nil
	}
	var amb *types.AmbiguityError
	switch {
	case errors.As(err, &amb):
		refs := make([]types.EntityRef, 0, len(amb.Candidates))
		for _, c := range amb.Candidates {
			refs = append(refs, c.Ref)
		}
		in.issue(path, "ambiguous reference", mention, refs...)
	case errors.Is(err, types.ErrNotFound):
		in.issue(path, "unknown entity", mention)
	case errors.Is(err, storage.ErrInvalidInput), errors.Is(err, types.ErrValidation):
		in.issue(path, err.Error(), mention)
	default:
		return err
	}
	return nil
}

func (in *ingestion) applyChapterMeta(ctx context.Context) error {
	m := in.batch.ChapterMeta
	if m == nil {
		m = &types.ChapterMetaInput{}
	}
	if !types.IsValidStrand(m.Strand) {
		in.issue("chapter_meta.strand", "unknown pacing strand", m.Strand)
	}
	if m.WordCount < 0 {
		in.issue("chapter_meta.word_count", fmt.Sprintf("word count must not be negative, got %d", m.WordCount), "")
	}

	in.meta = types.ChapterMeta{
		Chapter:    in.chapter,
		Title:      strings.TrimSpace(m.Title),
		Location:   strings.TrimSpace(m.Location),
		WordCount:  m.WordCount,
		Summary:    m.Summary,
		Hook:       m.Hook,
		Strand:     m.Strand,
		RunID:      in.runID,
		IngestedAt: in.e.now(),
	}
	err := in.w.InsertChapter(ctx, &in.meta)
	if errors.Is(err, storage.ErrConflict) {
		in.duplicate = true
		in.issue("chapter_meta", fmt.Sprintf("chapter %d is already ingested", in.chapter), "")
		return nil
	}
	return in.check("chapter_meta", "", err)
}

func (in *ingestion) applyScenes(ctx context.Context) error {
	seen := make(map[int]bool, len(in.batch.Scenes))
	for i, s := range in.batch.Scenes {
		path := fmt.Sprintf("scenes[%d]", i)
		if strings.TrimSpace(s.Summary) == "" {
			in.issue(path+".summary", "scene summary is required", "")
			continue
		}
		if s.Index < 0 || seen[s.Index] {
			in.issue(path+".index", fmt.Sprintf("scene index %d is negative or repeated", s.Index), "")
			continue
		}
		seen[s.Index] = true

		scene := types.Scene{
			Chapter:    in.chapter,
			Index:      s.Index,
			Location:   s.Location,
			Summary:    s.Summary,
			Characters: s.Characters,
		}
		if err := in.check(path, "", in.w.InsertScene(ctx, &scene)); err != nil {
			return err
		}
		in.scenes = append(in.scenes, scene)
	}
	in.report.Scenes = len(in.scenes)
	return nil
}

func (in *ingestion) applyNewEntities(ctx context.Context) error {
	for i, ne := range in.batch.EntitiesNew {
		path := fmt.Sprintf("entities_new[%d]", i)
		name := strings.TrimSpace(ne.Name)

		aliases := append(append([]string(nil), ne.Aliases...), ne.Mentions...)

		// A name already known under this type is a re-announcement unless
		// the extractor asks for an id none of the namesakes has.
		if name != "" && types.IsValidEntityType(ne.Type) {
			known, err := in.w.LookupAlias(ctx, name, ne.Type)
			if err != nil {
				return err
			}
			if len(known) > 0 && !distinctID(ne.SuggestedID, known) {
				if len(known) > 1 {
					in.issue(path, "ambiguous reference", name, known...)
					continue
				}
				if err := in.reannounce(ctx, path, known[0], ne, aliases); err != nil {
					return err
				}
				continue
			}
		}

		ref, err := in.e.registry.Create(ctx, in.w, types.NewEntity{
			Type:          ne.Type,
			Name:          name,
			SuggestedID:   ne.SuggestedID,
			Tier:          types.Tier(ne.Tier),
			Description:   ne.Description,
			Parent:        ne.Parent,
			IsProtagonist: ne.IsProtagonist,
			Aliases:       aliases,
			Current:       ne.Current,
			Chapter:       in.chapter,
		})
		if err != nil {
			if err := in.check(path, name, err); err != nil {
				return err
			}
			continue
		}
		in.report.Created = append(in.report.Created, ref)
		in.report.Events = append(in.report.Events, EventEntityCreated(in.chapter, ref, name))
		in.appear(ref, ne.Mentions, 1)
	}
	return nil
}

// reannounce merges a re-announced entity into the one already known by
// its name. New aliases are registered and listed attributes are set. A
// declared tier replaces the recorded one; description and parent only fill
// gaps.
func (in *ingestion) reannounce(ctx context.Context, path string, ref types.EntityRef, ne types.NewEntityInput, aliases []string) error {
	name := strings.TrimSpace(ne.Name)
	in.report.Warnings = append(in.report.Warnings,
		fmt.Sprintf("%s: %q is already known as %s; merged", path, name, ref))

	for _, a := range aliases {
		if strings.TrimSpace(a) == "" {
			continue
		}
		if _, err := in.e.registry.RegisterAlias(ctx, in.w, a, ref); err != nil {
			if err := in.check(path+".aliases", a, err); err != nil {
				return err
			}
		}
	}

	if keys := ne.Current.Keys(); len(keys) > 0 {
		ops := make([]types.AttributeOp, 0, len(keys))
		for _, k := range keys {
			ops = append(ops, types.Set(k, ne.Current[k]))
		}
		fields, err := in.e.registry.Update(ctx, in.w, ref, ops, "re-announced", in.chapter)
		if err != nil {
			return in.check(path+".current", name, err)
		}
		in.changed(ref, fields, "re-announced")
	}

	ent, err := in.w.GetEntity(ctx, ref)
	if err != nil {
		return err
	}
	var change types.IdentityChange
	if ne.Tier != "" {
		tier := types.Tier(ne.Tier)
		change.Tier = &tier
	}
	if ne.Description != "" && ent.Description == "" {
		change.Description = &ne.Description
	}
	if ne.Parent != "" && ent.Parent == "" {
		change.Parent = &ne.Parent
	}
	fields, err := in.e.registry.UpdateIdentity(ctx, in.w, ref, change, "re-announced", in.chapter)
	if err != nil {
		return in.check(path, name, err)
	}
	in.changed(ref, fields, "re-announced")

	in.appear(ref, ne.Mentions, 1)
	return nil
}

// distinctID reports whether suggested is an id none of known carries.
func distinctID(suggested string, known []types.EntityRef) bool {
	if suggested == "" {
		return false
	}
	for _, ref := range known {
		if ref.ID == suggested {
			return false
		}
	}
	return true
}

func (in *ingestion) applyAppearances(ctx context.Context) error {
	for i, a := range in.batch.EntitiesAppeared {
		path := fmt.Sprintf("entities_appeared[%d].entity", i)
		ref, ok, err := in.ref(ctx, path, a.Entity)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		conf := a.Confidence
		if conf <= 0 {
			conf = 1
		}
		in.appear(ref, a.Mentions, min(conf, 1))
	}
	return nil
}

func (in *ingestion) applyMentions(ctx context.Context) error {
	for i, m := range in.batch.MentionResolutions {
		if err := in.resolveMention(ctx, fmt.Sprintf("mention_resolutions[%d]", i), m, false); err != nil {
			return err
		}
	}
	for i, m := range in.batch.Uncertain {
		if err := in.resolveMention(ctx, fmt.Sprintf("uncertain[%d]", i), m, true); err != nil {
			return err
		}
	}
	return nil
}

// resolveMention resolves one mention and dispatches the decision. Items
// the extractor itself flagged as uncertain are never adopted silently.
func (in *ingestion) resolveMention(ctx context.Context, path string, m types.MentionInput, uncertain bool) error {
	mention := strings.TrimSpace(m.Mention)
	if mention == "" {
		in.issue(path+".mention", "mention is required", "")
		return nil
	}

	var res types.Resolution
	if m.EntityID != "" {
		target := types.ParseRefInput(m.EntityID)
		if target.Type == "" && target.ID != "" {
			target.Type = m.Type
		}
		ref, ok, err := in.ref(ctx, path+".entity_id", target)
		if err != nil || !ok {
			return err
		}
		ent, err := in.w.GetEntity(ctx, ref)
		if err != nil {
			return err
		}
		res = resolver.Asserted(mention, in.chapter, ref, ent.CanonicalName, m.Confidence)
	} else {
		var err error
		res, err = in.e.resolver.Resolve(ctx, in.w, mention, in.hints(m.Type))
		if err != nil {
			return err
		}
		if m.Confidence != nil {
			res = resolver.Capped(res, *m.Confidence)
		}
		if len(res.Candidates) == 0 {
			for _, c := range m.Candidates {
				res.Candidates = append(res.Candidates, types.Candidate{Ref: c, Match: types.MatchAsserted, Reason: "listed by extractor"})
			}
		}
	}

	d := in.e.resolver.Decide(res)
	if uncertain && d.Tier == types.TierAdopted {
		d.Tier = types.TierAdoptedWithWarning
	}
	in.report.Events = append(in.report.Events, EventMentionResolved(in.chapter, d))
	return d.Handle(&decisionRecorder{ctx: ctx, in: in, context: m.Context})
}

func (in *ingestion) hints(typ types.EntityType) resolver.Hints {
	return resolver.Hints{
		Type:          typ,
		SceneLocation: in.meta.Location,
		Recent:        append([]types.EntityRef(nil), in.seen...),
		Chapter:       in.chapter,
	}
}

func (in *ingestion) applyStateChanges(ctx context.Context) error {
	for i, sc := range in.batch.StateChanges {
		path := fmt.Sprintf("state_changes[%d]", i)
		ref, ok, err := in.ref(ctx, path+".entity", sc.Entity)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if sc.Field == "" {
			in.issue(path+".field", "field is required", "")
			continue
		}

		var fields []string
		if types.IsIdentityField(sc.Field) {
			fields, err = in.updateIdentity(ctx, path, ref, sc.Field, sc.NewValue, sc.Reason)
		} else {
			op := types.AttributeOp{Op: sc.Op, Field: sc.Field, Value: sc.NewValue}
			fields, err = in.e.registry.Update(ctx, in.w, ref, []types.AttributeOp{op}, sc.Reason, in.chapter)
		}
		if err != nil {
			if err := in.check(path, sc.Field, err); err != nil {
				return err
			}
			continue
		}
		in.changed(ref, fields, sc.Reason)
	}
	return nil
}

func (in *ingestion) applyIdentityChanges(ctx context.Context) error {
	for i, ic := range in.batch.IdentityChanges {
		path := fmt.Sprintf("identity_changes[%d]", i)
		ref, ok, err := in.ref(ctx, path+".entity", ic.Entity)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		fields, err := in.updateIdentity(ctx, path, ref, ic.Field, ic.Value, ic.Reason)
		if err != nil {
			if err := in.check(path, ic.Field, err); err != nil {
				return err
			}
			continue
		}
		in.changed(ref, fields, ic.Reason)
	}
	return nil
}

func (in *ingestion) updateIdentity(ctx context.Context, path string, ref types.EntityRef, field string, v types.Value, reason string) ([]string, error) {
	change, err := types.IdentityChangeFromField(field, v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", storage.ErrInvalidInput, path, err)
	}
	return in.e.registry.UpdateIdentity(ctx, in.w, ref, change, reason, in.chapter)
}

func (in *ingestion) changed(ref types.EntityRef, fields []string, reason string) {
	if len(fields) == 0 {
		return
	}
	in.report.Changes += len(fields)
	in.report.Events = append(in.report.Events, EventStateChanged(in.chapter, ref, fields, reason))
}

func (in *ingestion) applyRelationships(ctx context.Context) error {
	for i, r := range in.batch.RelationshipsNew {
		path := fmt.Sprintf("relationships_new[%d]", i)
		from, okFrom, err := in.ref(ctx, path+".from", r.From)
		if err != nil {
			return err
		}
		to, okTo, err := in.ref(ctx, path+".to", r.To)
		if err != nil {
			return err
		}
		if !okFrom || !okTo {
			continue
		}

		rel := types.Relationship{
			From:        from,
			To:          to,
			Type:        strings.TrimSpace(r.Type),
			Description: r.Description,
			Chapter:     in.chapter,
		}
		created, err := in.e.graph.Upsert(ctx, in.w, rel)
		if err != nil {
			if err := in.check(path, r.Type, err); err != nil {
				return err
			}
			continue
		}
		in.report.Relationships++
		in.report.Events = append(in.report.Events, EventRelationshipUpserted(in.chapter, rel, created))
	}
	return nil
}

// appear accumulates an appearance; repeated appearances merge mentions and
// keep the highest confidence.
func (in *ingestion) appear(ref types.EntityRef, mentions []string, confidence float64) {
	a, ok := in.appearances[ref]
	if !ok {
		a = &types.Appearance{Entity: ref, Chapter: in.chapter}
		in.appearances[ref] = a
		in.seen = append(in.seen, ref)
	}
	for _, m := range mentions {
		if m = strings.TrimSpace(m); m != "" && !contains(a.Mentions, m) {
			a.Mentions = append(a.Mentions, m)
		}
	}
	a.Confidence = max(a.Confidence, confidence)
}

func (in *ingestion) flushAppearances(ctx context.Context) error {
	for _, ref := range in.seen {
		if err := in.w.UpsertAppearance(ctx, *in.appearances[ref]); err != nil {
			return err
		}
		if err := in.e.registry.Touch(ctx, in.w, ref, in.chapter); err != nil {
			if err := in.check("appearances", ref.String(), err); err != nil {
				return err
			}
		}
	}
	in.report.Appeared = append([]types.EntityRef(nil), in.seen...)
	sort.Slice(in.report.Appeared, func(i, j int) bool { return in.report.Appeared[i].Less(in.report.Appeared[j]) })
	return nil
}

// ref resolves a reference to a stored entity. ok is false when the
// reference was recorded as an issue.
func (in *ingestion) ref(ctx context.Context, path string, r types.RefInput) (types.EntityRef, bool, error) {
	ref, err := in.lookup(ctx, r)
	if err != nil {
		return types.EntityRef{}, false, in.check(path, r.Label(), err)
	}
	return ref, true, nil
}

// lookup finds the entity behind r. Typed ids must exist. Bare ids are
// looked up across types and fall back to alias lookup. Names must match an
// alias exactly; several matches are ranked and the winner must be unique
// and clear the review threshold.
func (in *ingestion) lookup(ctx context.Context, r types.RefInput) (types.EntityRef, error) {
	if r.IsZero() {
		return types.EntityRef{}, fmt.Errorf("%w: empty entity reference", storage.ErrInvalidInput)
	}

	if r.ID != "" && r.Type != "" {
		ref := types.EntityRef{Type: r.Type, ID: r.ID}
		ok, err := in.e.registry.Exists(ctx, in.w, ref)
		if err != nil {
			return ref, err
		}
		if !ok {
			return ref, &types.NotFoundError{Kind: "entity", Ref: ref, Chapter: in.chapter}
		}
		return ref, nil
	}

	name := r.Name
	if r.ID != "" {
		refs, err := in.w.FindByID(ctx, r.ID)
		if err != nil {
			return types.EntityRef{}, err
		}
		switch len(refs) {
		case 1:
			return refs[0], nil
		case 0:
			name = r.ID
		default:
			return types.EntityRef{}, ambiguity(r.ID, in.chapter, refs)
		}
	}

	refs, err := in.w.LookupAlias(ctx, name, r.Type)
	if err != nil {
		return types.EntityRef{}, err
	}
	switch len(refs) {
	case 0:
		return types.EntityRef{}, &types.NotFoundError{Kind: "entity", Mention: name, Chapter: in.chapter}
	case 1:
		return refs[0], nil
	}

	res, err := in.e.resolver.Resolve(ctx, in.w, name, in.hints(r.Type))
	if err != nil {
		return types.EntityRef{}, err
	}
	if len(res.Candidates) > 1 && res.Candidates[0].Confidence == res.Candidates[1].Confidence {
		return types.EntityRef{}, &types.AmbiguityError{
			Mention: name, Chapter: in.chapter, Confidence: res.Confidence(), Candidates: res.Candidates,
		}
	}
	top, err := in.e.resolver.Require(res)
	if err != nil {
		return types.EntityRef{}, err
	}
	in.report.Warnings = append(in.report.Warnings,
		fmt.Sprintf("reference %q matched %d entities; using %s (confidence %.2f)", name, len(refs), top.Ref, top.Confidence))
	return top.Ref, nil
}

func ambiguity(mention string, chapter int, refs []types.EntityRef) *types.AmbiguityError {
	cands := make([]types.Candidate, 0, len(refs))
	for _, ref := range refs {
		cands = append(cands, types.Candidate{Ref: ref, Match: types.MatchAmbiguous})
	}
	return &types.AmbiguityError{Mention: mention, Chapter: chapter, Candidates: cands}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

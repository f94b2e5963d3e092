// Package registry is the entity store and alias index.
//
// Every mutating method takes the storage.Writer of the caller's
// transaction, so a chapter's entity, alias and ledger writes commit or
// roll back together. Read methods accept any storage.Reader.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/scrypster/chronicle/internal/identity"
	"github.com/scrypster/chronicle/internal/ledger"
	"github.com/scrypster/chronicle/internal/logging"
	"github.com/scrypster/chronicle/internal/storage"
	"github.com/scrypster/chronicle/pkg/types"
)

// DefaultSignificantFields are the attributes whose changes are written to
// the ledger when no allow-list is configured.
var DefaultSignificantFields = []string{
	"realm", "layer", "location", "faction", "master",
	"owner", "holder", "bottleneck", "injury", "health", "level",
	"artifacts", "skills", "titles",
}

// TrackAll in the significant-field list records every attribute change.
const TrackAll = "*"

// Options configures a Registry.
type Options struct {
	// SignificantFields is the ledger allow-list. Nil means
	// DefaultSignificantFields; TrackAll records every field.
	SignificantFields []string

	Logger *logging.Logger
}

// Registry creates, updates and reads entities and their aliases.
type Registry struct {
	ledger      *ledger.Ledger
	significant map[string]bool
	trackAll    bool
	logger      *logging.Logger
	now         func() time.Time
}

// New returns a Registry writing history through l.
func New(l *ledger.Ledger, opts Options) *Registry {
	fields := opts.SignificantFields
	if fields == nil {
		fields = DefaultSignificantFields
	}
	r := &Registry{
		ledger:      l,
		significant: make(map[string]bool, len(fields)),
		logger:      logging.OrNop(opts.Logger),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, f := range fields {
		if f == TrackAll {
			r.trackAll = true
		}
		r.significant[f] = true
	}
	return r
}

// IsSignificant reports whether changes to field are recorded in the ledger.
func (r *Registry) IsSignificant(field string) bool {
	return r.trackAll || r.significant[field]
}

// Exists reports whether ref is a known entity.
func (r *Registry) Exists(ctx context.Context, rd storage.EntityReader, ref types.EntityRef) (bool, error) {
	_, err := rd.GetEntity(ctx, ref)
	if errors.Is(err, types.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Create adds a new entity first seen in ne.Chapter and returns its ref.
func (r *Registry) Create(ctx context.Context, w storage.Writer, ne types.NewEntity) (types.EntityRef, error) {
	name := strings.TrimSpace(ne.Name)
	switch {
	case !types.IsValidEntityType(ne.Type):
		return types.EntityRef{}, fmt.Errorf("%w: unknown entity type %q", storage.ErrInvalidInput, ne.Type)
	case name == "":
		return types.EntityRef{}, fmt.Errorf("%w: entity name is required", storage.ErrInvalidInput)
	case ne.Chapter < 1:
		return types.EntityRef{}, fmt.Errorf("%w: entity %q needs a chapter, got %d", storage.ErrInvalidInput, name, ne.Chapter)
	}
	tier := types.TierMinor
	if ne.Tier != "" {
		t, ok := types.ParseTier(string(ne.Tier))
		if !ok {
			return types.EntityRef{}, fmt.Errorf("%w: entity %q has unknown tier %q", storage.ErrInvalidInput, name, ne.Tier)
		}
		tier = t
	}

	id, err := r.assignID(ctx, w, ne.Type, name, ne.SuggestedID)
	if err != nil {
		return types.EntityRef{}, err
	}

	now := r.now()
	e := &types.Entity{
		ID:              id,
		Type:            ne.Type,
		CanonicalName:   name,
		Tier:            tier,
		Description:     ne.Description,
		Parent:          ne.Parent,
		IsProtagonist:   ne.IsProtagonist,
		Current:         ne.Current.Clone(),
		FirstAppearance: ne.Chapter,
		LastAppearance:  ne.Chapter,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if e.Current == nil {
		e.Current = types.Attributes{}
	}
	e.AddAlias(name)
	for _, a := range ne.Aliases {
		e.AddAlias(a)
	}

	if err := w.InsertEntity(ctx, e); err != nil {
		return types.EntityRef{}, err
	}
	ref := e.Ref()
	for _, a := range e.Aliases {
		if _, err := w.InsertAlias(ctx, types.AliasEntry{Alias: a, Type: ref.Type, ID: ref.ID}); err != nil {
			return types.EntityRef{}, err
		}
	}

	if _, err := r.ledger.Append(ctx, w, &types.StateChange{
		Entity:     ref,
		Field:      types.FieldCreated,
		Snapshot:   creationSnapshot(e),
		Reason:     "created",
		Chapter:    ne.Chapter,
		RecordedAt: now,
	}); err != nil {
		return types.EntityRef{}, err
	}

	r.logger.Debug("registry: entity created", "entity", ref.String(), "name", name, "chapter", ne.Chapter)
	return ref, nil
}

// assignID uses the suggested id when it is well-formed and free, otherwise
// generates one from the name.
func (r *Registry) assignID(ctx context.Context, w storage.Writer, typ types.EntityType, name, suggested string) (string, error) {
	taken := func(ctx context.Context, id string) (bool, error) {
		return r.Exists(ctx, w, types.EntityRef{Type: typ, ID: id})
	}
	if suggested != "" && identity.Valid(suggested) {
		used, err := taken(ctx, suggested)
		if err != nil {
			return "", err
		}
		if !used {
			return suggested, nil
		}
		r.logger.Debug("registry: suggested id taken, generating", "type", typ, "suggested", suggested)
	}
	return identity.Generate(ctx, typ, name, taken)
}

// creationSnapshot is the baseline stored on the @created record: the
// attribute bag plus identity metadata under the meta. prefix.
func creationSnapshot(e *types.Entity) types.Attributes {
	snap := e.Current.Clone()
	if snap == nil {
		snap = types.Attributes{}
	}
	snap[types.MetaFieldPrefix+types.IdentityCanonicalName] = types.String(e.CanonicalName)
	snap[types.MetaFieldPrefix+types.IdentityTier] = types.String(string(e.Tier))
	if e.Description != "" {
		snap[types.MetaFieldPrefix+types.IdentityDescription] = types.String(e.Description)
	}
	if e.Status != "" {
		snap[types.MetaFieldPrefix+types.IdentityStatus] = types.String(e.Status)
	}
	if e.Parent != "" {
		snap[types.MetaFieldPrefix+types.IdentityParent] = types.String(e.Parent)
	}
	return snap
}

// Update merges ops into the entity's attribute bag at chapter and returns
// the fields that changed. Changes to significant fields are appended to the
// ledger. The entity's last appearance moves forward and it is un-archived.
func (r *Registry) Update(ctx context.Context, w storage.Writer, ref types.EntityRef, ops []types.AttributeOp, reason string, chapter int) ([]string, error) {
	if chapter < 1 {
		return nil, fmt.Errorf("%w: update of %s needs a chapter", storage.ErrInvalidInput, ref)
	}
	e, err := w.GetEntity(ctx, ref)
	if err != nil {
		return nil, err
	}
	if e.Current == nil {
		e.Current = types.Attributes{}
	}
	past, err := r.stateAt(ctx, w, ref, chapter)
	if err != nil {
		return nil, err
	}

	// A backfilled chapter applies its ops to the state as of that chapter.
	// Fields a later chapter already recorded keep their current value.
	base := e.Current
	if past.backfill() {
		base = past.attributes(e.Current)
	}
	changes, err := applyOps(base, ops)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", ref, err)
	}
	if past.backfill() {
		for _, c := range changes {
			switch {
			case past.later[c.Field]:
			case c.New == nil:
				delete(e.Current, c.Field)
			default:
				e.Current[c.Field] = *c.New
			}
		}
	}

	now := r.now()
	changed := make([]string, 0, len(changes))
	for _, c := range changes {
		changed = append(changed, c.Field)
		if !r.IsSignificant(c.Field) {
			continue
		}
		if _, err := r.ledger.Append(ctx, w, &types.StateChange{
			Entity:     ref,
			Field:      c.Field,
			OldValue:   c.Old,
			NewValue:   c.New,
			Reason:     reason,
			Chapter:    chapter,
			RecordedAt: now,
		}); err != nil {
			return nil, err
		}
	}

	touch(e, chapter, now)
	if err := w.SaveEntity(ctx, e); err != nil {
		return nil, err
	}
	return changed, nil
}

// pastState is an entity's recorded state as of a chapter, plus the
// fields that records from later chapters have already set.
type pastState struct {
	snap    ledger.Snapshot
	tracked map[string]bool // Attribute fields with any record
	later   map[string]bool // Fields, meta. prefixed for identity, with records after the chapter
}

// stateAt folds ref's records up to chapter. It reads the transaction
// directly so that records appended earlier in the same chapter count.
func (r *Registry) stateAt(ctx context.Context, w storage.Writer, ref types.EntityRef, chapter int) (pastState, error) {
	records, err := w.Changes(ctx, ref)
	if err != nil {
		return pastState{}, err
	}
	p := pastState{
		snap:    ledger.Fold(ref, records, chapter),
		tracked: make(map[string]bool),
		later:   make(map[string]bool),
	}
	mark := func(field string, after bool) {
		if !strings.HasPrefix(field, types.MetaFieldPrefix) {
			p.tracked[field] = true
		}
		if after {
			p.later[field] = true
		}
	}
	for _, rec := range records {
		after := rec.Chapter > chapter
		if rec.Field == types.FieldCreated {
			for k := range rec.Snapshot {
				mark(k, after)
			}
			continue
		}
		mark(rec.Field, after)
	}
	return p, nil
}

// backfill reports whether later chapters already hold records.
func (p pastState) backfill() bool { return len(p.later) > 0 }

// attributes returns current with every recorded field rolled back to its
// value at the chapter. Fields the ledger never tracked keep their current
// value.
func (p pastState) attributes(current types.Attributes) types.Attributes {
	attrs := current.Clone()
	if attrs == nil {
		attrs = types.Attributes{}
	}
	for f := range p.tracked {
		if v, ok := p.snap.Attributes[f]; ok {
			attrs[f] = v
		} else {
			delete(attrs, f)
		}
	}
	return attrs
}

// Touch records that the entity appeared in chapter without changing its
// state.
func (r *Registry) Touch(ctx context.Context, w storage.Writer, ref types.EntityRef, chapter int) error {
	e, err := w.GetEntity(ctx, ref)
	if err != nil {
		return err
	}
	if e.LastAppearance >= chapter && !e.Archived {
		return nil
	}
	touch(e, chapter, r.now())
	return w.SaveEntity(ctx, e)
}

func touch(e *types.Entity, chapter int, now time.Time) {
	e.LastAppearance = max(e.LastAppearance, chapter)
	e.Archived = false
	e.UpdatedAt = now
}

// UpdateIdentity applies an identity metadata change at chapter and returns
// the changed field names. Every change is recorded under a meta. field. A
// rename keeps the old name as an alias.
func (r *Registry) UpdateIdentity(ctx context.Context, w storage.Writer, ref types.EntityRef, c types.IdentityChange, reason string, chapter int) ([]string, error) {
	if chapter < 1 {
		return nil, fmt.Errorf("%w: identity update of %s needs a chapter", storage.ErrInvalidInput, ref)
	}
	e, err := w.GetEntity(ctx, ref)
	if err != nil {
		return nil, err
	}

	past, err := r.stateAt(ctx, w, ref, chapter)
	if err != nil {
		return nil, err
	}

	type change struct {
		field    string
		from, to string
		apply    func()
	}
	var pending []change
	add := func(field, cur, to string, apply func()) {
		from := cur
		if past.backfill() {
			from = past.snap.Identity[field]
		}
		if from != to {
			pending = append(pending, change{field: field, from: from, to: to, apply: apply})
		}
	}

	if c.Tier != nil {
		tier, ok := types.ParseTier(string(*c.Tier))
		if !ok {
			return nil, fmt.Errorf("%w: unknown tier %q for %s", storage.ErrInvalidInput, *c.Tier, ref)
		}
		add(types.IdentityTier, string(e.Tier), string(tier), func() { e.Tier = tier })
	}
	if c.Description != nil {
		v := *c.Description
		add(types.IdentityDescription, e.Description, v, func() { e.Description = v })
	}
	if c.Status != nil {
		v := *c.Status
		add(types.IdentityStatus, e.Status, v, func() { e.Status = v })
	}
	if c.Parent != nil {
		v := *c.Parent
		add(types.IdentityParent, e.Parent, v, func() { e.Parent = v })
	}
	if c.CanonicalName != nil {
		v := strings.TrimSpace(*c.CanonicalName)
		if v == "" {
			return nil, fmt.Errorf("%w: canonical name of %s must not be empty", storage.ErrInvalidInput, ref)
		}
		add(types.IdentityCanonicalName, e.CanonicalName, v, func() {
			e.AddAlias(e.CanonicalName)
			e.CanonicalName = v
		})
		e.AddAlias(v)
	}

	now := r.now()
	fields := make([]string, 0, len(pending))
	for _, p := range pending {
		var oldV *types.Value
		if p.from != "" {
			v := types.String(p.from)
			oldV = &v
		}
		var newV *types.Value
		if p.to != "" {
			v := types.String(p.to)
			newV = &v
		}
		if _, err := r.ledger.Append(ctx, w, &types.StateChange{
			Entity:     ref,
			Field:      types.MetaFieldPrefix + p.field,
			OldValue:   oldV,
			NewValue:   newV,
			Reason:     reason,
			Chapter:    chapter,
			RecordedAt: now,
		}); err != nil {
			return nil, err
		}
		if !past.later[types.MetaFieldPrefix+p.field] {
			p.apply()
		}
		fields = append(fields, p.field)
	}

	touch(e, chapter, now)
	if err := w.SaveEntity(ctx, e); err != nil {
		return nil, err
	}
	if c.CanonicalName != nil {
		alias := strings.TrimSpace(*c.CanonicalName)
		if _, err := w.InsertAlias(ctx, types.AliasEntry{Alias: alias, Type: ref.Type, ID: ref.ID}); err != nil {
			return nil, err
		}
	}
	if len(fields) > 0 {
		r.logger.Debug("registry: identity updated", "entity", ref.String(), "fields", fields, "chapter", chapter)
	}
	return fields, nil
}

// Get returns the entity with its full history.
func (r *Registry) Get(ctx context.Context, rd storage.Reader, ref types.EntityRef) (*types.Entity, error) {
	e, err := rd.GetEntity(ctx, ref)
	if err != nil {
		return nil, err
	}
	if e.History, err = r.ledger.History(ctx, rd, ref); err != nil {
		return nil, err
	}
	return e, nil
}

// GetAtChapter reconstructs the entity as of chapter by replaying its
// ledger. History is trimmed to records at or before chapter. Asking for a
// chapter before the entity's creation returns a *types.NotFoundError.
func (r *Registry) GetAtChapter(ctx context.Context, rd storage.Reader, ref types.EntityRef, chapter int) (*types.Entity, error) {
	if chapter < 1 {
		return r.Get(ctx, rd, ref)
	}
	e, err := rd.GetEntity(ctx, ref)
	if err != nil {
		return nil, err
	}
	snap, err := r.ledger.Replay(ctx, rd, ref, chapter)
	if err != nil {
		return nil, err
	}
	if !snap.Exists {
		return nil, &types.NotFoundError{Kind: "entity", Ref: ref, Chapter: chapter}
	}

	history, err := r.ledger.History(ctx, rd, ref)
	if err != nil {
		return nil, err
	}
	at := snap.ApplyTo(e)
	at.History = at.History[:0]
	for _, h := range history {
		if h.Chapter <= chapter {
			at.History = append(at.History, h)
		}
	}
	return at, nil
}

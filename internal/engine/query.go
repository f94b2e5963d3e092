package engine

import (
	"context"
	"sort"

	"github.com/scrypster/chronicle/internal/graph"
	"github.com/scrypster/chronicle/internal/progress"
	"github.com/scrypster/chronicle/internal/resolver"
	"github.com/scrypster/chronicle/internal/storage"
	"github.com/scrypster/chronicle/pkg/types"
)

// Entity returns the current entity with its full history.
func (e *Engine) Entity(ctx context.Context, ref types.EntityRef) (*types.Entity, error) {
	return e.registry.Get(ctx, e.store, ref)
}

// EntityAt reconstructs ref as of chapter.
func (e *Engine) EntityAt(ctx context.Context, ref types.EntityRef, chapter int) (*types.Entity, error) {
	return e.registry.GetAtChapter(ctx, e.store, ref, chapter)
}

// History returns ref's ledger records in chapter order.
func (e *Engine) History(ctx context.Context, ref types.EntityRef) ([]types.StateChange, error) {
	if _, err := e.store.GetEntity(ctx, ref); err != nil {
		return nil, err
	}
	return e.ledger.History(ctx, e.store, ref)
}

// ResolveAlias returns every entity registered under alias. An empty typ
// searches all types.
func (e *Engine) ResolveAlias(ctx context.Context, alias string, typ types.EntityType) ([]types.EntityRef, error) {
	return e.registry.ResolveAlias(ctx, e.store, alias, typ)
}

// Resolve ranks candidates for a mention and tiers the result.
func (e *Engine) Resolve(ctx context.Context, mention string, hints resolver.Hints) (types.Decision, error) {
	res, err := e.resolver.Resolve(ctx, e.store, mention, hints)
	if err != nil {
		return types.Decision{}, err
	}
	return e.resolver.Decide(res), nil
}

// Relationships returns edges touching ref. An empty dir means both.
func (e *Engine) Relationships(ctx context.Context, ref types.EntityRef, dir types.Direction) ([]types.Relationship, error) {
	return e.graph.Query(ctx, e.store, ref, dir)
}

// Neighborhood walks the graph around root within bounds.
func (e *Engine) Neighborhood(ctx context.Context, root types.EntityRef, bounds storage.GraphBounds) (*graph.Subgraph, error) {
	return e.graph.Neighborhood(ctx, e.store, root, bounds)
}

// EntityActivity is an entity with its appearance count over a range.
type EntityActivity struct {
	Entity      *types.Entity `json:"entity"`
	Appearances int           `json:"appearances"`
	LastChapter int           `json:"last_chapter"`
}

// EntitiesInRange returns entities appearing in chapters [from, to],
// ordered by type then id.
func (e *Engine) EntitiesInRange(ctx context.Context, from, to int) ([]EntityActivity, error) {
	apps, err := e.store.AppearancesInRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	byRef := make(map[types.EntityRef]*EntityActivity)
	var refs []types.EntityRef
	for _, a := range apps {
		act, ok := byRef[a.Entity]
		if !ok {
			ent, err := e.store.GetEntity(ctx, a.Entity)
			if err != nil {
				return nil, err
			}
			act = &EntityActivity{Entity: ent}
			byRef[a.Entity] = act
			refs = append(refs, a.Entity)
		}
		act.Appearances++
		act.LastChapter = max(act.LastChapter, a.Chapter)
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Less(refs[j]) })
	out := make([]EntityActivity, 0, len(refs))
	for _, ref := range refs {
		out = append(out, *byRef[ref])
	}
	return out, nil
}

// ChangesInRange returns ledger records for chapters [from, to].
func (e *Engine) ChangesInRange(ctx context.Context, from, to int) ([]types.StateChange, error) {
	return e.store.ChangesInRange(ctx, from, to)
}

// Chapters returns ingested chapter metadata for [from, to]. Zero bounds
// are open.
func (e *Engine) Chapters(ctx context.Context, from, to int) ([]types.ChapterMeta, error) {
	return e.store.ListChapters(ctx, from, to)
}

// Scenes returns a chapter's scenes in order.
func (e *Engine) Scenes(ctx context.Context, chapter int) ([]types.Scene, error) {
	return e.store.ListScenes(ctx, chapter)
}

// Pending lists open disambiguation items, warned and held alike.
func (e *Engine) Pending(ctx context.Context) ([]types.DisambiguationRecord, error) {
	return e.store.ListDisambiguations(ctx, storage.DisambiguationFilter{OpenOnly: true})
}

// Progress returns the current progress record.
func (e *Engine) Progress() (*progress.Record, error) {
	return e.progress.Load()
}

// protagonist returns the protagonist entity, or nil when none is marked.
func (e *Engine) protagonist(ctx context.Context) (*types.Entity, error) {
	list, err := e.store.ListEntities(ctx, storage.EntityFilter{
		Type:            types.EntityCharacter,
		ProtagonistOnly: true,
		IncludeArchived: true,
		Limit:           1,
	})
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

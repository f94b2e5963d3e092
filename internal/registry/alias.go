package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/scrypster/chronicle/internal/storage"
	"github.com/scrypster/chronicle/pkg/types"
)

// RegisterAlias maps alias to ref. The entity's own alias list is the source
// of truth and is updated first; the index row follows. Registering an
// existing pair is a no-op reported with added=false.
func (r *Registry) RegisterAlias(ctx context.Context, w storage.Writer, alias string, ref types.EntityRef) (bool, error) {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return false, fmt.Errorf("%w: empty alias for %s", storage.ErrInvalidInput, ref)
	}
	e, err := w.GetEntity(ctx, ref)
	if err != nil {
		return false, err
	}
	listed := e.AddAlias(alias)
	if listed {
		e.UpdatedAt = r.now()
		if err := w.SaveEntity(ctx, e); err != nil {
			return false, err
		}
	}
	indexed, err := w.InsertAlias(ctx, types.AliasEntry{Alias: alias, Type: ref.Type, ID: ref.ID})
	if err != nil {
		return false, err
	}
	return listed || indexed, nil
}

// ResolveAlias returns every ref registered under alias, in registration
// order. An empty typ matches all types. Conflicting entries are all
// returned; choosing between them is the resolver's job.
func (r *Registry) ResolveAlias(ctx context.Context, rd storage.AliasReader, alias string, typ types.EntityType) ([]types.EntityRef, error) {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return nil, nil
	}
	return rd.LookupAlias(ctx, alias, typ)
}

// RebuildAliases clears the index and reconstructs it from every entity's
// canonical name and alias list. It returns the number of rows written.
func (r *Registry) RebuildAliases(ctx context.Context, w storage.Writer) (int, error) {
	entities, err := w.ListEntities(ctx, storage.EntityFilter{IncludeArchived: true})
	if err != nil {
		return 0, err
	}
	if err := w.ClearAliases(ctx); err != nil {
		return 0, err
	}

	n := 0
	for _, e := range entities {
		names := append([]string{e.CanonicalName}, e.Aliases...)
		for _, a := range names {
			a = strings.TrimSpace(a)
			if a == "" {
				continue
			}
			added, err := w.InsertAlias(ctx, types.AliasEntry{Alias: a, Type: e.Type, ID: e.ID})
			if err != nil {
				return n, err
			}
			if added {
				n++
			}
		}
	}
	r.logger.Info("registry: alias index rebuilt", "entities", len(entities), "aliases", n)
	return n, nil
}

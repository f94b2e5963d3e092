package engine

import (
	"context"
	"fmt"

	"github.com/scrypster/chronicle/internal/storage"
	"github.com/scrypster/chronicle/pkg/types"
)

// ResolvePending confirms an open disambiguation item as ref: the mention
// becomes an alias of ref and counts as an appearance in the item's
// chapter. ref may differ from the resolver's pick.
func (e *Engine) ResolvePending(ctx context.Context, id string, ref types.EntityRef) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.writeTx(ctx, func(w storage.Writer) error {
		rec, err := openItem(ctx, w, id)
		if err != nil {
			return err
		}
		if ok, err := e.registry.Exists(ctx, w, ref); err != nil {
			return err
		} else if !ok {
			return &types.NotFoundError{Kind: "entity", Ref: ref}
		}

		if _, err := e.registry.RegisterAlias(ctx, w, rec.Mention, ref); err != nil {
			return err
		}
		if err := w.UpsertAppearance(ctx, types.Appearance{
			Entity:     ref,
			Chapter:    rec.Chapter,
			Mentions:   []string{rec.Mention},
			Confidence: 1,
		}); err != nil {
			return err
		}
		if err := e.registry.Touch(ctx, w, ref, rec.Chapter); err != nil {
			return err
		}
		if err := w.ResolveDisambiguation(ctx, id, ref, e.now()); err != nil {
			return err
		}
		e.logger.Info("disambiguation confirmed", "id", id, "mention", rec.Mention, "entity", ref.String())
		return nil
	})
}

// DismissPending closes an open item without applying anything.
func (e *Engine) DismissPending(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.writeTx(ctx, func(w storage.Writer) error {
		rec, err := openItem(ctx, w, id)
		if err != nil {
			return err
		}
		if err := w.ResolveDisambiguation(ctx, id, types.EntityRef{}, e.now()); err != nil {
			return err
		}
		e.logger.Info("disambiguation dismissed", "id", id, "mention", rec.Mention)
		return nil
	})
}

func openItem(ctx context.Context, r storage.ChapterReader, id string) (*types.DisambiguationRecord, error) {
	rec, err := r.GetDisambiguation(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Resolved {
		return nil, fmt.Errorf("%w: disambiguation %s is already resolved", storage.ErrInvalidInput, id)
	}
	return rec, nil
}

package engine

import (
	"context"
	"fmt"

	"github.com/scrypster/chronicle/internal/storage"
	"github.com/scrypster/chronicle/pkg/types"
)

// Archive marks entities inactive for at least Archive.InactiveChapters
// chapters before currentChapter as archived. Core-tier entities and the
// protagonist are never archived. Returns the number archived.
func (e *Engine) Archive(ctx context.Context, currentChapter int) (int, error) {
	if currentChapter < 1 {
		return 0, fmt.Errorf("%w: archive needs a positive chapter, got %d", storage.ErrInvalidInput, currentChapter)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.archiveLocked(ctx, currentChapter)
}

func (e *Engine) archiveLocked(ctx context.Context, currentChapter int) (int, error) {
	cutoff := currentChapter - e.cfg.Archive.InactiveChapters
	if cutoff < 1 {
		return 0, nil
	}

	var archived int
	err := e.writeTx(ctx, func(w storage.Writer) error {
		archived = 0
		stale, err := w.ListEntities(ctx, storage.EntityFilter{LastAppearanceAtMost: cutoff})
		if err != nil {
			return err
		}
		now := e.now()
		for _, ent := range stale {
			if ent.Tier == types.TierCore || ent.IsProtagonist {
				continue
			}
			ent.Archived = true
			ent.UpdatedAt = now
			if err := w.SaveEntity(ctx, ent); err != nil {
				return err
			}
			archived++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if archived > 0 {
		e.logger.Info("archived inactive entities", "chapter", currentChapter, "cutoff", cutoff, "count", archived)
	}
	return archived, nil
}

// RebuildAliases regenerates the alias index from the entity rows. Returns
// the number of alias rows written.
func (e *Engine) RebuildAliases(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var n int
	err := e.writeTx(ctx, func(w storage.Writer) error {
		var err error
		n, err = e.registry.RebuildAliases(ctx, w)
		return err
	})
	if err != nil {
		return 0, err
	}
	e.logger.Info("alias index rebuilt", "rows", n)
	return n, nil
}

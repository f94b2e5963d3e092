// Package progress keeps the project progress record: a small versioned
// YAML document stored next to the database. The engine is its only writer
// and saves are optimistic on Version.
package progress

import (
	"time"

	"github.com/scrypster/chronicle/pkg/types"
)

// Record is the persisted progress state.
type Record struct {
	// Version increments on every save; a save carrying a stale version
	// is rejected.
	Version int `yaml:"version" json:"version"`

	CurrentChapter int              `yaml:"current_chapter" json:"current_chapter"`
	TotalWords     int              `yaml:"total_words" json:"total_words"`
	Protagonist    ProtagonistState `yaml:"protagonist" json:"protagonist"`
	Pacing         Pacing           `yaml:"pacing" json:"pacing"`
	UpdatedAt      time.Time        `yaml:"updated_at" json:"updated_at"`
}

// ProtagonistState is a denormalized snapshot of the protagonist.
type ProtagonistState struct {
	ID       string `yaml:"id,omitempty" json:"id,omitempty"`
	Name     string `yaml:"name,omitempty" json:"name,omitempty"`
	Realm    string `yaml:"realm,omitempty" json:"realm,omitempty"`
	Layer    string `yaml:"layer,omitempty" json:"layer,omitempty"`
	Location string `yaml:"location,omitempty" json:"location,omitempty"`
}

// Advance folds a committed chapter into the record.
func (r *Record) Advance(meta types.ChapterMeta, protagonist *types.Entity) {
	r.CurrentChapter = max(r.CurrentChapter, meta.Chapter)
	r.TotalWords += max(meta.WordCount, 0)
	if meta.Strand != "" {
		r.Pacing.Record(meta.Chapter, meta.Strand)
	}
	if protagonist != nil {
		r.SyncProtagonist(protagonist)
	}
}

// SyncProtagonist copies the protagonist's identity and headline attributes.
func (r *Record) SyncProtagonist(e *types.Entity) {
	r.Protagonist = ProtagonistState{
		ID:       e.ID,
		Name:     e.CanonicalName,
		Realm:    attr(e, "realm"),
		Layer:    attr(e, "layer"),
		Location: attr(e, "location"),
	}
}

func attr(e *types.Entity, key string) string {
	v := e.Current.Get(key)
	if v.IsZero() {
		return ""
	}
	return v.String()
}

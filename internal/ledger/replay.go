// Package ledger reads and replays the append-only state change log.
//
// Storage returns records ordered by chapter then insertion sequence, but
// Fold re-sorts defensively so that backfilled chapters replay in story
// order no matter when they were ingested.
package ledger

import (
	"sort"
	"strings"

	"github.com/scrypster/chronicle/pkg/types"
)

// Snapshot is an entity's state reconstructed up to a chapter.
type Snapshot struct {
	Entity      types.EntityRef   `json:"entity"`
	UpTo        int               `json:"up_to"`        // Inclusive chapter bound; 0 means all
	Exists      bool              `json:"exists"`       // A creation record was folded
	Attributes  types.Attributes  `json:"attributes"`   // Attribute values
	Identity    map[string]string `json:"identity"`     // Identity metadata by field name (tier, canonical_name ...)
	Applied     int               `json:"applied"`      // Records folded
	LastChapter int               `json:"last_chapter"` // Chapter of the last folded record
}

// NewSnapshot returns an empty snapshot for ref.
func NewSnapshot(ref types.EntityRef, upTo int) Snapshot {
	return Snapshot{
		Entity:     ref,
		UpTo:       upTo,
		Attributes: types.Attributes{},
		Identity:   map[string]string{},
	}
}

// Sort orders records by chapter then insertion sequence, in place.
func Sort(records []types.StateChange) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Chapter != records[j].Chapter {
			return records[i].Chapter < records[j].Chapter
		}
		return records[i].ID < records[j].ID
	})
}

// Fold replays records with chapter <= upTo (all records when upTo <= 0)
// left to right; later values overwrite earlier ones for the same field.
func Fold(ref types.EntityRef, records []types.StateChange, upTo int) Snapshot {
	sorted := append([]types.StateChange(nil), records...)
	Sort(sorted)

	s := NewSnapshot(ref, upTo)
	for _, rec := range sorted {
		if upTo > 0 && rec.Chapter > upTo {
			break
		}
		s.Apply(rec)
	}
	return s
}

// Apply folds one record into the snapshot. Callers applying several
// records must apply them in Sort order.
func (s *Snapshot) Apply(rec types.StateChange) {
	s.Applied++
	s.LastChapter = rec.Chapter

	switch {
	case rec.Field == types.FieldCreated:
		s.Exists = true
		for k, v := range rec.Snapshot {
			if meta, ok := strings.CutPrefix(k, types.MetaFieldPrefix); ok {
				s.Identity[meta] = v.String()
				continue
			}
			s.Attributes[k] = v
		}
	case rec.IsMeta():
		name := strings.TrimPrefix(rec.Field, types.MetaFieldPrefix)
		if rec.NewValue == nil {
			delete(s.Identity, name)
		} else {
			s.Identity[name] = rec.NewValue.String()
		}
	default:
		if rec.NewValue == nil {
			delete(s.Attributes, rec.Field)
		} else {
			s.Attributes[rec.Field] = *rec.NewValue
		}
	}
}

// ApplyTo overlays the snapshot onto a copy of the current entity: the
// attribute bag and identity fields are replaced by their historical values.
// The snapshot must include the creation record.
func (s Snapshot) ApplyTo(current *types.Entity) *types.Entity {
	e := current.Clone()
	e.Current = s.Attributes.Clone()
	if v, ok := s.Identity[types.IdentityCanonicalName]; ok {
		e.CanonicalName = v
	}
	if v, ok := s.Identity[types.IdentityTier]; ok {
		e.Tier = types.Tier(v)
	}
	// Optional fields are only snapshotted when set, so a missing key means
	// empty at that chapter.
	e.Description = s.Identity[types.IdentityDescription]
	e.Status = s.Identity[types.IdentityStatus]
	e.Parent = s.Identity[types.IdentityParent]
	if s.UpTo > 0 {
		e.LastAppearance = min(e.LastAppearance, s.UpTo)
		e.Archived = false
	}
	return e
}

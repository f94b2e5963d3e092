package engine

import (
	"time"

	"github.com/scrypster/chronicle/pkg/types"
)

// TraceEventKind classifies each trace event by type.
type TraceEventKind string

const (
	// KindEntityCreated is emitted for each entity created by the batch.
	KindEntityCreated TraceEventKind = "entity_created"

	// KindMentionResolved is emitted once per resolved mention, whatever its
	// action tier.
	KindMentionResolved TraceEventKind = "mention_resolved"

	// KindStateChanged is emitted for each change that reached the ledger.
	KindStateChanged TraceEventKind = "state_changed"

	// KindRelationshipUpserted is emitted for each asserted edge.
	KindRelationshipUpserted TraceEventKind = "relationship_upserted"

	// KindArchived is emitted when the inactivity sweep archives entities.
	KindArchived TraceEventKind = "archived"
)

// TraceEvent is one structured event recorded while applying a chapter.
type TraceEvent struct {
	Kind TraceEventKind `json:"kind"`
	At   time.Time      `json:"at"`

	// Chapter is the chapter being applied.
	Chapter int `json:"chapter"`

	// Entity is the entity the event is about, if any.
	Entity types.EntityRef `json:"entity,omitempty"`

	// Mention and Tier are set on mention_resolved events.
	Mention    string           `json:"mention,omitempty"`
	Tier       types.ActionTier `json:"tier,omitempty"`
	Confidence float64          `json:"confidence,omitempty"`

	// Fields lists changed attributes for state_changed events.
	Fields []string `json:"fields,omitempty"`

	// Detail is a short human-readable note.
	Detail string `json:"detail,omitempty"`

	// Count is used by archived.
	Count int `json:"count,omitempty"`
}

func newTraceEvent(kind TraceEventKind, chapter int) TraceEvent {
	return TraceEvent{Kind: kind, At: time.Now().UTC(), Chapter: chapter}
}

// EventEntityCreated creates an entity_created trace event.
func EventEntityCreated(chapter int, ref types.EntityRef, name string) TraceEvent {
	e := newTraceEvent(KindEntityCreated, chapter)
	e.Entity = ref
	e.Detail = name
	return e
}

// EventMentionResolved creates a mention_resolved trace event from a
// decision.
func EventMentionResolved(chapter int, d types.Decision) TraceEvent {
	e := newTraceEvent(KindMentionResolved, chapter)
	e.Mention = d.Resolution.Mention
	e.Tier = d.Tier
	e.Entity = d.Chosen
	e.Confidence = d.Resolution.Confidence()
	return e
}

// EventStateChanged creates a state_changed trace event.
func EventStateChanged(chapter int, ref types.EntityRef, fields []string, reason string) TraceEvent {
	e := newTraceEvent(KindStateChanged, chapter)
	e.Entity = ref
	e.Fields = fields
	e.Detail = reason
	return e
}

// EventRelationshipUpserted creates a relationship_upserted trace event.
func EventRelationshipUpserted(chapter int, rel types.Relationship, created bool) TraceEvent {
	e := newTraceEvent(KindRelationshipUpserted, chapter)
	e.Entity = rel.From
	e.Detail = rel.Type + " -> " + rel.To.String()
	if !created {
		e.Detail += " (updated)"
	}
	return e
}

// EventArchived creates an archived trace event.
func EventArchived(chapter, count int) TraceEvent {
	e := newTraceEvent(KindArchived, chapter)
	e.Count = count
	return e
}

package types

import (
	"fmt"
	"strings"
	"time"
)

// EntityRef is the identity key of an entity: ids are unique within a type.
type EntityRef struct {
	Type EntityType `json:"type"`
	ID   string     `json:"id"`
}

// String renders the ref as "type:id".
func (r EntityRef) String() string {
	return string(r.Type) + ":" + r.ID
}

// IsZero reports whether the ref is unset.
func (r EntityRef) IsZero() bool {
	return r.Type == "" && r.ID == ""
}

// Less orders refs by type then id.
func (r EntityRef) Less(o EntityRef) bool {
	if r.Type != o.Type {
		return r.Type < o.Type
	}
	return r.ID < o.ID
}

// ParseEntityRef parses "type:id".
func ParseEntityRef(s string) (EntityRef, error) {
	typ, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return EntityRef{}, fmt.Errorf("invalid entity ref %q: want type:id", s)
	}
	ref := EntityRef{Type: EntityType(typ), ID: id}
	if !IsValidEntityType(ref.Type) {
		return EntityRef{}, fmt.Errorf("invalid entity ref %q: unknown type %q", s, typ)
	}
	return ref, nil
}

// Entity is a tracked story element with stable identity.
type Entity struct {
	// Identity
	ID            string     `json:"id"`                    // Immutable once assigned, unique within Type
	Type          EntityType `json:"type"`                  // character, location, item, faction, ability
	CanonicalName string     `json:"canonical_name"`        // Display name; old names stay as aliases
	Tier          Tier       `json:"tier"`                  // Retrieval priority
	Description   string     `json:"desc,omitempty"`        // Short description
	Status        string     `json:"status,omitempty"`      // Free-form lifecycle label (alive, destroyed, sealed ...)
	Parent        string     `json:"parent,omitempty"`      // Owning entity id (sect of a disciple, region of a city)
	IsProtagonist bool       `json:"is_protagonist,omitempty"`
	Aliases       []string   `json:"aliases,omitempty"`     // Always includes CanonicalName

	// State
	Current Attributes    `json:"current,omitempty"` // Current attribute values
	History []StateChange `json:"history,omitempty"` // Ledger records, populated on read

	// Provenance
	FirstAppearance int       `json:"first_appearance"`
	LastAppearance  int       `json:"last_appearance"`
	Archived        bool      `json:"archived,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Ref returns the entity's identity key.
func (e *Entity) Ref() EntityRef {
	return EntityRef{Type: e.Type, ID: e.ID}
}

// HasAlias reports whether alias is already in the entity's alias list.
func (e *Entity) HasAlias(alias string) bool {
	for _, a := range e.Aliases {
		if a == alias {
			return true
		}
	}
	return false
}

// AddAlias appends alias when absent and reports whether it was added.
func (e *Entity) AddAlias(alias string) bool {
	alias = strings.TrimSpace(alias)
	if alias == "" || e.HasAlias(alias) {
		return false
	}
	e.Aliases = append(e.Aliases, alias)
	return true
}

// Clone returns a deep copy of the entity.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	c := *e
	c.Aliases = append([]string(nil), e.Aliases...)
	c.Current = e.Current.Clone()
	c.History = append([]StateChange(nil), e.History...)
	return &c
}

// NewEntity is the input to entity creation.
type NewEntity struct {
	Type          EntityType `json:"type"`
	Name          string     `json:"name"`
	SuggestedID   string     `json:"suggested_id,omitempty"`
	Tier          Tier       `json:"tier,omitempty"`
	Description   string     `json:"desc,omitempty"`
	Parent        string     `json:"parent,omitempty"`
	IsProtagonist bool       `json:"is_protagonist,omitempty"`
	Aliases       []string   `json:"aliases,omitempty"`
	Current       Attributes `json:"current,omitempty"`
	Chapter       int        `json:"chapter"`
}

// AliasEntry is one row of the alias index.
type AliasEntry struct {
	Alias string     `json:"alias"`
	Type  EntityType `json:"type"`
	ID    string     `json:"id"`
}

// Ref returns the entry's target.
func (a AliasEntry) Ref() EntityRef {
	return EntityRef{Type: a.Type, ID: a.ID}
}

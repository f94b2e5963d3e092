package types

import (
	"encoding/json"
	"strings"
)

// ExtractionResult is the batch an external extraction agent produces for
// one chapter. The core validates and applies it; it never extracts.
type ExtractionResult struct {
	ChapterMeta        *ChapterMetaInput     `json:"chapter_meta,omitempty"`
	Scenes             []SceneInput          `json:"scenes,omitempty"`
	EntitiesAppeared   []AppearanceInput     `json:"entities_appeared,omitempty"`
	EntitiesNew        []NewEntityInput      `json:"entities_new,omitempty"`
	MentionResolutions []MentionInput        `json:"mention_resolutions,omitempty"`
	StateChanges       []StateChangeInput    `json:"state_changes,omitempty"`
	IdentityChanges    []IdentityChangeInput `json:"identity_changes,omitempty"`
	RelationshipsNew   []RelationshipInput   `json:"relationships_new,omitempty"`
	Uncertain          []MentionInput        `json:"uncertain,omitempty"`
}

// RefInput points at an entity by id (optionally typed) or by name. In JSON
// it is either an object or a string ("type:id", a bare id, or a name).
type RefInput struct {
	ID   string     `json:"id,omitempty"`
	Type EntityType `json:"type,omitempty"`
	Name string     `json:"name,omitempty"`
}

// IsZero reports whether nothing identifies the target.
func (r RefInput) IsZero() bool {
	return r.ID == "" && r.Name == ""
}

// Label returns the most specific identifying text.
func (r RefInput) Label() string {
	if r.ID != "" {
		if r.Type != "" {
			return string(r.Type) + ":" + r.ID
		}
		return r.ID
	}
	return r.Name
}

// UnmarshalJSON accepts the object form or a string shorthand.
func (r *RefInput) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = ParseRefInput(s)
		return nil
	}
	type plain RefInput
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = RefInput(p)
	return nil
}

// ParseRefInput interprets a string shorthand: "type:id" when the prefix is a
// known type, an id when it looks like one, otherwise a name.
func ParseRefInput(s string) RefInput {
	s = strings.TrimSpace(s)
	if typ, id, ok := strings.Cut(s, ":"); ok && IsValidEntityType(EntityType(typ)) && id != "" {
		return RefInput{Type: EntityType(typ), ID: id}
	}
	if looksLikeID(s) {
		return RefInput{ID: s}
	}
	return RefInput{Name: s}
}

func looksLikeID(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_') {
			return false
		}
	}
	return true
}

// ChapterMetaInput carries chapter-level facts.
type ChapterMetaInput struct {
	Title     string `json:"title,omitempty"`
	Location  string `json:"location,omitempty"`
	WordCount int    `json:"word_count,omitempty"`
	Summary   string `json:"summary,omitempty"`
	Hook      string `json:"hook,omitempty"`
	Strand    string `json:"strand,omitempty"`
}

// SceneInput is one extracted scene.
type SceneInput struct {
	Index      int      `json:"index"`
	Location   string   `json:"location,omitempty"`
	Summary    string   `json:"summary"`
	Characters []string `json:"characters,omitempty"`
}

// AppearanceInput states that a known entity appears in the chapter.
type AppearanceInput struct {
	Entity     RefInput `json:"entity"`
	Mentions   []string `json:"mentions,omitempty"`
	Confidence float64  `json:"confidence,omitempty"`
}

// NewEntityInput asks for an entity to be created.
type NewEntityInput struct {
	SuggestedID   string     `json:"suggested_id,omitempty"`
	Name          string     `json:"name"`
	Type          EntityType `json:"type"`
	Tier          string     `json:"tier,omitempty"`
	Description   string     `json:"desc,omitempty"`
	Parent        string     `json:"parent,omitempty"`
	IsProtagonist bool       `json:"is_protagonist,omitempty"`
	Aliases       []string   `json:"aliases,omitempty"`
	Current       Attributes `json:"current,omitempty"`
	Mentions      []string   `json:"mentions,omitempty"`
}

// MentionInput is a surface mention to resolve. EntityID and Confidence are
// the extractor's own guess; when Confidence is nil the resolver decides.
type MentionInput struct {
	Mention    string      `json:"mention"`
	Type       EntityType  `json:"type,omitempty"`
	EntityID   string      `json:"entity_id,omitempty"`
	Confidence *float64    `json:"confidence,omitempty"`
	Candidates []EntityRef `json:"candidates,omitempty"`
	Context    string      `json:"context,omitempty"`
}

// StateChangeInput is an attribute change. OldValue is informational.
type StateChangeInput struct {
	Entity   RefInput `json:"entity"`
	Field    string   `json:"field"`
	Op       OpKind   `json:"op,omitempty"`
	OldValue *Value   `json:"old_value,omitempty"`
	NewValue Value    `json:"new_value"`
	Reason   string   `json:"reason,omitempty"`
}

// IdentityChangeInput is an identity metadata change.
type IdentityChangeInput struct {
	Entity RefInput `json:"entity"`
	Field  string   `json:"field"`
	Value  Value    `json:"value"`
	Reason string   `json:"reason,omitempty"`
}

// RelationshipInput asserts an edge.
type RelationshipInput struct {
	From        RefInput `json:"from"`
	To          RefInput `json:"to"`
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
}

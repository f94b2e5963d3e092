// Package types defines the core data structures for the Chronicle story
// registry: entities and their aliases, attribute values, state change records,
// relationships, extraction batches and identity resolution decisions.
package types

import "strings"

// EntityType classifies a tracked story element.
type EntityType string

// Tier is the retention/priority classification of an entity.
type Tier string

// Entity type constants
const (
	EntityCharacter EntityType = "character"
	EntityLocation  EntityType = "location"
	EntityItem      EntityType = "item"
	EntityFaction   EntityType = "faction"
	EntityAbility   EntityType = "ability"
)

// ValidEntityTypes is a slice of all valid entity types for validation
var ValidEntityTypes = []EntityType{
	EntityCharacter,
	EntityLocation,
	EntityItem,
	EntityFaction,
	EntityAbility,
}

// IsValidEntityType reports whether t is one of ValidEntityTypes.
func IsValidEntityType(t EntityType) bool {
	for _, v := range ValidEntityTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Tier constants, highest retrieval priority first
const (
	TierCore       Tier = "core"       // Protagonists and story pillars, never archived
	TierMajor      Tier = "major"      // Recurring cast
	TierMinor      Tier = "minor"      // Named but occasional
	TierDecorative Tier = "decorative" // Background colour
)

// ValidTiers lists tiers in priority order.
var ValidTiers = []Tier{TierCore, TierMajor, TierMinor, TierDecorative}

// tierAliases maps the labels extraction agents commonly emit onto tiers.
var tierAliases = map[string]Tier{
	"核心":         TierCore,
	"重要":         TierMajor,
	"次要":         TierMinor,
	"装饰":         TierDecorative,
	"protagonist": TierCore,
	"important":   TierMajor,
	"background":  TierDecorative,
}

// ParseTier normalises a tier label. Unknown labels return ("", false).
func ParseTier(s string) (Tier, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, t := range ValidTiers {
		if strings.EqualFold(s, string(t)) {
			return t, true
		}
	}
	t, ok := tierAliases[strings.ToLower(s)]
	return t, ok
}

// Rank returns the tier's priority rank (0 = core). Unknown tiers sort last.
func (t Tier) Rank() int {
	for i, v := range ValidTiers {
		if t == v {
			return i
		}
	}
	return len(ValidTiers)
}

// Relationship direction constants used by graph queries
const (
	DirectionBoth     Direction = "both"
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
)

// Direction selects which edges touching an entity a query returns.
type Direction string

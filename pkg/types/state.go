package types

import (
	"fmt"
	"time"
)

// Ledger field names with special meaning.
const (
	// FieldCreated marks the creation record; its Snapshot holds the initial
	// attribute bag.
	FieldCreated = "@created"

	// MetaFieldPrefix prefixes identity metadata fields in the ledger
	// ("meta.tier", "meta.canonical_name" ...).
	MetaFieldPrefix = "meta."
)

// StateChange is one append-only ledger record.
type StateChange struct {
	ID         int64      `json:"id"`                  // Insertion sequence
	Entity     EntityRef  `json:"entity"`              // Changed entity
	Field      string     `json:"field"`               // Attribute name, FieldCreated, or meta.*
	OldValue   *Value     `json:"old_value,omitempty"` // nil when previously absent
	NewValue   *Value     `json:"new_value,omitempty"` // nil when removed
	Snapshot   Attributes `json:"snapshot,omitempty"`  // Creation baseline only
	Reason     string     `json:"reason,omitempty"`    // Narrative cause ("突破", "betrayal")
	Chapter    int        `json:"chapter"`             // Chapter the change happened in
	RunID      string     `json:"run_id,omitempty"`    // Ingestion run that wrote it
	RecordedAt time.Time  `json:"recorded_at"`
}

// IsMeta reports whether the record tracks identity metadata.
func (c StateChange) IsMeta() bool {
	return len(c.Field) > len(MetaFieldPrefix) && c.Field[:len(MetaFieldPrefix)] == MetaFieldPrefix
}

// OpKind is an attribute update operation.
type OpKind string

// Attribute update operations
const (
	OpSet    OpKind = "set"    // Replace the value
	OpUnset  OpKind = "unset"  // Remove the key
	OpAdd    OpKind = "add"    // Append to a string list, skipping duplicates
	OpRemove OpKind = "remove" // Remove an element from a string list
	OpInc    OpKind = "inc"    // Add a numeric delta
)

// AttributeOp is one change to an entity's attribute bag.
type AttributeOp struct {
	Op    OpKind `json:"op,omitempty"` // Defaults to set
	Field string `json:"field"`
	Value Value  `json:"value,omitempty"`
}

// Set is shorthand for a set operation.
func Set(field string, v Value) AttributeOp {
	return AttributeOp{Op: OpSet, Field: field, Value: v}
}

// Validate checks the operation shape.
func (o AttributeOp) Validate() error {
	if o.Field == "" {
		return fmt.Errorf("attribute op: field is required")
	}
	switch o.Op {
	case "", OpSet:
		if o.Value.IsZero() {
			return fmt.Errorf("attribute op %q: set requires a value", o.Field)
		}
	case OpUnset:
	case OpAdd, OpRemove:
		if o.Value.IsZero() || o.Value.Kind() == KindList {
			return fmt.Errorf("attribute op %q: %s requires a scalar value", o.Field, o.Op)
		}
	case OpInc:
		if _, ok := o.Value.Numeric(); !ok {
			return fmt.Errorf("attribute op %q: inc requires a numeric value", o.Field)
		}
	default:
		return fmt.Errorf("attribute op %q: unknown op %q", o.Field, o.Op)
	}
	return nil
}

// IdentityChange updates allow-listed identity metadata. Nil fields are left
// untouched.
type IdentityChange struct {
	Tier          *Tier   `json:"tier,omitempty"`
	Description   *string `json:"desc,omitempty"`
	CanonicalName *string `json:"canonical_name,omitempty"`
	Status        *string `json:"status,omitempty"`
	Parent        *string `json:"parent,omitempty"`
}

// IsEmpty reports whether no field is set.
func (c IdentityChange) IsEmpty() bool {
	return c.Tier == nil && c.Description == nil && c.CanonicalName == nil &&
		c.Status == nil && c.Parent == nil
}

// Identity metadata field names, as accepted in extraction input.
const (
	IdentityTier          = "tier"
	IdentityDescription   = "desc"
	IdentityCanonicalName = "canonical_name"
	IdentityStatus        = "status"
	IdentityParent        = "parent"
	IdentityImportance    = "importance" // Legacy label, mapped onto tier
)

// IdentityFields is the allow-list of identity metadata fields.
var IdentityFields = []string{
	IdentityTier,
	IdentityDescription,
	IdentityCanonicalName,
	IdentityStatus,
	IdentityParent,
	IdentityImportance,
}

// IsIdentityField reports whether name is routed through the identity path.
func IsIdentityField(name string) bool {
	for _, f := range IdentityFields {
		if f == name {
			return true
		}
	}
	return false
}

// IdentityChangeFromField builds an IdentityChange from one field/value pair.
func IdentityChangeFromField(field string, v Value) (IdentityChange, error) {
	s, ok := v.AsString()
	if !ok {
		return IdentityChange{}, fmt.Errorf("identity field %q requires a string value", field)
	}
	var c IdentityChange
	switch field {
	case IdentityTier, IdentityImportance:
		t, ok := ParseTier(s)
		if !ok {
			return IdentityChange{}, fmt.Errorf("identity field %q: unknown tier %q", field, s)
		}
		c.Tier = &t
	case IdentityDescription:
		c.Description = &s
	case IdentityCanonicalName:
		if s == "" {
			return IdentityChange{}, fmt.Errorf("identity field %q must not be empty", field)
		}
		c.CanonicalName = &s
	case IdentityStatus:
		c.Status = &s
	case IdentityParent:
		c.Parent = &s
	default:
		return IdentityChange{}, fmt.Errorf("field %q is not an identity field", field)
	}
	return c, nil
}

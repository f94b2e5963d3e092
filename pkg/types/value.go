package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ValueKind identifies which variant a Value holds.
type ValueKind uint8

// Value kinds. The zero kind marks an absent value.
const (
	KindInvalid ValueKind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindList
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	default:
		return "invalid"
	}
}

// Value is an attribute value: one of string, int, float, bool or a list of
// strings. The zero Value is absent.
type Value struct {
	kind ValueKind
	s    string
	i    int64
	f    float64
	b    bool
	list []string
}

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a float value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// List returns a string list value.
func List(items ...string) Value {
	return Value{kind: KindList, list: append([]string{}, items...)}
}

// Kind reports the held variant.
func (v Value) Kind() ValueKind { return v.kind }

// IsZero reports whether the value is absent.
func (v Value) IsZero() bool { return v.kind == KindInvalid }

// AsString returns the string variant.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsInt returns the int variant.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat returns the float variant.
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }

// AsBool returns the bool variant.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsList returns a copy of the list variant.
func (v Value) AsList() ([]string, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return append([]string{}, v.list...), true
}

// Numeric returns int and float variants as float64.
func (v Value) Numeric() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	}
	return 0, false
}

// Equal compares kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.s == o.s
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindBool:
		return v.b == o.b
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if v.list[i] != o.list[i] {
				return false
			}
		}
		return true
	}
	return true
}

// String renders the value for humans and context fragments.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindList:
		return strings.Join(v.list, ", ")
	}
	return ""
}

// MarshalJSON encodes the value as its natural JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.s)
	case KindInt:
		return json.Marshal(v.i)
	case KindFloat:
		return json.Marshal(v.f)
	case KindBool:
		return json.Marshal(v.b)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	}
	return []byte("null"), nil
}

// UnmarshalJSON accepts a JSON scalar or array. Integral numbers without a
// fraction or exponent decode as int. Array elements are stringified. null
// decodes to the absent value.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode attribute value: %w", err)
	}
	parsed, err := valueFromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func valueFromAny(raw interface{}) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Value{}, nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil && !strings.ContainsAny(x.String(), ".eE") {
			return Int(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("decode attribute value: %w", err)
		}
		return Float(f), nil
	case []interface{}:
		items := make([]string, 0, len(x))
		for _, el := range x {
			ev, err := valueFromAny(el)
			if err != nil {
				return Value{}, err
			}
			if ev.kind == KindList {
				return Value{}, fmt.Errorf("decode attribute value: nested lists are not supported")
			}
			items = append(items, ev.String())
		}
		return List(items...), nil
	default:
		return Value{}, fmt.Errorf("decode attribute value: unsupported JSON type %T", raw)
	}
}

// Attributes is an entity's typed attribute bag.
type Attributes map[string]Value

// Clone returns a copy of the bag.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		if v.kind == KindList {
			v = List(v.list...)
		}
		out[k] = v
	}
	return out
}

// Keys returns the attribute names in sorted order.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value for key, or the absent value.
func (a Attributes) Get(key string) Value {
	if a == nil {
		return Value{}
	}
	return a[key]
}

// Equal reports whether both bags hold the same keys and values.
func (a Attributes) Equal(o Attributes) bool {
	if len(a) != len(o) {
		return false
	}
	for k, v := range a {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// UnmarshalJSON drops null entries so they never appear as present keys.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	var raw map[string]Value
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Attributes, len(raw))
	for k, v := range raw {
		if !v.IsZero() {
			out[k] = v
		}
	}
	*a = out
	return nil
}

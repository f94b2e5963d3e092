package registry

import (
	"fmt"

	"github.com/scrypster/chronicle/internal/storage"
	"github.com/scrypster/chronicle/pkg/types"
)

// applyOp computes the value of a field after op. ok=false means the field
// is absent afterwards.
func applyOp(cur types.Value, present bool, op types.AttributeOp) (next types.Value, ok bool, err error) {
	switch op.Op {
	case "", types.OpSet:
		return op.Value, true, nil

	case types.OpUnset:
		return types.Value{}, false, nil

	case types.OpAdd, types.OpRemove:
		item := op.Value.String()
		var list []string
		if present {
			l, isList := cur.AsList()
			if !isList {
				return cur, present, fmt.Errorf("%w: %s on %q: current value is %s, not a list",
					storage.ErrInvalidInput, op.Op, op.Field, cur.Kind())
			}
			list = l
		}
		if op.Op == types.OpAdd {
			for _, s := range list {
				if s == item {
					return cur, present, nil
				}
			}
			return types.List(append(list, item)...), true, nil
		}
		out := list[:0:0]
		for _, s := range list {
			if s != item {
				out = append(out, s)
			}
		}
		if !present {
			return cur, false, nil
		}
		return types.List(out...), true, nil

	case types.OpInc:
		if !present {
			return op.Value, true, nil
		}
		base, isNum := cur.Numeric()
		if !isNum {
			return cur, present, fmt.Errorf("%w: inc on %q: current value is %s, not numeric",
				storage.ErrInvalidInput, op.Field, cur.Kind())
		}
		a, aInt := cur.AsInt()
		b, bInt := op.Value.AsInt()
		if aInt && bInt {
			return types.Int(a + b), true, nil
		}
		delta, _ := op.Value.Numeric()
		return types.Float(base + delta), true, nil
	}
	return cur, present, fmt.Errorf("%w: unknown op %q", storage.ErrInvalidInput, op.Op)
}

// applyOps merges ops into attrs and returns, in first-touch order, the
// fields whose final value differs from the starting one, with their old and
// new values (nil when absent).
func applyOps(attrs types.Attributes, ops []types.AttributeOp) ([]fieldChange, error) {
	start := attrs.Clone()
	var order []string
	seen := map[string]bool{}

	for i, op := range ops {
		if err := op.Validate(); err != nil {
			return nil, fmt.Errorf("%w: ops[%d]: %v", storage.ErrInvalidInput, i, err)
		}
		if types.IsIdentityField(op.Field) {
			return nil, fmt.Errorf("%w: ops[%d]: %q is an identity field", storage.ErrInvalidInput, i, op.Field)
		}
		cur, present := attrs[op.Field]
		next, ok, err := applyOp(cur, present, op)
		if err != nil {
			return nil, err
		}
		if ok {
			attrs[op.Field] = next
		} else {
			delete(attrs, op.Field)
		}
		if !seen[op.Field] {
			seen[op.Field] = true
			order = append(order, op.Field)
		}
	}

	var changes []fieldChange
	for _, f := range order {
		before, hadBefore := start[f]
		after, hasAfter := attrs[f]
		if hadBefore == hasAfter && (!hasAfter || before.Equal(after)) {
			continue
		}
		fc := fieldChange{Field: f}
		if hadBefore {
			fc.Old = &before
		}
		if hasAfter {
			fc.New = &after
		}
		changes = append(changes, fc)
	}
	return changes, nil
}

type fieldChange struct {
	Field string
	Old   *types.Value
	New   *types.Value
}

// Package filter evaluates metadata filters against a chunk's metadata
// mapping, shared by every index kind. A missing field never matches; an
// unrecognized operator matches everything rather than erroring.
package filter

import (
	"fmt"
	"reflect"
	"strings"
)

// Filter is a mapping from field name to either a scalar (sugar for
// {"eq": scalar}) or an operator mapping.
type Filter map[string]any

// Match reports whether metadata satisfies filter. An empty filter matches
// everything. Multiple fields are conjunctive; multiple operators under one
// field are conjunctive. A missing field fails every operator. Unknown
// operators default to match-all. Type errors during comparison evaluate to
// false and never propagate.
func Match(f Filter, metadata map[string]any) bool {
	for field, spec := range f {
		ops, isOps := spec.(map[string]any)
		if !isOps {
			// Bare scalar is sugar for {"eq": scalar}.
			ops = map[string]any{"eq": spec}
		}

		value, present := metadata[field]
		for op, expected := range ops {
			if !matchOp(op, value, present, expected) {
				return false
			}
		}
	}
	return true
}

func matchOp(op string, value any, present bool, expected any) bool {
	switch op {
	case "eq":
		return present && equal(value, expected)
	case "ne":
		return present && !equal(value, expected)
	case "gt":
		return present && compare(value, expected, func(c int) bool { return c > 0 })
	case "gte":
		return present && compare(value, expected, func(c int) bool { return c >= 0 })
	case "lt":
		return present && compare(value, expected, func(c int) bool { return c < 0 })
	case "lte":
		return present && compare(value, expected, func(c int) bool { return c <= 0 })
	case "contains":
		return present && contains(value, expected)
	case "in":
		return present && member(value, expected)
	case "nin":
		return present && !member(value, expected)
	default:
		// Unknown operators default to match-all (forward compatibility).
		return true
	}
}

// equal compares two metadata values, coercing numeric types so that JSON
// float64 and Go int compare sanely. Non-numeric values, lists included,
// compare by deep equality, so no pairing of types panics.
func equal(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return reflect.DeepEqual(a, b)
}

// compare evaluates an ordered comparison, returning false (never
// propagating) when the two sides are not both ordered and compatible.
func compare(a, b any, pred func(cmp int) bool) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			switch {
			case af < bf:
				return pred(-1)
			case af > bf:
				return pred(1)
			default:
				return pred(0)
			}
		}
		return false
	}

	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		switch {
		case as < bs:
			return pred(-1)
		case as > bs:
			return pred(1)
		default:
			return pred(0)
		}
	}

	return false
}

// contains lowercases both sides after string-coercion and checks substring
// containment.
func contains(value, expected any) bool {
	vs := strings.ToLower(toString(value))
	es := strings.ToLower(toString(expected))
	return strings.Contains(vs, es)
}

// member reports whether value is present in the expected list. expected
// must be a list; otherwise this evaluates to false.
func member(value, expected any) bool {
	list, ok := expected.([]any)
	if !ok {
		return false
	}
	for _, item := range list {
		if equal(value, item) {
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

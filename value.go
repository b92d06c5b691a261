package maggtomic

import (
	"fmt"
	"strings"
	"time"
)

// Value is the `v` field of a Datom. It is an Ident unless the attribute
// is one of the two reserved literal-valued attributes: for OidQudtValue
// it is one of the primitive literal types below; for OidVaemID it is an
// int64 (the decoded form of a shareable ID).
//
// Valid dynamic types: Ident, string, int64, float64, bool, time.Time.
type Value interface{}

// CompareValues orders two Values, returning -1, 0, or 1 for two Values
// of comparable types. It underlies the query evaluator's
// $gt/$gte/$lt/$lte/$eq/$ne/$in predicates and the AVET-style ordering
// the store relies on. Mismatched dynamic types order by their type's
// rank so the comparison is at least total, even though such a comparison
// is never meaningful to a caller; the result is then the difference of
// the two ranks, so only its sign is significant.
func CompareValues(left, right Value) int {
	if left == nil && right == nil {
		return 0
	}
	if left == nil {
		return -1
	}
	if right == nil {
		return 1
	}

	if l, ok := left.(Ident); ok {
		if r, ok := right.(Ident); ok {
			return CompareIdents(l, r)
		}
		return rankOf(left) - rankOf(right)
	}

	switch l := left.(type) {
	case string:
		if r, ok := right.(string); ok {
			return strings.Compare(l, r)
		}
	case int64:
		return compareNumeric(float64(l), right)
	case int:
		return compareNumeric(float64(l), right)
	case float64:
		return compareNumeric(l, right)
	case bool:
		if r, ok := right.(bool); ok {
			switch {
			case l == r:
				return 0
			case !l:
				return -1
			default:
				return 1
			}
		}
	case time.Time:
		if r, ok := right.(time.Time); ok {
			switch {
			case l.Equal(r):
				return 0
			case l.Before(r):
				return -1
			default:
				return 1
			}
		}
	}

	return rankOf(left) - rankOf(right)
}

func compareNumeric(l float64, right Value) int {
	var r float64
	switch v := right.(type) {
	case int64:
		r = float64(v)
	case int:
		r = float64(v)
	case float64:
		r = v
	default:
		return rankOf(l) - rankOf(right)
	}
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	default:
		return 0
	}
}

// rankOf gives an arbitrary but stable order across distinct dynamic
// types, used only as a tie-breaker when two Values can't be compared
// meaningfully.
func rankOf(v Value) int {
	switch v.(type) {
	case Ident:
		return 0
	case string:
		return 1
	case int64, int:
		return 2
	case float64:
		return 3
	case bool:
		return 4
	case time.Time:
		return 5
	default:
		return 6
	}
}

// ValuesEqual reports whether two values are equal for binding-unification
// purposes (spec.md §4.7 step 4).
func ValuesEqual(a, b Value) bool {
	if ai, ok := a.(Ident); ok {
		bi, ok := b.(Ident)
		return ok && ai == bi
	}
	return CompareValues(a, b) == 0
}

// stringifyValue renders a Value for error messages and CLI output.
func stringifyValue(v Value) string {
	switch val := v.(type) {
	case Ident:
		return val.Hex()
	case time.Time:
		return val.Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", val)
	}
}

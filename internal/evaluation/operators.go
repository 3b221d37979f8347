// Package evaluation holds the pure, side-effect-free comparison operators
// a condition's operator/targetValue pair is checked against. None of it
// touches a User, a store, or the network — everything here is a plain
// value-in, bool/float-out function, kept separate so the operator table
// can be tested without standing up an Evaluator.
package evaluation

import (
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Numeric compares a and b as floats using op ("gt", "gte", "lt", "lte").
// Any other op, or a non-numeric operand, makes it report false.
func Numeric(op string, a, b interface{}) bool {
	af, aok := ToFloat(a)
	bf, bok := ToFloat(b)
	if !aok || !bok {
		return false
	}
	switch op {
	case "gt":
		return af > bf
	case "gte":
		return af >= bf
	case "lt":
		return af < bf
	case "lte":
		return af <= bf
	default:
		return false
	}
}

// ToFloat coerces the common JSON-decoded numeric shapes (and numeric
// strings) to float64.
func ToFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Version compares two dotted-numeric version strings component by
// component, ignoring any "-prerelease"/"+build" suffix, per op ("gt",
// "gte", "lt", "lte", "eq", "neq").
func Version(op string, a, b string) bool {
	cmp, ok := compareVersions(a, b)
	if !ok {
		return false
	}
	switch op {
	case "gt":
		return cmp > 0
	case "gte":
		return cmp >= 0
	case "lt":
		return cmp < 0
	case "lte":
		return cmp <= 0
	case "eq":
		return cmp == 0
	case "neq":
		return cmp != 0
	default:
		return false
	}
}

func compareVersions(a, b string) (int, bool) {
	av, bv := stripVersionSuffix(a), stripVersionSuffix(b)
	aParts := strings.Split(av, ".")
	bParts := strings.Split(bv, ".")
	n := len(aParts)
	if len(bParts) > n {
		n = len(bParts)
	}
	for i := 0; i < n; i++ {
		var ai, bi int64
		if i < len(aParts) {
			if v, err := strconv.ParseInt(aParts[i], 10, 64); err == nil {
				ai = v
			} else {
				return 0, false
			}
		}
		if i < len(bParts) {
			if v, err := strconv.ParseInt(bParts[i], 10, 64); err == nil {
				bi = v
			} else {
				return 0, false
			}
		}
		if ai != bi {
			if ai < bi {
				return -1, true
			}
			return 1, true
		}
	}
	return 0, true
}

func stripVersionSuffix(v string) string {
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		return v[:i]
	}
	return v
}

// StringArray implements "any"/"none" against target, and the
// starts/ends/contains family, honoring caseSensitive.
func StringArray(op string, value string, targets []string, caseSensitive bool) bool {
	normalize := func(s string) string {
		if caseSensitive {
			return s
		}
		return strings.ToLower(s)
	}
	v := normalize(value)
	switch op {
	case "any", "any_case_sensitive":
		for _, t := range targets {
			if v == normalize(t) {
				return true
			}
		}
		return false
	case "none", "none_case_sensitive":
		for _, t := range targets {
			if v == normalize(t) {
				return false
			}
		}
		return true
	case "str_starts_with_any":
		for _, t := range targets {
			if strings.HasPrefix(v, normalize(t)) {
				return true
			}
		}
		return false
	case "str_ends_with_any":
		for _, t := range targets {
			if strings.HasSuffix(v, normalize(t)) {
				return true
			}
		}
		return false
	case "str_contains_any":
		for _, t := range targets {
			if strings.Contains(v, normalize(t)) {
				return true
			}
		}
		return false
	case "str_contains_none":
		for _, t := range targets {
			if strings.Contains(v, normalize(t)) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Equal implements eq/neq, treating nil and "" as equivalent absence (most
// user fields are strings and can't natively hold nil).
func Equal(op string, value, target interface{}) bool {
	var equal bool
	if target == nil {
		equal = value == nil || value == ""
	} else {
		equal = reflect.DeepEqual(value, target)
	}
	if op == "eq" {
		return equal
	}
	return !equal
}

// Time implements before/after/on, where both operands are parsed via
// ParseTime.
func Time(op string, value, target interface{}) bool {
	v, vok := ParseTime(value)
	t, tok := ParseTime(target)
	if !vok || !tok {
		return false
	}
	switch op {
	case "before":
		return v.Before(t)
	case "after":
		return v.After(t)
	case "on":
		y1, m1, d1 := v.Date()
		y2, m2, d2 := t.Date()
		return y1 == y2 && m1 == m2 && d1 == d2
	default:
		return false
	}
}

// ParseTime accepts a unix-seconds number, a unix-millis number (detected by
// magnitude), or an RFC3339 string.
func ParseTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed, true
		}
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return unixFromMagnitude(f), true
		}
		return time.Time{}, false
	case float64:
		return unixFromMagnitude(t), true
	case int64:
		return unixFromMagnitude(float64(t)), true
	default:
		return time.Time{}, false
	}
}

func unixFromMagnitude(f float64) time.Time {
	if f > 1e12 {
		return time.UnixMilli(int64(f))
	}
	return time.Unix(int64(f), 0)
}

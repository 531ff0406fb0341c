package store

import (
	"sort"
	"time"
)

// SortRows sorts rows in place by o. Adapters call it on every ordered result
// so callers never depend on the remote service's ordering semantics.
func SortRows(rows []Row, o *Order) {
	if o == nil {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		c := compareValues(rows[i][o.Column], rows[j][o.Column])
		if o.Desc {
			return c > 0
		}
		return c < 0
	})
}

// Sorted reports whether rows already satisfy o
func Sorted(rows []Row, o *Order) bool {
	if o == nil {
		return true
	}
	for i := 1; i < len(rows); i++ {
		c := compareValues(rows[i-1][o.Column], rows[i][o.Column])
		if (o.Desc && c < 0) || (!o.Desc && c > 0) {
			return false
		}
	}
	return true
}

// compareValues orders nil first, then times, numbers and strings.
// Strings that parse as RFC 3339 timestamps compare as times.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}

	if ta, ok := asTime(a); ok {
		if tb, ok := asTime(b); ok {
			return ta.Compare(tb)
		}
	}
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}

	sa, _ := a.(string)
	sb, _ := b.(string)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed, err == nil
	}
	return time.Time{}, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

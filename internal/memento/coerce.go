package memento

import (
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// hasTimestampSuffix reports whether a member name conventionally holds a
// full timestamp ("returned_at", "pickup_time").
func hasTimestampSuffix(name string) bool {
	return strings.HasSuffix(name, "_at") || strings.HasSuffix(name, "_time")
}

// hasDateSuffix reports whether a member name conventionally holds a
// calendar date ("starts_on", "due_date").
func hasDateSuffix(name string) bool {
	return strings.HasSuffix(name, "_on") || strings.HasSuffix(name, "_date")
}

// parseTimestamp coerces a raw document value to a timestamp.
func parseTimestamp(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// parseDate coerces a raw document value to a calendar date, falling back
// to a full timestamp parse for values captured with time components.
func parseDate(v any) (time.Time, bool) {
	if s, ok := v.(string); ok {
		if parsed, err := time.Parse(dateLayout, s); err == nil {
			return parsed, true
		}
	}
	return parseTimestamp(v)
}

// coerceScalar applies the member-name suffix rules to a scalar value:
// _at/_time parse as timestamps, _on/_date as calendar dates, anything
// else passes through. Unparseable values pass through unchanged.
func coerceScalar(name string, v any) any {
	if hasTimestampSuffix(name) {
		if t, ok := parseTimestamp(v); ok {
			return t
		}
		return v
	}
	if hasDateSuffix(name) {
		if t, ok := parseDate(v); ok {
			return t
		}
		return v
	}
	return v
}

// toFloat coerces numeric document values. JSON numbers arrive as float64;
// fresh in-process values may still carry Go integer types.
func toFloat(v any) (float64, bool) {
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

func toInt(v any) (int64, bool) {
	f, ok := toFloat(v)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// truthy implements attribute-query semantics: nil, false, zero and empty
// values are false, everything else true.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case []any:
		return len(t) > 0
	case Document:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

package docstore

import (
	"fmt"
	"strings"
	"time"
)

// compareValues orders a stored JSON value against a filter value. ok is false
// when the two cannot be compared.
func compareValues(stored, value any) (cmp int, ok bool) {
	switch v := value.(type) {
	case time.Time:
		s, isString := stored.(string)
		if !isString {
			return 0, false
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return 0, false
		}
		return t.Compare(v), true
	case string:
		s, isString := stored.(string)
		if !isString {
			return 0, false
		}
		return strings.Compare(s, v), true
	case bool:
		b, isBool := stored.(bool)
		if !isBool || b != v {
			return 1, isBool
		}
		return 0, true
	default:
		f, isNum := toFloat(value)
		if !isNum {
			return 0, false
		}
		s, isNum := toFloat(stored)
		if !isNum {
			return 0, false
		}
		switch {
		case s < f:
			return -1, true
		case s > f:
			return 1, true
		}
		return 0, true
	}
}

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
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func matches(data map[string]any, f Filter) bool {
	stored, present := data[f.Field]
	if !present || stored == nil {
		return false
	}
	cmp, ok := compareValues(stored, f.Value)
	if !ok {
		return false
	}
	switch f.Op {
	case OpEq:
		return cmp == 0
	case OpGte:
		return cmp >= 0
	}
	return false
}

// textValue renders a filter value the way postgres exposes it through ->>.
func textValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case bool:
		if val {
			return "true"
		}
		return "false"
	}
	return fmt.Sprint(v)
}

// malformedTime reports a present stored value that a timestamp comparison
// cannot read.
func malformedTime(stored, value any) bool {
	if _, isTime := value.(time.Time); !isTime || stored == nil {
		return false
	}
	s, isString := stored.(string)
	if !isString {
		return true
	}
	_, err := time.Parse(time.RFC3339Nano, s)
	return err != nil
}

// storedTime parses a stored timestamp so it orders chronologically; values
// that are not timestamps are returned unchanged.
func storedTime(stored any) any {
	s, isString := stored.(string)
	if !isString {
		return stored
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return stored
	}
	return t
}

package property

import (
	"fmt"
	"math"
	"strconv"
)

// coerce converts values as decoded from YAML or JSON into T. Whole floats
// convert to integers; lists convert element-wise to []string.
func coerce[T any](v any) (T, error) {
	var zero T
	if typed, ok := v.(T); ok {
		return typed, nil
	}

	var out any
	switch any(zero).(type) {
	case int:
		n, err := toInt64(v)
		if err != nil {
			return zero, err
		}
		out = int(n)
	case int64:
		n, err := toInt64(v)
		if err != nil {
			return zero, err
		}
		out = n
	case string:
		s, ok := v.(string)
		if !ok {
			return zero, fmt.Errorf("expected string, got %T", v)
		}
		out = s
	case []string:
		list, ok := v.([]any)
		if !ok {
			return zero, fmt.Errorf("expected list, got %T", v)
		}
		strs := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return zero, fmt.Errorf("expected string list element, got %T", item)
			}
			strs = append(strs, s)
		}
		out = strs
	default:
		return zero, fmt.Errorf("unsupported conversion from %T to %T", v, zero)
	}

	return out.(T), nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", n)
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("expected whole number, got %v", n)
		}
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

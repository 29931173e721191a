package transform

import (
	"strconv"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// numeric widens any Go number to float64. Payloads decoded from JSON
// carry float64, but callers handing native maps may pass ints.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func stringOption(config map[string]any, key, fallback string) string {
	if v, ok := config[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func floatOption(config map[string]any, key string, fallback float64) float64 {
	if v, ok := numeric(config[key]); ok {
		return v
	}
	return fallback
}

// fieldList reads the target field names from config: either
// fields: [a, b] or a single field: a.
func fieldList(name string, config map[string]any) ([]string, error) {
	if raw, ok := config["fields"]; ok {
		arr, ok := raw.([]any)
		if !ok {
			return nil, types.NewConfigurationError(name + ": fields must be an array of strings")
		}
		fields := make([]string, 0, len(arr))
		for _, item := range arr {
			s, ok := item.(string)
			if !ok {
				return nil, types.NewConfigurationError(name + ": fields must be an array of strings")
			}
			fields = append(fields, s)
		}
		if len(fields) == 0 {
			return nil, types.NewConfigurationError(name + ": fields is empty")
		}
		return fields, nil
	}
	if f, ok := config["field"].(string); ok && f != "" {
		return []string{f}, nil
	}
	return nil, types.NewConfigurationError(name + ": fields is required")
}

// itemsFromInput reads the items array collection transformers operate
// on.
func itemsFromInput(name string, input map[string]any) ([]any, error) {
	raw, ok := input["items"]
	if !ok {
		return nil, types.NewConfigurationError(name + ": input has no items array")
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, types.NewConfigurationError(name + ": items is not an array")
	}
	return items, nil
}

// scalarKey renders a value as a grouping key.
func scalarKey(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	default:
		if n, ok := numeric(v); ok {
			return strconv.FormatFloat(n, 'f', -1, 64)
		}
		return ""
	}
}

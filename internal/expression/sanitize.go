package expression

// MaxValueDepth caps nesting when sanitizing values that enter
// expression evaluation or transformation.
const MaxValueDepth = 32

// forbiddenKeys are stripped from maps at every nesting level.
var forbiddenKeys = map[string]struct{}{
	"__proto__":   {},
	"constructor": {},
	"prototype":   {},
}

// Sanitize deep-copies v, dropping the keys __proto__, constructor and
// prototype at every level. The copy means evaluation can never mutate
// caller data. Values nested deeper than MaxValueDepth are rejected
// with a LimitError.
func Sanitize(v any) (any, error) {
	return sanitizeValue(v, 0)
}

// SanitizeMap sanitizes a map value, preserving nil.
func SanitizeMap(m map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	clean, err := sanitizeValue(m, 0)
	if err != nil {
		return nil, err
	}
	return clean.(map[string]any), nil
}

func sanitizeValue(v any, depth int) (any, error) {
	if depth > MaxValueDepth {
		return nil, NewLimitError("nesting depth", MaxValueDepth, depth)
	}

	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if _, bad := forbiddenKeys[k]; bad {
				continue
			}
			clean, err := sanitizeValue(item, depth+1)
			if err != nil {
				return nil, err
			}
			out[k] = clean
		}
		return out, nil

	case []any:
		out := make([]any, 0, len(val))
		for _, item := range val {
			clean, err := sanitizeValue(item, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, clean)
		}
		return out, nil

	default:
		return v, nil
	}
}

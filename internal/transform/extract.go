package transform

import (
	"fmt"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// extract pulls values out of the input with a JSONPath. An optional
// source field narrows the root; when that field holds a string it is
// parsed as embedded JSON first, which is how several sensor gateways
// deliver their payloads. A single match is unwrapped, multiple
// matches stay a list, no match yields null.
func extract(input, config map[string]any) (map[string]any, error) {
	path := stringOption(config, "path", "")
	if path == "" {
		return nil, types.NewConfigurationError("extract: path is required")
	}
	target := stringOption(config, "target", "result")

	x, err := jp.ParseString(path)
	if err != nil {
		return nil, types.NewConfigurationError("extract: invalid path: " + err.Error())
	}

	root := any(input)
	if source := stringOption(config, "source", ""); source != "" {
		v, ok := input[source]
		if !ok {
			return nil, types.NewConfigurationError("extract: source field not found: " + source)
		}
		if s, isStr := v.(string); isStr {
			parsed, err := oj.ParseString(s)
			if err != nil {
				return nil, fmt.Errorf("extract: source %s is not valid json: %w", source, err)
			}
			root = parsed
		} else {
			root = v
		}
	}

	results := x.Get(root)
	var value any
	switch len(results) {
	case 0:
		value = nil
	case 1:
		value = results[0]
	default:
		value = results
	}
	return map[string]any{target: value}, nil
}

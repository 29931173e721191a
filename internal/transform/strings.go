package transform

import (
	"strings"

	"github.com/duke-git/lancet/v2/strutil"
)

func uppercaseFields(input, config map[string]any) (map[string]any, error) {
	return applyToStringFields("uppercase", input, config, strings.ToUpper)
}

func lowercaseFields(input, config map[string]any) (map[string]any, error) {
	return applyToStringFields("lowercase", input, config, strings.ToLower)
}

func trimFields(input, config map[string]any) (map[string]any, error) {
	return applyToStringFields("trim", input, config, func(s string) string {
		return strutil.Trim(s)
	})
}

// applyToStringFields rewrites the configured string fields through fn;
// non-string values pass through untouched.
func applyToStringFields(name string, input, config map[string]any, fn func(string) string) (map[string]any, error) {
	fields, err := fieldList(name, config)
	if err != nil {
		return nil, err
	}
	out := cloneMap(input)
	for _, f := range fields {
		if s, ok := out[f].(string); ok {
			out[f] = fn(s)
		}
	}
	return out, nil
}

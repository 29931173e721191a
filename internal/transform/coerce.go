package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/duke-git/lancet/v2/strutil"
)

// coerceNumber converts the configured fields to float64. Numeric
// strings are parsed, booleans become 0/1, anything else is an error.
// Missing or null fields are left alone.
func coerceNumber(input, config map[string]any) (map[string]any, error) {
	fields, err := fieldList("coerce-number", config)
	if err != nil {
		return nil, err
	}
	out := cloneMap(input)
	for _, f := range fields {
		v, ok := out[f]
		if !ok || v == nil {
			continue
		}
		n, err := toNumber(v)
		if err != nil {
			return nil, fmt.Errorf("coerce-number: field %s: %w", f, err)
		}
		out[f] = n
	}
	return out, nil
}

// coerceString renders the configured fields as strings. Composites
// are serialized as canonical JSON.
func coerceString(input, config map[string]any) (map[string]any, error) {
	fields, err := fieldList("coerce-string", config)
	if err != nil {
		return nil, err
	}
	out := cloneMap(input)
	for _, f := range fields {
		v, ok := out[f]
		if !ok {
			continue
		}
		s, err := toString(v)
		if err != nil {
			return nil, fmt.Errorf("coerce-string: field %s: %w", f, err)
		}
		out[f] = s
	}
	return out, nil
}

// coerceBoolean reduces the configured fields to booleans using the
// evaluator's truthiness, with the usual string spellings recognized.
func coerceBoolean(input, config map[string]any) (map[string]any, error) {
	fields, err := fieldList("coerce-boolean", config)
	if err != nil {
		return nil, err
	}
	out := cloneMap(input)
	for _, f := range fields {
		if v, ok := out[f]; ok {
			out[f] = toBoolean(v)
		}
	}
	return out, nil
}

func toNumber(v any) (float64, error) {
	if n, ok := numeric(v); ok {
		return n, nil
	}
	switch t := v.(type) {
	case string:
		n, err := strconv.ParseFloat(strutil.Trim(t), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as number", t)
		}
		return n, nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("cannot convert %T to number", v)
}

func toString(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	}
	if n, ok := numeric(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64), nil
	}
	return sonic.ConfigStd.MarshalToString(v)
}

func toBoolean(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		switch strings.ToLower(strutil.Trim(t)) {
		case "", "false", "0", "no", "off":
			return false
		}
		return true
	}
	if n, ok := numeric(v); ok {
		return n != 0 && !math.IsNaN(n)
	}
	return true
}

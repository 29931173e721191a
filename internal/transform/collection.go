package transform

import (
	"math"
	"strings"

	"github.com/duke-git/lancet/v2/slice"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/expression"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// filterItems keeps the items for which the configured expression is
// truthy. Each item is bound as data.item, its position as data.index.
func filterItems(ev *expression.Evaluator) Func {
	return func(input, config map[string]any) (map[string]any, error) {
		expr := stringOption(config, "expression", "")
		if expr == "" {
			return nil, types.NewConfigurationError("filter: expression is required")
		}
		ast, err := ev.Parse(expr)
		if err != nil {
			return nil, err
		}
		items, err := itemsFromInput("filter", input)
		if err != nil {
			return nil, err
		}

		kept := make([]any, 0, len(items))
		for i, item := range items {
			v, err := ev.Evaluate(ast, map[string]any{"item": item, "index": float64(i)}, nil)
			if err != nil {
				return nil, err
			}
			if expression.Truthy(v) {
				kept = append(kept, item)
			}
		}
		return map[string]any{"items": kept, "count": float64(len(kept))}, nil
	}
}

// mapItems rewrites each item to the value of the configured
// expression, bound the same way as filter.
func mapItems(ev *expression.Evaluator) Func {
	return func(input, config map[string]any) (map[string]any, error) {
		expr := stringOption(config, "expression", "")
		if expr == "" {
			return nil, types.NewConfigurationError("map: expression is required")
		}
		ast, err := ev.Parse(expr)
		if err != nil {
			return nil, err
		}
		items, err := itemsFromInput("map", input)
		if err != nil {
			return nil, err
		}

		mapped := make([]any, 0, len(items))
		for i, item := range items {
			v, err := ev.Evaluate(ast, map[string]any{"item": item, "index": float64(i)}, nil)
			if err != nil {
				return nil, err
			}
			mapped = append(mapped, v)
		}
		return map[string]any{"items": mapped, "count": float64(len(mapped))}, nil
	}
}

// groupBy buckets items by the scalar value of the configured field.
// Items without the field, and non-object items, land in the "" bucket.
func groupBy(input, config map[string]any) (map[string]any, error) {
	field := stringOption(config, "field", "")
	if field == "" {
		return nil, types.NewConfigurationError("group-by: field is required")
	}
	items, err := itemsFromInput("group-by", input)
	if err != nil {
		return nil, err
	}

	grouped := slice.GroupWith(items, func(item any) string {
		m, ok := item.(map[string]any)
		if !ok {
			return ""
		}
		return scalarKey(m[field])
	})

	groups := make(map[string]any, len(grouped))
	for k, members := range grouped {
		groups[k] = members
	}
	return map[string]any{"groups": groups, "count": float64(len(groups))}, nil
}

// sortBy orders items by a field, numerically when both sides are
// numbers and lexically otherwise.
func sortBy(input, config map[string]any) (map[string]any, error) {
	field := stringOption(config, "field", "")
	if field == "" {
		return nil, types.NewConfigurationError("sort-by: field is required")
	}
	order := strings.ToLower(stringOption(config, "order", "asc"))
	if order != "asc" && order != "desc" {
		return nil, types.NewConfigurationError("sort-by: order must be asc or desc")
	}
	items, err := itemsFromInput("sort-by", input)
	if err != nil {
		return nil, err
	}

	sorted := make([]any, len(items))
	copy(sorted, items)
	slice.SortBy(sorted, func(a, b any) bool {
		c := compareField(a, b, field)
		if order == "desc" {
			return c > 0
		}
		return c < 0
	})
	return map[string]any{"items": sorted, "count": float64(len(sorted))}, nil
}

func compareField(a, b any, field string) int {
	va := fieldValue(a, field)
	vb := fieldValue(b, field)

	na, aNum := numeric(va)
	nb, bNum := numeric(vb)
	if aNum && bNum {
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(scalarKey(va), scalarKey(vb))
}

func fieldValue(item any, field string) any {
	if m, ok := item.(map[string]any); ok {
		return m[field]
	}
	return nil
}

// stats computes descriptive statistics over the numeric values of a
// field (or the items themselves when no field is configured).
// Non-numeric values are skipped. The standard deviation is the
// population form.
func stats(input, config map[string]any) (map[string]any, error) {
	field := stringOption(config, "field", "")
	items, err := itemsFromInput("stats", input)
	if err != nil {
		return nil, err
	}

	values := make([]float64, 0, len(items))
	for _, item := range items {
		v := item
		if field != "" {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			v = m[field]
		}
		if n, ok := numeric(v); ok {
			values = append(values, n)
		}
	}

	if len(values) == 0 {
		return map[string]any{
			"count": 0.0, "sum": 0.0, "mean": 0.0,
			"min": 0.0, "max": 0.0, "stddev": 0.0,
		}, nil
	}

	sum, min, max := 0.0, values[0], values[0]
	for _, v := range values {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	stddev := math.Sqrt(sq / float64(len(values)))

	return map[string]any{
		"count":  float64(len(values)),
		"sum":    sum,
		"mean":   mean,
		"min":    min,
		"max":    max,
		"stddev": stddev,
	}, nil
}

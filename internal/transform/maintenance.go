package transform

import (
	"fmt"
	"math"

	"github.com/duke-git/lancet/v2/slice"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// maintenancePriority scores equipment for maintenance scheduling. Each
// item contributes four normalized factors: criticality (0-10 scale),
// hours since last maintenance (capped at max_hours), failure count
// (capped at max_failures) and production impact (0-100 scale). The
// weighted sum is scaled to 0-100 and items come back sorted most
// urgent first.
func maintenancePriority(input, config map[string]any) (map[string]any, error) {
	items, err := itemsFromInput("maintenance-priority", input)
	if err != nil {
		return nil, err
	}

	wCriticality := floatOption(config, "criticality_weight", 0.3)
	wHours := floatOption(config, "hours_weight", 0.2)
	wFailures := floatOption(config, "failures_weight", 0.25)
	wImpact := floatOption(config, "impact_weight", 0.25)
	maxHours := floatOption(config, "max_hours", 720)
	maxFailures := floatOption(config, "max_failures", 10)
	if maxHours <= 0 || maxFailures <= 0 {
		return nil, types.NewConfigurationError("maintenance-priority: max_hours and max_failures must be positive")
	}

	scored := make([]any, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, types.NewConfigurationError(
				fmt.Sprintf("maintenance-priority: items[%d] is not an object", i))
		}

		criticality := clamp01(fieldNumber(m, "criticality") / 10)
		hours := clamp01(fieldNumber(m, "hours_since_maintenance") / maxHours)
		failures := clamp01(fieldNumber(m, "failure_count") / maxFailures)
		impact := clamp01(fieldNumber(m, "production_impact") / 100)

		score := (criticality*wCriticality + hours*wHours + failures*wFailures + impact*wImpact) * 100

		rec := cloneMap(m)
		rec["priority_score"] = math.Round(score*100) / 100
		scored = append(scored, rec)
	}

	slice.SortBy(scored, func(a, b any) bool {
		return fieldNumber(a.(map[string]any), "priority_score") >
			fieldNumber(b.(map[string]any), "priority_score")
	})

	return map[string]any{"items": scored, "count": float64(len(scored))}, nil
}

func fieldNumber(m map[string]any, key string) float64 {
	n, _ := numeric(m[key])
	return n
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

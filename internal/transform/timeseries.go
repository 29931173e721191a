package transform

import (
	"fmt"
	"math"

	"github.com/duke-git/lancet/v2/maputil"
	"github.com/duke-git/lancet/v2/slice"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

type seriesPoint struct {
	ts float64
	m  map[string]any
}

// mergeTimeseries joins two timestamped series by proximity: each left
// point is merged with the nearest unused right point whose timestamp
// lies within the tolerance window. Left fields win on conflict;
// unmatched points on either side are dropped and counted.
func mergeTimeseries(input, config map[string]any) (map[string]any, error) {
	tsField := stringOption(config, "timestamp_field", "timestamp")
	tolerance := floatOption(config, "tolerance_ms", 1000)
	if tolerance < 0 {
		return nil, types.NewConfigurationError("merge-timeseries: tolerance_ms must not be negative")
	}

	left, err := seriesPoints("left", tsField, input)
	if err != nil {
		return nil, err
	}
	right, err := seriesPoints("right", tsField, input)
	if err != nil {
		return nil, err
	}

	merged := make([]any, 0, len(left))
	used := make([]bool, len(right))
	matched := 0
	start := 0
	for _, l := range left {
		for start < len(right) && right[start].ts < l.ts-tolerance {
			start++
		}
		best, bestDelta := -1, 0.0
		for k := start; k < len(right) && right[k].ts <= l.ts+tolerance; k++ {
			if used[k] {
				continue
			}
			d := math.Abs(right[k].ts - l.ts)
			if best == -1 || d < bestDelta {
				best, bestDelta = k, d
			}
		}
		if best >= 0 {
			used[best] = true
			matched++
			merged = append(merged, maputil.Merge(right[best].m, l.m))
		}
	}

	return map[string]any{
		"items":           merged,
		"matched":         float64(matched),
		"unmatched_left":  float64(len(left) - matched),
		"unmatched_right": float64(len(right) - matched),
	}, nil
}

// seriesPoints reads one input series and returns it sorted by
// timestamp.
func seriesPoints(key, tsField string, input map[string]any) ([]seriesPoint, error) {
	raw, ok := input[key]
	if !ok {
		return nil, types.NewConfigurationError("merge-timeseries: input has no " + key + " array")
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil, types.NewConfigurationError("merge-timeseries: " + key + " is not an array")
	}

	pts := make([]seriesPoint, 0, len(arr))
	for i, item := range arr {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, types.NewConfigurationError(
				fmt.Sprintf("merge-timeseries: %s[%d] is not an object", key, i))
		}
		ts, ok := numeric(m[tsField])
		if !ok {
			return nil, types.NewConfigurationError(
				fmt.Sprintf("merge-timeseries: %s[%d] has no numeric %s", key, i, tsField))
		}
		pts = append(pts, seriesPoint{ts: ts, m: m})
	}
	slice.SortBy(pts, func(a, b seriesPoint) bool { return a.ts < b.ts })
	return pts, nil
}

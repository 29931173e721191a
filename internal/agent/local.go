package agent

import (
	"context"
	"fmt"
	"math"

	"github.com/duke-git/lancet/v2/slice"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// Local agent kinds. All three are deterministic pure functions over
// the input payload, which makes them safe to cache.
const (
	KindOEECalculator    = "oee-calculator"
	KindQualityAnalyzer  = "quality-analyzer"
	KindDowntimeAnalyzer = "downtime-analyzer"
)

// LocalKinds lists the kinds served in-process.
func LocalKinds() []string {
	return []string{KindOEECalculator, KindQualityAnalyzer, KindDowntimeAnalyzer}
}

// LocalInvoker serves the deterministic analytics kinds in-process.
type LocalInvoker struct{}

// NewLocalInvoker creates a local invoker.
func NewLocalInvoker() *LocalInvoker {
	return &LocalInvoker{}
}

// Invoke dispatches to the local analytics implementation for kind.
func (l *LocalInvoker) Invoke(_ context.Context, kind string, input, _, config map[string]any) (*Result, error) {
	switch kind {
	case KindOEECalculator:
		return calculateOEE(input), nil
	case KindQualityAnalyzer:
		return analyzeQuality(input, config), nil
	case KindDowntimeAnalyzer:
		return analyzeDowntime(input, config), nil
	}
	return nil, types.NewConfigurationError("unknown agent kind: " + kind)
}

// calculateOEE computes overall equipment effectiveness as
// availability x performance x quality. Planned time and runtime are
// minutes, the ideal cycle time is seconds per unit. Factors are
// clamped to [0, 1].
func calculateOEE(input map[string]any) *Result {
	planned := number(input, "planned_time_minutes")
	runtime := number(input, "runtime_minutes")
	idealCycle := number(input, "ideal_cycle_time_seconds")
	totalCount := number(input, "total_count")
	goodCount := number(input, "good_count")

	if planned <= 0 {
		return failure("planned_time_minutes must be positive")
	}
	if runtime < 0 || idealCycle < 0 || totalCount < 0 || goodCount < 0 {
		return failure("time and count inputs must not be negative")
	}
	if goodCount > totalCount {
		return failure("good_count cannot exceed total_count")
	}

	availability := clampRatio(runtime / planned)

	performance := 0.0
	if runtime > 0 {
		performance = clampRatio(idealCycle * totalCount / (runtime * 60))
	}

	quality := 0.0
	if totalCount > 0 {
		quality = clampRatio(goodCount / totalCount)
	}

	oee := availability * performance * quality

	return &Result{
		Success: true,
		Output: map[string]any{
			"availability":   round4(availability),
			"performance":    round4(performance),
			"quality":        round4(quality),
			"oee":            round4(oee),
			"classification": classifyOEE(oee),
		},
	}
}

// classifyOEE buckets a score against the usual industry bands.
func classifyOEE(oee float64) string {
	switch {
	case oee >= 0.85:
		return "world_class"
	case oee >= 0.6:
		return "typical"
	case oee >= 0.4:
		return "low"
	default:
		return "unacceptable"
	}
}

// analyzeQuality computes yield, defect rate and the top defect
// categories. Input: total_count plus a defects array of
// {category, count} records.
func analyzeQuality(input, config map[string]any) *Result {
	total := number(input, "total_count")
	if total <= 0 {
		return failure("total_count must be positive")
	}

	defects, ok := input["defects"].([]any)
	if !ok && input["defects"] != nil {
		return failure("defects must be an array")
	}

	byCategory := map[string]float64{}
	var defectTotal float64
	for i, raw := range defects {
		d, ok := raw.(map[string]any)
		if !ok {
			return failure(fmt.Sprintf("defects[%d] is not an object", i))
		}
		count := number(d, "count")
		if count < 0 {
			return failure(fmt.Sprintf("defects[%d] has a negative count", i))
		}
		category, _ := d["category"].(string)
		if category == "" {
			category = "uncategorized"
		}
		byCategory[category] += count
		defectTotal += count
	}
	if defectTotal > total {
		return failure("defect count exceeds total_count")
	}

	topN := int(numberOr(config, "top_n", 3))
	top := rankedShares(byCategory, defectTotal, topN, "category")

	return &Result{
		Success: true,
		Output: map[string]any{
			"yield":        round4((total - defectTotal) / total),
			"defect_rate":  round4(defectTotal / total),
			"defect_count": defectTotal,
			"top_defects":  top,
		},
	}
}

// analyzeDowntime computes total downtime, MTBF, MTTR and the top
// reasons. Input: period_minutes plus an events array of
// {reason, duration_minutes} records. A period without failures
// reports MTBF equal to the whole period.
func analyzeDowntime(input, config map[string]any) *Result {
	period := number(input, "period_minutes")
	if period <= 0 {
		return failure("period_minutes must be positive")
	}

	events, ok := input["events"].([]any)
	if !ok && input["events"] != nil {
		return failure("events must be an array")
	}

	byReason := map[string]float64{}
	var downtime float64
	for i, raw := range events {
		e, ok := raw.(map[string]any)
		if !ok {
			return failure(fmt.Sprintf("events[%d] is not an object", i))
		}
		duration := number(e, "duration_minutes")
		if duration < 0 {
			return failure(fmt.Sprintf("events[%d] has a negative duration", i))
		}
		reason, _ := e["reason"].(string)
		if reason == "" {
			reason = "unspecified"
		}
		byReason[reason] += duration
		downtime += duration
	}
	if downtime > period {
		return failure("total downtime exceeds period_minutes")
	}

	count := float64(len(events))
	mtbf := period
	mttr := 0.0
	if count > 0 {
		mtbf = (period - downtime) / count
		mttr = downtime / count
	}

	topN := int(numberOr(config, "top_n", 3))
	top := rankedShares(byReason, downtime, topN, "reason")

	return &Result{
		Success: true,
		Output: map[string]any{
			"total_downtime_minutes": downtime,
			"event_count":            count,
			"mtbf_minutes":           round4(mtbf),
			"mttr_minutes":           round4(mttr),
			"availability":           round4(clampRatio((period - downtime) / period)),
			"top_reasons":            top,
		},
	}
}

// rankedShares turns a label->total map into the top n records sorted
// by total descending, each with its share of the grand total.
func rankedShares(totals map[string]float64, grandTotal float64, n int, labelKey string) []any {
	if n <= 0 {
		n = 3
	}
	entries := make([]any, 0, len(totals))
	for label, total := range totals {
		share := 0.0
		if grandTotal > 0 {
			share = total / grandTotal
		}
		entries = append(entries, map[string]any{
			labelKey: label,
			"total":  total,
			"share":  round4(share),
		})
	}
	slice.SortBy(entries, func(a, b any) bool {
		ma, mb := a.(map[string]any), b.(map[string]any)
		ta, _ := ma["total"].(float64)
		tb, _ := mb["total"].(float64)
		if ta != tb {
			return ta > tb
		}
		la, _ := ma[labelKey].(string)
		lb, _ := mb[labelKey].(string)
		return la < lb
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

func number(m map[string]any, key string) float64 {
	switch n := m[key].(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func numberOr(m map[string]any, key string, fallback float64) float64 {
	if m == nil {
		return fallback
	}
	if _, ok := m[key]; !ok {
		return fallback
	}
	return number(m, key)
}

func clampRatio(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

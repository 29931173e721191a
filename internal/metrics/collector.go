// Package metrics aggregates process-lifetime counters and latency
// distributions for the workflow engine. One Collector serves the REST
// surface and the final CLI summary.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	hdrhistogram "github.com/HdrHistogram/hdrhistogram-go"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// Histogram range: 1µs to 1h at three significant figures.
const (
	minTrackableMicros = 1
	maxTrackableMicros = int64(time.Hour / time.Microsecond)
	histogramSigFigs   = 3
)

// Collector is safe for concurrent use by every driving loop in the
// process.
type Collector struct {
	startedAt time.Time

	executionsStarted   atomic.Int64
	executionsCompleted atomic.Int64
	executionsFailed    atomic.Int64
	stepsCompleted      atomic.Int64
	stepsFailed         atomic.Int64
	stepsSkipped        atomic.Int64

	mu            sync.Mutex
	executionHist *hdrhistogram.Histogram
	stepHist      *hdrhistogram.Histogram
	errorsByClass map[types.ErrorCode]int64
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		startedAt:     time.Now(),
		executionHist: hdrhistogram.New(minTrackableMicros, maxTrackableMicros, histogramSigFigs),
		stepHist:      hdrhistogram.New(minTrackableMicros, maxTrackableMicros, histogramSigFigs),
		errorsByClass: make(map[types.ErrorCode]int64),
	}
}

// ExecutionStarted counts one accepted execution.
func (c *Collector) ExecutionStarted() {
	c.executionsStarted.Add(1)
}

// ExecutionFinished counts a terminal execution and records its
// duration. The carried error is not re-counted here: a failed
// execution carries its first failing step's error, which StepFinished
// already classified.
func (c *Collector) ExecutionFinished(exec *types.WorkflowExecution) {
	if exec == nil {
		return
	}
	switch exec.Status {
	case types.ExecutionStatusCompleted:
		c.executionsCompleted.Add(1)
	case types.ExecutionStatusFailed:
		c.executionsFailed.Add(1)
	}
	c.record(c.executionHist, exec.Duration)
}

// StepFinished counts a terminal step record, records its duration when
// the step actually ran, and classifies its error.
func (c *Collector) StepFinished(step *types.StepExecution) {
	if step == nil {
		return
	}
	switch step.Status {
	case types.StepStatusCompleted:
		c.stepsCompleted.Add(1)
	case types.StepStatusFailed:
		c.stepsFailed.Add(1)
	case types.StepStatusSkipped:
		c.stepsSkipped.Add(1)
	}
	if step.StartedAt != nil {
		c.record(c.stepHist, step.Duration)
	}
	if step.Error != nil {
		c.ErrorObserved(step.Error.Code)
	}
}

// ErrorObserved counts one error of the given class. The driving loop
// calls this directly for failures that happen before an execution
// record exists: definition validation, cycle detection, lock denial.
func (c *Collector) ErrorObserved(code types.ErrorCode) {
	if code == "" {
		return
	}
	c.mu.Lock()
	c.errorsByClass[code]++
	c.mu.Unlock()
}

func (c *Collector) record(hist *hdrhistogram.Histogram, d time.Duration) {
	v := d.Microseconds()
	if v < minTrackableMicros {
		v = minTrackableMicros
	}
	if v > maxTrackableMicros {
		v = maxTrackableMicros
	}
	c.mu.Lock()
	// Cannot fail after clamping to the tracked range.
	_ = hist.RecordValue(v)
	c.mu.Unlock()
}

// ExecutionCounters groups execution lifecycle counts.
type ExecutionCounters struct {
	Started   int64 `json:"started"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// StepCounters groups per-step terminal state counts.
type StepCounters struct {
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Skipped   int64 `json:"skipped"`
}

// LatencySummary describes one duration distribution in milliseconds.
type LatencySummary struct {
	Count int64   `json:"count"`
	MinMs float64 `json:"min_ms"`
	AvgMs float64 `json:"avg_ms"`
	MaxMs float64 `json:"max_ms"`
	P50Ms float64 `json:"p50_ms"`
	P90Ms float64 `json:"p90_ms"`
	P99Ms float64 `json:"p99_ms"`
}

// Snapshot is one consistent view of the collector.
type Snapshot struct {
	UptimeSeconds     float64           `json:"uptime_seconds"`
	Executions        ExecutionCounters `json:"executions"`
	Steps             StepCounters      `json:"steps"`
	ErrorsByClass     map[string]int64  `json:"errors_by_class,omitempty"`
	ExecutionDuration LatencySummary    `json:"execution_duration"`
	StepDuration      LatencySummary    `json:"step_duration"`
}

// Snapshot captures current counters and distribution summaries.
func (c *Collector) Snapshot() Snapshot {
	snap := Snapshot{
		UptimeSeconds: time.Since(c.startedAt).Seconds(),
		Executions: ExecutionCounters{
			Started:   c.executionsStarted.Load(),
			Completed: c.executionsCompleted.Load(),
			Failed:    c.executionsFailed.Load(),
		},
		Steps: StepCounters{
			Completed: c.stepsCompleted.Load(),
			Failed:    c.stepsFailed.Load(),
			Skipped:   c.stepsSkipped.Load(),
		},
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.errorsByClass) > 0 {
		snap.ErrorsByClass = make(map[string]int64, len(c.errorsByClass))
		for code, n := range c.errorsByClass {
			snap.ErrorsByClass[string(code)] = n
		}
	}
	snap.ExecutionDuration = summarize(c.executionHist)
	snap.StepDuration = summarize(c.stepHist)
	return snap
}

func summarize(hist *hdrhistogram.Histogram) LatencySummary {
	count := hist.TotalCount()
	if count == 0 {
		return LatencySummary{}
	}
	return LatencySummary{
		Count: count,
		MinMs: float64(hist.Min()) / 1000,
		AvgMs: hist.Mean() / 1000,
		MaxMs: float64(hist.Max()) / 1000,
		P50Ms: float64(hist.ValueAtQuantile(50)) / 1000,
		P90Ms: float64(hist.ValueAtQuantile(90)) / 1000,
		P99Ms: float64(hist.ValueAtQuantile(99)) / 1000,
	}
}

package executor

import (
	"context"
	"time"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// DefaultMaxDelay caps how long a single delay step may pause an
// execution.
const DefaultMaxDelay = 5 * time.Minute

// DelayExecutor pauses the execution for a fixed duration and passes
// the step input through unchanged.
type DelayExecutor struct {
	BaseExecutor
	maxDelay time.Duration
}

// NewDelayExecutor creates a delay executor. A non-positive maxDelay
// falls back to DefaultMaxDelay.
func NewDelayExecutor(maxDelay time.Duration) *DelayExecutor {
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	return &DelayExecutor{
		BaseExecutor: NewBaseExecutor(types.StepKindDelay),
		maxDelay:     maxDelay,
	}
}

// Execute waits for the configured duration or until the context ends,
// whichever comes first.
func (e *DelayExecutor) Execute(ctx context.Context, step *types.StepDefinition, input map[string]any, execCtx *ExecutionContext) (*Result, error) {
	cfg := step.Delay
	if cfg == nil {
		return nil, types.NewConfigurationError("delay step missing delay configuration: " + step.ID)
	}
	if cfg.Duration <= 0 {
		return nil, types.NewConfigurationError("delay duration must be positive in step " + step.ID)
	}
	if cfg.Duration > e.maxDelay {
		return nil, types.NewConfigurationError("delay duration exceeds maximum " + e.maxDelay.String() + " in step " + step.ID)
	}

	timer := time.NewTimer(cfg.Duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}
	return &Result{Output: input}, nil
}

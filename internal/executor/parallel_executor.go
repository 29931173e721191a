package executor

import (
	"context"
	"strings"
	"sync"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/retry"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// ParallelExecutor runs the sub-steps of a parallel block concurrently
// and joins on all of them. Every sub-step receives the parallel step's
// own input. One sub-step failure fails the whole block and the sibling
// outputs are discarded; siblings are not force-cancelled and run to
// their own completion before the block reports the failure.
type ParallelExecutor struct {
	BaseExecutor
	dispatch DispatchFunc
}

// NewParallelExecutor creates a parallel executor. The dispatch function
// runs each sub-step through the full execution pipeline.
func NewParallelExecutor(dispatch DispatchFunc) *ParallelExecutor {
	return &ParallelExecutor{
		BaseExecutor: NewBaseExecutor(types.StepKindParallel),
		dispatch:     dispatch,
	}
}

// Execute runs all sub-steps and collects their outputs under the
// "steps" key, keyed by sub-step id.
func (e *ParallelExecutor) Execute(ctx context.Context, step *types.StepDefinition, input map[string]any, execCtx *ExecutionContext) (*Result, error) {
	cfg := step.Parallel
	if cfg == nil {
		return nil, types.NewConfigurationError("parallel step missing parallel configuration: " + step.ID)
	}
	if len(cfg.Steps) == 0 {
		return nil, types.NewConfigurationError("parallel step has no sub-steps: " + step.ID)
	}
	if e.dispatch == nil {
		return nil, types.NewConfigurationError("parallel executor has no dispatcher")
	}

	n := len(cfg.Steps)
	var sem chan struct{}
	if cfg.MaxConcurrent > 0 && cfg.MaxConcurrent < n {
		sem = make(chan struct{}, cfg.MaxConcurrent)
	}

	results := make([]*Result, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := range cfg.Steps {
		wg.Add(1)
		go func(i int, sub *types.StepDefinition) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = e.failf(sub.ID, "sub-step panicked: %v", r)
				}
			}()
			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					errs[i] = ctx.Err()
					return
				}
			}
			results[i], errs[i] = e.dispatch(ctx, sub, input, execCtx)
		}(i, &cfg.Steps[i])
	}
	wg.Wait()

	// The first failure in declaration order decides classification; the
	// message still names every failed sub-step.
	var failed []string
	var firstErr error
	for i, err := range errs {
		if err == nil {
			continue
		}
		failed = append(failed, cfg.Steps[i].ID)
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		stepErr := e.failf(step.ID, "sub-steps failed (%s): %s", strings.Join(failed, ", "), firstErr.Error()).
			WithCause(firstErr)
		if retry.IsRetryable(firstErr) {
			stepErr.MarkRetryable()
		}
		return nil, stepErr
	}

	stepsOut := make(map[string]any, n)
	for i := range cfg.Steps {
		var out map[string]any
		if results[i] != nil {
			out = results[i].Output
		}
		if out == nil {
			out = map[string]any{}
		}
		stepsOut[cfg.Steps[i].ID] = out
	}
	return &Result{Output: map[string]any{
		"steps": stepsOut,
		"count": n,
	}}, nil
}

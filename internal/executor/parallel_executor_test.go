package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

func parallelStep(maxConcurrent int, subIDs ...string) *types.StepDefinition {
	subs := make([]types.StepDefinition, len(subIDs))
	for i, id := range subIDs {
		subs[i] = types.StepDefinition{ID: id, Kind: types.StepKindTransform}
	}
	return &types.StepDefinition{
		ID:       "fanout",
		Kind:     types.StepKindParallel,
		Parallel: &types.ParallelConfig{Steps: subs, MaxConcurrent: maxConcurrent},
	}
}

func TestParallelExecutorRunsAllSubSteps(t *testing.T) {
	dispatch := func(ctx context.Context, sub *types.StepDefinition, input map[string]any, execCtx *ExecutionContext) (*Result, error) {
		return &Result{Output: map[string]any{"id": sub.ID, "seen": input["root"]}}, nil
	}
	exec := NewParallelExecutor(dispatch)
	execCtx := NewExecutionContext("exec-1", "wf-1", nil)

	res, err := exec.Execute(context.Background(), parallelStep(0, "a", "b", "c"), map[string]any{"root": true}, execCtx)
	require.NoError(t, err)

	steps, ok := res.Output["steps"].(map[string]any)
	require.True(t, ok)
	require.Len(t, steps, 3)
	assert.Equal(t, 3, res.Output["count"])
	for _, id := range []string{"a", "b", "c"} {
		out, ok := steps[id].(map[string]any)
		require.True(t, ok, "missing output for %s", id)
		assert.Equal(t, id, out["id"])
		// Every sub-step receives the block's own input.
		assert.Equal(t, true, out["seen"])
	}
}

func TestParallelExecutorBoundsConcurrency(t *testing.T) {
	var mu sync.Mutex
	inFlight, maxSeen := 0, 0

	dispatch := func(ctx context.Context, sub *types.StepDefinition, input map[string]any, execCtx *ExecutionContext) (*Result, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxSeen {
			maxSeen = inFlight
		}
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return &Result{Output: map[string]any{}}, nil
	}
	exec := NewParallelExecutor(dispatch)
	execCtx := NewExecutionContext("exec-1", "wf-1", nil)

	_, err := exec.Execute(context.Background(), parallelStep(2, "a", "b", "c", "d", "e", "f"), nil, execCtx)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, maxSeen, 2)
	assert.Positive(t, maxSeen)
}

func TestParallelExecutorFailureFailsBlock(t *testing.T) {
	dispatch := func(ctx context.Context, sub *types.StepDefinition, input map[string]any, execCtx *ExecutionContext) (*Result, error) {
		if sub.ID == "b" {
			return nil, errors.New("dial tcp: connection refused")
		}
		return &Result{Output: map[string]any{"id": sub.ID}}, nil
	}
	exec := NewParallelExecutor(dispatch)
	execCtx := NewExecutionContext("exec-1", "wf-1", nil)

	res, err := exec.Execute(context.Background(), parallelStep(0, "a", "b", "c"), nil, execCtx)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, types.IsStepExecutionError(err))
	assert.True(t, types.IsRetryableStepError(err))
	assert.Contains(t, err.Error(), "b")
}

func TestParallelExecutorFirstDeclaredFailureWins(t *testing.T) {
	dispatch := func(ctx context.Context, sub *types.StepDefinition, input map[string]any, execCtx *ExecutionContext) (*Result, error) {
		return nil, errors.New("failure in " + sub.ID)
	}
	exec := NewParallelExecutor(dispatch)
	execCtx := NewExecutionContext("exec-1", "wf-1", nil)

	_, err := exec.Execute(context.Background(), parallelStep(0, "early", "late"), nil, execCtx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failure in early")
}

func TestParallelExecutorSubStepRetryabilityPropagates(t *testing.T) {
	dispatch := func(ctx context.Context, sub *types.StepDefinition, input map[string]any, execCtx *ExecutionContext) (*Result, error) {
		return nil, types.NewStepExecutionError(sub.ID, types.StepKindAgent, "bad payload")
	}
	exec := NewParallelExecutor(dispatch)
	execCtx := NewExecutionContext("exec-1", "wf-1", nil)

	_, err := exec.Execute(context.Background(), parallelStep(0, "a"), nil, execCtx)
	require.Error(t, err)
	assert.True(t, types.IsStepExecutionError(err))
	assert.False(t, types.IsRetryableStepError(err))
}

func TestParallelExecutorCapturesSubStepPanic(t *testing.T) {
	dispatch := func(ctx context.Context, sub *types.StepDefinition, input map[string]any, execCtx *ExecutionContext) (*Result, error) {
		if sub.ID == "boom" {
			panic("executor bug")
		}
		return &Result{Output: map[string]any{}}, nil
	}
	exec := NewParallelExecutor(dispatch)
	execCtx := NewExecutionContext("exec-1", "wf-1", nil)

	_, err := exec.Execute(context.Background(), parallelStep(0, "ok", "boom"), nil, execCtx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestParallelExecutorValidation(t *testing.T) {
	dispatch := func(ctx context.Context, sub *types.StepDefinition, input map[string]any, execCtx *ExecutionContext) (*Result, error) {
		return &Result{}, nil
	}
	execCtx := NewExecutionContext("exec-1", "wf-1", nil)

	exec := NewParallelExecutor(dispatch)
	_, err := exec.Execute(context.Background(), &types.StepDefinition{ID: "fanout", Kind: types.StepKindParallel}, nil, execCtx)
	assert.True(t, types.IsConfigurationError(err))

	_, err = exec.Execute(context.Background(), parallelStep(0), nil, execCtx)
	assert.True(t, types.IsConfigurationError(err))

	noDispatch := NewParallelExecutor(nil)
	_, err = noDispatch.Execute(context.Background(), parallelStep(0, "a"), nil, execCtx)
	assert.True(t, types.IsConfigurationError(err))
}

package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/agent"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/breaker"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/cache"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/store"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

type scriptedInvoker struct {
	mu    sync.Mutex
	calls int
	fn    func(kind string, input map[string]any) (*agent.Result, error)
}

func (s *scriptedInvoker) Invoke(ctx context.Context, kind string, input, execCtx, config map[string]any) (*agent.Result, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.fn(kind, input)
}

func (s *scriptedInvoker) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func agentStep(kind string) *types.StepDefinition {
	return &types.StepDefinition{
		ID:    "analyze",
		Kind:  types.StepKindAgent,
		Agent: &types.AgentConfig{Kind: kind},
	}
}

func TestAgentExecutorSuccess(t *testing.T) {
	inv := &scriptedInvoker{fn: func(kind string, input map[string]any) (*agent.Result, error) {
		return &agent.Result{Success: true, Output: map[string]any{"oee": 0.72}}, nil
	}}
	exec := NewAgentExecutor(inv, nil, nil)
	execCtx := NewExecutionContext("exec-1", "wf-1", nil)

	res, err := exec.Execute(context.Background(), agentStep("oee-calculator"), map[string]any{"good_count": 950.0}, execCtx)
	require.NoError(t, err)
	assert.Equal(t, 0.72, res.Output["oee"])
	assert.Equal(t, 1, inv.callCount())
}

func TestAgentExecutorMissingConfig(t *testing.T) {
	exec := NewAgentExecutor(&scriptedInvoker{}, nil, nil)
	execCtx := NewExecutionContext("exec-1", "wf-1", nil)

	step := &types.StepDefinition{ID: "analyze", Kind: types.StepKindAgent}
	_, err := exec.Execute(context.Background(), step, nil, execCtx)
	require.Error(t, err)
	assert.True(t, types.IsConfigurationError(err))
}

func TestAgentExecutorRejectionIsFatal(t *testing.T) {
	inv := &scriptedInvoker{fn: func(kind string, input map[string]any) (*agent.Result, error) {
		return &agent.Result{Success: false, Error: "total_count must be positive"}, nil
	}}
	exec := NewAgentExecutor(inv, nil, nil)
	execCtx := NewExecutionContext("exec-1", "wf-1", nil)

	_, err := exec.Execute(context.Background(), agentStep("oee-calculator"), nil, execCtx)
	require.Error(t, err)
	assert.True(t, types.IsStepExecutionError(err))
	assert.False(t, types.IsRetryableStepError(err))
	assert.Contains(t, err.Error(), "total_count must be positive")
}

func TestAgentExecutorTransportErrorClassification(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"connection refused", errors.New("dial tcp 10.0.0.4:9000: connection refused"), true},
		{"gateway timeout", errors.New("upstream: gateway timeout"), true},
		{"schema mismatch", errors.New("schema mismatch"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inv := &scriptedInvoker{fn: func(kind string, input map[string]any) (*agent.Result, error) {
				return nil, tc.err
			}}
			exec := NewAgentExecutor(inv, nil, nil)
			execCtx := NewExecutionContext("exec-1", "wf-1", nil)

			_, err := exec.Execute(context.Background(), agentStep("quality-analyzer"), nil, execCtx)
			require.Error(t, err)
			assert.True(t, types.IsStepExecutionError(err))
			assert.Equal(t, tc.retryable, types.IsRetryableStepError(err))
		})
	}
}

func TestAgentExecutorBreakerOpensAndShortCircuits(t *testing.T) {
	inv := &scriptedInvoker{fn: func(kind string, input map[string]any) (*agent.Result, error) {
		return nil, errors.New("connection refused")
	}}
	breakers := breaker.NewRegistry(breaker.Config{
		Window:           time.Minute,
		Buckets:          6,
		FailureThreshold: 0.5,
		MinRequests:      2,
		Cooldown:         time.Minute,
	})
	exec := NewAgentExecutor(inv, breakers, nil)
	execCtx := NewExecutionContext("exec-1", "wf-1", nil)
	step := agentStep("downtime-analyzer")

	for i := 0; i < 2; i++ {
		_, err := exec.Execute(context.Background(), step, nil, execCtx)
		require.Error(t, err)
		assert.True(t, types.IsRetryableStepError(err))
	}
	require.Equal(t, 2, inv.callCount())

	// The breaker is open now: the invoker must not be reached.
	_, err := exec.Execute(context.Background(), step, nil, execCtx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, breaker.ErrOpen))
	assert.True(t, types.IsRetryableStepError(err))
	assert.Equal(t, 2, inv.callCount())
}

func TestAgentExecutorCachesDeterministicKinds(t *testing.T) {
	inv := &scriptedInvoker{fn: func(kind string, input map[string]any) (*agent.Result, error) {
		return &agent.Result{Success: true, Output: map[string]any{"oee": 0.81}}, nil
	}}
	resultCache := cache.New(store.NewMemoryStore(), time.Minute, []string{"oee-calculator"})
	exec := NewAgentExecutor(inv, nil, resultCache)
	execCtx := NewExecutionContext("exec-1", "wf-1", nil)
	step := agentStep("oee-calculator")
	input := map[string]any{"good_count": 950.0, "total_count": 1000.0}

	first, err := exec.Execute(context.Background(), step, input, execCtx)
	require.NoError(t, err)
	second, err := exec.Execute(context.Background(), step, input, execCtx)
	require.NoError(t, err)

	assert.Equal(t, 1, inv.callCount())
	assert.Equal(t, first.Output, second.Output)

	// A different input misses the cache.
	_, err = exec.Execute(context.Background(), step, map[string]any{"good_count": 10.0}, execCtx)
	require.NoError(t, err)
	assert.Equal(t, 2, inv.callCount())
}

func TestAgentExecutorDoesNotCacheUnlistedKinds(t *testing.T) {
	inv := &scriptedInvoker{fn: func(kind string, input map[string]any) (*agent.Result, error) {
		return &agent.Result{Success: true, Output: map[string]any{"insight": "ok"}}, nil
	}}
	resultCache := cache.New(store.NewMemoryStore(), time.Minute, []string{"oee-calculator"})
	exec := NewAgentExecutor(inv, nil, resultCache)
	execCtx := NewExecutionContext("exec-1", "wf-1", nil)
	step := agentStep("insight-generator")

	for i := 0; i < 2; i++ {
		_, err := exec.Execute(context.Background(), step, map[string]any{"q": 1.0}, execCtx)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, inv.callCount())
}

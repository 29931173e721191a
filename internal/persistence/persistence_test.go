package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

func sampleDefinition() *types.WorkflowDefinition {
	return &types.WorkflowDefinition{
		ID:      "shift-analysis",
		Version: "1.0.0",
		Steps: []types.StepDefinition{
			{ID: "calc", Kind: types.StepKindAgent, Agent: &types.AgentConfig{Kind: "oee-calculator"}},
			{ID: "check", Kind: types.StepKindCondition, DependsOn: []string{"calc"}, Condition: &types.ConditionConfig{Expression: "data.oee < 0.6"}},
			{ID: "notify", Kind: types.StepKindWebhook, DependsOn: []string{"check"}, Webhook: &types.WebhookConfig{URL: "https://hooks.example.com/x"}},
		},
	}
}

func sampleExecution() *types.WorkflowExecution {
	exec := types.NewWorkflowExecution("exec-42", sampleDefinition(), map[string]any{"line": "L4"})

	calc := exec.StepByID("calc")
	calc.Start(map[string]any{"line": "L4"})
	calc.Complete(map[string]any{"oee": 0.55})

	check := exec.StepByID("check")
	check.Start(map[string]any{"oee": 0.55})
	check.FailWith(types.ToExecutionError(
		types.NewStepExecutionError("check", types.StepKindCondition, "boom").MarkRetryable()))

	notify := exec.StepByID("notify")
	notify.Skip("dependency check failed")

	exec.FailWith(types.ToExecutionError(
		types.NewStepExecutionError("check", types.StepKindCondition, "boom").MarkRetryable()))
	return exec
}

func TestMemoryGatewayRoundTrip(t *testing.T) {
	gw := NewMemoryGateway()
	ctx := context.Background()
	exec := sampleExecution()

	require.NoError(t, gw.SaveExecutionState(ctx, exec))
	loaded, err := gw.LoadExecution(ctx, "exec-42")
	require.NoError(t, err)

	assert.Equal(t, exec.ID, loaded.ID)
	assert.Equal(t, exec.WorkflowID, loaded.WorkflowID)
	assert.Equal(t, types.ExecutionStatusFailed, loaded.Status)
	assert.Equal(t, map[string]any{"line": "L4"}, loaded.Input)
	require.NotNil(t, loaded.Error)
	assert.Equal(t, types.ErrCodeStepExecution, loaded.Error.Code)
	assert.True(t, loaded.Error.Retryable)

	require.Len(t, loaded.Steps, 3)
	assert.Equal(t, types.StepStatusCompleted, loaded.Steps[0].Status)
	assert.Equal(t, types.StepStatusFailed, loaded.Steps[1].Status)
	assert.Equal(t, types.StepStatusSkipped, loaded.Steps[2].Status)
	assert.Equal(t, []string{"dependency check failed"}, loaded.Steps[2].Logs)
	assert.Equal(t, 1, loaded.Metrics.Completed)
	assert.Equal(t, 1, loaded.Metrics.Failed)
	assert.Equal(t, 1, loaded.Metrics.Skipped)
}

func TestMemoryGatewayReturnsCopies(t *testing.T) {
	gw := NewMemoryGateway()
	ctx := context.Background()
	exec := sampleExecution()
	require.NoError(t, gw.SaveExecutionState(ctx, exec))

	// Mutating the saved execution must not leak into stored state.
	exec.Steps[0].Output = map[string]any{"oee": 0.0}

	loaded, err := gw.LoadExecution(ctx, "exec-42")
	require.NoError(t, err)
	out, ok := loaded.Steps[0].Output.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0.55, out["oee"])

	// And mutating a loaded copy must not affect later loads.
	loaded.Status = types.ExecutionStatusRunning
	again, err := gw.LoadExecution(ctx, "exec-42")
	require.NoError(t, err)
	assert.Equal(t, types.ExecutionStatusFailed, again.Status)
}

func TestMemoryGatewayLatestSnapshotWins(t *testing.T) {
	gw := NewMemoryGateway()
	ctx := context.Background()

	exec := types.NewWorkflowExecution("exec-9", sampleDefinition(), nil)
	require.NoError(t, gw.SaveExecutionState(ctx, exec))

	loaded, err := gw.LoadExecution(ctx, "exec-9")
	require.NoError(t, err)
	assert.Equal(t, types.ExecutionStatusRunning, loaded.Status)

	exec.Complete(map[string]any{"calc": map[string]any{"oee": 0.9}})
	require.NoError(t, gw.SaveExecutionState(ctx, exec))

	loaded, err = gw.LoadExecution(ctx, "exec-9")
	require.NoError(t, err)
	assert.Equal(t, types.ExecutionStatusCompleted, loaded.Status)
	assert.Equal(t, 1, gw.Len())
}

func TestMemoryGatewayNotFound(t *testing.T) {
	gw := NewMemoryGateway()
	_, err := gw.LoadExecution(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryGatewayRejectsAnonymousExecution(t *testing.T) {
	gw := NewMemoryGateway()
	assert.Error(t, gw.SaveExecutionState(context.Background(), nil))
	assert.Error(t, gw.SaveExecutionState(context.Background(), &types.WorkflowExecution{}))
}

func TestEncodeDecodeExecutionRows(t *testing.T) {
	started := time.Date(2026, 2, 11, 6, 30, 0, 0, time.UTC)
	completed := started.Add(90 * time.Millisecond)
	stepDone := started.Add(40 * time.Millisecond)

	exec := &types.WorkflowExecution{
		ID:          "exec-7",
		WorkflowID:  "shift-analysis",
		Version:     "2.0.0",
		Status:      types.ExecutionStatusCompleted,
		Input:       map[string]any{"line": "L1"},
		Output:      map[string]any{"calc": map[string]any{"oee": 0.8}},
		StartedAt:   started,
		CompletedAt: &completed,
		Duration:    90 * time.Millisecond,
		Metrics:     types.ExecutionMetrics{StepCount: 1, Completed: 1},
		Steps: []*types.StepExecution{
			{
				StepID:      "calc",
				Kind:        types.StepKindAgent,
				Status:      types.StepStatusCompleted,
				Attempt:     1,
				Input:       map[string]any{"line": "L1"},
				Output:      map[string]any{"oee": 0.8},
				Logs:        []string{"served from cache"},
				StartedAt:   &started,
				CompletedAt: &stepDone,
				Duration:    40 * time.Millisecond,
			},
		},
	}

	rec, rows, err := encodeExecution(exec)
	require.NoError(t, err)
	assert.Equal(t, "exec-7", rec.ID)
	assert.Equal(t, "completed", rec.Status)
	assert.Equal(t, int64(90), rec.DurationMs)
	require.Len(t, rows, 1)
	assert.Equal(t, "exec-7", rows[0].ExecutionID)
	assert.Equal(t, "calc", rows[0].StepID)
	assert.Equal(t, int64(40), rows[0].DurationMs)

	back, err := decodeExecution(rec, rows)
	require.NoError(t, err)
	assert.Equal(t, exec.ID, back.ID)
	assert.Equal(t, exec.Status, back.Status)
	assert.Equal(t, exec.Input, back.Input)
	assert.Equal(t, exec.Output, back.Output)
	assert.Equal(t, exec.Duration, back.Duration)
	assert.Equal(t, exec.Metrics, back.Metrics)
	require.Len(t, back.Steps, 1)
	assert.Equal(t, exec.Steps[0].StepID, back.Steps[0].StepID)
	assert.Equal(t, map[string]any{"oee": 0.8}, back.Steps[0].Output)
	assert.Equal(t, []string{"served from cache"}, back.Steps[0].Logs)
	assert.True(t, back.Steps[0].StartedAt.Equal(started))
	assert.Nil(t, back.Error)
}

func TestEncodeExecutionErrorColumn(t *testing.T) {
	exec := types.NewWorkflowExecution("exec-8", sampleDefinition(), nil)
	exec.FailWith(types.ToExecutionError(types.NewConfigurationError("bad definition")))

	rec, _, err := encodeExecution(exec)
	require.NoError(t, err)
	assert.Contains(t, rec.Error, "CONFIGURATION_ERROR")

	back, err := decodeExecution(rec, nil)
	require.NoError(t, err)
	require.NotNil(t, back.Error)
	assert.Equal(t, types.ErrCodeConfiguration, back.Error.Code)
}

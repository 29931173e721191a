package executor

import (
	"context"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// Executor runs workflow steps of a single kind. Implementations are
// stateless with respect to executions: everything per-run travels in
// the step input and the ExecutionContext.
type Executor interface {
	// Kind reports the step kind this executor handles.
	Kind() types.StepKind

	// Execute runs the step against the given input payload. An error
	// return means the step failed; a condition step that evaluates to
	// false is not a failure and reports Met=false on the Result instead.
	Execute(ctx context.Context, step *types.StepDefinition, input map[string]any, execCtx *ExecutionContext) (*Result, error)
}

// DispatchFunc runs a nested step through the full execution pipeline.
// The engine supplies it so composite executors can run sub-steps
// without depending on the registry.
type DispatchFunc func(ctx context.Context, step *types.StepDefinition, input map[string]any, execCtx *ExecutionContext) (*Result, error)

// Result is the outcome of a single step execution.
type Result struct {
	// Output is the step's output payload, merged into the inputs of
	// downstream steps.
	Output map[string]any

	// Outcome is set by condition steps only.
	Outcome *ConditionOutcome
}

// ConditionOutcome reports how a condition step evaluated. Met=false
// tells the caller to record the step, and every step depending solely
// on it, as skipped.
type ConditionOutcome struct {
	Expression string `json:"expression"`
	Met        bool   `json:"met"`
}

// ExecutionContext carries the shared state of one workflow execution.
// It is owned by the goroutine driving the execution: that goroutine
// alone writes step results between steps, executors only read. There
// is no lock; parallel sub-steps receive their input explicitly and
// must not touch the maps.
type ExecutionContext struct {
	ExecutionID string
	WorkflowID  string

	// Input is the sanitized workflow input payload.
	Input map[string]any

	// Results holds the output of every completed step, keyed by step id.
	Results map[string]map[string]any

	// Skipped marks steps that were recorded skipped, so input assembly
	// can exclude them.
	Skipped map[string]bool

	// Context is exposed to guard and condition expressions as the
	// context namespace.
	Context map[string]any
}

// NewExecutionContext creates the context for one execution. The input
// must already be sanitized.
func NewExecutionContext(executionID, workflowID string, input map[string]any) *ExecutionContext {
	if input == nil {
		input = map[string]any{}
	}
	return &ExecutionContext{
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		Input:       input,
		Results:     make(map[string]map[string]any),
		Skipped:     make(map[string]bool),
		Context: map[string]any{
			"execution_id": executionID,
			"workflow_id":  workflowID,
		},
	}
}

// RecordResult stores a completed step's output. Called by the driving
// goroutine only.
func (c *ExecutionContext) RecordResult(stepID string, output map[string]any) {
	if output == nil {
		output = map[string]any{}
	}
	c.Results[stepID] = output
}

// RecordSkipped marks a step as skipped. Called by the driving
// goroutine only.
func (c *ExecutionContext) RecordSkipped(stepID string) {
	c.Skipped[stepID] = true
}

// StepInput assembles the input payload for a step: the outputs of its
// dependencies merged in declaration order, with later dependencies
// winning on key conflicts. Skipped dependencies contribute nothing. A
// step with no dependency output falls back to the workflow input.
func (c *ExecutionContext) StepInput(step *types.StepDefinition) map[string]any {
	merged := make(map[string]any)
	found := false
	for _, dep := range step.DependsOn {
		out, ok := c.Results[dep]
		if !ok {
			continue
		}
		found = true
		for k, v := range out {
			merged[k] = v
		}
	}
	if !found {
		for k, v := range c.Input {
			merged[k] = v
		}
	}
	return merged
}

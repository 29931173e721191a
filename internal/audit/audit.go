// Package audit records terminal state changes of workflow executions.
// The driving loop emits one event per step that reaches a terminal
// status and one per finished execution; sinks decide where the trail
// ends up.
package audit

import (
	"time"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// Outcome is the terminal state an event records.
type Outcome string

const (
	// OutcomeCompleted marks a successful step or execution.
	OutcomeCompleted Outcome = "completed"
	// OutcomeFailed marks a failed step or execution.
	OutcomeFailed Outcome = "failed"
	// OutcomeSkipped marks a step that was never dispatched.
	OutcomeSkipped Outcome = "skipped"
)

// Event is one entry in the audit trail. StepID and Kind are empty for
// execution-level events.
type Event struct {
	ExecutionID string         `json:"execution_id"`
	WorkflowID  string         `json:"workflow_id"`
	StepID      string         `json:"step_id,omitempty"`
	Kind        types.StepKind `json:"kind,omitempty"`
	Outcome     Outcome        `json:"outcome"`
	Duration    time.Duration  `json:"duration"`
	At          time.Time      `json:"at"`
	Error       string         `json:"error,omitempty"`
}

// StepEvent builds the event for a step record that reached a terminal
// status.
func StepEvent(exec *types.WorkflowExecution, step *types.StepExecution) Event {
	event := Event{
		ExecutionID: exec.ID,
		WorkflowID:  exec.WorkflowID,
		StepID:      step.StepID,
		Kind:        step.Kind,
		Outcome:     stepOutcome(step.Status),
		Duration:    step.Duration,
		At:          time.Now(),
	}
	if step.Error != nil {
		event.Error = step.Error.Error()
	}
	return event
}

// ExecutionEvent builds the event for a finished execution.
func ExecutionEvent(exec *types.WorkflowExecution) Event {
	event := Event{
		ExecutionID: exec.ID,
		WorkflowID:  exec.WorkflowID,
		Outcome:     OutcomeCompleted,
		Duration:    exec.Duration,
		At:          time.Now(),
	}
	if exec.Status == types.ExecutionStatusFailed {
		event.Outcome = OutcomeFailed
	}
	if exec.Error != nil {
		event.Error = exec.Error.Error()
	}
	return event
}

func stepOutcome(status types.StepStatus) Outcome {
	switch status {
	case types.StepStatusFailed:
		return OutcomeFailed
	case types.StepStatusSkipped:
		return OutcomeSkipped
	default:
		return OutcomeCompleted
	}
}

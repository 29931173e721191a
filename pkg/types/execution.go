package types

import "time"

// ExecutionStatus represents the status of a workflow execution.
type ExecutionStatus string

const (
	// ExecutionStatusRunning indicates the execution is being driven.
	ExecutionStatusRunning ExecutionStatus = "running"
	// ExecutionStatusCompleted indicates every reachable step finished
	// without failure.
	ExecutionStatusCompleted ExecutionStatus = "completed"
	// ExecutionStatusFailed indicates at least one step failed.
	ExecutionStatusFailed ExecutionStatus = "failed"
)

// StepStatus represents the status of a single step execution.
type StepStatus string

const (
	// StepStatusPending indicates the step has not started yet.
	StepStatusPending StepStatus = "pending"
	// StepStatusRunning indicates the step is executing.
	StepStatusRunning StepStatus = "running"
	// StepStatusCompleted indicates the step finished successfully.
	StepStatusCompleted StepStatus = "completed"
	// StepStatusFailed indicates the step finished with an error.
	StepStatusFailed StepStatus = "failed"
	// StepStatusSkipped indicates the step was not executed.
	StepStatusSkipped StepStatus = "skipped"
)

// IsTerminal reports whether the status is a final state.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepStatusCompleted, StepStatusFailed, StepStatusSkipped:
		return true
	}
	return false
}

// StepExecution records one step's run within a workflow execution.
// Status transitions are monotonic: Pending → Running → {Completed,
// Failed, Skipped}. Mutation methods ignore transitions out of a
// terminal state.
type StepExecution struct {
	StepID      string          `json:"step_id"`
	Kind        StepKind        `json:"kind"`
	Status      StepStatus      `json:"status"`
	Input       any             `json:"input,omitempty"`
	Output      any             `json:"output,omitempty"`
	Error       *ExecutionError `json:"error,omitempty"`
	Attempt     int             `json:"attempt"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Duration    time.Duration   `json:"duration,omitempty"`
	Logs        []string        `json:"logs,omitempty"`
}

// NewStepExecution creates a pending record for the given step.
func NewStepExecution(stepID string, kind StepKind) *StepExecution {
	return &StepExecution{
		StepID:  stepID,
		Kind:    kind,
		Status:  StepStatusPending,
		Attempt: 1,
	}
}

// Start marks the step Running and stamps the start time.
func (s *StepExecution) Start(input any) {
	if s.Status != StepStatusPending {
		return
	}
	now := time.Now()
	s.Status = StepStatusRunning
	s.StartedAt = &now
	s.Input = input
}

// Complete marks the step Completed with its output.
func (s *StepExecution) Complete(output any) {
	if s.Status.IsTerminal() {
		return
	}
	s.Status = StepStatusCompleted
	s.Output = output
	s.finish()
}

// FailWith marks the step Failed carrying the error.
func (s *StepExecution) FailWith(err *ExecutionError) {
	if s.Status.IsTerminal() {
		return
	}
	s.Status = StepStatusFailed
	s.Error = err
	s.finish()
}

// Skip marks the step Skipped, recording the reason as a log line.
// Skipping is valid straight from Pending; timings are only stamped
// when the step had already started.
func (s *StepExecution) Skip(reason string) {
	if s.Status.IsTerminal() {
		return
	}
	s.Status = StepStatusSkipped
	if reason != "" {
		s.AddLog(reason)
	}
	if s.StartedAt != nil {
		s.finish()
	}
}

// AddLog appends one audit log line to the step record.
func (s *StepExecution) AddLog(line string) {
	s.Logs = append(s.Logs, line)
}

func (s *StepExecution) finish() {
	now := time.Now()
	s.CompletedAt = &now
	if s.StartedAt != nil {
		s.Duration = now.Sub(*s.StartedAt)
	}
}

// ExecutionMetrics aggregates per-execution counters.
type ExecutionMetrics struct {
	// QueueTime is the delay between submission and the driving loop
	// taking over, lock acquisition included.
	QueueTime time.Duration `json:"queue_time,omitempty"`
	StepCount int           `json:"step_count"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	// RetryCount counts failures classified retryable; re-driving them
	// is an external responsibility.
	RetryCount int `json:"retry_count"`
}

// WorkflowExecution is the full record of one workflow run. It is owned
// by the single driving loop, handed to the persistence gateway after
// every mutation, and dropped from memory once terminal.
type WorkflowExecution struct {
	ID         string          `json:"id"`
	WorkflowID string          `json:"workflow_id"`
	Version    string          `json:"version,omitempty"`
	Status     ExecutionStatus `json:"status"`
	Input      map[string]any  `json:"input,omitempty"`
	// Output maps every Completed step's id to its output; Skipped and
	// Failed steps are absent.
	Output      map[string]any   `json:"output,omitempty"`
	Error       *ExecutionError  `json:"error,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Duration    time.Duration    `json:"duration,omitempty"`
	Steps       []*StepExecution `json:"steps"`
	Metrics     ExecutionMetrics `json:"metrics"`
}

// NewWorkflowExecution creates a Running execution with one Pending step
// record per definition step, in definition order.
func NewWorkflowExecution(id string, def *WorkflowDefinition, input map[string]any) *WorkflowExecution {
	steps := make([]*StepExecution, 0, len(def.Steps))
	for i := range def.Steps {
		steps = append(steps, NewStepExecution(def.Steps[i].ID, def.Steps[i].Kind))
	}
	return &WorkflowExecution{
		ID:         id,
		WorkflowID: def.ID,
		Version:    def.Version,
		Status:     ExecutionStatusRunning,
		Input:      input,
		StartedAt:  time.Now(),
		Steps:      steps,
		Metrics:    ExecutionMetrics{StepCount: len(def.Steps)},
	}
}

// StepByID returns the step record with the given id, or nil.
func (e *WorkflowExecution) StepByID(stepID string) *StepExecution {
	for _, s := range e.Steps {
		if s.StepID == stepID {
			return s
		}
	}
	return nil
}

// IsTerminal reports whether the execution reached a final status.
func (e *WorkflowExecution) IsTerminal() bool {
	return e.Status == ExecutionStatusCompleted || e.Status == ExecutionStatusFailed
}

// Complete finalizes the execution as Completed with the collected output.
func (e *WorkflowExecution) Complete(output map[string]any) {
	if e.IsTerminal() {
		return
	}
	e.Status = ExecutionStatusCompleted
	e.Output = output
	e.finish()
}

// FailWith finalizes the execution as Failed carrying the error.
func (e *WorkflowExecution) FailWith(err *ExecutionError) {
	if e.IsTerminal() {
		return
	}
	e.Status = ExecutionStatusFailed
	e.Error = err
	e.finish()
}

func (e *WorkflowExecution) finish() {
	now := time.Now()
	e.CompletedAt = &now
	e.Duration = now.Sub(e.StartedAt)
	e.Metrics.Completed = 0
	e.Metrics.Failed = 0
	e.Metrics.Skipped = 0
	for _, s := range e.Steps {
		switch s.Status {
		case StepStatusCompleted:
			e.Metrics.Completed++
		case StepStatusFailed:
			e.Metrics.Failed++
		case StepStatusSkipped:
			e.Metrics.Skipped++
		}
	}
}

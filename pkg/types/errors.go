package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode classifies workflow-level errors.
type ErrorCode string

const (
	// ErrCodeConfiguration indicates an invalid definition: unknown step
	// kind or transformer, forbidden identifier, malformed config.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"
	// ErrCodeCycle indicates a dependency cycle in the definition.
	ErrCodeCycle ErrorCode = "CYCLE_DETECTED"
	// ErrCodeStepExecution indicates a failure raised by step logic.
	ErrCodeStepExecution ErrorCode = "STEP_EXECUTION_ERROR"
	// ErrCodeLockAcquisition indicates the distributed lock was denied
	// after exhausting retries; the execution never started.
	ErrCodeLockAcquisition ErrorCode = "LOCK_ACQUISITION_FAILED"
	// ErrCodeEvaluation indicates an expression exceeded the grammar or
	// its limits.
	ErrCodeEvaluation ErrorCode = "EVALUATION_ERROR"
)

// ConfigurationError is a fatal definition-level error. It is rejected
// before or at the point of occurrence and never retried.
type ConfigurationError struct {
	Message string
	StepID  string
	Cause   error
}

// NewConfigurationError creates a configuration error.
func NewConfigurationError(message string) *ConfigurationError {
	return &ConfigurationError{Message: message}
}

// WithStep attaches the offending step id.
func (e *ConfigurationError) WithStep(stepID string) *ConfigurationError {
	e.StepID = stepID
	return e
}

// WithCause attaches an underlying cause.
func (e *ConfigurationError) WithCause(cause error) *ConfigurationError {
	e.Cause = cause
	return e
}

func (e *ConfigurationError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("configuration error in step %s: %s", e.StepID, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// CycleError reports a dependency cycle, naming a step inside it.
type CycleError struct {
	StepID string
}

// NewCycleError creates a cycle error for the given step.
func NewCycleError(stepID string) *CycleError {
	return &CycleError{StepID: stepID}
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected involving step: %s", e.StepID)
}

// StepExecutionError is raised by step logic. Retryable marks whether an
// external redelivery mechanism may re-drive the step; the engine itself
// never does.
type StepExecutionError struct {
	StepID    string
	Kind      StepKind
	Message   string
	Retryable bool
	Cause     error
}

// NewStepExecutionError creates a step execution error.
func NewStepExecutionError(stepID string, kind StepKind, message string) *StepExecutionError {
	return &StepExecutionError{StepID: stepID, Kind: kind, Message: message}
}

// WithCause attaches the underlying cause.
func (e *StepExecutionError) WithCause(cause error) *StepExecutionError {
	e.Cause = cause
	return e
}

// MarkRetryable flags the error as retryable by an external mechanism.
func (e *StepExecutionError) MarkRetryable() *StepExecutionError {
	e.Retryable = true
	return e
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %s (%s) failed: %s", e.StepID, e.Kind, e.Message)
}

func (e *StepExecutionError) Unwrap() error {
	return e.Cause
}

// LockAcquisitionError reports that the distributed lock could not be
// acquired within the retry budget. The caller could not start; this is
// not a workflow failure.
type LockAcquisitionError struct {
	Key      string
	Attempts int
	Cause    error
}

// NewLockAcquisitionError creates a lock acquisition error.
func NewLockAcquisitionError(key string, attempts int) *LockAcquisitionError {
	return &LockAcquisitionError{Key: key, Attempts: attempts}
}

// WithCause attaches the underlying cause.
func (e *LockAcquisitionError) WithCause(cause error) *LockAcquisitionError {
	e.Cause = cause
	return e
}

func (e *LockAcquisitionError) Error() string {
	return fmt.Sprintf("failed to acquire lock %s after %d attempts", e.Key, e.Attempts)
}

func (e *LockAcquisitionError) Unwrap() error {
	return e.Cause
}

// IsConfigurationError reports whether err is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsCycleError reports whether err is a CycleError.
func IsCycleError(err error) bool {
	var target *CycleError
	return errors.As(err, &target)
}

// IsStepExecutionError reports whether err is a StepExecutionError.
func IsStepExecutionError(err error) bool {
	var target *StepExecutionError
	return errors.As(err, &target)
}

// IsRetryableStepError reports whether err is a StepExecutionError
// flagged retryable.
func IsRetryableStepError(err error) bool {
	var target *StepExecutionError
	return errors.As(err, &target) && target.Retryable
}

// IsLockAcquisitionError reports whether err is a LockAcquisitionError.
func IsLockAcquisitionError(err error) bool {
	var target *LockAcquisitionError
	return errors.As(err, &target)
}

// ExecutionError is the serializable error snapshot recorded on
// execution and step records.
type ExecutionError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	StepID    string    `json:"step_id,omitempty"`
	Retryable bool      `json:"retryable,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Cause     error     `json:"-"`
}

func (e *ExecutionError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("[%s] step %s: %s", e.Code, e.StepID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// ToExecutionError converts any error into its serializable snapshot,
// preserving the taxonomy code, step id, and retryable classification.
func ToExecutionError(err error) *ExecutionError {
	if err == nil {
		return nil
	}
	snap := &ExecutionError{
		Code:      ErrCodeStepExecution,
		Message:   err.Error(),
		Timestamp: time.Now(),
		Cause:     err,
	}
	var (
		cfgErr  *ConfigurationError
		cycErr  *CycleError
		stepErr *StepExecutionError
		lockErr *LockAcquisitionError
		execErr *ExecutionError
	)
	switch {
	case errors.As(err, &execErr):
		return execErr
	case errors.As(err, &cfgErr):
		snap.Code = ErrCodeConfiguration
		snap.StepID = cfgErr.StepID
	case errors.As(err, &cycErr):
		snap.Code = ErrCodeCycle
		snap.StepID = cycErr.StepID
	case errors.As(err, &stepErr):
		snap.Code = ErrCodeStepExecution
		snap.StepID = stepErr.StepID
		snap.Retryable = stepErr.Retryable
	case errors.As(err, &lockErr):
		snap.Code = ErrCodeLockAcquisition
	}
	return snap
}

package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigurationError(t *testing.T) {
	cause := errors.New("unknown transformer: reticulate")
	err := NewConfigurationError("unknown transformer: reticulate").
		WithStep("xform-1").
		WithCause(cause)

	assert.Contains(t, err.Error(), "xform-1")
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsConfigurationError(err))
	assert.True(t, IsConfigurationError(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsConfigurationError(errors.New("plain")))
}

func TestCycleError(t *testing.T) {
	err := NewCycleError("aggregate")
	assert.Equal(t, "cycle detected involving step: aggregate", err.Error())
	assert.True(t, IsCycleError(fmt.Errorf("validate: %w", err)))
}

func TestStepExecutionErrorClassification(t *testing.T) {
	fatal := NewStepExecutionError("notify", StepKindWebhook, "status 400")
	retryable := NewStepExecutionError("notify", StepKindWebhook, "status 503").MarkRetryable()

	assert.True(t, IsStepExecutionError(fatal))
	assert.False(t, IsRetryableStepError(fatal))
	assert.True(t, IsRetryableStepError(retryable))
	assert.True(t, IsRetryableStepError(fmt.Errorf("dispatch: %w", retryable)))
}

func TestLockAcquisitionError(t *testing.T) {
	err := NewLockAcquisitionError("workflow:execution:e-9", 5)
	assert.Contains(t, err.Error(), "e-9")
	assert.Contains(t, err.Error(), "5 attempts")
	assert.True(t, IsLockAcquisitionError(err))
	assert.False(t, IsStepExecutionError(err))
}

func TestToExecutionError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      ErrorCode
		stepID    string
		retryable bool
	}{
		{
			name:   "configuration",
			err:    NewConfigurationError("bad kind").WithStep("s1"),
			code:   ErrCodeConfiguration,
			stepID: "s1",
		},
		{
			name:   "cycle",
			err:    NewCycleError("s2"),
			code:   ErrCodeCycle,
			stepID: "s2",
		},
		{
			name:      "retryable step failure",
			err:       NewStepExecutionError("s3", StepKindAgent, "connection refused").MarkRetryable(),
			code:      ErrCodeStepExecution,
			stepID:    "s3",
			retryable: true,
		},
		{
			name: "lock",
			err:  NewLockAcquisitionError("k", 3),
			code: ErrCodeLockAcquisition,
		},
		{
			name: "plain error defaults to step execution",
			err:  errors.New("boom"),
			code: ErrCodeStepExecution,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := ToExecutionError(tt.err)
			require.NotNil(t, snap)
			assert.Equal(t, tt.code, snap.Code)
			assert.Equal(t, tt.stepID, snap.StepID)
			assert.Equal(t, tt.retryable, snap.Retryable)
			assert.False(t, snap.Timestamp.IsZero())
		})
	}

	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, ToExecutionError(nil))
	})

	t.Run("snapshot passes through", func(t *testing.T) {
		orig := &ExecutionError{Code: ErrCodeEvaluation, Message: "limit"}
		assert.Same(t, orig, ToExecutionError(orig))
	})
}

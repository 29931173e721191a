package executor

import (
	"fmt"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// BaseExecutor carries the kind bookkeeping every executor embeds.
type BaseExecutor struct {
	kind types.StepKind
}

// NewBaseExecutor creates a base for the given step kind.
func NewBaseExecutor(kind types.StepKind) BaseExecutor {
	return BaseExecutor{kind: kind}
}

// Kind reports the step kind this executor handles.
func (b BaseExecutor) Kind() types.StepKind {
	return b.kind
}

// failf builds a step execution error for this executor's kind.
func (b BaseExecutor) failf(stepID, format string, args ...any) *types.StepExecutionError {
	return types.NewStepExecutionError(stepID, b.kind, fmt.Sprintf(format, args...))
}

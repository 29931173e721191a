package executor

import (
	"context"
	"errors"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/expression"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// ConditionExecutor evaluates condition steps. A condition that comes
// out false is a normal outcome, not a failure: the result reports
// Met=false and the engine applies skip semantics.
type ConditionExecutor struct {
	BaseExecutor
	evaluator *expression.Evaluator
}

// NewConditionExecutor creates a condition executor.
func NewConditionExecutor(evaluator *expression.Evaluator) *ConditionExecutor {
	return &ConditionExecutor{
		BaseExecutor: NewBaseExecutor(types.StepKindCondition),
		evaluator:    evaluator,
	}
}

// Execute evaluates the step's expression against the input and the
// execution context.
func (e *ConditionExecutor) Execute(ctx context.Context, step *types.StepDefinition, input map[string]any, execCtx *ExecutionContext) (*Result, error) {
	cfg := step.Condition
	if cfg == nil {
		return nil, types.NewConfigurationError("condition step missing condition configuration: " + step.ID)
	}

	met, err := e.evaluator.EvaluateBool(cfg.Expression, input, execCtx.Context)
	if err != nil {
		if isDefinitionError(err) {
			return nil, types.NewConfigurationError("invalid condition expression in step " + step.ID).WithCause(err)
		}
		return nil, e.failf(step.ID, "condition evaluation failed: %s", err.Error()).WithCause(err)
	}

	outcome := &ConditionOutcome{Expression: cfg.Expression, Met: met}
	return &Result{
		Output: map[string]any{
			"expression": cfg.Expression,
			"met":        met,
		},
		Outcome: outcome,
	}, nil
}

// isDefinitionError reports whether an expression error comes from the
// expression text itself rather than the data it ran against.
func isDefinitionError(err error) bool {
	var parseErr *expression.ParseError
	var forbiddenErr *expression.ForbiddenIdentifierError
	var limitErr *expression.LimitError
	return errors.As(err, &parseErr) || errors.As(err, &forbiddenErr) || errors.As(err, &limitErr)
}

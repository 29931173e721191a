package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

type stubExecutor struct {
	kind types.StepKind
}

func (s *stubExecutor) Kind() types.StepKind {
	return s.kind
}

func (s *stubExecutor) Execute(ctx context.Context, step *types.StepDefinition, input map[string]any, execCtx *ExecutionContext) (*Result, error) {
	return &Result{Output: map[string]any{"kind": string(s.kind)}}, nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	exec := &stubExecutor{kind: types.StepKindTransform}

	require.NoError(t, reg.Register(exec))
	assert.Same(t, exec, reg.Get(types.StepKindTransform))
	assert.True(t, reg.Has(types.StepKindTransform))
	assert.Nil(t, reg.Get(types.StepKindAgent))
}

func TestRegistryRejectsInvalidRegistrations(t *testing.T) {
	reg := NewRegistry()

	err := reg.Register(nil)
	assert.True(t, types.IsConfigurationError(err))

	err = reg.Register(&stubExecutor{kind: ""})
	assert.True(t, types.IsConfigurationError(err))

	require.NoError(t, reg.Register(&stubExecutor{kind: types.StepKindDelay}))
	err = reg.Register(&stubExecutor{kind: types.StepKindDelay})
	require.Error(t, err)
	assert.True(t, types.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "delay")
}

func TestRegistryGetOrError(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&stubExecutor{kind: types.StepKindAgent}))

	exec, err := reg.GetOrError(types.StepKindAgent)
	require.NoError(t, err)
	assert.Equal(t, types.StepKindAgent, exec.Kind())

	_, err = reg.GetOrError(types.StepKindWebhook)
	require.Error(t, err)
	assert.True(t, types.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "webhook")
}

func TestRegistryKindsSortedAndCount(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&stubExecutor{kind: types.StepKindWebhook})
	reg.MustRegister(&stubExecutor{kind: types.StepKindAgent})
	reg.MustRegister(&stubExecutor{kind: types.StepKindDelay})

	assert.Equal(t, []types.StepKind{
		types.StepKindAgent,
		types.StepKindDelay,
		types.StepKindWebhook,
	}, reg.Kinds())
	assert.Equal(t, 3, reg.Count())
}

func TestMustRegisterPanicsOnDuplicate(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&stubExecutor{kind: types.StepKindCondition})

	assert.Panics(t, func() {
		reg.MustRegister(&stubExecutor{kind: types.StepKindCondition})
	})
}

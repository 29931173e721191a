package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

type recordingInvoker struct {
	lastKind string
	result   *Result
}

func (r *recordingInvoker) Invoke(_ context.Context, kind string, _, _, _ map[string]any) (*Result, error) {
	r.lastKind = kind
	return r.result, nil
}

func TestRouterExactMatch(t *testing.T) {
	local := &recordingInvoker{result: &Result{Success: true}}
	router := NewRouter().Handle(KindOEECalculator, local)

	res, err := router.Invoke(context.Background(), KindOEECalculator, nil, nil, nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, KindOEECalculator, local.lastKind)
}

func TestRouterPrefixMatch(t *testing.T) {
	remote := &recordingInvoker{result: &Result{Success: true}}
	router := NewRouter().HandlePrefix(MCPKindPrefix, remote)

	_, err := router.Invoke(context.Background(), "mcp:read-sensor", nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "mcp:read-sensor", remote.lastKind)
}

func TestRouterExactBeatsPrefix(t *testing.T) {
	exact := &recordingInvoker{result: &Result{Success: true}}
	prefixed := &recordingInvoker{result: &Result{Success: true}}
	router := NewRouter().
		Handle("mcp:special", exact).
		HandlePrefix(MCPKindPrefix, prefixed)

	_, err := router.Invoke(context.Background(), "mcp:special", nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "mcp:special", exact.lastKind)
	assert.Empty(t, prefixed.lastKind)
}

func TestRouterUnknownKind(t *testing.T) {
	router := NewRouter().Handle(KindOEECalculator, NewLocalInvoker())

	_, err := router.Invoke(context.Background(), "unheard-of", nil, nil, nil)
	require.Error(t, err)
	assert.True(t, types.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "unheard-of")
}

func TestChatInvokerRequiresModel(t *testing.T) {
	_, err := NewChatInvoker(context.Background(), ChatConfig{})
	require.Error(t, err)
	assert.True(t, types.IsConfigurationError(err))
}

func TestMCPInvokerKindValidation(t *testing.T) {
	inv := NewMCPInvoker(MCPConfig{Transport: "stdio", Command: "true"})

	_, err := inv.Invoke(context.Background(), "mcp:", nil, nil, nil)
	require.Error(t, err)
	assert.True(t, types.IsConfigurationError(err))

	_, err = inv.Invoke(context.Background(), "not-prefixed", nil, nil, nil)
	require.Error(t, err)
	assert.True(t, types.IsConfigurationError(err))
}

func TestMCPInvokerTransportValidation(t *testing.T) {
	inv := NewMCPInvoker(MCPConfig{Transport: "carrier-pigeon"})
	_, err := inv.Invoke(context.Background(), "mcp:tool", nil, nil, nil)
	require.Error(t, err)
	assert.True(t, types.IsConfigurationError(err))

	inv = NewMCPInvoker(MCPConfig{Transport: "sse"})
	_, err = inv.Invoke(context.Background(), "mcp:tool", nil, nil, nil)
	require.Error(t, err)
	assert.True(t, types.IsConfigurationError(err))

	require.NoError(t, inv.Close())
}

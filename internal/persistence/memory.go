package persistence

import (
	"context"
	"errors"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// MemoryGateway keeps execution snapshots in process memory. Snapshots
// are stored serialized, which both deep-copies them and keeps the
// fidelity identical to the database path. Useful for local runs and
// tests.
type MemoryGateway struct {
	mu         sync.RWMutex
	executions map[string][]byte
}

// NewMemoryGateway creates an empty in-memory gateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		executions: make(map[string][]byte),
	}
}

// SaveExecutionState stores a serialized snapshot of the execution.
func (g *MemoryGateway) SaveExecutionState(ctx context.Context, exec *types.WorkflowExecution) error {
	if exec == nil || exec.ID == "" {
		return errors.New("cannot persist execution without an id")
	}
	data, err := sonic.Marshal(exec)
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.executions[exec.ID] = data
	g.mu.Unlock()
	return nil
}

// LoadExecution returns a fresh copy of the stored execution.
func (g *MemoryGateway) LoadExecution(ctx context.Context, executionID string) (*types.WorkflowExecution, error) {
	g.mu.RLock()
	data, ok := g.executions[executionID]
	g.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	var exec types.WorkflowExecution
	if err := sonic.Unmarshal(data, &exec); err != nil {
		return nil, err
	}
	return &exec, nil
}

// Len reports how many executions are stored.
func (g *MemoryGateway) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.executions)
}

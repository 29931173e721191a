// Package persistence stores execution state snapshots so crashed or
// restarted processes can expose past runs.
package persistence

import (
	"context"
	"errors"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// ErrNotFound is returned when no execution exists for the id.
var ErrNotFound = errors.New("execution not found")

// Gateway persists workflow executions. SaveExecutionState receives the
// whole execution snapshot after every mutation of the driving loop and
// must be safe to call repeatedly with successive snapshots of the same
// execution.
type Gateway interface {
	SaveExecutionState(ctx context.Context, exec *types.WorkflowExecution) error
	LoadExecution(ctx context.Context, executionID string) (*types.WorkflowExecution, error)
}

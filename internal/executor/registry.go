package executor

import (
	"fmt"
	"sort"
	"sync"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// Registry maps step kinds to their executors.
type Registry struct {
	mu        sync.RWMutex
	executors map[types.StepKind]Executor
}

// NewRegistry creates an empty executor registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[types.StepKind]Executor),
	}
}

// Register adds an executor under its own kind. Registering a nil
// executor, an executor with an empty kind, or a duplicate kind is a
// configuration error.
func (r *Registry) Register(exec Executor) error {
	if exec == nil {
		return types.NewConfigurationError("cannot register nil executor")
	}
	kind := exec.Kind()
	if kind == "" {
		return types.NewConfigurationError("cannot register executor with empty kind")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.executors[kind]; exists {
		return types.NewConfigurationError(fmt.Sprintf("executor already registered for kind: %s", kind))
	}
	r.executors[kind] = exec
	return nil
}

// MustRegister is Register that panics on error. Intended for wiring at
// startup where a registration failure is a programming mistake.
func (r *Registry) MustRegister(exec Executor) {
	if err := r.Register(exec); err != nil {
		panic(err)
	}
}

// Get returns the executor for a kind, or nil when none is registered.
func (r *Registry) Get(kind types.StepKind) Executor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.executors[kind]
}

// GetOrError returns the executor for a kind, or a configuration error
// when none is registered.
func (r *Registry) GetOrError(kind types.StepKind) (Executor, error) {
	if exec := r.Get(kind); exec != nil {
		return exec, nil
	}
	return nil, types.NewConfigurationError(fmt.Sprintf("no executor registered for kind: %s", kind))
}

// Has reports whether an executor is registered for a kind.
func (r *Registry) Has(kind types.StepKind) bool {
	return r.Get(kind) != nil
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []types.StepKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]types.StepKind, 0, len(r.executors))
	for kind := range r.executors {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Count returns the number of registered executors.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.executors)
}

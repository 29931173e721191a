// Package graph builds the step dependency graph of a workflow
// definition and produces its deterministic topological order.
package graph

import (
	"fmt"
	"sort"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// Visit states for the cycle-detecting depth-first walk.
const (
	stateUnvisited = 0
	stateOnStack   = 1
	stateDone      = 2
)

// Graph is the immutable dependency graph of a workflow definition.
// Adjacency lists are kept sorted so every traversal is deterministic.
type Graph struct {
	steps      map[string]*types.StepDefinition
	deps       map[string][]string // step id -> its dependencies
	dependents map[string][]string // step id -> steps depending on it
	ids        []string            // all step ids, sorted
}

// Build validates the structural rules of the definition and constructs
// the graph: ids must be non-empty and unique, and every dependency must
// name another existing step.
func Build(steps []types.StepDefinition) (*Graph, error) {
	g := &Graph{
		steps:      make(map[string]*types.StepDefinition, len(steps)),
		deps:       make(map[string][]string, len(steps)),
		dependents: make(map[string][]string, len(steps)),
	}

	for i := range steps {
		step := &steps[i]
		if step.ID == "" {
			return nil, types.NewConfigurationError(fmt.Sprintf("step %d has an empty id", i))
		}
		if _, dup := g.steps[step.ID]; dup {
			return nil, types.NewConfigurationError("duplicate step id").WithStep(step.ID)
		}
		g.steps[step.ID] = step
		g.ids = append(g.ids, step.ID)
	}

	for _, id := range g.ids {
		step := g.steps[id]
		seen := make(map[string]struct{}, len(step.DependsOn))
		for _, dep := range step.DependsOn {
			if dep == id {
				return nil, types.NewConfigurationError("step depends on itself").WithStep(id)
			}
			if _, ok := g.steps[dep]; !ok {
				return nil, types.NewConfigurationError(
					fmt.Sprintf("depends on unknown step %q", dep)).WithStep(id)
			}
			if _, dup := seen[dep]; dup {
				continue
			}
			seen[dep] = struct{}{}
			g.deps[id] = append(g.deps[id], dep)
			g.dependents[dep] = append(g.dependents[dep], id)
		}
	}

	sort.Strings(g.ids)
	for _, adj := range []map[string][]string{g.deps, g.dependents} {
		for _, list := range adj {
			sort.Strings(list)
		}
	}

	return g, nil
}

// TopologicalOrder returns all step ids with every dependency placed
// before its dependents. A dependency cycle yields a CycleError naming
// a step inside the cycle. The order is deterministic for a given
// definition.
func (g *Graph) TopologicalOrder() ([]string, error) {
	state := make(map[string]int, len(g.ids))
	order := make([]string, 0, len(g.ids))

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case stateOnStack:
			return types.NewCycleError(id)
		case stateDone:
			return nil
		}

		state[id] = stateOnStack
		for _, dep := range g.deps[id] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[id] = stateDone
		order = append(order, id)
		return nil
	}

	for _, id := range g.ids {
		if err := visit(id); err != nil {
			return nil, err
		}
	}

	return order, nil
}

// Step returns the definition of the given step id.
func (g *Graph) Step(id string) (*types.StepDefinition, bool) {
	step, ok := g.steps[id]
	return step, ok
}

// Dependencies returns the direct dependencies of a step, sorted.
func (g *Graph) Dependencies(id string) []string {
	return g.deps[id]
}

// Dependents returns the steps that directly depend on the given step,
// sorted.
func (g *Graph) Dependents(id string) []string {
	return g.dependents[id]
}

// IDs returns all step ids, sorted.
func (g *Graph) IDs() []string {
	return g.ids
}

// Len returns the number of steps in the graph.
func (g *Graph) Len() int {
	return len(g.ids)
}

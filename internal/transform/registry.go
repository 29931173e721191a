// Package transform holds the registry of named pure data
// transformations applied by transform steps. Every transformer takes
// a sanitized input payload and a config map and returns a fresh
// output payload; none of them touch the outside world.
package transform

import (
	"sort"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/expression"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// Func is a single transformation. Implementations must not mutate
// input or config.
type Func func(input, config map[string]any) (map[string]any, error)

// Registry maps transformer names to implementations. Construct it
// fully before use; it is not safe for concurrent registration.
type Registry struct {
	transformers map[string]Func
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{transformers: make(map[string]Func)}
}

// Register adds a transformer under name.
func (r *Registry) Register(name string, fn Func) error {
	if name == "" {
		return types.NewConfigurationError("transformer name is empty")
	}
	if fn == nil {
		return types.NewConfigurationError("transformer function is nil: " + name)
	}
	if _, dup := r.transformers[name]; dup {
		return types.NewConfigurationError("transformer already registered: " + name)
	}
	r.transformers[name] = fn
	return nil
}

// MustRegister is Register that panics on error, for wiring at startup.
func (r *Registry) MustRegister(name string, fn Func) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

// Get returns the transformer registered under name.
func (r *Registry) Get(name string) (Func, bool) {
	fn, ok := r.transformers[name]
	return fn, ok
}

// Names returns all registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.transformers))
	for name := range r.transformers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered transformers.
func (r *Registry) Count() int {
	return len(r.transformers)
}

// Apply sanitizes input and config and dispatches to the named
// transformer. An unknown name is a configuration error.
func (r *Registry) Apply(name string, input, config map[string]any) (map[string]any, error) {
	fn, ok := r.transformers[name]
	if !ok {
		return nil, types.NewConfigurationError("unknown transformer: " + name)
	}

	cleanInput, err := expression.SanitizeMap(input)
	if err != nil {
		return nil, err
	}
	cleanConfig, err := expression.SanitizeMap(config)
	if err != nil {
		return nil, err
	}
	if cleanInput == nil {
		cleanInput = map[string]any{}
	}
	if cleanConfig == nil {
		cleanConfig = map[string]any{}
	}
	return fn(cleanInput, cleanConfig)
}

// Builtins returns a registry preloaded with every built-in
// transformer. Expression-driven transformers share ev.
func Builtins(ev *expression.Evaluator) *Registry {
	r := NewRegistry()
	r.MustRegister("coerce-number", coerceNumber)
	r.MustRegister("coerce-string", coerceString)
	r.MustRegister("coerce-boolean", coerceBoolean)
	r.MustRegister("uppercase", uppercaseFields)
	r.MustRegister("lowercase", lowercaseFields)
	r.MustRegister("trim", trimFields)
	r.MustRegister("filter", filterItems(ev))
	r.MustRegister("map", mapItems(ev))
	r.MustRegister("group-by", groupBy)
	r.MustRegister("sort-by", sortBy)
	r.MustRegister("stats", stats)
	r.MustRegister("merge-timeseries", mergeTimeseries)
	r.MustRegister("maintenance-priority", maintenancePriority)
	r.MustRegister("extract", extract)
	return r
}

// Package agent invokes the analytics agents workflow steps delegate
// to. Local deterministic kinds run in-process; the insight generator
// talks to an LLM; mcp:-prefixed kinds call remote MCP tools.
package agent

import (
	"context"
	"strings"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// Result is the outcome of one agent invocation. A transport or
// infrastructure problem is returned as an error instead; Success=false
// means the agent ran and rejected the request, which is never
// retryable.
type Result struct {
	Success bool           `json:"success"`
	Output  map[string]any `json:"output,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func failure(msg string) *Result {
	return &Result{Success: false, Error: msg}
}

// Invoker runs one agent kind against an input payload. execCtx is the
// execution's context namespace; implementations may ignore it.
type Invoker interface {
	Invoke(ctx context.Context, kind string, input, execCtx, config map[string]any) (*Result, error)
}

type prefixRoute struct {
	prefix  string
	invoker Invoker
}

// Router dispatches agent kinds to registered invokers, exact names
// first, then prefix rules in registration order.
type Router struct {
	exact    map[string]Invoker
	prefixes []prefixRoute
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{exact: make(map[string]Invoker)}
}

// Handle routes an exact kind to inv.
func (r *Router) Handle(kind string, inv Invoker) *Router {
	r.exact[kind] = inv
	return r
}

// HandlePrefix routes every kind starting with prefix to inv.
func (r *Router) HandlePrefix(prefix string, inv Invoker) *Router {
	r.prefixes = append(r.prefixes, prefixRoute{prefix: prefix, invoker: inv})
	return r
}

// Invoke dispatches to the invoker registered for kind. An unrouted
// kind is a configuration error.
func (r *Router) Invoke(ctx context.Context, kind string, input, execCtx, config map[string]any) (*Result, error) {
	if inv, ok := r.exact[kind]; ok {
		return inv.Invoke(ctx, kind, input, execCtx, config)
	}
	for _, pr := range r.prefixes {
		if strings.HasPrefix(kind, pr.prefix) {
			return pr.invoker.Invoke(ctx, kind, input, execCtx, config)
		}
	}
	return nil, types.NewConfigurationError("unknown agent kind: " + kind)
}

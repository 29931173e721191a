package executor

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/agent"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/breaker"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/cache"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/expression"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/logger"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/retry"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// AgentExecutor runs agent steps: it invokes the configured analytical
// agent through a per-kind circuit breaker and serves repeat invocations
// of deterministic agents from the result cache.
type AgentExecutor struct {
	BaseExecutor
	invoker  agent.Invoker
	breakers *breaker.Registry
	cache    *cache.ResultCache
}

// NewAgentExecutor creates an agent executor. The breaker registry and
// the cache may be nil, which disables breaking and caching.
func NewAgentExecutor(invoker agent.Invoker, breakers *breaker.Registry, resultCache *cache.ResultCache) *AgentExecutor {
	return &AgentExecutor{
		BaseExecutor: NewBaseExecutor(types.StepKindAgent),
		invoker:      invoker,
		breakers:     breakers,
		cache:        resultCache,
	}
}

// Execute invokes the agent named by the step configuration.
func (e *AgentExecutor) Execute(ctx context.Context, step *types.StepDefinition, input map[string]any, execCtx *ExecutionContext) (*Result, error) {
	cfg := step.Agent
	if cfg == nil {
		return nil, types.NewConfigurationError("agent step missing agent configuration: " + step.ID)
	}

	clean, err := expression.SanitizeMap(input)
	if err != nil {
		return nil, e.failf(step.ID, "sanitize agent input: %s", err.Error())
	}

	cacheKey := ""
	if e.cache != nil && e.cache.CacheableAgent(cfg.Kind) {
		cacheKey, err = cache.Key(cfg.Kind, clean, cfg.Config)
		if err != nil {
			logger.Debug("agent cache key failed, invoking uncached",
				zap.String("step", step.ID),
				zap.String("agent", cfg.Kind),
				zap.Error(err))
			cacheKey = ""
		}
	}
	if cacheKey != "" {
		if hit, ok, err := e.cache.Get(ctx, cacheKey); err == nil && ok {
			logger.Debug("agent result served from cache",
				zap.String("step", step.ID),
				zap.String("agent", cfg.Kind))
			return &Result{Output: hit}, nil
		}
	}

	var res *agent.Result
	invoke := func(ctx context.Context) error {
		r, err := e.invoker.Invoke(ctx, cfg.Kind, clean, execCtx.Context, cfg.Config)
		if err != nil {
			return err
		}
		res = r
		return nil
	}

	if e.breakers != nil {
		err = e.breakers.ForKey(cfg.Kind).Do(ctx, invoke)
	} else {
		err = invoke(ctx)
	}

	switch {
	case errors.Is(err, breaker.ErrOpen):
		return nil, e.failf(step.ID, "circuit breaker open for agent kind: %s", cfg.Kind).
			MarkRetryable().WithCause(err)
	case err != nil:
		stepErr := e.failf(step.ID, "agent invocation failed: %s", err.Error()).WithCause(err)
		if retry.IsRetryable(err) {
			stepErr.MarkRetryable()
		}
		return nil, stepErr
	case res == nil:
		return nil, e.failf(step.ID, "agent returned no result: %s", cfg.Kind)
	case !res.Success:
		return nil, e.failf(step.ID, "agent rejected input: %s", res.Error)
	}

	if cacheKey != "" {
		if err := e.cache.Put(ctx, cacheKey, res.Output); err != nil {
			logger.Debug("agent result cache write failed",
				zap.String("step", step.ID),
				zap.String("agent", cfg.Kind),
				zap.Error(err))
		}
	}

	return &Result{Output: res.Output}, nil
}

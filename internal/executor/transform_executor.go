package executor

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/cache"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/expression"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/logger"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/transform"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// TransformExecutor runs transformation steps through the transformer
// registry. Transformers are pure, so every result is cacheable.
type TransformExecutor struct {
	BaseExecutor
	transforms *transform.Registry
	cache      *cache.ResultCache
}

// NewTransformExecutor creates a transform executor. The cache may be
// nil, which disables caching.
func NewTransformExecutor(transforms *transform.Registry, resultCache *cache.ResultCache) *TransformExecutor {
	return &TransformExecutor{
		BaseExecutor: NewBaseExecutor(types.StepKindTransform),
		transforms:   transforms,
		cache:        resultCache,
	}
}

// Execute applies the named transformer to the step input.
func (e *TransformExecutor) Execute(ctx context.Context, step *types.StepDefinition, input map[string]any, execCtx *ExecutionContext) (*Result, error) {
	cfg := step.Transform
	if cfg == nil {
		return nil, types.NewConfigurationError("transform step missing transform configuration: " + step.ID)
	}

	clean, err := expression.SanitizeMap(input)
	if err != nil {
		return nil, e.failf(step.ID, "sanitize transform input: %s", err.Error())
	}

	cacheKey := ""
	if e.cache != nil {
		// Namespaced so a transformer can never collide with an agent kind.
		cacheKey, err = cache.Key("transform:"+cfg.Name, clean, cfg.Config)
		if err != nil {
			logger.Debug("transform cache key failed, applying uncached",
				zap.String("step", step.ID),
				zap.String("transformer", cfg.Name),
				zap.Error(err))
			cacheKey = ""
		}
	}
	if cacheKey != "" {
		if hit, ok, err := e.cache.Get(ctx, cacheKey); err == nil && ok {
			logger.Debug("transform result served from cache",
				zap.String("step", step.ID),
				zap.String("transformer", cfg.Name))
			return &Result{Output: hit}, nil
		}
	}

	output, err := e.transforms.Apply(cfg.Name, clean, cfg.Config)
	if err != nil {
		var cfgErr *types.ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, err
		}
		return nil, e.failf(step.ID, "transformer %s failed: %s", cfg.Name, err.Error()).WithCause(err)
	}

	if cacheKey != "" {
		if err := e.cache.Put(ctx, cacheKey, output); err != nil {
			logger.Debug("transform result cache write failed",
				zap.String("step", step.ID),
				zap.String("transformer", cfg.Name),
				zap.Error(err))
		}
	}

	return &Result{Output: output}, nil
}

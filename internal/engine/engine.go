// Package engine drives workflow executions. One goroutine walks one
// execution's steps in topological order under a distributed lease,
// dispatching each step through the executor registry and handing the
// record to the persistence gateway after every mutation. Execute is
// safe to call concurrently; each call drives its own execution.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/agent"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/audit"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/breaker"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/cache"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/executor"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/expression"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/graph"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/lock"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/logger"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/metrics"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/parser"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/persistence"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/transform"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

const (
	// DefaultLockTTL is the execution lease TTL when none is configured.
	DefaultLockTTL = 30 * time.Second
	// DefaultStepTimeout bounds a single step dispatch. It must stay
	// above the delay cap so maximal delay steps can finish.
	DefaultStepTimeout = 10 * time.Minute

	lockKeyPrefix = "workflow:execution:"
)

// Options configures an Engine. Invoker, Locks and Gateway are
// required. Nil Evaluator, Transforms and Audit get working defaults;
// nil Breakers, Cache and Metrics disable those concerns.
type Options struct {
	Evaluator  *expression.Evaluator
	Transforms *transform.Registry
	Invoker    agent.Invoker
	Breakers   *breaker.Registry
	Cache      *cache.ResultCache
	Locks      *lock.Manager
	Gateway    persistence.Gateway
	Audit      audit.Sink
	Metrics    *metrics.Collector

	// WebhookClient overrides the pooled fasthttp client webhook steps
	// share.
	WebhookClient *fasthttp.Client

	LockTTL        time.Duration
	LockRetry      lock.RetryPolicy
	StepTimeout    time.Duration
	MaxDelay       time.Duration
	WebhookTimeout time.Duration

	// IDGenerator mints execution ids for Execute. Defaults to UUIDs.
	IDGenerator func() string
}

// Engine is the workflow execution state machine.
type Engine struct {
	evaluator *expression.Evaluator
	executors *executor.Registry
	locks     *lock.Manager
	gateway   persistence.Gateway
	audit     audit.Sink
	metrics   *metrics.Collector

	lockTTL     time.Duration
	lockRetry   lock.RetryPolicy
	stepTimeout time.Duration
	idgen       func() string

	mu     sync.RWMutex
	active map[string]struct{}
}

// New creates an engine and wires the full executor set from the given
// collaborators.
func New(opts Options) (*Engine, error) {
	if opts.Invoker == nil {
		return nil, fmt.Errorf("engine: agent invoker is required")
	}
	if opts.Locks == nil {
		return nil, fmt.Errorf("engine: lock manager is required")
	}
	if opts.Gateway == nil {
		return nil, fmt.Errorf("engine: persistence gateway is required")
	}

	evaluator := opts.Evaluator
	if evaluator == nil {
		evaluator = expression.NewEvaluator()
	}
	transforms := opts.Transforms
	if transforms == nil {
		transforms = transform.Builtins(evaluator)
	}
	sink := opts.Audit
	if sink == nil {
		sink = audit.NopSink{}
	}
	idgen := opts.IDGenerator
	if idgen == nil {
		idgen = uuid.NewString
	}
	lockTTL := opts.LockTTL
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	lockRetry := opts.LockRetry
	if lockRetry.Attempts == 0 && lockRetry.Interval == 0 {
		lockRetry = lock.DefaultRetryPolicy()
	}
	stepTimeout := opts.StepTimeout
	if stepTimeout <= 0 {
		stepTimeout = DefaultStepTimeout
	}

	e := &Engine{
		evaluator:   evaluator,
		locks:       opts.Locks,
		gateway:     opts.Gateway,
		audit:       sink,
		metrics:     opts.Metrics,
		lockTTL:     lockTTL,
		lockRetry:   lockRetry,
		stepTimeout: stepTimeout,
		idgen:       idgen,
		active:      make(map[string]struct{}),
	}

	registry := executor.NewRegistry()
	registry.MustRegister(executor.NewAgentExecutor(opts.Invoker, opts.Breakers, opts.Cache))
	registry.MustRegister(executor.NewTransformExecutor(transforms, opts.Cache))
	registry.MustRegister(executor.NewConditionExecutor(evaluator))
	registry.MustRegister(executor.NewParallelExecutor(e.dispatch))
	registry.MustRegister(executor.NewDelayExecutor(opts.MaxDelay))
	registry.MustRegister(executor.NewWebhookExecutor(opts.WebhookClient, opts.WebhookTimeout))
	e.executors = registry

	return e, nil
}

// Execute drives the workflow under a freshly minted execution id.
func (e *Engine) Execute(ctx context.Context, def *types.WorkflowDefinition, input map[string]any) (*types.WorkflowExecution, error) {
	return e.ExecuteWithID(ctx, e.idgen(), def, input)
}

// ExecuteWithID drives the workflow under the given execution id;
// resubmitting a failed execution reuses its id so the lease blocks
// double-driving. It returns once the execution is terminal. A Failed
// execution is returned with a nil error; the error is non-nil only
// when the run was refused before any state existed (invalid
// definition, dependency cycle, lock denied).
func (e *Engine) ExecuteWithID(ctx context.Context, executionID string, def *types.WorkflowDefinition, input map[string]any) (*types.WorkflowExecution, error) {
	if executionID == "" {
		return nil, types.NewConfigurationError("execution id is required")
	}
	submitted := time.Now()

	if err := parser.Validate(def); err != nil {
		e.observeError(err)
		return nil, err
	}
	g, err := graph.Build(def.Steps)
	if err != nil {
		e.observeError(err)
		return nil, err
	}
	order, err := g.TopologicalOrder()
	if err != nil {
		e.observeError(err)
		return nil, err
	}
	cleanInput, err := expression.SanitizeMap(input)
	if err != nil {
		cfgErr := types.NewConfigurationError("workflow input is not serializable").WithCause(err)
		e.observeError(cfgErr)
		return nil, cfgErr
	}

	lease, err := e.locks.Acquire(ctx, lockKeyPrefix+executionID, e.lockTTL, e.lockRetry)
	if err != nil {
		e.observeError(err)
		logger.Warn("could not start execution: lease denied",
			zap.String("execution_id", executionID),
			zap.String("workflow_id", def.ID),
			zap.Error(err))
		return nil, err
	}

	exec := types.NewWorkflowExecution(executionID, def, cleanInput)
	exec.Metrics.QueueTime = time.Since(submitted)
	e.addActive(executionID)
	if e.metrics != nil {
		e.metrics.ExecutionStarted()
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lease.Release(releaseCtx); err != nil {
			logger.Warn("lease release failed",
				zap.String("execution_id", executionID),
				zap.Error(err))
		}
		e.removeActive(executionID)
	}()

	logger.Info("execution started",
		zap.String("execution_id", executionID),
		zap.String("workflow_id", def.ID),
		zap.Int("steps", len(order)))
	e.persist(ctx, exec)

	execCtx := executor.NewExecutionContext(executionID, def.ID, cleanInput)
	e.run(ctx, lease, g, order, exec, execCtx)

	e.persist(ctx, exec)
	e.executionFinished(ctx, exec)
	return exec, nil
}

// Lookup returns the persisted state of an execution, live or finished.
// State is written after every mutation, so the gateway view is the
// current one. Unknown ids return persistence.ErrNotFound.
func (e *Engine) Lookup(ctx context.Context, executionID string) (*types.WorkflowExecution, error) {
	return e.gateway.LoadExecution(ctx, executionID)
}

// IsActive reports whether this instance is currently driving the
// execution.
func (e *Engine) IsActive(executionID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.active[executionID]
	return ok
}

// ActiveCount returns the number of executions this instance is
// driving.
func (e *Engine) ActiveCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.active)
}

// run walks the topological order, driving every step to a terminal
// state, then finalizes the execution status.
func (e *Engine) run(ctx context.Context, lease *lock.Lease, g *graph.Graph, order []string, exec *types.WorkflowExecution, execCtx *executor.ExecutionContext) {
	var firstFailure, abort *types.ExecutionError

walk:
	for _, stepID := range order {
		def, _ := g.Step(stepID)
		rec := exec.StepByID(stepID)

		// Another process may hold the lease now; stop before touching
		// more state.
		if lease.IsLost() {
			abort = types.ToExecutionError(
				types.NewStepExecutionError(stepID, def.Kind, "execution lease lost").MarkRetryable())
			break walk
		}

		if reason, skip := skipForDependencies(g, exec, stepID); skip {
			rec.Skip(reason)
			execCtx.RecordSkipped(stepID)
			e.persist(ctx, exec)
			e.stepFinished(ctx, exec, rec)
			continue
		}

		input := execCtx.StepInput(def)

		if def.Guard != "" {
			pass, err := e.evaluator.EvaluateBool(def.Guard, input, execCtx.Context)
			if err != nil {
				logger.Warn("guard evaluation failed, skipping step",
					zap.String("execution_id", exec.ID),
					zap.String("step", stepID),
					zap.Error(err))
				rec.Skip("guard evaluation failed: " + err.Error())
			} else if !pass {
				rec.Skip("guard not met: " + def.Guard)
			}
			if rec.Status == types.StepStatusSkipped {
				execCtx.RecordSkipped(stepID)
				e.persist(ctx, exec)
				e.stepFinished(ctx, exec, rec)
				continue
			}
		}

		rec.Start(input)
		e.persist(ctx, exec)

		res, err := e.dispatch(ctx, def, input, execCtx)
		if err != nil {
			stepErr := types.ToExecutionError(err)
			if stepErr.StepID == "" {
				stepErr.StepID = stepID
			}
			rec.FailWith(stepErr)
			if stepErr.Retryable {
				exec.Metrics.RetryCount++
			}
			if firstFailure == nil {
				firstFailure = stepErr
			}
			e.persist(ctx, exec)
			e.stepFinished(ctx, exec, rec)

			if !stepErr.Retryable {
				logger.Error("step failed, stopping walk",
					zap.String("execution_id", exec.ID),
					zap.String("step", stepID),
					zap.Error(stepErr))
				break walk
			}
			logger.Warn("step failed retryably, independent branches continue",
				zap.String("execution_id", exec.ID),
				zap.String("step", stepID),
				zap.Error(stepErr))
			continue
		}

		if res != nil && res.Outcome != nil && !res.Outcome.Met {
			rec.Skip("condition not met: " + res.Outcome.Expression)
			execCtx.RecordSkipped(stepID)
			e.persist(ctx, exec)
			e.stepFinished(ctx, exec, rec)
			continue
		}

		var output map[string]any
		if res != nil {
			output = res.Output
		}
		rec.Complete(output)
		execCtx.RecordResult(stepID, output)
		e.persist(ctx, exec)
		e.stepFinished(ctx, exec, rec)
	}

	switch {
	case abort != nil:
		exec.FailWith(abort)
	case firstFailure != nil:
		exec.FailWith(firstFailure)
	default:
		output := make(map[string]any, len(execCtx.Results))
		for id, out := range execCtx.Results {
			output[id] = out
		}
		exec.Complete(output)
	}
}

// dispatch resolves the executor for the step kind and runs it under
// the per-step timeout, converting panics into step failures. Parallel
// sub-steps are dispatched through here as well.
func (e *Engine) dispatch(ctx context.Context, step *types.StepDefinition, input map[string]any, execCtx *executor.ExecutionContext) (res *executor.Result, err error) {
	exec, err := e.executors.GetOrError(step.Kind)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("executor panicked",
				zap.String("step", step.ID),
				zap.String("kind", string(step.Kind)),
				zap.Any("panic", r))
			res = nil
			err = types.NewStepExecutionError(step.ID, step.Kind, fmt.Sprintf("executor panicked: %v", r))
		}
	}()

	stepCtx := ctx
	if e.stepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, e.stepTimeout)
		defer cancel()
	}
	return exec.Execute(stepCtx, step, input, execCtx)
}

// skipForDependencies applies the skip cascade: a failed dependency or
// an all-skipped dependency set keeps the step from running. A mix of
// skipped and completed dependencies does not.
func skipForDependencies(g *graph.Graph, exec *types.WorkflowExecution, stepID string) (string, bool) {
	deps := g.Dependencies(stepID)
	if len(deps) == 0 {
		return "", false
	}
	skipped := 0
	for _, dep := range deps {
		switch exec.StepByID(dep).Status {
		case types.StepStatusFailed:
			return "dependency " + dep + " failed", true
		case types.StepStatusSkipped:
			skipped++
		}
	}
	if skipped == len(deps) {
		return "all dependencies skipped", true
	}
	return "", false
}

func (e *Engine) persist(ctx context.Context, exec *types.WorkflowExecution) {
	if err := e.gateway.SaveExecutionState(ctx, exec); err != nil {
		logger.Error("persist execution state failed",
			zap.String("execution_id", exec.ID),
			zap.Error(err))
	}
}

func (e *Engine) stepFinished(ctx context.Context, exec *types.WorkflowExecution, rec *types.StepExecution) {
	if e.metrics != nil {
		e.metrics.StepFinished(rec)
	}
	if err := e.audit.Record(ctx, audit.StepEvent(exec, rec)); err != nil {
		logger.Warn("audit sink rejected step event",
			zap.String("execution_id", exec.ID),
			zap.String("step", rec.StepID),
			zap.Error(err))
	}
}

func (e *Engine) executionFinished(ctx context.Context, exec *types.WorkflowExecution) {
	if e.metrics != nil {
		e.metrics.ExecutionFinished(exec)
	}
	if err := e.audit.Record(ctx, audit.ExecutionEvent(exec)); err != nil {
		logger.Warn("audit sink rejected execution event",
			zap.String("execution_id", exec.ID),
			zap.Error(err))
	}
	logger.Info("execution finished",
		zap.String("execution_id", exec.ID),
		zap.String("workflow_id", exec.WorkflowID),
		zap.String("status", string(exec.Status)),
		zap.Duration("duration", exec.Duration),
		zap.Int("completed", exec.Metrics.Completed),
		zap.Int("failed", exec.Metrics.Failed),
		zap.Int("skipped", exec.Metrics.Skipped))
}

func (e *Engine) observeError(err error) {
	if e.metrics == nil || err == nil {
		return
	}
	e.metrics.ErrorObserved(types.ToExecutionError(err).Code)
}

func (e *Engine) addActive(executionID string) {
	e.mu.Lock()
	e.active[executionID] = struct{}{}
	e.mu.Unlock()
}

func (e *Engine) removeActive(executionID string) {
	e.mu.Lock()
	delete(e.active, executionID)
	e.mu.Unlock()
}

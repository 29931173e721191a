package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/agent"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/audit"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/lock"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/metrics"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/persistence"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/store"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

type invocation struct {
	kind  string
	input map[string]any
}

type stubInvoker struct {
	mu     sync.Mutex
	calls  []invocation
	handle func(kind string, input map[string]any) (*agent.Result, error)
}

func (s *stubInvoker) Invoke(_ context.Context, kind string, input, _, _ map[string]any) (*agent.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, invocation{kind: kind, input: input})
	s.mu.Unlock()
	if s.handle != nil {
		return s.handle(kind, input)
	}
	return &agent.Result{Success: true, Output: map[string]any{"agent": kind}}, nil
}

func (s *stubInvoker) inputFor(kind string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.calls) - 1; i >= 0; i-- {
		if s.calls[i].kind == kind {
			return s.calls[i].input
		}
	}
	return nil
}

type fixture struct {
	engine  *Engine
	gateway *persistence.MemoryGateway
	store   *store.MemoryStore
	sink    *audit.MemorySink
	coll    *metrics.Collector
	invoker *stubInvoker
}

func newFixture(t *testing.T, mutate ...func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		gateway: persistence.NewMemoryGateway(),
		store:   store.NewMemoryStore(),
		sink:    audit.NewMemorySink(),
		coll:    metrics.NewCollector(),
		invoker: &stubInvoker{},
	}
	opts := Options{
		Invoker:   f.invoker,
		Locks:     lock.NewManager(f.store),
		Gateway:   f.gateway,
		Audit:     f.sink,
		Metrics:   f.coll,
		LockTTL:   time.Second,
		LockRetry: lock.RetryPolicy{Attempts: 1, Interval: time.Millisecond},
	}
	for _, m := range mutate {
		m(&opts)
	}
	eng, err := New(opts)
	require.NoError(t, err)
	f.engine = eng
	return f
}

func agentStep(id, kind string, deps ...string) types.StepDefinition {
	return types.StepDefinition{ID: id, Kind: types.StepKindAgent, DependsOn: deps,
		Agent: &types.AgentConfig{Kind: kind}}
}

func TestExecuteLinearWorkflowCompletes(t *testing.T) {
	f := newFixture(t)
	f.invoker.handle = func(kind string, _ map[string]any) (*agent.Result, error) {
		if kind == "oee-calculator" {
			return &agent.Result{Success: true, Output: map[string]any{"oee": 0.75}}, nil
		}
		return &agent.Result{Success: true, Output: map[string]any{"insight": "line stable"}}, nil
	}

	def := &types.WorkflowDefinition{
		ID:      "shift-analysis",
		Version: "1.2.0",
		Steps: []types.StepDefinition{
			agentStep("calc", "oee-calculator"),
			{ID: "check", Kind: types.StepKindCondition, DependsOn: []string{"calc"},
				Condition: &types.ConditionConfig{Expression: "data.oee >= 0.5"}},
			agentStep("act", "insight-generator", "calc", "check"),
		},
	}

	exec, err := f.engine.Execute(context.Background(), def, map[string]any{"line": "L2"})
	require.NoError(t, err)
	require.NotNil(t, exec)
	assert.Equal(t, types.ExecutionStatusCompleted, exec.Status)
	for _, step := range exec.Steps {
		assert.Equal(t, types.StepStatusCompleted, step.Status, step.StepID)
	}

	// Roots receive the workflow input; dependents receive their
	// dependencies' merged outputs.
	assert.Equal(t, "L2", f.invoker.inputFor("oee-calculator")["line"])
	actInput := f.invoker.inputFor("insight-generator")
	assert.Equal(t, 0.75, actInput["oee"])
	assert.Equal(t, true, actInput["met"])

	require.Contains(t, exec.Output, "calc")
	require.Contains(t, exec.Output, "check")
	require.Contains(t, exec.Output, "act")
	checkOut, ok := exec.Output["check"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, checkOut["met"])

	loaded, err := f.engine.Lookup(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ExecutionStatusCompleted, loaded.Status)

	events := f.sink.Events()
	require.Len(t, events, 4)
	assert.Equal(t, "calc", events[0].StepID)
	assert.Empty(t, events[3].StepID)
	assert.Equal(t, audit.OutcomeCompleted, events[3].Outcome)

	snap := f.coll.Snapshot()
	assert.Equal(t, int64(1), snap.Executions.Started)
	assert.Equal(t, int64(1), snap.Executions.Completed)
	assert.Equal(t, int64(3), snap.Steps.Completed)
	assert.Equal(t, int64(1), snap.ExecutionDuration.Count)
}

func TestExecuteConditionFalseSkipsDependents(t *testing.T) {
	f := newFixture(t)
	def := &types.WorkflowDefinition{
		ID: "alerting",
		Steps: []types.StepDefinition{
			{ID: "count-check", Kind: types.StepKindCondition,
				Condition: &types.ConditionConfig{Expression: "data.count >= 3"}},
			agentStep("notify", "insight-generator", "count-check"),
		},
	}

	exec, err := f.engine.Execute(context.Background(), def, map[string]any{"count": 2})
	require.NoError(t, err)
	assert.Equal(t, types.ExecutionStatusCompleted, exec.Status)

	check := exec.StepByID("count-check")
	assert.Equal(t, types.StepStatusSkipped, check.Status)
	require.NotEmpty(t, check.Logs)
	assert.Contains(t, check.Logs[0], "condition not met")

	notify := exec.StepByID("notify")
	assert.Equal(t, types.StepStatusSkipped, notify.Status)
	require.NotEmpty(t, notify.Logs)
	assert.Contains(t, notify.Logs[0], "all dependencies skipped")

	// Dependents see no output from skipped steps.
	assert.Empty(t, exec.Output)
	assert.Empty(t, f.invoker.calls)

	snap := f.coll.Snapshot()
	assert.Equal(t, int64(2), snap.Steps.Skipped)
}

func TestExecuteGuardFalseSkipsStep(t *testing.T) {
	f := newFixture(t)
	f.invoker.handle = func(kind string, _ map[string]any) (*agent.Result, error) {
		return &agent.Result{Success: true, Output: map[string]any{"ready": false}}, nil
	}
	def := &types.WorkflowDefinition{
		ID: "guarded",
		Steps: []types.StepDefinition{
			agentStep("prep", "downtime-analyzer"),
			{ID: "mail", Kind: types.StepKindAgent, DependsOn: []string{"prep"},
				Guard: "data.ready == true",
				Agent: &types.AgentConfig{Kind: "insight-generator"}},
		},
	}

	exec, err := f.engine.Execute(context.Background(), def, nil)
	require.NoError(t, err)
	assert.Equal(t, types.ExecutionStatusCompleted, exec.Status)

	mail := exec.StepByID("mail")
	assert.Equal(t, types.StepStatusSkipped, mail.Status)
	require.NotEmpty(t, mail.Logs)
	assert.Contains(t, mail.Logs[0], "guard not met")
	assert.Nil(t, f.invoker.inputFor("insight-generator"))
}

func TestExecuteGuardEvaluationErrorSkipsStep(t *testing.T) {
	f := newFixture(t)
	def := &types.WorkflowDefinition{
		ID: "guarded",
		Steps: []types.StepDefinition{
			{ID: "mail", Kind: types.StepKindAgent,
				Guard: "data.report.ready == true",
				Agent: &types.AgentConfig{Kind: "insight-generator"}},
		},
	}

	// data.report is absent, so the nested access fails to evaluate.
	exec, err := f.engine.Execute(context.Background(), def, map[string]any{"line": "L1"})
	require.NoError(t, err)
	assert.Equal(t, types.ExecutionStatusCompleted, exec.Status)

	mail := exec.StepByID("mail")
	assert.Equal(t, types.StepStatusSkipped, mail.Status)
	require.NotEmpty(t, mail.Logs)
	assert.Contains(t, mail.Logs[0], "guard evaluation failed")
}

func TestExecuteRetryableFailureContinuesIndependentBranches(t *testing.T) {
	f := newFixture(t)
	f.invoker.handle = func(kind string, _ map[string]any) (*agent.Result, error) {
		if kind == "flaky" {
			return nil, errors.New("connection refused")
		}
		return &agent.Result{Success: true, Output: map[string]any{"ok": true}}, nil
	}
	def := &types.WorkflowDefinition{
		ID: "branches",
		Steps: []types.StepDefinition{
			agentStep("a-src", "flaky"),
			agentStep("b-child", "steady", "a-src"),
			agentStep("c-side", "steady"),
		},
	}

	exec, err := f.engine.Execute(context.Background(), def, nil)
	require.NoError(t, err)
	assert.Equal(t, types.ExecutionStatusFailed, exec.Status)
	require.NotNil(t, exec.Error)
	assert.True(t, exec.Error.Retryable)
	assert.Equal(t, "a-src", exec.Error.StepID)

	assert.Equal(t, types.StepStatusFailed, exec.StepByID("a-src").Status)
	child := exec.StepByID("b-child")
	assert.Equal(t, types.StepStatusSkipped, child.Status)
	require.NotEmpty(t, child.Logs)
	assert.Contains(t, child.Logs[0], "dependency a-src failed")
	assert.Equal(t, types.StepStatusCompleted, exec.StepByID("c-side").Status)
	assert.Equal(t, 1, exec.Metrics.RetryCount)
}

func TestExecuteFatalFailureStopsWalk(t *testing.T) {
	f := newFixture(t)
	f.invoker.handle = func(kind string, _ map[string]any) (*agent.Result, error) {
		if kind == "strict" {
			return &agent.Result{Success: false, Error: "total_count must be positive"}, nil
		}
		return &agent.Result{Success: true}, nil
	}
	def := &types.WorkflowDefinition{
		ID: "fatal",
		Steps: []types.StepDefinition{
			agentStep("a-bad", "strict"),
			agentStep("z-rest", "steady"),
		},
	}

	exec, err := f.engine.Execute(context.Background(), def, nil)
	require.NoError(t, err)
	assert.Equal(t, types.ExecutionStatusFailed, exec.Status)
	require.NotNil(t, exec.Error)
	assert.False(t, exec.Error.Retryable)

	assert.Equal(t, types.StepStatusFailed, exec.StepByID("a-bad").Status)
	assert.Equal(t, types.StepStatusPending, exec.StepByID("z-rest").Status)

	// One step event for the failure plus the execution event; the
	// never-dispatched step emits nothing.
	events := f.sink.Events()
	require.Len(t, events, 2)
	assert.Equal(t, audit.OutcomeFailed, events[0].Outcome)
	assert.Equal(t, audit.OutcomeFailed, events[1].Outcome)
}

func TestExecuteParallelStep(t *testing.T) {
	f := newFixture(t)
	def := &types.WorkflowDefinition{
		ID: "fanout",
		Steps: []types.StepDefinition{
			{ID: "fan", Kind: types.StepKindParallel, Parallel: &types.ParallelConfig{
				MaxConcurrent: 2,
				Steps: []types.StepDefinition{
					agentStep("s1", "oee-calculator"),
					agentStep("s2", "quality-analyzer"),
					agentStep("s3", "downtime-analyzer"),
				},
			}},
		},
	}

	exec, err := f.engine.Execute(context.Background(), def, map[string]any{"line": "L4"})
	require.NoError(t, err)
	require.Equal(t, types.ExecutionStatusCompleted, exec.Status)

	fan, ok := exec.Output["fan"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 3, fan["count"])
	steps, ok := fan["steps"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, steps, "s1")
	assert.Contains(t, steps, "s2")
	assert.Contains(t, steps, "s3")
}

func TestExecuteLockDeniedNothingPersisted(t *testing.T) {
	f := newFixture(t)
	other := lock.NewManager(f.store)
	lease, err := other.Acquire(context.Background(), "workflow:execution:fixed-7",
		time.Minute, lock.RetryPolicy{Attempts: 1, Interval: time.Millisecond})
	require.NoError(t, err)
	defer lease.Release(context.Background())

	def := &types.WorkflowDefinition{
		ID:    "held",
		Steps: []types.StepDefinition{agentStep("only", "steady")},
	}
	_, err = f.engine.ExecuteWithID(context.Background(), "fixed-7", def, nil)
	require.Error(t, err)
	assert.True(t, types.IsLockAcquisitionError(err))
	assert.Equal(t, 0, f.gateway.Len())

	snap := f.coll.Snapshot()
	assert.Equal(t, int64(1), snap.ErrorsByClass[string(types.ErrCodeLockAcquisition)])
	assert.Equal(t, int64(0), snap.Executions.Started)
}

type extendRefusingStore struct {
	store.KeyedStore
}

func (s *extendRefusingStore) CompareAndExtend(context.Context, string, string, time.Duration) (bool, error) {
	return false, nil
}

func TestExecuteAbortsWhenLeaseLost(t *testing.T) {
	mem := store.NewMemoryStore()
	f := newFixture(t, func(o *Options) {
		o.Locks = lock.NewManager(&extendRefusingStore{KeyedStore: mem})
		o.LockTTL = 30 * time.Millisecond
	})

	def := &types.WorkflowDefinition{
		ID: "leased",
		Steps: []types.StepDefinition{
			{ID: "a-wait", Kind: types.StepKindDelay,
				Delay: &types.DelayConfig{Duration: 100 * time.Millisecond}},
			agentStep("b-after", "steady", "a-wait"),
		},
	}

	exec, err := f.engine.Execute(context.Background(), def, nil)
	require.NoError(t, err)
	assert.Equal(t, types.ExecutionStatusFailed, exec.Status)
	require.NotNil(t, exec.Error)
	assert.True(t, exec.Error.Retryable)
	assert.Contains(t, exec.Error.Message, "lease lost")

	// The in-flight step finished; the lease check stops the next one.
	assert.Equal(t, types.StepStatusCompleted, exec.StepByID("a-wait").Status)
	assert.Equal(t, types.StepStatusPending, exec.StepByID("b-after").Status)
}

type countingGateway struct {
	inner *persistence.MemoryGateway
	mu    sync.Mutex
	saves int
}

func (g *countingGateway) SaveExecutionState(ctx context.Context, exec *types.WorkflowExecution) error {
	g.mu.Lock()
	g.saves++
	g.mu.Unlock()
	return g.inner.SaveExecutionState(ctx, exec)
}

func (g *countingGateway) LoadExecution(ctx context.Context, id string) (*types.WorkflowExecution, error) {
	return g.inner.LoadExecution(ctx, id)
}

func TestExecutePersistsAfterEveryMutation(t *testing.T) {
	counting := &countingGateway{inner: persistence.NewMemoryGateway()}
	f := newFixture(t, func(o *Options) { o.Gateway = counting })

	def := &types.WorkflowDefinition{
		ID: "persisted",
		Steps: []types.StepDefinition{
			agentStep("one", "steady"),
			agentStep("two", "steady", "one"),
		},
	}
	_, err := f.engine.Execute(context.Background(), def, nil)
	require.NoError(t, err)

	// Initial snapshot, then start+finish per step, then the final one.
	assert.Equal(t, 6, counting.saves)
}

func TestExecuteRejectsInvalidDefinition(t *testing.T) {
	f := newFixture(t)
	def := &types.WorkflowDefinition{
		ID: "broken",
		Steps: []types.StepDefinition{
			{ID: "x", Kind: types.StepKind("teleport")},
		},
	}
	_, err := f.engine.Execute(context.Background(), def, nil)
	require.Error(t, err)
	assert.True(t, types.IsConfigurationError(err))
	assert.Equal(t, 0, f.gateway.Len())
}

func TestExecuteRejectsCyclicDefinition(t *testing.T) {
	f := newFixture(t)
	def := &types.WorkflowDefinition{
		ID: "loop",
		Steps: []types.StepDefinition{
			agentStep("a", "steady", "b"),
			agentStep("b", "steady", "a"),
		},
	}
	_, err := f.engine.Execute(context.Background(), def, nil)
	require.Error(t, err)
	assert.True(t, types.IsCycleError(err))
	assert.Equal(t, 0, f.gateway.Len())

	snap := f.coll.Snapshot()
	assert.Equal(t, int64(1), snap.ErrorsByClass[string(types.ErrCodeCycle)])
}

func TestExecuteWithIDRequiresID(t *testing.T) {
	f := newFixture(t)
	def := &types.WorkflowDefinition{
		ID:    "x",
		Steps: []types.StepDefinition{agentStep("only", "steady")},
	}
	_, err := f.engine.ExecuteWithID(context.Background(), "", def, nil)
	require.Error(t, err)
	assert.True(t, types.IsConfigurationError(err))
}

func TestLookupUnknownExecution(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Lookup(context.Background(), "ghost")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestNewRequiresCollaborators(t *testing.T) {
	mem := store.NewMemoryStore()
	inv := &stubInvoker{}

	_, err := New(Options{Locks: lock.NewManager(mem), Gateway: persistence.NewMemoryGateway()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invoker")

	_, err = New(Options{Invoker: inv, Gateway: persistence.NewMemoryGateway()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock")

	_, err = New(Options{Invoker: inv, Locks: lock.NewManager(mem)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway")
}

func TestActiveTracking(t *testing.T) {
	f := newFixture(t)
	f.invoker.handle = func(kind string, _ map[string]any) (*agent.Result, error) {
		assert.True(t, f.engine.IsActive("tracked-1"))
		return &agent.Result{Success: true}, nil
	}
	def := &types.WorkflowDefinition{
		ID:    "tracked",
		Steps: []types.StepDefinition{agentStep("only", "steady")},
	}
	_, err := f.engine.ExecuteWithID(context.Background(), "tracked-1", def, nil)
	require.NoError(t, err)
	assert.False(t, f.engine.IsActive("tracked-1"))
	assert.Equal(t, 0, f.engine.ActiveCount())
}

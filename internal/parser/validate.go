package parser

import (
	"fmt"
	"net/url"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/expression"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// Validate checks a decoded workflow definition against the structural
// rules: identity, unique step ids, resolvable dependencies, kind/config
// agreement, and compilable expressions. Dependency cycles are caught
// when the graph is built.
func Validate(def *types.WorkflowDefinition) error {
	if def == nil {
		return types.NewConfigurationError("workflow definition is nil")
	}
	if def.ID == "" {
		return types.NewConfigurationError("workflow id is required")
	}
	if len(def.Steps) == 0 {
		return types.NewConfigurationError("workflow has no steps")
	}

	ids := make(map[string]struct{}, len(def.Steps))
	for i := range def.Steps {
		step := &def.Steps[i]
		if step.ID == "" {
			return types.NewConfigurationError(fmt.Sprintf("step %d has an empty id", i))
		}
		if _, dup := ids[step.ID]; dup {
			return types.NewConfigurationError("duplicate step id").WithStep(step.ID)
		}
		ids[step.ID] = struct{}{}
	}

	ev := expression.NewEvaluator()
	for i := range def.Steps {
		step := &def.Steps[i]
		for _, dep := range step.DependsOn {
			if dep == step.ID {
				return types.NewConfigurationError("step depends on itself").WithStep(step.ID)
			}
			if _, ok := ids[dep]; !ok {
				return types.NewConfigurationError(fmt.Sprintf("depends on unknown step %q", dep)).WithStep(step.ID)
			}
		}
		if err := validateStep(ev, step, step.ID, true); err != nil {
			return err
		}
	}
	return nil
}

// validateStep checks one step's kind, config variant and expressions.
// path names the step in error messages, dotted for parallel sub-steps.
func validateStep(ev *expression.Evaluator, step *types.StepDefinition, path string, topLevel bool) error {
	if !step.Kind.Valid() {
		return types.NewConfigurationError(fmt.Sprintf("unknown step kind: %q", step.Kind)).WithStep(path)
	}
	if step.Kind == types.StepKindParallel && !topLevel {
		return types.NewConfigurationError("parallel steps cannot nest").WithStep(path)
	}

	switch n := configCount(step); {
	case n == 0:
		return types.NewConfigurationError(fmt.Sprintf("missing %s configuration", step.Kind)).WithStep(path)
	case n > 1:
		return types.NewConfigurationError("conflicting configuration blocks, exactly one must be set").WithStep(path)
	case step.KindConfig() == nil:
		return types.NewConfigurationError(fmt.Sprintf("configuration block does not match step kind %s", step.Kind)).WithStep(path)
	}

	if step.Guard != "" {
		if _, err := ev.Parse(step.Guard); err != nil {
			return types.NewConfigurationError("invalid guard expression").WithStep(path).WithCause(err)
		}
	}

	switch step.Kind {
	case types.StepKindAgent:
		if step.Agent.Kind == "" {
			return types.NewConfigurationError("agent step missing agent kind").WithStep(path)
		}
	case types.StepKindTransform:
		if step.Transform.Name == "" {
			return types.NewConfigurationError("transform step missing transformer name").WithStep(path)
		}
	case types.StepKindCondition:
		if step.Condition.Expression == "" {
			return types.NewConfigurationError("condition step missing expression").WithStep(path)
		}
		if _, err := ev.Parse(step.Condition.Expression); err != nil {
			return types.NewConfigurationError("invalid condition expression").WithStep(path).WithCause(err)
		}
	case types.StepKindDelay:
		if step.Delay.Duration <= 0 {
			return types.NewConfigurationError("delay duration must be positive").WithStep(path)
		}
	case types.StepKindWebhook:
		if err := validateURL(step.Webhook.URL); err != nil {
			return types.NewConfigurationError("invalid webhook url").WithStep(path).WithCause(err)
		}
	case types.StepKindParallel:
		if err := validateParallel(ev, step.Parallel, path); err != nil {
			return err
		}
	}
	return nil
}

func validateParallel(ev *expression.Evaluator, cfg *types.ParallelConfig, path string) error {
	if len(cfg.Steps) == 0 {
		return types.NewConfigurationError("parallel step has no sub-steps").WithStep(path)
	}
	if cfg.MaxConcurrent < 0 {
		return types.NewConfigurationError("max_concurrent cannot be negative").WithStep(path)
	}

	subIDs := make(map[string]struct{}, len(cfg.Steps))
	for j := range cfg.Steps {
		sub := &cfg.Steps[j]
		if sub.ID == "" {
			return types.NewConfigurationError(fmt.Sprintf("parallel sub-step %d has an empty id", j)).WithStep(path)
		}
		if _, dup := subIDs[sub.ID]; dup {
			return types.NewConfigurationError("duplicate parallel sub-step id: " + sub.ID).WithStep(path)
		}
		subIDs[sub.ID] = struct{}{}

		subPath := path + "." + sub.ID
		if len(sub.DependsOn) > 0 {
			return types.NewConfigurationError("parallel sub-steps cannot declare dependencies").WithStep(subPath)
		}
		if sub.Guard != "" {
			return types.NewConfigurationError("parallel sub-steps cannot declare guards").WithStep(subPath)
		}
		if err := validateStep(ev, sub, subPath, false); err != nil {
			return err
		}
	}
	return nil
}

func configCount(step *types.StepDefinition) int {
	n := 0
	if step.Agent != nil {
		n++
	}
	if step.Transform != nil {
		n++
	}
	if step.Condition != nil {
		n++
	}
	if step.Parallel != nil {
		n++
	}
	if step.Delay != nil {
		n++
	}
	if step.Webhook != nil {
		n++
	}
	return n
}

// validateURL requires an absolute http or https URL with a host.
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if !u.IsAbs() {
		return fmt.Errorf("url must be absolute: %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported url scheme: %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url has no host: %q", raw)
	}
	return nil
}

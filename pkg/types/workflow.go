// Package types defines the core data structures for the analytics
// workflow coordination engine.
package types

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// StepKind identifies the behavior of a workflow step.
type StepKind string

const (
	// StepKindAgent invokes an analytics agent through the circuit breaker.
	StepKindAgent StepKind = "agent"
	// StepKindTransform applies a named transformation to its input.
	StepKindTransform StepKind = "transform"
	// StepKindCondition evaluates a boolean expression; false skips the step.
	StepKindCondition StepKind = "condition"
	// StepKindParallel runs a fixed list of sub-steps concurrently.
	StepKindParallel StepKind = "parallel"
	// StepKindDelay suspends its own path for a configured duration.
	StepKindDelay StepKind = "delay"
	// StepKindWebhook issues an outbound HTTP call with a hard deadline.
	StepKindWebhook StepKind = "webhook"
)

// KnownStepKinds lists every kind the engine dispatches.
func KnownStepKinds() []StepKind {
	return []StepKind{
		StepKindAgent,
		StepKindTransform,
		StepKindCondition,
		StepKindParallel,
		StepKindDelay,
		StepKindWebhook,
	}
}

// Valid reports whether k is one of the known step kinds.
func (k StepKind) Valid() bool {
	switch k {
	case StepKindAgent, StepKindTransform, StepKindCondition,
		StepKindParallel, StepKindDelay, StepKindWebhook:
		return true
	}
	return false
}

// WorkflowDefinition is a parsed workflow: an ordered set of steps whose
// dependency relation must be acyclic.
type WorkflowDefinition struct {
	ID          string           `yaml:"id" json:"id"`
	Version     string           `yaml:"version,omitempty" json:"version,omitempty"`
	Name        string           `yaml:"name,omitempty" json:"name,omitempty"`
	Description string           `yaml:"description,omitempty" json:"description,omitempty"`
	Steps       []StepDefinition `yaml:"steps" json:"steps"`
}

// StepByID returns the step with the given id, or nil.
func (d *WorkflowDefinition) StepByID(id string) *StepDefinition {
	for i := range d.Steps {
		if d.Steps[i].ID == id {
			return &d.Steps[i]
		}
	}
	return nil
}

// StepDefinition is one unit of work within a workflow. Exactly one of the
// kind-specific config fields must be set, matching Kind.
type StepDefinition struct {
	ID        string   `yaml:"id" json:"id"`
	Name      string   `yaml:"name,omitempty" json:"name,omitempty"`
	Kind      StepKind `yaml:"kind" json:"kind"`
	DependsOn []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	// Guard is an optional expression; when it evaluates false (or fails to
	// evaluate) the step is recorded Skipped.
	Guard string `yaml:"guard,omitempty" json:"guard,omitempty"`

	Agent     *AgentConfig     `yaml:"agent,omitempty" json:"agent,omitempty"`
	Transform *TransformConfig `yaml:"transform,omitempty" json:"transform,omitempty"`
	Condition *ConditionConfig `yaml:"condition,omitempty" json:"condition,omitempty"`
	Parallel  *ParallelConfig  `yaml:"parallel,omitempty" json:"parallel,omitempty"`
	Delay     *DelayConfig     `yaml:"delay,omitempty" json:"delay,omitempty"`
	Webhook   *WebhookConfig   `yaml:"webhook,omitempty" json:"webhook,omitempty"`
}

// KindConfig returns the config variant matching the step's kind, or nil
// when the variant is missing.
func (s *StepDefinition) KindConfig() any {
	switch s.Kind {
	case StepKindAgent:
		if s.Agent != nil {
			return s.Agent
		}
	case StepKindTransform:
		if s.Transform != nil {
			return s.Transform
		}
	case StepKindCondition:
		if s.Condition != nil {
			return s.Condition
		}
	case StepKindParallel:
		if s.Parallel != nil {
			return s.Parallel
		}
	case StepKindDelay:
		if s.Delay != nil {
			return s.Delay
		}
	case StepKindWebhook:
		if s.Webhook != nil {
			return s.Webhook
		}
	}
	return nil
}

// AgentConfig configures an agent step: the agent kind to invoke and its
// kind-specific parameters.
type AgentConfig struct {
	Kind   string         `yaml:"kind" json:"kind"`
	Config map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
}

// TransformConfig configures a transform step.
type TransformConfig struct {
	Name   string         `yaml:"name" json:"name"`
	Config map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
}

// ConditionConfig configures a condition step.
type ConditionConfig struct {
	Expression string `yaml:"expression" json:"expression"`
}

// ParallelConfig configures a parallel step: a fixed list of sub-steps
// dispatched concurrently. MaxConcurrent limits in-flight sub-steps;
// zero means all at once.
type ParallelConfig struct {
	Steps         []StepDefinition `yaml:"steps" json:"steps"`
	MaxConcurrent int              `yaml:"max_concurrent,omitempty" json:"max_concurrent,omitempty"`
}

// DelayConfig configures a delay step.
type DelayConfig struct {
	Duration time.Duration `yaml:"-" json:"-"`
}

// WebhookConfig configures a webhook step. URL must be absolute. A zero
// Timeout falls back to the engine default.
type WebhookConfig struct {
	URL     string            `yaml:"url" json:"url"`
	Method  string            `yaml:"method,omitempty" json:"method,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Body    any               `yaml:"body,omitempty" json:"body,omitempty"`
	Timeout time.Duration     `yaml:"-" json:"-"`
}

// parseFlexibleDuration accepts a duration string ("5s") or an integer
// nanosecond count from decoded YAML/JSON values. JSON decodes numbers as
// float64, so integral floats are accepted as nanoseconds too.
func parseFlexibleDuration(v any) (time.Duration, error) {
	switch val := v.(type) {
	case string:
		if val == "" {
			return 0, nil
		}
		return time.ParseDuration(val)
	case int:
		return time.Duration(val), nil
	case int64:
		return time.Duration(val), nil
	case float64:
		if val != float64(int64(val)) {
			return 0, fmt.Errorf("fractional duration %v, use a duration string", val)
		}
		return time.Duration(int64(val)), nil
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("unsupported duration value %v", v)
}

// UnmarshalYAML decodes a delay config, accepting duration as a string
// (e.g. "5s") or a raw nanosecond count.
func (c *DelayConfig) UnmarshalYAML(node *yaml.Node) error {
	var aux struct {
		Duration any `yaml:"duration"`
	}
	if err := node.Decode(&aux); err != nil {
		return err
	}
	d, err := parseFlexibleDuration(aux.Duration)
	if err != nil {
		return fmt.Errorf("invalid delay duration: %w", err)
	}
	c.Duration = d
	return nil
}

// MarshalYAML emits the duration as a human-readable string.
func (c DelayConfig) MarshalYAML() (any, error) {
	return map[string]string{"duration": c.Duration.String()}, nil
}

// UnmarshalJSON mirrors UnmarshalYAML for JSON definitions.
func (c *DelayConfig) UnmarshalJSON(data []byte) error {
	var aux struct {
		Duration any `json:"duration"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d, err := parseFlexibleDuration(aux.Duration)
	if err != nil {
		return fmt.Errorf("invalid delay duration: %w", err)
	}
	c.Duration = d
	return nil
}

// MarshalJSON emits the duration as a human-readable string.
func (c DelayConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"duration": c.Duration.String()})
}

// UnmarshalYAML decodes a webhook config, accepting timeout as a duration
// string or raw nanosecond count.
func (c *WebhookConfig) UnmarshalYAML(node *yaml.Node) error {
	type Alias WebhookConfig
	var aux struct {
		Alias   `yaml:",inline"`
		Timeout any `yaml:"timeout"`
	}
	if err := node.Decode(&aux); err != nil {
		return err
	}
	*c = WebhookConfig(aux.Alias)
	d, err := parseFlexibleDuration(aux.Timeout)
	if err != nil {
		return fmt.Errorf("invalid webhook timeout: %w", err)
	}
	c.Timeout = d
	return nil
}

// UnmarshalJSON mirrors UnmarshalYAML for JSON definitions.
func (c *WebhookConfig) UnmarshalJSON(data []byte) error {
	type Alias WebhookConfig
	aux := &struct {
		Timeout any `json:"timeout,omitempty"`
		*Alias
	}{Alias: (*Alias)(c)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	d, err := parseFlexibleDuration(aux.Timeout)
	if err != nil {
		return fmt.Errorf("invalid webhook timeout: %w", err)
	}
	c.Timeout = d
	return nil
}

// MarshalJSON emits the timeout as a human-readable string.
func (c WebhookConfig) MarshalJSON() ([]byte, error) {
	type Alias WebhookConfig
	aux := struct {
		Timeout string `json:"timeout,omitempty"`
		Alias
	}{Alias: Alias(c)}
	if c.Timeout > 0 {
		aux.Timeout = c.Timeout.String()
	}
	return json.Marshal(aux)
}

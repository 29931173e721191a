package persistence

import (
	"time"

	"github.com/bytedance/sonic"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// encodeExecution flattens an execution into its database rows.
func encodeExecution(exec *types.WorkflowExecution) (*ExecutionRecord, []StepRecord, error) {
	rec := &ExecutionRecord{
		ID:          exec.ID,
		WorkflowID:  exec.WorkflowID,
		Version:     exec.Version,
		Status:      string(exec.Status),
		StartedAt:   exec.StartedAt,
		CompletedAt: exec.CompletedAt,
		DurationMs:  exec.Duration.Milliseconds(),
	}

	var err error
	if rec.Input, err = marshalColumn(exec.Input); err != nil {
		return nil, nil, err
	}
	if rec.Output, err = marshalColumn(exec.Output); err != nil {
		return nil, nil, err
	}
	if rec.Error, err = marshalColumn(exec.Error); err != nil {
		return nil, nil, err
	}
	if rec.Metrics, err = marshalColumn(exec.Metrics); err != nil {
		return nil, nil, err
	}

	steps := make([]StepRecord, 0, len(exec.Steps))
	for _, s := range exec.Steps {
		row := StepRecord{
			ExecutionID: exec.ID,
			StepID:      s.StepID,
			Kind:        string(s.Kind),
			Status:      string(s.Status),
			Attempt:     s.Attempt,
			StartedAt:   s.StartedAt,
			CompletedAt: s.CompletedAt,
			DurationMs:  s.Duration.Milliseconds(),
		}
		if row.Input, err = marshalColumn(s.Input); err != nil {
			return nil, nil, err
		}
		if row.Output, err = marshalColumn(s.Output); err != nil {
			return nil, nil, err
		}
		if row.Error, err = marshalColumn(s.Error); err != nil {
			return nil, nil, err
		}
		if row.Logs, err = marshalColumn(s.Logs); err != nil {
			return nil, nil, err
		}
		steps = append(steps, row)
	}
	return rec, steps, nil
}

// decodeExecution rebuilds an execution from its database rows. Step
// rows must already be in insertion order.
func decodeExecution(rec *ExecutionRecord, steps []StepRecord) (*types.WorkflowExecution, error) {
	exec := &types.WorkflowExecution{
		ID:          rec.ID,
		WorkflowID:  rec.WorkflowID,
		Version:     rec.Version,
		Status:      types.ExecutionStatus(rec.Status),
		StartedAt:   rec.StartedAt,
		CompletedAt: rec.CompletedAt,
		Duration:    time.Duration(rec.DurationMs) * time.Millisecond,
		Steps:       make([]*types.StepExecution, 0, len(steps)),
	}

	if err := unmarshalColumn(rec.Input, &exec.Input); err != nil {
		return nil, err
	}
	if err := unmarshalColumn(rec.Output, &exec.Output); err != nil {
		return nil, err
	}
	if err := unmarshalColumn(rec.Error, &exec.Error); err != nil {
		return nil, err
	}
	if err := unmarshalColumn(rec.Metrics, &exec.Metrics); err != nil {
		return nil, err
	}

	for i := range steps {
		row := &steps[i]
		step := &types.StepExecution{
			StepID:      row.StepID,
			Kind:        types.StepKind(row.Kind),
			Status:      types.StepStatus(row.Status),
			Attempt:     row.Attempt,
			StartedAt:   row.StartedAt,
			CompletedAt: row.CompletedAt,
			Duration:    time.Duration(row.DurationMs) * time.Millisecond,
		}
		if err := unmarshalColumn(row.Input, &step.Input); err != nil {
			return nil, err
		}
		if err := unmarshalColumn(row.Output, &step.Output); err != nil {
			return nil, err
		}
		if err := unmarshalColumn(row.Error, &step.Error); err != nil {
			return nil, err
		}
		if err := unmarshalColumn(row.Logs, &step.Logs); err != nil {
			return nil, err
		}
		exec.Steps = append(exec.Steps, step)
	}
	return exec, nil
}

func marshalColumn(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	return sonic.MarshalString(v)
}

func unmarshalColumn(s string, out any) error {
	if s == "" || s == "null" {
		return nil
	}
	return sonic.UnmarshalString(s, out)
}

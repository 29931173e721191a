package persistence

import (
	"time"
)

const TableNameExecution = "wf_execution"

// ExecutionRecord is the database row for one workflow execution.
// Structured payloads are stored as JSON text columns.
type ExecutionRecord struct {
	ID          string     `gorm:"column:id;type:varchar(64);primaryKey" json:"id"`
	WorkflowID  string     `gorm:"column:workflow_id;type:varchar(128);not null;index:idx_workflow_id" json:"workflow_id"`
	Version     string     `gorm:"column:version;type:varchar(32);default:''" json:"version"`
	Status      string     `gorm:"column:status;type:varchar(16);not null;index:idx_status" json:"status"`
	Input       string     `gorm:"column:input;type:longtext" json:"input,omitempty"`
	Output      string     `gorm:"column:output;type:longtext" json:"output,omitempty"`
	Error       string     `gorm:"column:error;type:text" json:"error,omitempty"`
	Metrics     string     `gorm:"column:metrics;type:text" json:"metrics,omitempty"`
	StartedAt   time.Time  `gorm:"column:started_at;type:datetime(3);not null" json:"started_at"`
	CompletedAt *time.Time `gorm:"column:completed_at;type:datetime(3)" json:"completed_at,omitempty"`
	DurationMs  int64      `gorm:"column:duration_ms;default:0" json:"duration_ms"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;type:datetime(3);autoUpdateTime" json:"updated_at"`
}

func (*ExecutionRecord) TableName() string {
	return TableNameExecution
}

const TableNameExecutionStep = "wf_execution_step"

// StepRecord is the database row for one step of an execution, unique
// per (execution_id, step_id).
type StepRecord struct {
	ID          int64      `gorm:"column:id;type:bigint unsigned;primaryKey;autoIncrement:true" json:"id"`
	ExecutionID string     `gorm:"column:execution_id;type:varchar(64);not null;uniqueIndex:uk_execution_step,priority:1" json:"execution_id"`
	StepID      string     `gorm:"column:step_id;type:varchar(128);not null;uniqueIndex:uk_execution_step,priority:2" json:"step_id"`
	Kind        string     `gorm:"column:kind;type:varchar(16);not null" json:"kind"`
	Status      string     `gorm:"column:status;type:varchar(16);not null" json:"status"`
	Attempt     int        `gorm:"column:attempt;default:1" json:"attempt"`
	Input       string     `gorm:"column:input;type:longtext" json:"input,omitempty"`
	Output      string     `gorm:"column:output;type:longtext" json:"output,omitempty"`
	Error       string     `gorm:"column:error;type:text" json:"error,omitempty"`
	Logs        string     `gorm:"column:logs;type:text" json:"logs,omitempty"`
	StartedAt   *time.Time `gorm:"column:started_at;type:datetime(3)" json:"started_at,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at;type:datetime(3)" json:"completed_at,omitempty"`
	DurationMs  int64      `gorm:"column:duration_ms;default:0" json:"duration_ms"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;type:datetime(3);autoUpdateTime" json:"updated_at"`
}

func (*StepRecord) TableName() string {
	return TableNameExecutionStep
}

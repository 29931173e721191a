package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// GormGateway persists executions to a relational database through
// gorm. Snapshots are upserted so repeated saves of the same execution
// are idempotent.
type GormGateway struct {
	db *gorm.DB
}

// NewGormGateway wraps an open gorm handle.
func NewGormGateway(db *gorm.DB) *GormGateway {
	return &GormGateway{db: db}
}

// AutoMigrate creates or updates the execution tables.
func (g *GormGateway) AutoMigrate() error {
	return g.db.AutoMigrate(&ExecutionRecord{}, &StepRecord{})
}

// SaveExecutionState upserts the execution row and all of its step rows
// in one transaction.
func (g *GormGateway) SaveExecutionState(ctx context.Context, exec *types.WorkflowExecution) error {
	if exec == nil || exec.ID == "" {
		return errors.New("cannot persist execution without an id")
	}
	rec, steps, err := encodeExecution(exec)
	if err != nil {
		return err
	}

	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(rec).Error; err != nil {
			return err
		}
		if len(steps) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "execution_id"}, {Name: "step_id"}},
			UpdateAll: true,
		}).Create(&steps).Error
	})
}

// LoadExecution reads one execution with its steps in insertion order.
func (g *GormGateway) LoadExecution(ctx context.Context, executionID string) (*types.WorkflowExecution, error) {
	var rec ExecutionRecord
	err := g.db.WithContext(ctx).First(&rec, "id = ?", executionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var steps []StepRecord
	if err := g.db.WithContext(ctx).
		Where("execution_id = ?", executionID).
		Order("id").
		Find(&steps).Error; err != nil {
		return nil, err
	}
	return decodeExecution(&rec, steps)
}

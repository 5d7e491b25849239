package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/magesync/backend/internal/domain/integration"
	"github.com/magesync/backend/internal/infrastructure/persistence/models"
)

// GormSyncRunRepository implements SyncRunRepository using GORM
type GormSyncRunRepository struct {
	db *gorm.DB
}

// Ensure GormSyncRunRepository implements the SyncRunRepository port
var _ integration.SyncRunRepository = (*GormSyncRunRepository)(nil)

// NewGormSyncRunRepository creates a new GormSyncRunRepository
func NewGormSyncRunRepository(db *gorm.DB) *GormSyncRunRepository {
	return &GormSyncRunRepository{db: db}
}

// Save inserts the run, assigning an id when it has none
func (r *GormSyncRunRepository) Save(ctx context.Context, run *integration.SyncRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	var model models.SyncRunModel
	model.FromDomain(run)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to save sync run: %w", err)
	}
	return nil
}

// ListRecent returns the newest runs first
func (r *GormSyncRunRepository) ListRecent(ctx context.Context, job string, limit int) ([]integration.SyncRun, error) {
	query := r.db.WithContext(ctx).Model(&models.SyncRunModel{})
	if job != "" {
		query = query.Where("job = ?", job)
	}
	if limit <= 0 {
		limit = 20
	}

	var rows []models.SyncRunModel
	if err := query.Order("started_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}

	runs := make([]integration.SyncRun, 0, len(rows))
	for i := range rows {
		runs = append(runs, rows[i].ToDomain())
	}
	return runs, nil
}

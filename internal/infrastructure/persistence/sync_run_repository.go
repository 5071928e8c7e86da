package persistence

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/liberta/backend/internal/domain/order"
	"github.com/liberta/backend/internal/infrastructure/persistence/models"
)

// GormSyncRunRepository implements order.SyncRunRepository using GORM
type GormSyncRunRepository struct {
	db *gorm.DB
}

// NewGormSyncRunRepository creates a new GormSyncRunRepository
func NewGormSyncRunRepository(db *gorm.DB) *GormSyncRunRepository {
	return &GormSyncRunRepository{db: db}
}

var _ order.SyncRunRepository = (*GormSyncRunRepository)(nil)

// Save inserts or updates a sync run record. Runs are saved once when they
// start and again when they finish.
func (r *GormSyncRunRepository) Save(ctx context.Context, run *order.SyncRun) error {
	var model models.SyncRunModel
	model.FromDomain(run)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&model).Error
}

// FindRecent returns the most recent runs, newest first, optionally filtered
// by job type
func (r *GormSyncRunRepository) FindRecent(ctx context.Context, jobType string, limit int) ([]order.SyncRun, error) {
	var runModels []models.SyncRunModel
	query := r.db.WithContext(ctx).
		Model(&models.SyncRunModel{}).
		Order("started_at DESC")
	if jobType != "" {
		query = query.Where("job_type = ?", jobType)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&runModels).Error; err != nil {
		return nil, err
	}

	runs := make([]order.SyncRun, len(runModels))
	for i, model := range runModels {
		runs[i] = *model.ToDomain()
	}
	return runs, nil
}

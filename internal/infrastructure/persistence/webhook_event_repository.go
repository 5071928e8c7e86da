package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/liberta/backend/internal/domain/order"
	"github.com/liberta/backend/internal/infrastructure/persistence/models"
)

// GormWebhookEventRepository implements order.WebhookEventRepository using GORM
type GormWebhookEventRepository struct {
	db *gorm.DB
}

// NewGormWebhookEventRepository creates a new GormWebhookEventRepository
func NewGormWebhookEventRepository(db *gorm.DB) *GormWebhookEventRepository {
	return &GormWebhookEventRepository{db: db}
}

var _ order.WebhookEventRepository = (*GormWebhookEventRepository)(nil)

// Record stores the audit record of an inbound carrier event
func (r *GormWebhookEventRepository) Record(ctx context.Context, event *order.WebhookEvent) error {
	var model models.WebhookEventModel
	model.FromDomain(event)
	return r.db.WithContext(ctx).Create(&model).Error
}

package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/liberta/backend/internal/domain/order"
	"github.com/liberta/backend/internal/infrastructure/persistence/models"
)

// GormOrderRepository implements order.Repository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

var _ order.Repository = (*GormOrderRepository)(nil)

// FindByStoreAndNativeID finds an order by its (store, native id) natural key
func (r *GormOrderRepository) FindByStoreAndNativeID(ctx context.Context, storeID string, nativeID int64) (*order.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("store_id = ? AND native_id = ?", storeID, nativeID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrOrderNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByReference finds an order by its carrier-facing reference
func (r *GormOrderRepository) FindByReference(ctx context.Context, reference string) (*order.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("reference = ?", reference).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrOrderNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindNeedingRefresh returns orders whose shipping status is absent or not yet
// in the given terminal label set
func (r *GormOrderRepository) FindNeedingRefresh(ctx context.Context, terminalStatuses []string, limit int) ([]order.Order, error) {
	var orderModels []models.OrderModel
	query := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("shipping_status IS NULL OR shipping_status NOT IN ?", terminalStatuses).
		Order("ordered_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&orderModels).Error; err != nil {
		return nil, err
	}

	orders := make([]order.Order, len(orderModels))
	for i, model := range orderModels {
		orders[i] = *model.ToDomain()
	}
	return orders, nil
}

// FindByReferences returns the orders matching the given references
func (r *GormOrderRepository) FindByReferences(ctx context.Context, references []string) ([]order.Order, error) {
	if len(references) == 0 {
		return nil, nil
	}

	var orderModels []models.OrderModel
	if err := r.db.WithContext(ctx).
		Where("reference IN ?", references).
		Find(&orderModels).Error; err != nil {
		return nil, err
	}

	orders := make([]order.Order, len(orderModels))
	for i, model := range orderModels {
		orders[i] = *model.ToDomain()
	}
	return orders, nil
}

// Create inserts the order together with its line items in one transaction
func (r *GormOrderRepository) Create(ctx context.Context, o *order.Order) error {
	var model models.OrderModel
	model.FromDomain(o)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&model).Error
	})
	if err != nil {
		if isDuplicateKeyError(err) {
			return order.ErrDuplicateOrder
		}
		return err
	}
	return nil
}

// ApplyShippingUpdates applies a batch of shipping-status writes. Each item is
// committed independently so one bad row never aborts the batch.
func (r *GormOrderRepository) ApplyShippingUpdates(ctx context.Context, updates []order.ShippingUpdate) []error {
	var failures []error
	for _, u := range updates {
		if err := r.applyShippingUpdate(ctx, u); err != nil {
			failures = append(failures, fmt.Errorf("order %s: %w", u.OrderID, err))
		}
	}
	return failures
}

func (r *GormOrderRepository) applyShippingUpdate(ctx context.Context, u order.ShippingUpdate) error {
	values := map[string]interface{}{
		"shipping_status": u.ShippingStatus,
		"updated_at":      time.Now().UTC(),
	}
	if u.ShipmentID != nil {
		values["shipment_id"] = *u.ShipmentID
	}
	if u.TrackingNumber != nil {
		values["tracking_number"] = *u.TrackingNumber
	}
	if u.ForceDelivered {
		values["status"] = order.StatusDelivered.String()
	}

	result := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("id = ?", u.OrderID).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

// HighestNativeID returns the highest ingested native id for a store, or 0
// when the store has no orders yet
func (r *GormOrderRepository) HighestNativeID(ctx context.Context, storeID string) (int64, error) {
	var highest *int64
	if err := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("store_id = ?", storeID).
		Select("MAX(native_id)").
		Scan(&highest).Error; err != nil {
		return 0, err
	}
	if highest == nil {
		return 0, nil
	}
	return *highest, nil
}

// isDuplicateKeyError detects unique-constraint violations across the
// postgres and sqlite drivers
func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

package orders

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/wacommerce-backend/pkg/db"
	"github.com/angelmondragon/wacommerce-backend/pkg/db/models"
	"github.com/angelmondragon/wacommerce-backend/pkg/enums"
)

// Repository persists orders and their frozen line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	CreateItems(ctx context.Context, items []models.OrderItem) error
	FindLastForCustomer(ctx context.Context, merchantID, customerID int64, lock bool) (*models.Order, error)
	FindByID(ctx context.Context, merchantID, orderID int64, lock bool) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID int64, status enums.OrderStatus) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to the provided DB handle.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("Items").Create(order).Error
}

func (r *repository) CreateItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindLastForCustomer(ctx context.Context, merchantID, customerID int64, lock bool) (*models.Order, error) {
	q := r.db.WithContext(ctx)
	if lock {
		q = db.ForUpdate(q)
	}
	var order models.Order
	if err := q.
		Where("merchant_id = ? AND customer_id = ?", merchantID, customerID).
		Order("created_at DESC, id DESC").
		First(&order).Error; err != nil {
		return nil, err
	}
	return r.withItems(ctx, &order)
}

func (r *repository) FindByID(ctx context.Context, merchantID, orderID int64, lock bool) (*models.Order, error) {
	q := r.db.WithContext(ctx)
	if lock {
		q = db.ForUpdate(q)
	}
	var order models.Order
	if err := q.Where("merchant_id = ? AND id = ?", merchantID, orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return r.withItems(ctx, &order)
}

func (r *repository) UpdateStatus(ctx context.Context, orderID int64, status enums.OrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{"status": status, "updated_at": time.Now()}).Error
}

func (r *repository) withItems(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", order.ID).
		Order("id ASC").
		Find(&order.Items).Error; err != nil {
		return nil, err
	}
	return order, nil
}

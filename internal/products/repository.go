package products

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/wacommerce-backend/pkg/db/models"
)

// Repository reads a merchant's catalog.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListActive(ctx context.Context, merchantID int64) ([]models.Product, error)
	FindActive(ctx context.Context, merchantID, productID int64) (*models.Product, error)
	FindByIDs(ctx context.Context, merchantID int64, ids []int64) ([]models.Product, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListActive(ctx context.Context, merchantID int64) ([]models.Product, error) {
	var rows []models.Product
	if err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND is_active = ?", merchantID, true).
		Order("name ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindActive(ctx context.Context, merchantID, productID int64) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND id = ? AND is_active = ?", merchantID, productID, true).
		First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindByIDs(ctx context.Context, merchantID int64, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND id IN ?", merchantID, ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

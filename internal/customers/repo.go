package customers

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/wacommerce-backend/pkg/db/models"
)

// Repository persists customers scoped to a merchant.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrCreate(ctx context.Context, merchantID int64, phone string) (*models.Customer, error)
	FindByID(ctx context.Context, merchantID, id int64) (*models.Customer, error)
	UpdateColumn(ctx context.Context, id int64, column string, value any) error
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

// FindOrCreate inserts the customer if missing; a concurrent insert of the
// same phone is absorbed by the unique constraint.
func (r *repository) FindOrCreate(ctx context.Context, merchantID int64, phone string) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND phone = ?", merchantID, phone).
		First(&customer).Error
	if err == nil {
		return &customer, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	customer = models.Customer{MerchantID: merchantID, Phone: phone}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "merchant_id"}, {Name: "phone"}},
			DoNothing: true,
		}).
		Create(&customer).Error; err != nil {
		return nil, err
	}

	var stored models.Customer
	if err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND phone = ?", merchantID, phone).
		First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *repository) FindByID(ctx context.Context, merchantID, id int64) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND id = ?", merchantID, id).
		First(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *repository) UpdateColumn(ctx context.Context, id int64, column string, value any) error {
	return r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", id).
		Update(column, value).Error
}

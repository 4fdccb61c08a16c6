package conversation

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/wacommerce-backend/pkg/db"
	"github.com/angelmondragon/wacommerce-backend/pkg/db/models"
	"github.com/angelmondragon/wacommerce-backend/pkg/enums"
	"github.com/angelmondragon/wacommerce-backend/pkg/types"
)

// Repository persists one state document per (merchant, customer).
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Find(ctx context.Context, merchantID, customerID int64) (*models.ConversationState, error)
	Ensure(ctx context.Context, merchantID, customerID int64) error
	FindForUpdate(ctx context.Context, merchantID, customerID int64) (*models.ConversationState, error)
	Save(ctx context.Context, id int64, data types.Document, step enums.ConversationStep) error
	ResetStale(ctx context.Context, steps []enums.ConversationStep, before time.Time) (int64, error)
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

func (r *repository) Find(ctx context.Context, merchantID, customerID int64) (*models.ConversationState, error) {
	var row models.ConversationState
	if err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND customer_id = ?", merchantID, customerID).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Ensure creates an empty document if none exists yet.
func (r *repository) Ensure(ctx context.Context, merchantID, customerID int64) error {
	row := models.ConversationState{
		MerchantID: merchantID,
		CustomerID: customerID,
		Data:       types.Document{},
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "merchant_id"}, {Name: "customer_id"}},
			DoNothing: true,
		}).
		Create(&row).Error
}

func (r *repository) FindForUpdate(ctx context.Context, merchantID, customerID int64) (*models.ConversationState, error) {
	var row models.ConversationState
	if err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("merchant_id = ? AND customer_id = ?", merchantID, customerID).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) Save(ctx context.Context, id int64, data types.Document, step enums.ConversationStep) error {
	return r.db.WithContext(ctx).
		Model(&models.ConversationState{}).
		Where("id = ?", id).
		Select("data", "step", "updated_at").
		Updates(&models.ConversationState{Data: data, Step: step, UpdatedAt: time.Now().UTC()}).Error
}

// ResetStale empties documents stuck in one of steps since before.
func (r *repository) ResetStale(ctx context.Context, steps []enums.ConversationStep, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ConversationState{}).
		Where("step IN ? AND updated_at < ?", steps, before).
		Select("data", "step", "updated_at").
		Updates(&models.ConversationState{Data: types.Document{}, Step: enums.ConversationStepUnset, UpdatedAt: time.Now().UTC()})
	return res.RowsAffected, res.Error
}

package merchants

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/wacommerce-backend/pkg/db/models"
)

// Repository reads merchant routing and access data.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*models.Merchant, error)
	FindBySessionName(ctx context.Context, session string) (*models.Merchant, error)
	FindByWhatsAppNumber(ctx context.Context, number string) (*models.Merchant, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to the provided DB handle.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id int64) (*models.Merchant, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) FindBySessionName(ctx context.Context, session string) (*models.Merchant, error) {
	return r.first(ctx, "session_name = ?", session)
}

func (r *repository) FindByWhatsAppNumber(ctx context.Context, number string) (*models.Merchant, error) {
	return r.first(ctx, "whatsapp_number = ?", number)
}

func (r *repository) first(ctx context.Context, query string, arg any) (*models.Merchant, error) {
	var merchant models.Merchant
	if err := r.db.WithContext(ctx).Where(query, arg).First(&merchant).Error; err != nil {
		return nil, err
	}
	return &merchant, nil
}

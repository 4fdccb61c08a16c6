package cart

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/wacommerce-backend/pkg/db"
	"github.com/angelmondragon/wacommerce-backend/pkg/db/models"
)

// Repository persists live cart lines for a (merchant, customer) pair.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, item *models.CartItem) error
	List(ctx context.Context, merchantID, customerID int64) ([]models.CartItem, error)
	ListForUpdate(ctx context.Context, merchantID, customerID int64) ([]models.CartItem, error)
	Find(ctx context.Context, merchantID, customerID, productID int64) (*models.CartItem, error)
	UpdateQuantity(ctx context.Context, item *models.CartItem, quantity int) error
	Delete(ctx context.Context, merchantID, customerID, productID int64) error
	DeleteByIDs(ctx context.Context, ids []int64) error
	Clear(ctx context.Context, merchantID, customerID int64) error
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
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

// Upsert inserts the line or, when the product is already in the cart,
// increments its quantity in the same statement so concurrent adds sum.
func (r *repository) Upsert(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "merchant_id"}, {Name: "customer_id"}, {Name: "product_id"}},
			DoUpdates: clause.Set{
				{Column: clause.Column{Name: "quantity"}, Value: gorm.Expr("cart_items.quantity + excluded.quantity")},
				{Column: clause.Column{Name: "unit_price"}, Value: gorm.Expr("excluded.unit_price")},
				{Column: clause.Column{Name: "total_price"}, Value: gorm.Expr("(cart_items.quantity + excluded.quantity) * excluded.unit_price")},
				{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
			},
		}).
		Create(item).Error
}

func (r *repository) List(ctx context.Context, merchantID, customerID int64) ([]models.CartItem, error) {
	var rows []models.CartItem
	if err := r.db.WithContext(ctx).
		Preload("Product").
		Where("merchant_id = ? AND customer_id = ?", merchantID, customerID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListForUpdate reads the cart with row locks where the dialect has them.
// Must be called inside a transaction.
func (r *repository) ListForUpdate(ctx context.Context, merchantID, customerID int64) ([]models.CartItem, error) {
	var rows []models.CartItem
	if err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("merchant_id = ? AND customer_id = ?", merchantID, customerID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Find(ctx context.Context, merchantID, customerID, productID int64) (*models.CartItem, error) {
	var item models.CartItem
	if err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("merchant_id = ? AND customer_id = ? AND product_id = ?", merchantID, customerID, productID).
		First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) UpdateQuantity(ctx context.Context, item *models.CartItem, quantity int) error {
	total := item.UnitPrice.Mul(decimalFromInt(quantity))
	if err := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", item.ID).
		Updates(map[string]any{"quantity": quantity, "total_price": total}).Error; err != nil {
		return err
	}
	item.Quantity = quantity
	item.TotalPrice = total
	return nil
}

func (r *repository) Delete(ctx context.Context, merchantID, customerID, productID int64) error {
	return r.db.WithContext(ctx).
		Where("merchant_id = ? AND customer_id = ? AND product_id = ?", merchantID, customerID, productID).
		Delete(&models.CartItem{}).Error
}

func (r *repository) DeleteByIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.CartItem{}).Error
}

func (r *repository) Clear(ctx context.Context, merchantID, customerID int64) error {
	return r.db.WithContext(ctx).
		Where("merchant_id = ? AND customer_id = ?", merchantID, customerID).
		Delete(&models.CartItem{}).Error
}

func (r *repository) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("updated_at < ?", before).Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

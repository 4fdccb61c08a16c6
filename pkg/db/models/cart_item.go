package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem is one live cart line for a (merchant, customer, product) triple
// with a price snapshot taken at add time.
type CartItem struct {
	ID         int64           `gorm:"column:id;primaryKey;autoIncrement"`
	MerchantID int64           `gorm:"column:merchant_id;not null;uniqueIndex:idx_cart_items_owner_product"`
	CustomerID int64           `gorm:"column:customer_id;not null;uniqueIndex:idx_cart_items_owner_product"`
	ProductID  int64           `gorm:"column:product_id;not null;uniqueIndex:idx_cart_items_owner_product"`
	Quantity   int             `gorm:"column:quantity;not null"`
	UnitPrice  decimal.Decimal `gorm:"column:unit_price;type:numeric(14,2);not null"`
	TotalPrice decimal.Decimal `gorm:"column:total_price;type:numeric(14,2);not null"`
	Product    *Product        `gorm:"foreignKey:ProductID"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

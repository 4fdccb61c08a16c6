package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/wacommerce-backend/pkg/enums"
)

// Product is a merchant catalog entry. The conversation core only reads it.
type Product struct {
	ID         int64           `gorm:"column:id;primaryKey;autoIncrement"`
	MerchantID int64           `gorm:"column:merchant_id;not null;index"`
	Name       string          `gorm:"column:name;not null"`
	Code       *string         `gorm:"column:code"`
	Price      decimal.Decimal `gorm:"column:price;type:numeric(14,2);not null"`
	Currency   enums.Currency  `gorm:"column:currency;not null;default:'XOF'"`
	IsActive   bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

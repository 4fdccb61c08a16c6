package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/wacommerce-backend/pkg/enums"
)

// Order is the immutable snapshot of a confirmed cart. Only Status changes
// after creation.
type Order struct {
	ID                   int64                `gorm:"column:id;primaryKey;autoIncrement"`
	Reference            string               `gorm:"column:reference;not null;uniqueIndex"`
	MerchantID           int64                `gorm:"column:merchant_id;not null;index:idx_orders_owner"`
	CustomerID           int64                `gorm:"column:customer_id;not null;index:idx_orders_owner"`
	RecipientMode        enums.RecipientMode  `gorm:"column:recipient_mode;not null"`
	RecipientName        string               `gorm:"column:recipient_name;not null"`
	RecipientPhone       string               `gorm:"column:recipient_phone;not null"`
	DeliveryAddress      *string              `gorm:"column:delivery_address"`
	DeliveryRequestedRaw string               `gorm:"column:delivery_requested_raw;not null"`
	DeliveryRequestedAt  *time.Time           `gorm:"column:delivery_requested_at"`
	PaymentMethod        *enums.PaymentMethod `gorm:"column:payment_method"`
	TotalAmount          decimal.Decimal      `gorm:"column:total_amount;type:numeric(14,2);not null"`
	Currency             enums.Currency       `gorm:"column:currency;not null"`
	Status               enums.OrderStatus    `gorm:"column:status;not null;default:'pending'"`
	Items                []OrderItem          `gorm:"foreignKey:OrderID"`
	CreatedAt            time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/angelmondragon/wacommerce-backend/pkg/enums"
)

// Customer is an end user of one merchant, identified by phone number.
type Customer struct {
	ID            int64                `gorm:"column:id;primaryKey;autoIncrement"`
	MerchantID    int64                `gorm:"column:merchant_id;not null;uniqueIndex:idx_customers_merchant_phone"`
	Phone         string               `gorm:"column:phone;not null;uniqueIndex:idx_customers_merchant_phone"`
	Name          *string              `gorm:"column:name"`
	Address       *string              `gorm:"column:address"`
	PaymentMethod *enums.PaymentMethod `gorm:"column:payment_method"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// DisplayName returns the collected name or "".
func (c Customer) DisplayName() string {
	if c.Name == nil {
		return ""
	}
	return *c.Name
}

// AddressValue returns the collected address or "".
func (c Customer) AddressValue() string {
	if c.Address == nil {
		return ""
	}
	return *c.Address
}

// PaymentMethodValue returns the collected payment method or "".
func (c Customer) PaymentMethodValue() enums.PaymentMethod {
	if c.PaymentMethod == nil {
		return ""
	}
	return *c.PaymentMethod
}

package models

import (
	"time"

	"github.com/angelmondragon/wacommerce-backend/pkg/enums"
)

// Merchant is a tenant storefront connected to one WhatsApp number.
type Merchant struct {
	ID                    int64          `gorm:"column:id;primaryKey;autoIncrement"`
	Name                  string         `gorm:"column:name;not null"`
	WhatsAppNumber        string         `gorm:"column:whatsapp_number;not null;uniqueIndex"`
	SessionName           string         `gorm:"column:session_name;not null;uniqueIndex"`
	Currency              enums.Currency `gorm:"column:currency;not null;default:'XOF'"`
	Suspended             bool           `gorm:"column:suspended;not null;default:false"`
	SubscriptionExpiresAt *time.Time     `gorm:"column:subscription_expires_at"`
	CreatedAt             time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// CanReceiveMessages reports whether inbound traffic should be processed.
func (m Merchant) CanReceiveMessages(now time.Time) bool {
	if m.Suspended {
		return false
	}
	if m.SubscriptionExpiresAt != nil && !m.SubscriptionExpiresAt.After(now) {
		return false
	}
	return true
}

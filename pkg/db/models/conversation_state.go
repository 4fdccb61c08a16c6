package models

import (
	"time"

	"github.com/angelmondragon/wacommerce-backend/pkg/enums"
	"github.com/angelmondragon/wacommerce-backend/pkg/types"
)

// ConversationState holds the dialogue document for a (merchant, customer)
// pair. Step mirrors Data["step"] so housekeeping can filter without JSON
// operators.
type ConversationState struct {
	ID         int64                  `gorm:"column:id;primaryKey;autoIncrement"`
	MerchantID int64                  `gorm:"column:merchant_id;not null;uniqueIndex:idx_conversation_states_owner"`
	CustomerID int64                  `gorm:"column:customer_id;not null;uniqueIndex:idx_conversation_states_owner"`
	Data       types.Document         `gorm:"column:data;type:jsonb;serializer:json;not null"`
	Step       enums.ConversationStep `gorm:"column:step;not null;default:''"`
	CreatedAt  time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/avelardi/atelia-backend/pkg/enums"
)

// Notification stores in-app notification payloads for buyers and artisans.
// Rows are written by the notification worker, never by settlement
// transactions directly.
type Notification struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	RecipientID   uuid.UUID              `gorm:"column:recipient_id;type:uuid;not null;index"`
	RecipientRole enums.ActorRole        `gorm:"column:recipient_role;type:text;not null"`
	Type          enums.NotificationType `gorm:"column:type;type:text;not null"`
	Title         string                 `gorm:"column:title;type:text;not null"`
	Message       string                 `gorm:"column:message;type:text;not null"`
	Link          *string                `gorm:"column:link;type:text"`
	OrderID       *uuid.UUID             `gorm:"column:order_id;type:uuid"`
	ReadAt        *time.Time             `gorm:"column:read_at"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
}

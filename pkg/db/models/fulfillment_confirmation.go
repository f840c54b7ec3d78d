package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/avelardi/atelia-backend/pkg/enums"
)

// FulfillmentConfirmation tracks the two-party handoff acknowledgment for an
// order. One row per order; the leg mirrors the order's delivery method so
// pickup confirmations cannot be recorded against delivery orders.
type FulfillmentConfirmation struct {
	ID      uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderID uuid.UUID             `gorm:"column:order_id;type:uuid;not null;uniqueIndex:fulfillment_confirmations_order_id_key"`
	Leg     enums.ConfirmationLeg `gorm:"column:leg;type:text;not null"`

	ArtisanConfirmed   bool       `gorm:"column:artisan_confirmed;not null;default:false"`
	ArtisanConfirmedAt *time.Time `gorm:"column:artisan_confirmed_at"`
	ArtisanNotes       *string    `gorm:"column:artisan_notes;type:text"`

	BuyerConfirmed   bool       `gorm:"column:buyer_confirmed;not null;default:false"`
	BuyerConfirmedAt *time.Time `gorm:"column:buyer_confirmed_at"`
	BuyerNotes       *string    `gorm:"column:buyer_notes;type:text"`

	CompletionDeadline *time.Time `gorm:"column:completion_deadline;index"`
	AutoCompletedAt    *time.Time `gorm:"column:auto_completed_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

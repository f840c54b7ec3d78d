package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/avelardi/atelia-backend/pkg/enums"
	"github.com/avelardi/atelia-backend/pkg/identity"
)

// Order is owned by the order-management subsystem. Settlement only mutates
// its status, payment status, and completion stamps; product and pricing
// fields are read-only here.
type Order struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	ArtisanID         identity.ArtisanID   `gorm:"column:artisan_id;type:uuid;not null;index"`
	BuyerID           *identity.UserID     `gorm:"column:buyer_id;type:uuid;index"`
	GuestEmail        *string              `gorm:"column:guest_email;type:text"`
	DeliveryMethod    enums.DeliveryMethod `gorm:"column:delivery_method;type:text;not null"`
	Status            enums.OrderStatus    `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus     enums.PaymentStatus  `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	Currency          enums.Currency       `gorm:"column:currency;type:text;not null;default:'USD'"`
	ProductTotalCents int64                `gorm:"column:product_total_cents;not null"`
	DeliveryFeeCents  int64                `gorm:"column:delivery_fee_cents;not null;default:0"`
	SquarePaymentID   *string              `gorm:"column:square_payment_id;type:text"`
	SquareRefundID    *string              `gorm:"column:square_refund_id;type:text"`
	CompletedAt       *time.Time           `gorm:"column:completed_at"`
	CanceledAt        *time.Time           `gorm:"column:canceled_at"`

	Confirmation *FulfillmentConfirmation `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Dispute      *Dispute                 `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// IsDisputed reports whether the order carries a live dispute flag.
func (o *Order) IsDisputed() bool {
	return o.Dispute != nil && o.Dispute.IsDisputed
}

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/avelardi/atelia-backend/pkg/enums"
	"github.com/avelardi/atelia-backend/pkg/identity"
)

// TransactionMetadata carries the settlement context of a ledger entry.
type TransactionMetadata struct {
	OrderID           *uuid.UUID `json:"order_id,omitempty"`
	PlatformFeeCents  *int64     `json:"platform_fee_cents,omitempty"`
	NetAmountCents    *int64     `json:"net_amount_cents,omitempty"`
	DeliveryFeeCents  *int64     `json:"delivery_fee_cents,omitempty"`
	ProcessorPayoutID *string    `json:"processor_payout_id,omitempty"`
	Note              *string    `json:"note,omitempty"`
}

// WalletTransaction is one append-only ledger entry. Amounts are signed
// (credits positive, debits negative); once Status is completed the row is
// immutable and can only be superseded by a compensating entry.
//
// ProcessorPayoutID is unique so a payout debit replayed after a partial
// failure lands on the existing row instead of double-debiting.
type WalletTransaction struct {
	ID       uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	WalletID uuid.UUID          `gorm:"column:wallet_id;type:uuid;not null;index:wallet_transactions_wallet_id_idx"`
	OwnerID  identity.ArtisanID `gorm:"column:owner_id;type:uuid;not null;index"`

	Type          enums.WalletTransactionType   `gorm:"column:type;type:text;not null"`
	AmountCents   int64                         `gorm:"column:amount_cents;not null"`
	Currency      enums.Currency                `gorm:"column:currency;type:text;not null;default:'USD'"`
	BalanceBefore int64                         `gorm:"column:balance_before_cents;not null"`
	BalanceAfter  int64                         `gorm:"column:balance_after_cents;not null"`
	Description   string                        `gorm:"column:description;type:text;not null"`
	Status        enums.WalletTransactionStatus `gorm:"column:status;type:text;not null;default:'completed'"`

	ReferenceType *string    `gorm:"column:reference_type;type:text"`
	ReferenceID   *uuid.UUID `gorm:"column:reference_id;type:uuid"`

	ProcessorPayoutID *string             `gorm:"column:processor_payout_id;type:text;uniqueIndex:wallet_transactions_processor_payout_id_key"`
	Metadata          TransactionMetadata `gorm:"column:metadata;type:jsonb;serializer:json"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

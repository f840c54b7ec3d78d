package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/avelardi/atelia-backend/pkg/enums"
	"github.com/avelardi/atelia-backend/pkg/identity"
)

// PayoutAttempt records each external payout request before the ledger debit
// lands. Attempts stuck in the requested state after the external call
// returned are reconciled by a background job using the processor payout id
// as the idempotency key.
type PayoutAttempt struct {
	ID       uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	WalletID uuid.UUID          `gorm:"column:wallet_id;type:uuid;not null;index"`
	OwnerID  identity.ArtisanID `gorm:"column:owner_id;type:uuid;not null"`

	AmountCents int64          `gorm:"column:amount_cents;not null"`
	Currency    enums.Currency `gorm:"column:currency;type:text;not null;default:'USD'"`

	Status             enums.PayoutAttemptStatus `gorm:"column:status;type:text;not null;default:'requested';index"`
	ProcessorAccountID string                    `gorm:"column:processor_account_id;type:text;not null"`
	ProcessorPayoutID  *string                   `gorm:"column:processor_payout_id;type:text;uniqueIndex:payout_attempts_processor_payout_id_key"`
	FailureReason      *string                   `gorm:"column:failure_reason;type:text"`

	RequestedAt time.Time  `gorm:"column:requested_at;not null"`
	DebitedAt   *time.Time `gorm:"column:debited_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

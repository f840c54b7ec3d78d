package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/avelardi/atelia-backend/pkg/enums"
	"github.com/avelardi/atelia-backend/pkg/identity"
)

// Wallet holds one artisan's settlement balance. The balance column is a
// cached projection of the transaction ledger and is only ever updated in the
// same transaction as a WalletTransaction insert. Wallets are never deleted,
// only deactivated.
type Wallet struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID      identity.ArtisanID `gorm:"column:owner_id;type:uuid;not null;uniqueIndex:wallets_owner_id_key"`
	BalanceCents int64              `gorm:"column:balance_cents;not null;default:0"`
	Currency     enums.Currency     `gorm:"column:currency;type:text;not null;default:'USD'"`
	IsActive     bool               `gorm:"column:is_active;not null;default:true"`

	ProcessorAccountID *string `gorm:"column:processor_account_id;type:text"`

	PayoutsEnabled     bool                 `gorm:"column:payouts_enabled;not null;default:false"`
	PayoutSchedule     enums.PayoutSchedule `gorm:"column:payout_schedule;type:text;not null;default:'weekly'"`
	MinimumPayoutCents int64                `gorm:"column:minimum_payout_cents;not null;default:5000"`
	LastPayoutAt       *time.Time           `gorm:"column:last_payout_at"`
	NextPayoutAt       *time.Time           `gorm:"column:next_payout_at;index"`

	TotalEarningsCents int64 `gorm:"column:total_earnings_cents;not null;default:0"`
	TotalSpentCents    int64 `gorm:"column:total_spent_cents;not null;default:0"`
	TotalPayoutsCents  int64 `gorm:"column:total_payouts_cents;not null;default:0"`
	PlatformFeesCents  int64 `gorm:"column:platform_fees_cents;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

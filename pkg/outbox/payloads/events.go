package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/avelardi/atelia-backend/pkg/enums"
)

// ConfirmationPendingEvent is emitted when the artisan confirms a handoff and
// the buyer's confirmation window opens.
type ConfirmationPendingEvent struct {
	OrderID            uuid.UUID             `json:"order_id"`
	ArtisanID          uuid.UUID             `json:"artisan_id"`
	BuyerID            *uuid.UUID            `json:"buyer_id,omitempty"`
	GuestEmail         *string               `json:"guest_email,omitempty"`
	Leg                enums.ConfirmationLeg `json:"leg"`
	CompletionDeadline time.Time             `json:"completion_deadline"`
}

// OrderCompletedEvent is emitted exactly once when an order finalizes, whether
// through buyer confirmation, the auto-completion sweep, or a dispute
// resolution in the artisan's favor.
type OrderCompletedEvent struct {
	OrderID          uuid.UUID         `json:"order_id"`
	ArtisanID        uuid.UUID         `json:"artisan_id"`
	BuyerID          *uuid.UUID        `json:"buyer_id,omitempty"`
	Status           enums.OrderStatus `json:"status"`
	AutoCompleted    bool              `json:"auto_completed"`
	NetAmountCents   int64             `json:"net_amount_cents"`
	PlatformFeeCents int64             `json:"platform_fee_cents"`
	CompletedAt      time.Time         `json:"completed_at"`
}

// DisputeReportedEvent signals that settlement for an order is frozen.
type DisputeReportedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	DisputeID      uuid.UUID         `json:"dispute_id"`
	Type           enums.DisputeType `json:"type"`
	Reason         string            `json:"reason"`
	ReportedBy     uuid.UUID         `json:"reported_by"`
	ReportedByRole enums.ActorRole   `json:"reported_by_role"`
	ReportedAt     time.Time         `json:"reported_at"`
}

// DisputeStatusChangedEvent notifies both parties of an admin status change.
type DisputeStatusChangedEvent struct {
	OrderID   uuid.UUID           `json:"order_id"`
	DisputeID uuid.UUID           `json:"dispute_id"`
	Status    enums.DisputeStatus `json:"status"`
	Notes     *string             `json:"notes,omitempty"`
	ChangedBy uuid.UUID           `json:"changed_by"`
}

// DisputeResolvedEvent carries the admin's final decision.
type DisputeResolvedEvent struct {
	OrderID    uuid.UUID               `json:"order_id"`
	DisputeID  uuid.UUID               `json:"dispute_id"`
	Resolution enums.DisputeResolution `json:"resolution"`
	Notes      *string                 `json:"notes,omitempty"`
	ResolvedBy uuid.UUID               `json:"resolved_by"`
	ResolvedAt time.Time               `json:"resolved_at"`
}

// RefundRequestedEvent asks the refund worker to push money back to the buyer
// through the card processor. The core records the decision only.
type RefundRequestedEvent struct {
	OrderID         uuid.UUID      `json:"order_id"`
	DisputeID       uuid.UUID      `json:"dispute_id"`
	SquarePaymentID *string        `json:"square_payment_id,omitempty"`
	AmountCents     int64          `json:"amount_cents"`
	Currency        enums.Currency `json:"currency"`
	Reason          string         `json:"reason"`
}

// PayoutProcessedEvent is emitted after the ledger debit for a payout lands.
type PayoutProcessedEvent struct {
	WalletID          uuid.UUID      `json:"wallet_id"`
	ArtisanID         uuid.UUID      `json:"artisan_id"`
	AmountCents       int64          `json:"amount_cents"`
	Currency          enums.Currency `json:"currency"`
	ProcessorPayoutID string         `json:"processor_payout_id"`
	ProcessedAt       time.Time      `json:"processed_at"`
}

// PayoutDebitFailedEvent flags a payout whose external transfer succeeded but
// whose ledger debit did not, so operators can watch reconciliation.
type PayoutDebitFailedEvent struct {
	WalletID          uuid.UUID `json:"wallet_id"`
	ArtisanID         uuid.UUID `json:"artisan_id"`
	AmountCents       int64     `json:"amount_cents"`
	ProcessorPayoutID string    `json:"processor_payout_id"`
	Error             string    `json:"error"`
}

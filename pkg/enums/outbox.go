package enums

// OutboxEventType maps to the event_type_enum enum in Postgres.
type OutboxEventType string

const (
	EventConfirmationPending  OutboxEventType = "confirmation.pending"
	EventOrderCompleted       OutboxEventType = "order.completed"
	EventDisputeReported      OutboxEventType = "dispute.reported"
	EventDisputeStatusChanged OutboxEventType = "dispute.status_changed"
	EventDisputeResolved      OutboxEventType = "dispute.resolved"
	EventRefundRequested      OutboxEventType = "refund.requested"
	EventPayoutProcessed      OutboxEventType = "payout.processed"
	EventPayoutDebitFailed    OutboxEventType = "payout.debit_failed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventConfirmationPending,
	EventOrderCompleted,
	EventDisputeReported,
	EventDisputeStatusChanged,
	EventDisputeResolved,
	EventRefundRequested,
	EventPayoutProcessed,
	EventPayoutDebitFailed,
}

// IsValid reports whether the value matches the canonical event type enum.
func (t OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// OutboxAggregateType maps to the aggregate_type_enum enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder   OutboxAggregateType = "order"
	AggregateDispute OutboxAggregateType = "dispute"
	AggregateWallet  OutboxAggregateType = "wallet"
)

// IsValid reports whether the value matches the canonical aggregate type enum.
func (t OutboxAggregateType) IsValid() bool {
	return t == AggregateOrder || t == AggregateDispute || t == AggregateWallet
}

// OutboxDLQErrorReason maps to the outbox_dlq_error_reason_enum enum in Postgres.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonDecodeFailed OutboxDLQErrorReason = "decode_failed"
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

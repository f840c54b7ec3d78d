package enums

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationConfirmationPending NotificationType = "confirmation_pending"
	NotificationOrderCompleted      NotificationType = "order_completed"
	NotificationDisputeUpdate       NotificationType = "dispute_update"
	NotificationPayoutProcessed     NotificationType = "payout_processed"
)

var validNotificationTypes = []NotificationType{
	NotificationConfirmationPending,
	NotificationOrderCompleted,
	NotificationDisputeUpdate,
	NotificationPayoutProcessed,
}

// IsValid reports whether the value matches the canonical notification enum.
func (t NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

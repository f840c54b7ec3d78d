package enums

import (
	"fmt"
	"time"
)

// PayoutSchedule maps to the payout_schedule_enum enum in Postgres.
type PayoutSchedule string

const (
	PayoutScheduleDaily   PayoutSchedule = "daily"
	PayoutScheduleWeekly  PayoutSchedule = "weekly"
	PayoutScheduleMonthly PayoutSchedule = "monthly"
)

var validPayoutSchedules = []PayoutSchedule{
	PayoutScheduleDaily,
	PayoutScheduleWeekly,
	PayoutScheduleMonthly,
}

// IsValid reports whether the value matches the canonical payout schedule enum.
func (s PayoutSchedule) IsValid() bool {
	for _, candidate := range validPayoutSchedules {
		if candidate == s {
			return true
		}
	}
	return false
}

// Next returns the next run time after the given instant.
func (s PayoutSchedule) Next(after time.Time) time.Time {
	switch s {
	case PayoutScheduleDaily:
		return after.Add(24 * time.Hour)
	case PayoutScheduleWeekly:
		return after.Add(7 * 24 * time.Hour)
	default:
		return after.AddDate(0, 1, 0)
	}
}

// ParsePayoutSchedule converts raw input into PayoutSchedule.
func ParsePayoutSchedule(value string) (PayoutSchedule, error) {
	for _, candidate := range validPayoutSchedules {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout schedule %q", value)
}

// PayoutAttemptStatus tracks the lifecycle of an external payout request.
type PayoutAttemptStatus string

const (
	PayoutAttemptStatusRequested PayoutAttemptStatus = "requested"
	PayoutAttemptStatusDebited   PayoutAttemptStatus = "debited"
	PayoutAttemptStatusFailed    PayoutAttemptStatus = "failed"
)

// IsValid reports whether the value matches the canonical attempt status enum.
func (s PayoutAttemptStatus) IsValid() bool {
	return s == PayoutAttemptStatusRequested || s == PayoutAttemptStatusDebited || s == PayoutAttemptStatusFailed
}

package enums

import "fmt"

// DisputeStatus maps to the dispute_status_enum enum in Postgres.
type DisputeStatus string

const (
	DisputeStatusOpen          DisputeStatus = "open"
	DisputeStatusInvestigating DisputeStatus = "investigating"
	DisputeStatusResolved      DisputeStatus = "resolved"
	DisputeStatusClosed        DisputeStatus = "closed"
)

var validDisputeStatuses = []DisputeStatus{
	DisputeStatusOpen,
	DisputeStatusInvestigating,
	DisputeStatusResolved,
	DisputeStatusClosed,
}

// IsValid reports whether the value matches the canonical dispute status enum.
func (s DisputeStatus) IsValid() bool {
	for _, candidate := range validDisputeStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the dispute no longer blocks settlement.
func (s DisputeStatus) IsTerminal() bool {
	return s == DisputeStatusResolved || s == DisputeStatusClosed
}

// ParseDisputeStatus converts raw input into DisputeStatus.
func ParseDisputeStatus(value string) (DisputeStatus, error) {
	for _, candidate := range validDisputeStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute status %q", value)
}

// DisputeType maps to the dispute_type_enum enum in Postgres.
type DisputeType string

const (
	DisputeTypeItemNotReceived DisputeType = "item_not_received"
	DisputeTypeItemDamaged     DisputeType = "item_damaged"
	DisputeTypeWrongItem       DisputeType = "wrong_item"
	DisputeTypeQualityIssue    DisputeType = "quality_issue"
	DisputeTypeOther           DisputeType = "other"
)

var validDisputeTypes = []DisputeType{
	DisputeTypeItemNotReceived,
	DisputeTypeItemDamaged,
	DisputeTypeWrongItem,
	DisputeTypeQualityIssue,
	DisputeTypeOther,
}

// IsValid reports whether the value matches the canonical dispute type enum.
func (t DisputeType) IsValid() bool {
	for _, candidate := range validDisputeTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseDisputeType converts raw input into DisputeType.
func ParseDisputeType(value string) (DisputeType, error) {
	for _, candidate := range validDisputeTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute type %q", value)
}

// DisputeResolution maps to the dispute_resolution_enum enum in Postgres.
type DisputeResolution string

const (
	DisputeResolutionBuyerRefunded  DisputeResolution = "buyer_refunded"
	DisputeResolutionArtisanPaid    DisputeResolution = "artisan_paid"
	DisputeResolutionPartialRefund  DisputeResolution = "partial_refund"
	DisputeResolutionNoActionNeeded DisputeResolution = "no_action_needed"
)

var validDisputeResolutions = []DisputeResolution{
	DisputeResolutionBuyerRefunded,
	DisputeResolutionArtisanPaid,
	DisputeResolutionPartialRefund,
	DisputeResolutionNoActionNeeded,
}

// IsValid reports whether the value matches the canonical resolution enum.
func (r DisputeResolution) IsValid() bool {
	for _, candidate := range validDisputeResolutions {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseDisputeResolution converts raw input into DisputeResolution.
func ParseDisputeResolution(value string) (DisputeResolution, error) {
	for _, candidate := range validDisputeResolutions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute resolution %q", value)
}

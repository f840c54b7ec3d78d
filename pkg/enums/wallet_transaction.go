package enums

import "fmt"

// WalletTransactionType maps to the wallet_transaction_type_enum enum in Postgres.
type WalletTransactionType string

const (
	WalletTransactionTypeRevenue    WalletTransactionType = "revenue"
	WalletTransactionTypeTopUp      WalletTransactionType = "top_up"
	WalletTransactionTypePurchase   WalletTransactionType = "purchase"
	WalletTransactionTypePayout     WalletTransactionType = "payout"
	WalletTransactionTypeRefund     WalletTransactionType = "refund"
	WalletTransactionTypeFee        WalletTransactionType = "fee"
	WalletTransactionTypeAdjustment WalletTransactionType = "adjustment"
)

var validWalletTransactionTypes = []WalletTransactionType{
	WalletTransactionTypeRevenue,
	WalletTransactionTypeTopUp,
	WalletTransactionTypePurchase,
	WalletTransactionTypePayout,
	WalletTransactionTypeRefund,
	WalletTransactionTypeFee,
	WalletTransactionTypeAdjustment,
}

// IsValid reports whether the value matches the canonical transaction type enum.
func (t WalletTransactionType) IsValid() bool {
	for _, candidate := range validWalletTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsCredit reports whether transactions of this type carry a positive amount.
func (t WalletTransactionType) IsCredit() bool {
	switch t {
	case WalletTransactionTypeRevenue, WalletTransactionTypeTopUp, WalletTransactionTypeRefund, WalletTransactionTypeAdjustment:
		return true
	default:
		return false
	}
}

// ParseWalletTransactionType converts raw input into WalletTransactionType.
func ParseWalletTransactionType(value string) (WalletTransactionType, error) {
	for _, candidate := range validWalletTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet transaction type %q", value)
}

// WalletTransactionStatus maps to the wallet_transaction_status_enum enum in Postgres.
type WalletTransactionStatus string

const (
	WalletTransactionStatusPending   WalletTransactionStatus = "pending"
	WalletTransactionStatusCompleted WalletTransactionStatus = "completed"
	WalletTransactionStatusFailed    WalletTransactionStatus = "failed"
	WalletTransactionStatusCancelled WalletTransactionStatus = "cancelled"
)

var validWalletTransactionStatuses = []WalletTransactionStatus{
	WalletTransactionStatusPending,
	WalletTransactionStatusCompleted,
	WalletTransactionStatusFailed,
	WalletTransactionStatusCancelled,
}

// IsValid reports whether the value matches the canonical transaction status enum.
func (s WalletTransactionStatus) IsValid() bool {
	for _, candidate := range validWalletTransactionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

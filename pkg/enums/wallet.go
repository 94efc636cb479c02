package enums

import "fmt"

// WalletTransactionType distinguishes ledger credits from debits.
type WalletTransactionType string

const (
	WalletTransactionTypeCredit WalletTransactionType = "credit"
	WalletTransactionTypeDebit  WalletTransactionType = "debit"
)

// IsValid reports whether the value is a known WalletTransactionType.
func (t WalletTransactionType) IsValid() bool {
	return t == WalletTransactionTypeCredit || t == WalletTransactionTypeDebit
}

// WalletTransactionStatus tracks whether a ledger entry counts toward the
// available balance.
type WalletTransactionStatus string

const (
	WalletTransactionStatusPending   WalletTransactionStatus = "pending"
	WalletTransactionStatusCompleted WalletTransactionStatus = "completed"
	WalletTransactionStatusReversed  WalletTransactionStatus = "reversed"
)

// IsValid reports whether the value is a known WalletTransactionStatus.
func (s WalletTransactionStatus) IsValid() bool {
	switch s {
	case WalletTransactionStatusPending, WalletTransactionStatusCompleted, WalletTransactionStatusReversed:
		return true
	}
	return false
}

// PayoutStatus tracks a seller payout request through admin review.
type PayoutStatus string

const (
	PayoutStatusPending  PayoutStatus = "pending"
	PayoutStatusApproved PayoutStatus = "approved"
	PayoutStatusDenied   PayoutStatus = "denied"
	PayoutStatusPaid     PayoutStatus = "paid"
)

var validPayoutStatuses = []PayoutStatus{
	PayoutStatusPending,
	PayoutStatusApproved,
	PayoutStatusDenied,
	PayoutStatusPaid,
}

// IsValid reports whether the value is a known PayoutStatus.
func (s PayoutStatus) IsValid() bool {
	for _, candidate := range validPayoutStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePayoutStatus converts raw input into a PayoutStatus.
func ParsePayoutStatus(value string) (PayoutStatus, error) {
	for _, candidate := range validPayoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout status %q", value)
}

package enums

// NotificationType tags in-app notification rows.
type NotificationType string

const (
	NotificationTypeOrderCommitted NotificationType = "order_committed"
	NotificationTypeOrderCancelled NotificationType = "order_cancelled"
	NotificationTypeOrderDelivered NotificationType = "order_delivered"
	NotificationTypeWalletCredited NotificationType = "wallet_credited"
	NotificationTypePayoutDecision NotificationType = "payout_decision"
)

// IsValid reports whether the value is a known NotificationType.
func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationTypeOrderCommitted,
		NotificationTypeOrderCancelled,
		NotificationTypeOrderDelivered,
		NotificationTypeWalletCredited,
		NotificationTypePayoutDecision:
		return true
	}
	return false
}

// BuyerReceiptStatus is the buyer's verdict when confirming receipt.
type BuyerReceiptStatus string

const (
	BuyerReceiptStatusReceived    BuyerReceiptStatus = "received"
	BuyerReceiptStatusNotReceived BuyerReceiptStatus = "not_received"
)

// IsValid reports whether the value is a known BuyerReceiptStatus.
func (s BuyerReceiptStatus) IsValid() bool {
	return s == BuyerReceiptStatusReceived || s == BuyerReceiptStatusNotReceived
}

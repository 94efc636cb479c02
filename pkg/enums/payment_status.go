package enums

import "fmt"

// PaymentStatus reflects the gateway-side state of an order's payment.
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusUnpaid,
	PaymentStatusPaid,
	PaymentStatusFailed,
	PaymentStatusRefunded,
}

// IsValid reports whether the value is a known PaymentStatus.
func (s PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}

// PaymentGateway names a supported payment provider.
type PaymentGateway string

const (
	PaymentGatewayPaystack PaymentGateway = "paystack"
	PaymentGatewayBobPay   PaymentGateway = "bobpay"
)

// IsValid reports whether the value is a known PaymentGateway.
func (g PaymentGateway) IsValid() bool {
	return g == PaymentGatewayPaystack || g == PaymentGatewayBobPay
}

// ParsePaymentGateway converts raw input into a PaymentGateway.
func ParsePaymentGateway(value string) (PaymentGateway, error) {
	switch PaymentGateway(value) {
	case PaymentGatewayPaystack:
		return PaymentGatewayPaystack, nil
	case PaymentGatewayBobPay:
		return PaymentGatewayBobPay, nil
	}
	return "", fmt.Errorf("invalid payment gateway %q", value)
}

package enums

import "fmt"

// DeliveryStatus is the courier-level sub-state of an order. It refines the
// order status without driving it: only a delivered event moves the order
// itself forward.
type DeliveryStatus string

const (
	DeliveryStatusScheduled           DeliveryStatus = "scheduled"
	DeliveryStatusCreated             DeliveryStatus = "created"
	DeliveryStatusCollected           DeliveryStatus = "collected"
	DeliveryStatusInTransit           DeliveryStatus = "in_transit"
	DeliveryStatusOutForDelivery      DeliveryStatus = "out_for_delivery"
	DeliveryStatusDelivered           DeliveryStatus = "delivered"
	DeliveryStatusPickupFailed        DeliveryStatus = "pickup_failed"
	DeliveryStatusRescheduledBySeller DeliveryStatus = "rescheduled_by_seller"
)

var validDeliveryStatuses = []DeliveryStatus{
	DeliveryStatusScheduled,
	DeliveryStatusCreated,
	DeliveryStatusCollected,
	DeliveryStatusInTransit,
	DeliveryStatusOutForDelivery,
	DeliveryStatusDelivered,
	DeliveryStatusPickupFailed,
	DeliveryStatusRescheduledBySeller,
}

// progressIndex maps delivery sub-states onto the ordinal progress scale used
// by order displays: created=0 ... delivered=4.
var progressIndex = map[DeliveryStatus]int{
	DeliveryStatusScheduled:      0,
	DeliveryStatusCreated:        0,
	DeliveryStatusCollected:      1,
	DeliveryStatusInTransit:      2,
	DeliveryStatusOutForDelivery: 3,
	DeliveryStatusDelivered:      4,
}

// String implements fmt.Stringer.
func (s DeliveryStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known DeliveryStatus.
func (s DeliveryStatus) IsValid() bool {
	for _, candidate := range validDeliveryStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ProgressIndex returns the ordinal progress step for the sub-state and
// whether it participates in the linear progress scale. Failure states
// return the step they failed at with ok=false.
func (s DeliveryStatus) ProgressIndex() (step int, ok bool) {
	if idx, found := progressIndex[s]; found {
		return idx, true
	}
	if s == DeliveryStatusPickupFailed || s == DeliveryStatusRescheduledBySeller {
		return 1, false
	}
	return 0, false
}

// ParseDeliveryStatus converts raw input, accepting the courier's
// "picked_up" alias for collected.
func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	if value == "picked_up" {
		return DeliveryStatusCollected, nil
	}
	for _, candidate := range validDeliveryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery status %q", value)
}

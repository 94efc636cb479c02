package enums

import "fmt"

// TransportType distinguishes door (street address + courier visit) from
// locker (third-party parcel locker) pickup and delivery legs.
type TransportType string

const (
	TransportTypeDoor   TransportType = "door"
	TransportTypeLocker TransportType = "locker"
)

// String implements fmt.Stringer.
func (t TransportType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransportType.
func (t TransportType) IsValid() bool {
	return t == TransportTypeDoor || t == TransportTypeLocker
}

// ParseTransportType converts raw input into a TransportType.
func ParseTransportType(value string) (TransportType, error) {
	switch TransportType(value) {
	case TransportTypeDoor:
		return TransportTypeDoor, nil
	case TransportTypeLocker:
		return TransportTypeLocker, nil
	}
	return "", fmt.Errorf("invalid transport type %q", value)
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rebookza/rebook-backend/pkg/enums"
	"github.com/rebookza/rebook-backend/pkg/types"
)

// Order is the central purchase record. Party contact details are snapshotted
// at creation time so fulfillment never re-joins to a possibly-changed
// profile, and door addresses are stored only as sealed blobs.
type Order struct {
	ID uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`

	BuyerID  uuid.UUID `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID uuid.UUID `gorm:"column:seller_id;type:uuid;not null;index"`

	BuyerFullName     string `gorm:"column:buyer_full_name;type:text;not null"`
	BuyerEmail        string `gorm:"column:buyer_email;type:text;not null"`
	BuyerPhoneNumber  string `gorm:"column:buyer_phone_number;type:text"`
	SellerFullName    string `gorm:"column:seller_full_name;type:text;not null"`
	SellerEmail       string `gorm:"column:seller_email;type:text;not null"`
	SellerPhoneNumber string `gorm:"column:seller_phone_number;type:text"`

	AmountCents int             `gorm:"column:amount_cents;not null"`
	TotalAmount decimal.Decimal `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Items       types.LineItems `gorm:"column:items;type:jsonb;serializer:json;not null"`

	Status           enums.OrderStatus    `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus    enums.PaymentStatus  `gorm:"column:payment_status;type:text;not null;default:'unpaid'"`
	PaymentGateway   enums.PaymentGateway `gorm:"column:payment_gateway;type:text;not null"`
	PaymentReference *string              `gorm:"column:payment_reference;type:text;uniqueIndex"`
	PaidAt           *time.Time           `gorm:"column:paid_at"`

	PickupType            enums.TransportType `gorm:"column:pickup_type;type:text;not null;default:'door'"`
	DeliveryType          enums.TransportType `gorm:"column:delivery_type;type:text;not null;default:'door'"`
	DeliveryOption        *string             `gorm:"column:delivery_option;type:text"`
	SelectedCourierSlug   *string             `gorm:"column:selected_courier_slug;type:text"`
	SelectedServiceCode   *string             `gorm:"column:selected_service_code;type:text"`
	SelectedShippingCents int                 `gorm:"column:selected_shipping_cents;not null;default:0"`

	PickupLockerLocationID   *string        `gorm:"column:pickup_locker_location_id;type:text"`
	PickupLockerProviderSlug *string        `gorm:"column:pickup_locker_provider_slug;type:text"`
	PickupLockerData         *types.JSONMap `gorm:"column:pickup_locker_data;type:jsonb;serializer:json"`

	DeliveryLockerLocationID   *string        `gorm:"column:delivery_locker_location_id;type:text"`
	DeliveryLockerProviderSlug *string        `gorm:"column:delivery_locker_provider_slug;type:text"`
	DeliveryLockerData         *types.JSONMap `gorm:"column:delivery_locker_data;type:jsonb;serializer:json"`

	PickupAddressEncrypted   *string `gorm:"column:pickup_address_encrypted;type:text"`
	ShippingAddressEncrypted *string `gorm:"column:shipping_address_encrypted;type:text"`
	AddressEncryptionVersion string  `gorm:"column:address_encryption_version;type:text;not null;default:'v1'"`

	CommittedAt        *time.Time `gorm:"column:committed_at"`
	CommitDeadline     *time.Time `gorm:"column:commit_deadline;index"`
	CancellationReason *string    `gorm:"column:cancellation_reason;type:text"`
	CancelledAt        *time.Time `gorm:"column:cancelled_at"`

	TrackingNumber *string               `gorm:"column:tracking_number;type:text"`
	TrackingData   types.TrackingEvents  `gorm:"column:tracking_data;type:jsonb;serializer:json"`
	DeliveryStatus *enums.DeliveryStatus `gorm:"column:delivery_status;type:text"`
	DeliveryData   *types.DeliveryData   `gorm:"column:delivery_data;type:jsonb;serializer:json"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// HasCourierSelection reports whether the buyer locked in a courier service.
func (o *Order) HasCourierSelection() bool {
	return o.SelectedCourierSlug != nil && *o.SelectedCourierSlug != "" &&
		o.SelectedServiceCode != nil && *o.SelectedServiceCode != ""
}

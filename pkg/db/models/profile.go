package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/rebookza/rebook-backend/pkg/types"
)

// Profile holds a user's contact data, sealed address/banking blobs, and
// preferred locker. The auth provider owns identity; this row is keyed by it.
type Profile struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	FullName    string    `gorm:"column:full_name;type:text;not null"`
	Email       string    `gorm:"column:email;type:text;not null;uniqueIndex"`
	PhoneNumber string    `gorm:"column:phone_number;type:text"`

	AddressEncrypted         *string `gorm:"column:address_encrypted;type:text"`
	BankingDetailsEncrypted  *string `gorm:"column:banking_details_encrypted;type:text"`
	AddressEncryptionVersion string  `gorm:"column:address_encryption_version;type:text;not null;default:'v1'"`

	PreferredDeliveryLockerLocationID   *string        `gorm:"column:preferred_delivery_locker_location_id;type:text"`
	PreferredDeliveryLockerProviderSlug *string        `gorm:"column:preferred_delivery_locker_provider_slug;type:text"`
	PreferredDeliveryLockerData         *types.JSONMap `gorm:"column:preferred_delivery_locker_data;type:jsonb;serializer:json"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

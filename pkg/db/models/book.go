package models

import (
	"time"

	"github.com/google/uuid"
)

// Book is a seller's textbook listing. The listing may carry its own sealed
// pickup address, used as a fallback when the order has none.
type Book struct {
	ID                     uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID               uuid.UUID `gorm:"column:seller_id;type:uuid;not null;index"`
	Title                  string    `gorm:"column:title;type:text;not null"`
	Author                 string    `gorm:"column:author;type:text"`
	PriceCents             int       `gorm:"column:price_cents;not null"`
	Condition              string    `gorm:"column:condition;type:text"`
	Sold                   bool      `gorm:"column:sold;not null;default:false"`
	PickupAddressEncrypted *string   `gorm:"column:pickup_address_encrypted;type:text"`
	CreatedAt              time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

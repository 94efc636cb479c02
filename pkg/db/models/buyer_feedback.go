package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rebookza/rebook-backend/pkg/enums"
)

// BuyerFeedback records the buyer's receipt confirmation for an order,
// snapshotting the order's financial state so later order mutations cannot
// rewrite the audit trail. One row per order, immutable once created.
type BuyerFeedback struct {
	ID            uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID                `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	BuyerID       uuid.UUID                `gorm:"column:buyer_id;type:uuid;not null;index"`
	BuyerStatus   enums.BuyerReceiptStatus `gorm:"column:buyer_status;type:text;not null"`
	BuyerFeedback *string                  `gorm:"column:buyer_feedback;type:text"`

	OrderAmountCents int               `gorm:"column:order_amount_cents;not null"`
	OrderTotalAmount decimal.Decimal   `gorm:"column:order_total_amount;type:numeric(12,2);not null"`
	OrderStatus      enums.OrderStatus `gorm:"column:order_status;type:text;not null"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (BuyerFeedback) TableName() string {
	return "buyer_feedback_orders"
}

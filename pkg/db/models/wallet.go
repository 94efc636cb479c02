package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rebookza/rebook-backend/pkg/enums"
)

// Wallet tracks a seller's earned funds. AvailableBalance must equal the
// signed sum of completed transactions for the user; it is only ever mutated
// through the wallet service.
type Wallet struct {
	UserID           uuid.UUID       `gorm:"column:user_id;type:uuid;primaryKey"`
	AvailableBalance decimal.Decimal `gorm:"column:available_balance;type:numeric(12,2);not null;default:0"`
	PendingBalance   decimal.Decimal `gorm:"column:pending_balance;type:numeric(12,2);not null;default:0"`
	TotalEarned      decimal.Decimal `gorm:"column:total_earned;type:numeric(12,2);not null;default:0"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Wallet) TableName() string {
	return "user_wallets"
}

// WalletTransaction is an append-only ledger entry. The unique index on
// (reference_order_id, type) is what makes order credits idempotent.
type WalletTransaction struct {
	ID                uuid.UUID                     `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID            uuid.UUID                     `gorm:"column:user_id;type:uuid;not null;index"`
	Type              enums.WalletTransactionType   `gorm:"column:type;type:text;not null;uniqueIndex:ux_wallet_tx_order_type"`
	Amount            decimal.Decimal               `gorm:"column:amount;type:numeric(12,2);not null"`
	Status            enums.WalletTransactionStatus `gorm:"column:status;type:text;not null;default:'completed'"`
	ReferenceOrderID  *uuid.UUID                    `gorm:"column:reference_order_id;type:uuid;uniqueIndex:ux_wallet_tx_order_type"`
	ReferencePayoutID *uuid.UUID                    `gorm:"column:reference_payout_id;type:uuid"`
	Reason            string                        `gorm:"column:reason;type:text;not null"`
	CreatedAt         time.Time                     `gorm:"column:created_at;autoCreateTime"`
}

// PayoutRequest is a seller's request to convert wallet balance into a bank
// transfer. The amount is moved to pending_balance at request time so two
// pending requests cannot spend the same funds.
type PayoutRequest struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID          `gorm:"column:user_id;type:uuid;not null;index"`
	Amount      decimal.Decimal    `gorm:"column:amount;type:numeric(12,2);not null"`
	Status      enums.PayoutStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Notes       *string            `gorm:"column:notes;type:text"`
	RequestedAt time.Time          `gorm:"column:requested_at;autoCreateTime"`
	ApprovedAt  *time.Time         `gorm:"column:approved_at"`
	DeniedAt    *time.Time         `gorm:"column:denied_at"`
	PaidAt      *time.Time         `gorm:"column:paid_at"`
}

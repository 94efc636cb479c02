package wallet

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rebookza/rebook-backend/pkg/db/models"
	"github.com/rebookza/rebook-backend/pkg/enums"
	"github.com/rebookza/rebook-backend/pkg/pagination"
)

// Repository defines persistence operations for wallets, the transaction
// ledger, and payout requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	EnsureWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	FindWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	CreditAvailable(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error
	ReserveForPayout(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (bool, error)
	SettleReserved(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (bool, error)
	ReleaseReserved(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (bool, error)
	CreateTransaction(ctx context.Context, tx *models.WalletTransaction) error
	ListTransactions(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.WalletTransaction, *pagination.Cursor, error)
	CreatePayout(ctx context.Context, payout *models.PayoutRequest) error
	FindPayout(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error)
	TransitionPayout(ctx context.Context, id uuid.UUID, from, to enums.PayoutStatus, stampColumn string, now time.Time) (bool, error)
	ListPayouts(ctx context.Context, status *enums.PayoutStatus, limit int) ([]models.PayoutRequest, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a wallet repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// EnsureWallet creates the wallet row on first touch. The insert ignores
// conflicts so concurrent first credits both succeed.
func (r *repository) EnsureWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet := models.Wallet{UserID: userID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&wallet).Error
	if err != nil {
		return nil, err
	}
	return r.FindWallet(ctx, userID)
}

func (r *repository) FindWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// CreditAvailable atomically increments available_balance and total_earned.
func (r *repository) CreditAvailable(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"available_balance": gorm.Expr("available_balance + ?", amount),
			"total_earned":      gorm.Expr("total_earned + ?", amount),
			"updated_at":        time.Now().UTC(),
		}).Error
}

// ReserveForPayout moves amount from available to pending, guarded so the
// balance can never go negative. Returns false when funds are insufficient.
func (r *repository) ReserveForPayout(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("user_id = ? AND available_balance >= ?", userID, amount).
		Updates(map[string]any{
			"available_balance": gorm.Expr("available_balance - ?", amount),
			"pending_balance":   gorm.Expr("pending_balance + ?", amount),
			"updated_at":        time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SettleReserved removes an approved payout's amount from pending_balance.
func (r *repository) SettleReserved(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("user_id = ? AND pending_balance >= ?", userID, amount).
		Updates(map[string]any{
			"pending_balance": gorm.Expr("pending_balance - ?", amount),
			"updated_at":      time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ReleaseReserved returns a denied payout's amount to available_balance.
func (r *repository) ReleaseReserved(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("user_id = ? AND pending_balance >= ?", userID, amount).
		Updates(map[string]any{
			"pending_balance":   gorm.Expr("pending_balance - ?", amount),
			"available_balance": gorm.Expr("available_balance + ?", amount),
			"updated_at":        time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) CreateTransaction(ctx context.Context, tx *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

func (r *repository) ListTransactions(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.WalletTransaction, *pagination.Cursor, error) {
	buffered := pagination.LimitWithBuffer(limit)
	normalized := pagination.NormalizeLimit(limit)
	query := r.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Where("user_id = ?", userID)
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var transactions []models.WalletTransaction
	if err := query.Order("created_at DESC, id DESC").Limit(buffered).Find(&transactions).Error; err != nil {
		return nil, nil, err
	}

	if len(transactions) > normalized {
		next := transactions[normalized]
		transactions = transactions[:normalized]
		return transactions, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return transactions, nil, nil
}

func (r *repository) CreatePayout(ctx context.Context, payout *models.PayoutRequest) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *repository) FindPayout(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	var payout models.PayoutRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&payout).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

// TransitionPayout moves a payout from one status to another and stamps the
// transition time, returning false when the request was not in the expected
// source status.
func (r *repository) TransitionPayout(ctx context.Context, id uuid.UUID, from, to enums.PayoutStatus, stampColumn string, now time.Time) (bool, error) {
	updates := map[string]any{"status": to}
	if stampColumn != "" {
		updates[stampColumn] = now
	}
	result := r.db.WithContext(ctx).
		Model(&models.PayoutRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ListPayouts(ctx context.Context, status *enums.PayoutStatus, limit int) ([]models.PayoutRequest, error) {
	query := r.db.WithContext(ctx).Model(&models.PayoutRequest{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var payouts []models.PayoutRequest
	err := query.Order("requested_at DESC").Limit(pagination.NormalizeLimit(limit)).Find(&payouts).Error
	if err != nil {
		return nil, err
	}
	return payouts, nil
}

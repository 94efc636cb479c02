package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rebookza/rebook-backend/pkg/db/models"
	"github.com/rebookza/rebook-backend/pkg/enums"
	"github.com/rebookza/rebook-backend/pkg/pagination"
)

// Repository defines persistence operations for orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByPaymentReference(ctx context.Context, reference string) (*models.Order, error)
	FindByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Order, error)
	List(ctx context.Context, params ListOrdersParams) ([]models.Order, *pagination.Cursor, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, allowedFrom []enums.OrderStatus, updates map[string]any) (bool, error)
	UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) error
	FindExpiredCommitments(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

// ListOrdersParams filters the order list for one party.
type ListOrdersParams struct {
	UserID uuid.UUID
	Role   PartyRole
	Status *enums.OrderStatus
	Limit  int
	Cursor *pagination.Cursor
}

// PartyRole selects which side of the order the caller is on.
type PartyRole string

const (
	PartyRoleBuyer  PartyRole = "buyer"
	PartyRoleSeller PartyRole = "seller"
	PartyRoleAny    PartyRole = "any"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByPaymentReference(ctx context.Context, reference string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where("payment_reference = ?", reference).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where("tracking_number = ?", trackingNumber).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) List(ctx context.Context, params ListOrdersParams) ([]models.Order, *pagination.Cursor, error) {
	buffered := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.Order{})
	switch params.Role {
	case PartyRoleBuyer:
		query = query.Where("buyer_id = ?", params.UserID)
	case PartyRoleSeller:
		query = query.Where("seller_id = ?", params.UserID)
	default:
		query = query.Where("buyer_id = ? OR seller_id = ?", params.UserID, params.UserID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var orders []models.Order
	if err := query.Order("created_at DESC, id DESC").Limit(buffered).Find(&orders).Error; err != nil {
		return nil, nil, err
	}

	if len(orders) > normalized {
		next := orders[normalized]
		orders = orders[:normalized]
		return orders, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return orders, nil, nil
}

// TransitionStatus applies updates only while the order is still in one of
// allowedFrom, returning whether a row changed. This is the compare-and-swap
// that keeps concurrent transitions from double-applying.
func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, allowedFrom []enums.OrderStatus, updates map[string]any) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, allowedFrom).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// FindExpiredCommitments returns committable orders whose commit deadline
// has passed, oldest first.
func (r *repository) FindExpiredCommitments(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status IN ? AND commit_deadline IS NOT NULL AND commit_deadline < ?",
			[]enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusPaid}, cutoff).
		Order("commit_deadline ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

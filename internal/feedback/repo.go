package feedback

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rebookza/rebook-backend/pkg/db/models"
)

// Repository defines persistence operations for buyer feedback records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, record *models.BuyerFeedback) error
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.BuyerFeedback, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a feedback repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, record *models.BuyerFeedback) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.BuyerFeedback, error) {
	var record models.BuyerFeedback
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

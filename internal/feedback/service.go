package feedback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rebookza/rebook-backend/internal/orders"
	"github.com/rebookza/rebook-backend/internal/wallet"
	"github.com/rebookza/rebook-backend/pkg/db/models"
	"github.com/rebookza/rebook-backend/pkg/enums"
	pkgerrors "github.com/rebookza/rebook-backend/pkg/errors"
	"github.com/rebookza/rebook-backend/pkg/logger"
)

// receiptableStatuses are the order states in which the buyer may confirm
// receipt: anything after commitment but before completion.
var receiptableStatuses = []enums.OrderStatus{
	enums.OrderStatusCommitted,
	enums.OrderStatusPendingDelivery,
	enums.OrderStatusInTransit,
	enums.OrderStatusDelivered,
}

// WalletCreditor applies the seller's sale credit.
type WalletCreditor interface {
	CreditOnCollection(ctx context.Context, input wallet.CreditInput) (*wallet.CreditResult, error)
}

// CreditNotifier tells the seller their wallet was credited.
type CreditNotifier interface {
	WalletCredited(ctx context.Context, order *models.Order, amount decimal.Decimal)
}

// Service records buyer receipt confirmations.
type Service interface {
	ConfirmReceipt(ctx context.Context, input ConfirmInput) (*models.BuyerFeedback, error)
}

// ConfirmInput is the buyer's receipt verdict for an order.
type ConfirmInput struct {
	OrderID  uuid.UUID
	BuyerID  uuid.UUID
	Status   enums.BuyerReceiptStatus
	Feedback *string
}

type service struct {
	repo     Repository
	orders   orders.Repository
	creditor WalletCreditor
	notify   CreditNotifier
	logg     *logger.Logger
}

// NewService wires the feedback service.
func NewService(repo Repository, orderRepo orders.Repository, creditor WalletCreditor, notify CreditNotifier, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("feedback repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if creditor == nil {
		return nil, fmt.Errorf("wallet creditor required")
	}
	return &service{repo: repo, orders: orderRepo, creditor: creditor, notify: notify, logg: logg}, nil
}

// ConfirmReceipt records the buyer's verdict once per order, snapshotting
// the order's financial state for audit independence. A received verdict
// completes the order and releases the seller's wallet credit.
func (s *service) ConfirmReceipt(ctx context.Context, input ConfirmInput) (*models.BuyerFeedback, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receipt status must be received or not_received")
	}

	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.BuyerID != input.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer may confirm receipt")
	}

	allowed := false
	for _, status := range receiptableStatuses {
		if order.Status == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting receipt confirmation").
			WithDetails(map[string]any{"status": order.Status})
	}

	record := &models.BuyerFeedback{
		OrderID:          order.ID,
		BuyerID:          input.BuyerID,
		BuyerStatus:      input.Status,
		BuyerFeedback:    input.Feedback,
		OrderAmountCents: order.AmountCents,
		OrderTotalAmount: order.TotalAmount,
		OrderStatus:      order.Status,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || pkgerrors.IsUniqueViolation(err, "ux_buyer_feedback_order_id") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "receipt already confirmed for this order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record buyer feedback")
	}

	if input.Status == enums.BuyerReceiptStatusReceived {
		moved, err := s.orders.TransitionStatus(ctx, order.ID, receiptableStatuses,
			map[string]any{"status": enums.OrderStatusCompleted, "updated_at": time.Now().UTC()})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete order")
		}
		if moved {
			order.Status = enums.OrderStatusCompleted
			s.credit(ctx, order)
		}
	} else {
		s.logg.Warn(s.logg.WithOrderID(ctx, order.ID.String()), "buyer disputed receipt")
	}

	return record, nil
}

// credit releases the sale proceeds. Credit failures never surface to the
// buyer; the ledger's idempotency guard makes a retried confirmation safe.
func (s *service) credit(ctx context.Context, order *models.Order) {
	result, err := s.creditor.CreditOnCollection(ctx, wallet.CreditInput{
		OrderID:  order.ID,
		SellerID: order.SellerID,
		Amount:   order.TotalAmount,
	})
	if err != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "wallet credit failed", err)
		return
	}
	if s.notify != nil && !result.AlreadyCredited {
		s.notify.WalletCredited(ctx, order, result.CreditAmount)
	}
}

package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/rebookza/rebook-backend/pkg/db/models"
	"github.com/rebookza/rebook-backend/pkg/enums"
	"github.com/rebookza/rebook-backend/pkg/logger"
)

const (
	expiredCancellationReason = "seller did not commit before the deadline"
	expiryBatchSize           = 200
)

type expiredOrderReader interface {
	FindExpiredCommitments(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, allowedFrom []enums.OrderStatus, updates map[string]any) (bool, error)
}

type cancellationNotifier interface {
	OrderCancelled(ctx context.Context, order *models.Order, reason string)
}

// CommitExpiryJobParams configure the commitment deadline sweeper.
type CommitExpiryJobParams struct {
	Logger *logger.Logger
	Orders expiredOrderReader
	Notify cancellationNotifier
}

// NewCommitExpiryJob builds the cron job that cancels paid orders whose
// sellers let the commitment window lapse.
func NewCommitExpiryJob(params CommitExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Notify == nil {
		return nil, fmt.Errorf("notifier required")
	}
	return &commitExpiryJob{
		logg:   params.Logger,
		orders: params.Orders,
		notify: params.Notify,
		now:    time.Now,
	}, nil
}

type commitExpiryJob struct {
	logg   *logger.Logger
	orders expiredOrderReader
	notify cancellationNotifier
	now    func() time.Time
}

func (j *commitExpiryJob) Name() string { return "commit-expiry" }

func (j *commitExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	expired, err := j.orders.FindExpiredCommitments(ctx, cutoff, expiryBatchSize)
	if err != nil {
		return fmt.Errorf("query expired commitments: %w", err)
	}

	var errs error
	cancelled := 0
	for i := range expired {
		order := &expired[i]
		moved, err := j.cancelOrder(ctx, order)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if moved {
			cancelled++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned":   len(expired),
		"cancelled": cancelled,
	})
	j.logg.Info(logCtx, "commitment expiry sweep complete")
	return errs
}

// cancelOrder flips a single lapsed order. A lost transition means the seller
// committed (or the buyer cancelled) between the query and the update, which
// is fine.
func (j *commitExpiryJob) cancelOrder(ctx context.Context, order *models.Order) (bool, error) {
	now := j.now().UTC()
	reason := expiredCancellationReason
	moved, err := j.orders.TransitionStatus(ctx, order.ID,
		[]enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusPaid},
		map[string]any{
			"status":              enums.OrderStatusCancelled,
			"cancellation_reason": reason,
			"cancelled_at":        now,
			"updated_at":          now,
		})
	if err != nil {
		return false, fmt.Errorf("expire order %s: %w", order.ID, err)
	}
	if !moved {
		return false, nil
	}
	order.Status = enums.OrderStatusCancelled
	order.CancellationReason = &reason
	order.CancelledAt = &now
	j.notify.OrderCancelled(ctx, order, reason)
	return true, nil
}

package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/rebookza/rebook-backend/pkg/db/models"
	"github.com/rebookza/rebook-backend/pkg/enums"
	"github.com/rebookza/rebook-backend/pkg/types"
)

// CommitInput identifies a commit attempt.
type CommitInput struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
}

// CommitResult is the public outcome of a successful commitment.
type CommitResult struct {
	TrackingNumber string `json:"tracking_number,omitempty"`
	WaybillURL     string `json:"waybill_url,omitempty"`
	PickupType     string `json:"pickup_type"`
	DeliveryType   string `json:"delivery_type"`
}

// CancelInput identifies a buyer cancellation attempt.
type CancelInput struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
	Reason  string
}

// TrackingEventInput is a courier webhook event applied to an order.
type TrackingEventInput struct {
	TrackingNumber string
	Status         string
	Description    string
	Location       string
	OccurredAt     time.Time
}

// TrackingResult is the refreshed tracking view of one order.
type TrackingResult struct {
	TrackingNumber string                `json:"tracking_number"`
	DeliveryStatus *enums.DeliveryStatus `json:"delivery_status,omitempty"`
	Events         types.TrackingEvents  `json:"events"`
}

// OrderSummary is the listing projection of an order.
type OrderSummary struct {
	ID             uuid.UUID             `json:"id"`
	Status         enums.OrderStatus     `json:"status"`
	PaymentStatus  enums.PaymentStatus   `json:"payment_status"`
	AmountCents    int                   `json:"amount_cents"`
	Items          types.LineItems       `json:"items"`
	TrackingNumber *string               `json:"tracking_number,omitempty"`
	DeliveryStatus *enums.DeliveryStatus `json:"delivery_status,omitempty"`
	DeliveryStep   *int                  `json:"delivery_step,omitempty"`
	CommitDeadline *time.Time            `json:"commit_deadline,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
}

// OrderList wraps a page of order summaries.
type OrderList struct {
	Orders []OrderSummary `json:"orders"`
	Cursor string         `json:"cursor,omitempty"`
}

func summarize(order models.Order) OrderSummary {
	summary := OrderSummary{
		ID:             order.ID,
		Status:         order.Status,
		PaymentStatus:  order.PaymentStatus,
		AmountCents:    order.AmountCents,
		Items:          order.Items,
		TrackingNumber: order.TrackingNumber,
		DeliveryStatus: order.DeliveryStatus,
		CommitDeadline: order.CommitDeadline,
		CreatedAt:      order.CreatedAt,
	}
	if order.DeliveryStatus != nil {
		if step, ok := order.DeliveryStatus.ProgressIndex(); ok {
			summary.DeliveryStep = &step
		}
	}
	return summary
}

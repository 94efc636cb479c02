package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/rebookza/rebook-backend/pkg/db/models"
	"github.com/rebookza/rebook-backend/pkg/enums"
	"github.com/rebookza/rebook-backend/pkg/logger"
	"github.com/rebookza/rebook-backend/pkg/mailer"
)

// NotificationCreator inserts in-app notification rows.
type NotificationCreator interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Fanout dispatches email and in-app notifications after order state
// transitions. Every dispatch is best-effort: failures are aggregated and
// logged, never returned to the triggering workflow.
type Fanout struct {
	mail mailer.Sender
	repo NotificationCreator
	logg *logger.Logger
}

// NewFanout wires the fan-out dependencies.
func NewFanout(mail mailer.Sender, repo NotificationCreator, logg *logger.Logger) *Fanout {
	return &Fanout{mail: mail, repo: repo, logg: logg}
}

// OrderCommitted notifies both parties that the seller committed and a
// shipment exists.
func (f *Fanout) OrderCommitted(ctx context.Context, order *models.Order, trackingNumber string) {
	shortID := shortOrderID(order.ID)
	tracking := trackingNumber
	if tracking == "" {
		tracking = "pending"
	}

	var errs error
	errs = multierr.Append(errs, f.send(ctx, order.BuyerEmail,
		fmt.Sprintf("Your order %s is on its way", shortID),
		fmt.Sprintf("The seller has committed to your order. Tracking number: %s.", tracking)))
	errs = multierr.Append(errs, f.send(ctx, order.SellerEmail,
		fmt.Sprintf("Shipment created for order %s", shortID),
		fmt.Sprintf("Your commitment is confirmed. Tracking number: %s.", tracking)))
	errs = multierr.Append(errs, f.insert(ctx, order.BuyerID, enums.NotificationTypeOrderCommitted,
		"Order committed",
		fmt.Sprintf("The seller committed to order %s. Tracking: %s.", shortID, tracking), order.ID))
	errs = multierr.Append(errs, f.insert(ctx, order.SellerID, enums.NotificationTypeOrderCommitted,
		"Commitment confirmed",
		fmt.Sprintf("Shipment created for order %s. Tracking: %s.", shortID, tracking), order.ID))

	f.report(ctx, order.ID, "order committed", errs)
}

// OrderCancelled notifies both parties of a cancellation and its reason.
func (f *Fanout) OrderCancelled(ctx context.Context, order *models.Order, reason string) {
	shortID := shortOrderID(order.ID)
	if reason == "" {
		reason = "cancelled"
	}

	var errs error
	errs = multierr.Append(errs, f.send(ctx, order.BuyerEmail,
		fmt.Sprintf("Order %s cancelled", shortID),
		fmt.Sprintf("Order %s was cancelled: %s.", shortID, reason)))
	errs = multierr.Append(errs, f.send(ctx, order.SellerEmail,
		fmt.Sprintf("Order %s cancelled", shortID),
		fmt.Sprintf("Order %s was cancelled: %s.", shortID, reason)))
	errs = multierr.Append(errs, f.insert(ctx, order.BuyerID, enums.NotificationTypeOrderCancelled,
		"Order cancelled", fmt.Sprintf("Order %s was cancelled: %s.", shortID, reason), order.ID))
	errs = multierr.Append(errs, f.insert(ctx, order.SellerID, enums.NotificationTypeOrderCancelled,
		"Order cancelled", fmt.Sprintf("Order %s was cancelled: %s.", shortID, reason), order.ID))

	f.report(ctx, order.ID, "order cancelled", errs)
}

// OrderDelivered notifies the buyer that the courier marked the shipment
// delivered and asks for a receipt confirmation.
func (f *Fanout) OrderDelivered(ctx context.Context, order *models.Order) {
	shortID := shortOrderID(order.ID)

	var errs error
	errs = multierr.Append(errs, f.send(ctx, order.BuyerEmail,
		fmt.Sprintf("Order %s delivered", shortID),
		"Your order was marked delivered. Please confirm receipt to release the seller's funds."))
	errs = multierr.Append(errs, f.insert(ctx, order.BuyerID, enums.NotificationTypeOrderDelivered,
		"Order delivered",
		fmt.Sprintf("Order %s was delivered. Confirm receipt when you have it in hand.", shortID), order.ID))
	errs = multierr.Append(errs, f.insert(ctx, order.SellerID, enums.NotificationTypeOrderDelivered,
		"Order delivered",
		fmt.Sprintf("Order %s reached the buyer. Funds release once receipt is confirmed.", shortID), order.ID))

	f.report(ctx, order.ID, "order delivered", errs)
}

// WalletCredited notifies the seller that sale proceeds landed in their
// wallet.
func (f *Fanout) WalletCredited(ctx context.Context, order *models.Order, amount decimal.Decimal) {
	shortID := shortOrderID(order.ID)

	var errs error
	errs = multierr.Append(errs, f.send(ctx, order.SellerEmail,
		"Sale proceeds credited",
		fmt.Sprintf("R%s from order %s is now in your wallet.", amount.StringFixed(2), shortID)))
	errs = multierr.Append(errs, f.insert(ctx, order.SellerID, enums.NotificationTypeWalletCredited,
		"Wallet credited",
		fmt.Sprintf("R%s from order %s was credited to your wallet.", amount.StringFixed(2), shortID), order.ID))

	f.report(ctx, order.ID, "wallet credited", errs)
}

// PayoutDecision notifies a seller of an admin payout decision.
func (f *Fanout) PayoutDecision(ctx context.Context, userID uuid.UUID, email string, status enums.PayoutStatus, amount decimal.Decimal) {
	var errs error
	errs = multierr.Append(errs, f.send(ctx, email,
		"Payout request update",
		fmt.Sprintf("Your payout request for R%s is now %s.", amount.StringFixed(2), status)))
	errs = multierr.Append(errs, f.insert(ctx, userID, enums.NotificationTypePayoutDecision,
		"Payout update",
		fmt.Sprintf("Your payout request for R%s is now %s.", amount.StringFixed(2), status), uuid.Nil))

	f.report(ctx, uuid.Nil, "payout decision", errs)
}

func (f *Fanout) send(ctx context.Context, to, subject, body string) error {
	if f.mail == nil || to == "" {
		return nil
	}
	return f.mail.Send(ctx, mailer.Message{
		To:      to,
		Subject: subject,
		Text:    body,
		HTML:    "<p>" + body + "</p>",
	})
}

func (f *Fanout) insert(ctx context.Context, userID uuid.UUID, kind enums.NotificationType, title, message string, orderID uuid.UUID) error {
	if f.repo == nil || userID == uuid.Nil {
		return nil
	}
	notification := &models.Notification{
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
	}
	if orderID != uuid.Nil {
		link := "/orders/" + orderID.String()
		notification.Link = &link
	}
	return f.repo.Create(ctx, notification)
}

func (f *Fanout) report(ctx context.Context, orderID uuid.UUID, event string, errs error) {
	if errs == nil {
		return
	}
	if orderID != uuid.Nil {
		ctx = f.logg.WithOrderID(ctx, orderID.String())
	}
	ctx = f.logg.WithField(ctx, "event", event)
	f.logg.Warn(ctx, fmt.Sprintf("notification fan-out partially failed: %v", errs))
}

func shortOrderID(id uuid.UUID) string {
	s := id.String()
	if len(s) >= 8 {
		return "#" + s[:8]
	}
	return "#" + s
}

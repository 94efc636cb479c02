package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rebookza/rebook-backend/internal/address"
	"github.com/rebookza/rebook-backend/pkg/bobgo"
	"github.com/rebookza/rebook-backend/pkg/db/models"
	"github.com/rebookza/rebook-backend/pkg/enums"
	pkgerrors "github.com/rebookza/rebook-backend/pkg/errors"
	"github.com/rebookza/rebook-backend/pkg/logger"
	"github.com/rebookza/rebook-backend/pkg/metrics"
	"github.com/rebookza/rebook-backend/pkg/pagination"
	"github.com/rebookza/rebook-backend/pkg/types"
)

// AddressResolver walks the fallback chains for pickup and delivery data.
type AddressResolver interface {
	ResolvePickup(ctx context.Context, order *models.Order) (*address.Resolved, error)
	ResolveDelivery(ctx context.Context, order *models.Order, fallbackAddr *types.Address) (*address.Resolved, error)
}

// CourierClient creates, cancels, and tracks shipments at the aggregator.
type CourierClient interface {
	CreateShipment(ctx context.Context, req bobgo.CreateShipmentRequest) (*bobgo.Shipment, error)
	CancelShipment(ctx context.Context, shipmentID string) error
	TrackShipment(ctx context.Context, trackingNumber string) ([]bobgo.TrackingUpdate, error)
}

// Notifier fans out best-effort notifications after transitions.
type Notifier interface {
	OrderCommitted(ctx context.Context, order *models.Order, trackingNumber string)
	OrderCancelled(ctx context.Context, order *models.Order, reason string)
	OrderDelivered(ctx context.Context, order *models.Order)
}

// Service defines the order lifecycle operations.
type Service interface {
	Commit(ctx context.Context, input CommitInput) (*CommitResult, error)
	Cancel(ctx context.Context, input CancelInput) error
	ApplyTrackingEvent(ctx context.Context, input TrackingEventInput) error
	RefreshTracking(ctx context.Context, orderID, actorID uuid.UUID) (*TrackingResult, error)
	Get(ctx context.Context, orderID, actorID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, userID uuid.UUID, role PartyRole, status *enums.OrderStatus, limit int, cursor string) (*OrderList, error)
}

type service struct {
	repo     Repository
	resolver AddressResolver
	courier  CourierClient
	notify   Notifier
	logg     *logger.Logger
	metrics  *metrics.CommitMetrics
}

// NewService wires the order service with the commitment dependencies.
func NewService(repo Repository, resolver AddressResolver, courier CourierClient, notify Notifier, logg *logger.Logger, commitMetrics *metrics.CommitMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("address resolver required")
	}
	if courier == nil {
		return nil, fmt.Errorf("courier client required")
	}
	if notify == nil {
		return nil, fmt.Errorf("notifier required")
	}
	return &service{
		repo:     repo,
		resolver: resolver,
		courier:  courier,
		notify:   notify,
		logg:     logg,
		metrics:  commitMetrics,
	}, nil
}

// Commit is the seller's binding acceptance of an order. It validates the
// preconditions, resolves both shipment legs, creates the courier shipment,
// then flips the order to committed with a compare-and-swap so a concurrent
// commit can win at most once.
func (s *service) Commit(ctx context.Context, input CommitInput) (*CommitResult, error) {
	started := time.Now()
	result, err := s.commit(ctx, input)
	outcome := "success"
	if err != nil {
		outcome = commitOutcome(err)
	}
	s.metrics.Observe(outcome, time.Since(started))
	return result, err
}

func (s *service) commit(ctx context.Context, input CommitInput) (*CommitResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing")
	}

	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())

	order, err := s.repo.FindByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	if order.SellerID != input.ActorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the seller may commit this order")
	}
	if !order.Status.Committable() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not in a committable state").
			WithDetails(map[string]any{"status": order.Status})
	}
	if !order.HasCourierSelection() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no courier selected for this order").
			WithDetails(map[string]any{"reason": "no_courier_selected"})
	}

	pickup, err := s.resolver.ResolvePickup(ctx, order)
	if err != nil {
		return nil, err
	}
	delivery, err := s.resolver.ResolveDelivery(ctx, order, pickup.Address)
	if err != nil {
		return nil, err
	}

	shipmentReq := buildShipmentRequest(order, pickup, delivery)
	shipment, err := s.courier.CreateShipment(ctx, shipmentReq)
	if err != nil {
		s.logg.Error(ctx, "courier shipment creation failed", err)
		return nil, err
	}
	s.metrics.IncShipment()

	trackingNumber := shipment.TrackingNumber
	if trackingNumber == "" && order.TrackingNumber != nil {
		trackingNumber = *order.TrackingNumber
	}

	deliveryData := types.DeliveryData{
		CourierSlug:  *order.SelectedCourierSlug,
		ServiceCode:  *order.SelectedServiceCode,
		ShipmentID:   shipment.ShipmentID,
		WaybillURL:   shipment.WaybillURL,
		PickupType:   pickup.Type.String(),
		DeliveryType: delivery.Type.String(),
	}
	if order.DeliveryData != nil {
		deliveryData = order.DeliveryData.Merge(deliveryData)
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"status":          enums.OrderStatusCommitted,
		"committed_at":    now,
		"delivery_status": enums.DeliveryStatusScheduled,
		"delivery_data":   &deliveryData,
		"updated_at":      now,
	}
	if trackingNumber != "" {
		updates["tracking_number"] = trackingNumber
	}

	committed, err := s.repo.TransitionStatus(ctx, order.ID,
		[]enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusPaid}, updates)
	if err != nil {
		// The shipment exists but the order could not record it. Cancel the
		// shipment so the courier side does not orphan.
		s.compensateShipment(ctx, shipment.ShipmentID)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to update order")
	}
	if !committed {
		// A concurrent commit won the swap. This shipment is the duplicate.
		s.compensateShipment(ctx, shipment.ShipmentID)
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order was committed concurrently")
	}

	order.Status = enums.OrderStatusCommitted
	order.CommittedAt = &now
	if trackingNumber != "" {
		order.TrackingNumber = &trackingNumber
	}
	s.notify.OrderCommitted(ctx, order, trackingNumber)

	s.logg.Info(s.logg.WithField(ctx, "shipment_id", shipment.ShipmentID), "order committed")

	return &CommitResult{
		TrackingNumber: trackingNumber,
		WaybillURL:     shipment.WaybillURL,
		PickupType:     pickup.Type.String(),
		DeliveryType:   delivery.Type.String(),
	}, nil
}

// Cancel lets the buyer withdraw before dispatch. Only pending/paid orders
// qualify; anything later has a shipment en route.
func (s *service) Cancel(ctx context.Context, input CancelInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing")
	}

	order, err := s.repo.FindByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.BuyerID != input.ActorID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer may cancel this order")
	}

	reason := input.Reason
	if reason == "" {
		reason = "cancelled by buyer"
	}

	now := time.Now().UTC()
	cancelled, err := s.repo.TransitionStatus(ctx, order.ID,
		[]enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusPaid},
		map[string]any{
			"status":              enums.OrderStatusCancelled,
			"cancellation_reason": reason,
			"cancelled_at":        now,
			"updated_at":          now,
		})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
	}
	if !cancelled {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled").
			WithDetails(map[string]any{"status": order.Status})
	}

	order.Status = enums.OrderStatusCancelled
	s.notify.OrderCancelled(ctx, order, reason)
	return nil
}

// ApplyTrackingEvent folds a courier webhook event into the order's tracking
// history. Delivery sub-states refine the order without driving its status;
// only a delivered event moves the order itself to delivered.
func (s *service) ApplyTrackingEvent(ctx context.Context, input TrackingEventInput) error {
	if input.TrackingNumber == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "tracking number required")
	}

	status, err := enums.ParseDeliveryStatus(input.Status)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown delivery status")
	}

	order, err := s.repo.FindByTrackingNumber(ctx, input.TrackingNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no order for tracking number")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by tracking number")
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	events := append(order.TrackingData, types.TrackingEvent{
		Status:      status.String(),
		Description: input.Description,
		Location:    input.Location,
		OccurredAt:  occurredAt,
	})

	updates := map[string]any{
		"delivery_status": status,
		"tracking_data":   events,
		"updated_at":      time.Now().UTC(),
	}
	if err := s.repo.UpdateFields(ctx, order.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record tracking event")
	}

	if status == enums.DeliveryStatusDelivered {
		moved, err := s.repo.TransitionStatus(ctx, order.ID,
			[]enums.OrderStatus{enums.OrderStatusCommitted, enums.OrderStatusPendingDelivery, enums.OrderStatusInTransit},
			map[string]any{"status": enums.OrderStatusDelivered, "updated_at": time.Now().UTC()})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order delivered")
		}
		if moved {
			order.Status = enums.OrderStatusDelivered
			s.notify.OrderDelivered(ctx, order)
		}
	}
	return nil
}

// RefreshTracking pulls the courier's full event history on demand and folds
// it into the order, covering gaps when webhook delivery is missed. The
// courier's list replaces the stored history; unknown vendor statuses stay in
// the history verbatim but never update delivery_status.
func (s *service) RefreshTracking(ctx context.Context, orderID, actorID uuid.UUID) (*TrackingResult, error) {
	order, err := s.Get(ctx, orderID, actorID)
	if err != nil {
		return nil, err
	}
	if order.TrackingNumber == nil || *order.TrackingNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no shipment to track").
			WithDetails(map[string]any{"status": order.Status})
	}
	trackingNumber := *order.TrackingNumber

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	updates, err := s.courier.TrackShipment(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return &TrackingResult{
			TrackingNumber: trackingNumber,
			DeliveryStatus: order.DeliveryStatus,
			Events:         order.TrackingData,
		}, nil
	}

	events := make(types.TrackingEvents, 0, len(updates))
	var latest *enums.DeliveryStatus
	for _, update := range updates {
		event := types.TrackingEvent{
			Status:      update.Status,
			Description: update.Description,
			Location:    update.Location,
			OccurredAt:  update.OccurredAt,
		}
		if status, err := enums.ParseDeliveryStatus(update.Status); err == nil {
			event.Status = status.String()
			parsed := status
			latest = &parsed
		}
		events = append(events, event)
	}

	fields := map[string]any{
		"tracking_data": events,
		"updated_at":    time.Now().UTC(),
	}
	if latest != nil {
		fields["delivery_status"] = *latest
	}
	if err := s.repo.UpdateFields(ctx, order.ID, fields); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record tracking refresh")
	}

	if latest != nil && *latest == enums.DeliveryStatusDelivered {
		moved, err := s.repo.TransitionStatus(ctx, order.ID,
			[]enums.OrderStatus{enums.OrderStatusCommitted, enums.OrderStatusPendingDelivery, enums.OrderStatusInTransit},
			map[string]any{"status": enums.OrderStatusDelivered, "updated_at": time.Now().UTC()})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order delivered")
		}
		if moved {
			order.Status = enums.OrderStatusDelivered
			s.notify.OrderDelivered(ctx, order)
		}
	}

	status := order.DeliveryStatus
	if latest != nil {
		status = latest
	}
	return &TrackingResult{
		TrackingNumber: trackingNumber,
		DeliveryStatus: status,
		Events:         events,
	}, nil
}

func (s *service) Get(ctx context.Context, orderID, actorID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.BuyerID != actorID && order.SellerID != actorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, role PartyRole, status *enums.OrderStatus, limit int, cursor string) (*OrderList, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	params := ListOrdersParams{UserID: userID, Role: role, Status: status, Limit: limit}
	if cursor != "" {
		parsed, err := pagination.ParseCursor(cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		params.Cursor = parsed
	}

	rows, next, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	out := &OrderList{Orders: make([]OrderSummary, 0, len(rows))}
	for _, row := range rows {
		out.Orders = append(out.Orders, summarize(row))
	}
	if next != nil {
		out.Cursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}

func (s *service) compensateShipment(ctx context.Context, shipmentID string) {
	if shipmentID == "" {
		return
	}
	if err := s.courier.CancelShipment(ctx, shipmentID); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "shipment_id", shipmentID),
			"compensating shipment cancel failed", err)
	}
}

// buildShipmentRequest assembles the courier payload: one parcel per line
// item with the nominal textbook profile, legs built from the resolved
// pickup/delivery data, contacts from the order's party snapshots.
func buildShipmentRequest(order *models.Order, pickup, delivery *address.Resolved) bobgo.CreateShipmentRequest {
	parcels := make([]bobgo.Parcel, 0, len(order.Items))
	for _, item := range order.Items {
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		parcels = append(parcels, bobgo.NominalBookParcel(item.Title, item.UnitPriceCents*qty))
	}

	req := bobgo.CreateShipmentRequest{
		Reference:   order.ID.String(),
		CourierSlug: *order.SelectedCourierSlug,
		ServiceCode: *order.SelectedServiceCode,
		Parcels:     parcels,
		Pickup: buildLeg(pickup, bobgo.Contact{
			Name:  order.SellerFullName,
			Phone: order.SellerPhoneNumber,
			Email: order.SellerEmail,
		}),
		Delivery: buildLeg(delivery, bobgo.Contact{
			Name:  order.BuyerFullName,
			Phone: order.BuyerPhoneNumber,
			Email: order.BuyerEmail,
		}),
	}
	return req
}

func buildLeg(resolved *address.Resolved, contact bobgo.Contact) bobgo.Leg {
	leg := bobgo.Leg{
		Type:    resolved.Type.String(),
		Contact: contact,
	}
	if resolved.Locker != nil {
		leg.LockerLocationID = resolved.Locker.LocationID
		leg.LockerProviderSlug = resolved.Locker.ProviderSlug
	}
	if resolved.Address != nil {
		leg.Address = &bobgo.AddressFields{
			StreetAddress: resolved.Address.Street,
			LocalArea:     resolved.Address.LocalArea,
			City:          resolved.Address.City,
			Zone:          resolved.Address.Province,
			Code:          resolved.Address.PostalCode,
			Country:       resolved.Address.CountryOrDefault(),
		}
	}
	return leg
}

func commitOutcome(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return "error"
	}
	switch typed.Code() {
	case pkgerrors.CodeForbidden, pkgerrors.CodeUnauthorized:
		return "unauthorized"
	case pkgerrors.CodeStateConflict:
		return "invalid_state"
	case pkgerrors.CodeValidation:
		return "validation"
	case pkgerrors.CodeDependency:
		return "dependency_failed"
	case pkgerrors.CodeNotFound:
		return "not_found"
	default:
		return "error"
	}
}

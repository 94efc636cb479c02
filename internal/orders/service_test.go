package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rebookza/rebook-backend/internal/address"
	"github.com/rebookza/rebook-backend/pkg/bobgo"
	"github.com/rebookza/rebook-backend/pkg/db/models"
	"github.com/rebookza/rebook-backend/pkg/enums"
	pkgerrors "github.com/rebookza/rebook-backend/pkg/errors"
	"github.com/rebookza/rebook-backend/pkg/logger"
	"github.com/rebookza/rebook-backend/pkg/pagination"
	"github.com/rebookza/rebook-backend/pkg/types"
)

type fakeRepo struct {
	orders map[uuid.UUID]*models.Order

	transitionCalls   []map[string]any
	transitionAllowed bool
	transitionErr     error

	updateFieldsCalls []map[string]any
}

func newFakeRepo(orders ...*models.Order) *fakeRepo {
	repo := &fakeRepo{
		orders:            map[uuid.UUID]*models.Order{},
		transitionAllowed: true,
	}
	for _, order := range orders {
		repo.orders[order.ID] = order
	}
	return repo
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	f.orders[order.ID] = order
	return order, nil
}

func (f *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (f *fakeRepo) FindByPaymentReference(ctx context.Context, reference string) (*models.Order, error) {
	for _, order := range f.orders {
		if order.PaymentReference != nil && *order.PaymentReference == reference {
			return order, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Order, error) {
	for _, order := range f.orders {
		if order.TrackingNumber != nil && *order.TrackingNumber == trackingNumber {
			return order, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) List(ctx context.Context, params ListOrdersParams) ([]models.Order, *pagination.Cursor, error) {
	var rows []models.Order
	for _, order := range f.orders {
		rows = append(rows, *order)
	}
	return rows, nil, nil
}

func (f *fakeRepo) TransitionStatus(ctx context.Context, id uuid.UUID, allowedFrom []enums.OrderStatus, updates map[string]any) (bool, error) {
	f.transitionCalls = append(f.transitionCalls, updates)
	if f.transitionErr != nil {
		return false, f.transitionErr
	}
	if !f.transitionAllowed {
		return false, nil
	}
	order, ok := f.orders[id]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, from := range allowedFrom {
		if order.Status == from {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	if status, ok := updates["status"].(enums.OrderStatus); ok {
		order.Status = status
	}
	return true, nil
}

func (f *fakeRepo) UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	f.updateFieldsCalls = append(f.updateFieldsCalls, updates)
	return nil
}

func (f *fakeRepo) FindExpiredCommitments(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	return nil, nil
}

type fakeResolver struct {
	pickup   *address.Resolved
	delivery *address.Resolved
	err      error

	pickupCalls   int
	deliveryCalls int
}

func (f *fakeResolver) ResolvePickup(ctx context.Context, order *models.Order) (*address.Resolved, error) {
	f.pickupCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.pickup, nil
}

func (f *fakeResolver) ResolveDelivery(ctx context.Context, order *models.Order, fallbackAddr *types.Address) (*address.Resolved, error) {
	f.deliveryCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.delivery, nil
}

type fakeCourier struct {
	shipment *bobgo.Shipment
	err      error

	updates  []bobgo.TrackingUpdate
	trackErr error

	createCalls []bobgo.CreateShipmentRequest
	cancelCalls []string
	trackCalls  []string
}

func (f *fakeCourier) CreateShipment(ctx context.Context, req bobgo.CreateShipmentRequest) (*bobgo.Shipment, error) {
	f.createCalls = append(f.createCalls, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.shipment, nil
}

func (f *fakeCourier) CancelShipment(ctx context.Context, shipmentID string) error {
	f.cancelCalls = append(f.cancelCalls, shipmentID)
	return nil
}

func (f *fakeCourier) TrackShipment(ctx context.Context, trackingNumber string) ([]bobgo.TrackingUpdate, error) {
	f.trackCalls = append(f.trackCalls, trackingNumber)
	if f.trackErr != nil {
		return nil, f.trackErr
	}
	return f.updates, nil
}

type fakeNotifier struct {
	committed []string
	cancelled []string
	delivered []string
}

func (f *fakeNotifier) OrderCommitted(ctx context.Context, order *models.Order, trackingNumber string) {
	f.committed = append(f.committed, trackingNumber)
}

func (f *fakeNotifier) OrderCancelled(ctx context.Context, order *models.Order, reason string) {
	f.cancelled = append(f.cancelled, reason)
}

func (f *fakeNotifier) OrderDelivered(ctx context.Context, order *models.Order) {
	f.delivered = append(f.delivered, order.ID.String())
}

func strPtr(s string) *string { return &s }

func testOrder(sellerID, buyerID uuid.UUID) *models.Order {
	return &models.Order{
		ID:       uuid.New(),
		BuyerID:  buyerID,
		SellerID: sellerID,

		BuyerFullName:  "Naledi M",
		BuyerEmail:     "naledi@example.com",
		SellerFullName: "Sipho K",
		SellerEmail:    "sipho@example.com",

		AmountCents: 26000,
		Items: types.LineItems{{
			BookID:         uuid.NewString(),
			Title:          "Engineering Mathematics (7th ed)",
			UnitPriceCents: 24000,
			Quantity:       1,
		}},

		Status:                enums.OrderStatusPaid,
		PaymentStatus:         enums.PaymentStatusPaid,
		PickupType:            enums.TransportTypeDoor,
		DeliveryType:          enums.TransportTypeDoor,
		SelectedCourierSlug:   strPtr("courier-guy"),
		SelectedServiceCode:   strPtr("ECO"),
		SelectedShippingCents: 1000,
	}
}

func capeTownPickup() *address.Resolved {
	return &address.Resolved{
		Type: enums.TransportTypeDoor,
		Address: &types.Address{
			Street:     "12 Kloof Street",
			City:       "Cape Town",
			Province:   "WC",
			PostalCode: "8001",
		},
	}
}

func joburgDelivery() *address.Resolved {
	return &address.Resolved{
		Type: enums.TransportTypeDoor,
		Address: &types.Address{
			Street:     "3 Jan Smuts Avenue",
			City:       "Johannesburg",
			Province:   "GP",
			PostalCode: "2196",
		},
	}
}

func newCommitHarness(t *testing.T, order *models.Order) (Service, *fakeRepo, *fakeResolver, *fakeCourier, *fakeNotifier) {
	t.Helper()
	repo := newFakeRepo(order)
	resolver := &fakeResolver{pickup: capeTownPickup(), delivery: joburgDelivery()}
	courier := &fakeCourier{shipment: &bobgo.Shipment{ShipmentID: "SH1", TrackingNumber: "TRK1"}}
	notifier := &fakeNotifier{}
	svc, err := NewService(repo, resolver, courier, notifier, logger.New(logger.Options{ServiceName: "test"}), nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, repo, resolver, courier, notifier
}

func TestCommit_Success(t *testing.T) {
	sellerID := uuid.New()
	order := testOrder(sellerID, uuid.New())
	svc, repo, _, courier, notifier := newCommitHarness(t, order)

	result, err := svc.Commit(context.Background(), CommitInput{OrderID: order.ID, ActorID: sellerID})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if result.TrackingNumber != "TRK1" {
		t.Fatalf("unexpected tracking number: %q", result.TrackingNumber)
	}
	if len(courier.createCalls) != 1 {
		t.Fatalf("expected 1 shipment, got %d", len(courier.createCalls))
	}
	req := courier.createCalls[0]
	if req.CourierSlug != "courier-guy" || req.ServiceCode != "ECO" {
		t.Fatalf("unexpected courier selection: %s/%s", req.CourierSlug, req.ServiceCode)
	}
	if req.Pickup.Address == nil || req.Pickup.Address.City != "Cape Town" {
		t.Fatalf("expected Cape Town pickup, got %+v", req.Pickup.Address)
	}
	if req.Pickup.Address.Zone != "WC" || req.Pickup.Address.Code != "8001" {
		t.Fatalf("unexpected pickup zone/code: %+v", req.Pickup.Address)
	}
	if req.Pickup.Address.Country != "ZA" {
		t.Fatalf("expected ZA default country, got %q", req.Pickup.Address.Country)
	}
	if len(req.Parcels) != 1 {
		t.Fatalf("expected one parcel per line item, got %d", len(req.Parcels))
	}
	if order.Status != enums.OrderStatusCommitted {
		t.Fatalf("order not committed: %s", order.Status)
	}
	if len(repo.transitionCalls) != 1 {
		t.Fatalf("expected 1 transition, got %d", len(repo.transitionCalls))
	}
	updates := repo.transitionCalls[0]
	if updates["delivery_status"] != enums.DeliveryStatusScheduled {
		t.Fatalf("expected scheduled delivery status, got %v", updates["delivery_status"])
	}
	if updates["tracking_number"] != "TRK1" {
		t.Fatalf("expected tracking number in updates, got %v", updates["tracking_number"])
	}
	if len(notifier.committed) != 1 || notifier.committed[0] != "TRK1" {
		t.Fatalf("expected commit notification with tracking number, got %v", notifier.committed)
	}
	if len(courier.cancelCalls) != 0 {
		t.Fatalf("no compensation expected, got %v", courier.cancelCalls)
	}
}

func TestCommit_NotSellerLeavesOrderUntouched(t *testing.T) {
	order := testOrder(uuid.New(), uuid.New())
	svc, repo, resolver, courier, _ := newCommitHarness(t, order)

	_, err := svc.Commit(context.Background(), CommitInput{OrderID: order.ID, ActorID: uuid.New()})
	if !pkgerrors.Is(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if resolver.pickupCalls != 0 || len(courier.createCalls) != 0 {
		t.Fatal("unauthorized commit must not touch resolver or courier")
	}
	if order.Status != enums.OrderStatusPaid {
		t.Fatalf("order status changed: %s", order.Status)
	}
	if len(repo.transitionCalls) != 0 {
		t.Fatal("unauthorized commit must not transition")
	}
}

func TestCommit_InvalidStateShortCircuits(t *testing.T) {
	sellerID := uuid.New()
	order := testOrder(sellerID, uuid.New())
	order.Status = enums.OrderStatusCancelled
	svc, _, resolver, courier, _ := newCommitHarness(t, order)

	_, err := svc.Commit(context.Background(), CommitInput{OrderID: order.ID, ActorID: sellerID})
	if !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if resolver.pickupCalls != 0 || len(courier.createCalls) != 0 {
		t.Fatal("invalid state must short-circuit before any shipment work")
	}
}

func TestCommit_NoCourierSelection(t *testing.T) {
	sellerID := uuid.New()
	order := testOrder(sellerID, uuid.New())
	order.SelectedCourierSlug = nil
	svc, _, resolver, courier, _ := newCommitHarness(t, order)

	_, err := svc.Commit(context.Background(), CommitInput{OrderID: order.ID, ActorID: sellerID})
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if resolver.pickupCalls != 0 || len(courier.createCalls) != 0 {
		t.Fatal("missing courier selection must fail before resolution")
	}
}

func TestCommit_ConcurrentLossCancelsShipment(t *testing.T) {
	sellerID := uuid.New()
	order := testOrder(sellerID, uuid.New())
	svc, repo, _, courier, notifier := newCommitHarness(t, order)
	repo.transitionAllowed = false

	_, err := svc.Commit(context.Background(), CommitInput{OrderID: order.ID, ActorID: sellerID})
	if !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if len(courier.createCalls) != 1 {
		t.Fatalf("expected 1 shipment attempt, got %d", len(courier.createCalls))
	}
	if len(courier.cancelCalls) != 1 || courier.cancelCalls[0] != "SH1" {
		t.Fatalf("expected compensating cancel of SH1, got %v", courier.cancelCalls)
	}
	if len(notifier.committed) != 0 {
		t.Fatal("lost commit must not notify")
	}
}

func TestCommit_NotFound(t *testing.T) {
	svc, _, _, _, _ := newCommitHarness(t, testOrder(uuid.New(), uuid.New()))

	_, err := svc.Commit(context.Background(), CommitInput{OrderID: uuid.New(), ActorID: uuid.New()})
	if !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCancel_BuyerOnly(t *testing.T) {
	buyerID := uuid.New()
	order := testOrder(uuid.New(), buyerID)
	svc, _, _, _, notifier := newCommitHarness(t, order)

	if err := svc.Cancel(context.Background(), CancelInput{OrderID: order.ID, ActorID: order.SellerID}); !pkgerrors.Is(err, pkgerrors.CodeForbidden) {
		t.Fatalf("seller cancel should be forbidden, got %v", err)
	}

	if err := svc.Cancel(context.Background(), CancelInput{OrderID: order.ID, ActorID: buyerID}); err != nil {
		t.Fatalf("buyer cancel: %v", err)
	}
	if order.Status != enums.OrderStatusCancelled {
		t.Fatalf("order not cancelled: %s", order.Status)
	}
	if len(notifier.cancelled) != 1 || notifier.cancelled[0] != "cancelled by buyer" {
		t.Fatalf("expected default cancellation reason, got %v", notifier.cancelled)
	}
}

func TestCancel_CommittedOrderRejected(t *testing.T) {
	buyerID := uuid.New()
	order := testOrder(uuid.New(), buyerID)
	order.Status = enums.OrderStatusCommitted
	svc, _, _, _, _ := newCommitHarness(t, order)

	err := svc.Cancel(context.Background(), CancelInput{OrderID: order.ID, ActorID: buyerID})
	if !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestApplyTrackingEvent_DeliveredCompletesOrder(t *testing.T) {
	order := testOrder(uuid.New(), uuid.New())
	order.Status = enums.OrderStatusCommitted
	order.TrackingNumber = strPtr("TRK9")
	svc, repo, _, _, notifier := newCommitHarness(t, order)

	err := svc.ApplyTrackingEvent(context.Background(), TrackingEventInput{
		TrackingNumber: "TRK9",
		Status:         "delivered",
		Description:    "left at reception",
		OccurredAt:     time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("ApplyTrackingEvent: %v", err)
	}
	if len(repo.updateFieldsCalls) != 1 {
		t.Fatalf("expected tracking update, got %d", len(repo.updateFieldsCalls))
	}
	if order.Status != enums.OrderStatusDelivered {
		t.Fatalf("expected delivered order, got %s", order.Status)
	}
	if len(notifier.delivered) != 1 {
		t.Fatalf("expected delivered notification, got %d", len(notifier.delivered))
	}
}

func TestApplyTrackingEvent_IntermediateStatusDoesNotMoveOrder(t *testing.T) {
	order := testOrder(uuid.New(), uuid.New())
	order.Status = enums.OrderStatusCommitted
	order.TrackingNumber = strPtr("TRK9")
	svc, repo, _, _, notifier := newCommitHarness(t, order)

	err := svc.ApplyTrackingEvent(context.Background(), TrackingEventInput{
		TrackingNumber: "TRK9",
		Status:         "in_transit",
	})
	if err != nil {
		t.Fatalf("ApplyTrackingEvent: %v", err)
	}
	if order.Status != enums.OrderStatusCommitted {
		t.Fatalf("order status must not change on intermediate events, got %s", order.Status)
	}
	if len(repo.transitionCalls) != 0 {
		t.Fatal("intermediate event must not transition order status")
	}
	if len(notifier.delivered) != 0 {
		t.Fatal("intermediate event must not notify delivery")
	}
}

func TestApplyTrackingEvent_UnknownStatus(t *testing.T) {
	svc, _, _, _, _ := newCommitHarness(t, testOrder(uuid.New(), uuid.New()))

	err := svc.ApplyTrackingEvent(context.Background(), TrackingEventInput{
		TrackingNumber: "TRK1",
		Status:         "teleported",
	})
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRefreshTracking_FoldsCourierHistory(t *testing.T) {
	buyerID := uuid.New()
	order := testOrder(uuid.New(), buyerID)
	order.Status = enums.OrderStatusCommitted
	order.TrackingNumber = strPtr("TRK9")
	svc, repo, _, courier, _ := newCommitHarness(t, order)
	courier.updates = []bobgo.TrackingUpdate{
		{Status: "collected", Location: "Cape Town hub", OccurredAt: time.Date(2026, 8, 20, 8, 0, 0, 0, time.UTC)},
		{Status: "in_transit", OccurredAt: time.Date(2026, 8, 21, 9, 0, 0, 0, time.UTC)},
	}

	result, err := svc.RefreshTracking(context.Background(), order.ID, buyerID)
	if err != nil {
		t.Fatalf("RefreshTracking: %v", err)
	}
	if len(courier.trackCalls) != 1 || courier.trackCalls[0] != "TRK9" {
		t.Fatalf("expected one tracking lookup for TRK9, got %v", courier.trackCalls)
	}
	if len(result.Events) != 2 {
		t.Fatalf("expected both courier events, got %d", len(result.Events))
	}
	if result.DeliveryStatus == nil || *result.DeliveryStatus != enums.DeliveryStatusInTransit {
		t.Fatalf("expected in_transit sub-state, got %v", result.DeliveryStatus)
	}
	if len(repo.updateFieldsCalls) != 1 {
		t.Fatalf("expected one persisted refresh, got %d", len(repo.updateFieldsCalls))
	}
	if order.Status != enums.OrderStatusCommitted {
		t.Fatalf("intermediate refresh must not move the order, got %s", order.Status)
	}
}

func TestRefreshTracking_DeliveredCompletesOrder(t *testing.T) {
	buyerID := uuid.New()
	order := testOrder(uuid.New(), buyerID)
	order.Status = enums.OrderStatusInTransit
	order.TrackingNumber = strPtr("TRK9")
	svc, _, _, courier, notifier := newCommitHarness(t, order)
	courier.updates = []bobgo.TrackingUpdate{
		{Status: "out_for_delivery", OccurredAt: time.Date(2026, 8, 22, 8, 0, 0, 0, time.UTC)},
		{Status: "delivered", OccurredAt: time.Date(2026, 8, 22, 11, 0, 0, 0, time.UTC)},
	}

	result, err := svc.RefreshTracking(context.Background(), order.ID, buyerID)
	if err != nil {
		t.Fatalf("RefreshTracking: %v", err)
	}
	if result.DeliveryStatus == nil || *result.DeliveryStatus != enums.DeliveryStatusDelivered {
		t.Fatalf("expected delivered sub-state, got %v", result.DeliveryStatus)
	}
	if order.Status != enums.OrderStatusDelivered {
		t.Fatalf("expected delivered order, got %s", order.Status)
	}
	if len(notifier.delivered) != 1 {
		t.Fatalf("expected delivered notification, got %d", len(notifier.delivered))
	}
}

func TestRefreshTracking_NoShipmentYet(t *testing.T) {
	buyerID := uuid.New()
	order := testOrder(uuid.New(), buyerID)
	svc, _, _, courier, _ := newCommitHarness(t, order)

	_, err := svc.RefreshTracking(context.Background(), order.ID, buyerID)
	if !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict for untracked order, got %v", err)
	}
	if len(courier.trackCalls) != 0 {
		t.Fatal("courier must not be called without a tracking number")
	}
}

func TestRefreshTracking_StrangerForbidden(t *testing.T) {
	order := testOrder(uuid.New(), uuid.New())
	order.TrackingNumber = strPtr("TRK9")
	svc, _, _, courier, _ := newCommitHarness(t, order)

	_, err := svc.RefreshTracking(context.Background(), order.ID, uuid.New())
	if !pkgerrors.Is(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if len(courier.trackCalls) != 0 {
		t.Fatal("courier must not be called for a stranger")
	}
}

func TestGet_PartyCheck(t *testing.T) {
	buyerID := uuid.New()
	order := testOrder(uuid.New(), buyerID)
	svc, _, _, _, _ := newCommitHarness(t, order)

	if _, err := svc.Get(context.Background(), order.ID, buyerID); err != nil {
		t.Fatalf("buyer get: %v", err)
	}
	if _, err := svc.Get(context.Background(), order.ID, uuid.New()); !pkgerrors.Is(err, pkgerrors.CodeForbidden) {
		t.Fatalf("stranger get should be forbidden, got %v", err)
	}
}

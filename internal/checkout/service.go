package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rebookza/rebook-backend/internal/books"
	"github.com/rebookza/rebook-backend/internal/orders"
	"github.com/rebookza/rebook-backend/internal/profiles"
	"github.com/rebookza/rebook-backend/pkg/db/models"
	"github.com/rebookza/rebook-backend/pkg/enums"
	pkgerrors "github.com/rebookza/rebook-backend/pkg/errors"
	"github.com/rebookza/rebook-backend/pkg/logger"
	"github.com/rebookza/rebook-backend/pkg/types"
)

// Sealer encrypts plaintext addresses for storage on the order row.
type Sealer interface {
	SealAddress(addr types.Address) (string, string, error)
}

// Service drives checkout: order creation before payment, gateway session
// initiation, and payment confirmation.
type Service interface {
	Start(ctx context.Context, input StartInput) (*StartResult, error)
	ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) (*models.Order, error)
}

// StartInput is the buyer's checkout submission.
type StartInput struct {
	BuyerID uuid.UUID
	BookID  uuid.UUID

	Gateway enums.PaymentGateway // empty selects the configured default

	PickupType   enums.TransportType
	DeliveryType enums.TransportType

	CourierSlug   string
	ServiceCode   string
	ShippingCents int

	ShippingAddress *types.Address
	DeliveryLocker  *types.Locker
}

// StartResult carries the created order and the hosted payment session.
type StartResult struct {
	OrderID uuid.UUID            `json:"order_id"`
	Gateway enums.PaymentGateway `json:"gateway"`
	Session Session              `json:"session"`

	AmountCents int `json:"amount_cents"`
}

// ConfirmPaymentInput identifies a gateway confirmation event.
type ConfirmPaymentInput struct {
	Gateway   enums.PaymentGateway
	Reference string
}

// Config carries the pricing and deadline knobs the flow applies.
type Config struct {
	DefaultGateway   enums.PaymentGateway
	PlatformFeeCents int
	CallbackBaseURL  string
	CommitDeadline   time.Duration
}

type service struct {
	orders   orders.Repository
	books    books.Repository
	profiles profiles.Repository
	sealer   Sealer
	gateways map[enums.PaymentGateway]Gateway
	cfg      Config
	logg     *logger.Logger
}

// NewService wires the checkout flow. At least the default gateway must be
// registered.
func NewService(orderRepo orders.Repository, bookRepo books.Repository, profileRepo profiles.Repository, sealer Sealer, gateways []Gateway, cfg Config, logg *logger.Logger) (Service, error) {
	if orderRepo == nil || bookRepo == nil || profileRepo == nil {
		return nil, fmt.Errorf("checkout repositories required")
	}
	if sealer == nil {
		return nil, fmt.Errorf("address sealer required")
	}
	if cfg.CommitDeadline <= 0 {
		cfg.CommitDeadline = 48 * time.Hour
	}

	registry := make(map[enums.PaymentGateway]Gateway, len(gateways))
	for _, gateway := range gateways {
		if gateway != nil {
			registry[gateway.Name()] = gateway
		}
	}
	if _, ok := registry[cfg.DefaultGateway]; !ok {
		return nil, fmt.Errorf("default payment gateway %q not registered", cfg.DefaultGateway)
	}

	return &service{
		orders:   orderRepo,
		books:    bookRepo,
		profiles: profileRepo,
		sealer:   sealer,
		gateways: registry,
		cfg:      cfg,
		logg:     logg,
	}, nil
}

// Start creates the order before payment so purchase intent survives gateway
// failures, then opens the hosted payment session.
func (s *service) Start(ctx context.Context, input StartInput) (*StartResult, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing")
	}
	if input.BookID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}

	gatewayName := input.Gateway
	if gatewayName == "" {
		gatewayName = s.cfg.DefaultGateway
	}
	gateway, ok := s.gateways[gatewayName]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment gateway").
			WithDetails(map[string]any{"gateway": gatewayName})
	}

	book, err := s.books.FindByID(ctx, input.BookID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
	}
	if book.Sold {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "book has already been sold")
	}
	if book.SellerID == input.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot buy your own listing")
	}

	buyer, err := s.profiles.FindByID(ctx, input.BuyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer profile")
	}
	seller, err := s.profiles.FindByID(ctx, book.SellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller profile")
	}

	order, err := s.buildOrder(input, book, buyer, seller)
	if err != nil {
		return nil, err
	}

	created, err := s.orders.Create(ctx, order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	ctx = s.logg.WithOrderID(ctx, created.ID.String())

	session, err := gateway.Initialize(ctx, InitializeInput{
		AmountCents: created.AmountCents,
		Email:       buyer.Email,
		Reference:   *created.PaymentReference,
		CallbackURL: s.cfg.CallbackBaseURL + "/payment/callback",
		Metadata: map[string]any{
			"order_id": created.ID.String(),
			"book_id":  book.ID.String(),
		},
	})
	if err != nil {
		// The pending order stays; the buyer can retry payment against it.
		s.logg.Error(ctx, "payment session initiation failed", err)
		return nil, err
	}

	s.logg.Info(s.logg.WithField(ctx, "gateway", string(gatewayName)), "checkout started")

	return &StartResult{
		OrderID:     created.ID,
		Gateway:     gatewayName,
		Session:     *session,
		AmountCents: created.AmountCents,
	}, nil
}

// ConfirmPayment verifies the reference with the gateway and flips the order
// to paid exactly once, stamping the commit deadline.
func (s *service) ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) (*models.Order, error) {
	if strings.TrimSpace(input.Reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}

	gatewayName := input.Gateway
	if gatewayName == "" {
		gatewayName = s.cfg.DefaultGateway
	}
	gateway, ok := s.gateways[gatewayName]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment gateway")
	}

	order, err := s.orders.FindByPaymentReference(ctx, input.Reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no order for payment reference")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by reference")
	}

	confirmation, err := gateway.Confirm(ctx, input.Reference)
	if err != nil {
		return nil, err
	}
	if !confirmation.Paid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment not settled at gateway")
	}
	if confirmation.AmountCents != 0 && confirmation.AmountCents != order.AmountCents {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "paid amount does not match order").
			WithDetails(map[string]any{
				"expected_cents": order.AmountCents,
				"paid_cents":     confirmation.AmountCents,
			})
	}

	paidAt := confirmation.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}
	deadline := paidAt.Add(s.cfg.CommitDeadline)

	moved, err := s.orders.TransitionStatus(ctx, order.ID,
		[]enums.OrderStatus{enums.OrderStatusPending},
		map[string]any{
			"status":          enums.OrderStatusPaid,
			"payment_status":  enums.PaymentStatusPaid,
			"paid_at":         paidAt,
			"commit_deadline": deadline,
			"updated_at":      time.Now().UTC(),
		})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
	}
	if !moved {
		// Duplicate webhook delivery: the order already moved on.
		return order, nil
	}

	if len(order.Items) > 0 {
		if bookID, err := uuid.Parse(order.Items[0].BookID); err == nil {
			if err := s.books.MarkSold(ctx, bookID); err != nil {
				s.logg.Warn(s.logg.WithOrderID(ctx, order.ID.String()), "failed to mark book sold")
			}
		}
	}

	order.Status = enums.OrderStatusPaid
	order.PaymentStatus = enums.PaymentStatusPaid
	order.PaidAt = &paidAt
	order.CommitDeadline = &deadline
	return order, nil
}

func (s *service) buildOrder(input StartInput, book *models.Book, buyer, seller *models.Profile) (*models.Order, error) {
	pickupType := input.PickupType
	if pickupType == "" {
		pickupType = enums.TransportTypeDoor
	}
	deliveryType := input.DeliveryType
	if deliveryType == "" {
		deliveryType = enums.TransportTypeDoor
	}
	if !pickupType.IsValid() || !deliveryType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup and delivery types must be door or locker")
	}

	amountCents := book.PriceCents + input.ShippingCents + s.cfg.PlatformFeeCents
	reference := "rb-" + uuid.NewString()

	order := &models.Order{
		BuyerID:  buyer.ID,
		SellerID: seller.ID,

		BuyerFullName:     buyer.FullName,
		BuyerEmail:        buyer.Email,
		BuyerPhoneNumber:  buyer.PhoneNumber,
		SellerFullName:    seller.FullName,
		SellerEmail:       seller.Email,
		SellerPhoneNumber: seller.PhoneNumber,

		AmountCents: amountCents,
		TotalAmount: decimal.NewFromInt(int64(amountCents)).Div(decimal.NewFromInt(100)),
		Items: types.LineItems{{
			BookID:         book.ID.String(),
			Title:          book.Title,
			UnitPriceCents: book.PriceCents,
			Quantity:       1,
			Condition:      book.Condition,
		}},

		Status:           enums.OrderStatusPending,
		PaymentStatus:    enums.PaymentStatusUnpaid,
		PaymentGateway:   input.Gateway,
		PaymentReference: &reference,

		PickupType:            pickupType,
		DeliveryType:          deliveryType,
		SelectedShippingCents: input.ShippingCents,
	}
	if order.PaymentGateway == "" {
		order.PaymentGateway = s.cfg.DefaultGateway
	}
	if input.CourierSlug != "" {
		slug := input.CourierSlug
		order.SelectedCourierSlug = &slug
	}
	if input.ServiceCode != "" {
		code := input.ServiceCode
		order.SelectedServiceCode = &code
	}

	// Seller's listing address travels with the order as the pickup blob so
	// commitment never depends on the listing still existing.
	order.PickupAddressEncrypted = book.PickupAddressEncrypted

	if deliveryType == enums.TransportTypeLocker {
		if input.DeliveryLocker == nil || !input.DeliveryLocker.Complete() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery locker location and provider are required")
		}
		locationID := input.DeliveryLocker.LocationID
		providerSlug := input.DeliveryLocker.ProviderSlug
		order.DeliveryLockerLocationID = &locationID
		order.DeliveryLockerProviderSlug = &providerSlug
		if len(input.DeliveryLocker.Metadata) > 0 {
			data := input.DeliveryLocker.Metadata
			order.DeliveryLockerData = &data
		}
	} else if input.ShippingAddress != nil {
		if err := input.ShippingAddress.Validate(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address")
		}
		blob, version, err := s.sealer.SealAddress(*input.ShippingAddress)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "seal shipping address")
		}
		order.ShippingAddressEncrypted = &blob
		order.AddressEncryptionVersion = version
	}

	return order, nil
}

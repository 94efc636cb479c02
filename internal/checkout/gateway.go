package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/rebookza/rebook-backend/pkg/bobpay"
	"github.com/rebookza/rebook-backend/pkg/enums"
	"github.com/rebookza/rebook-backend/pkg/paystack"
)

// Session is a started hosted payment: either a redirect URL, a popup access
// code, or both, depending on the gateway.
type Session struct {
	PaymentURL string `json:"payment_url,omitempty"`
	AccessCode string `json:"access_code,omitempty"`
	Reference  string `json:"reference"`
}

// Confirmation is the gateway's authoritative answer for a reference.
type Confirmation struct {
	Paid        bool
	AmountCents int
	PaidAt      time.Time
}

// InitializeInput carries everything a gateway needs to open a session.
type InitializeInput struct {
	AmountCents int
	Email       string
	Reference   string
	CallbackURL string
	Metadata    map[string]any
}

// Gateway is the single payment abstraction both providers implement, so the
// checkout flow never branches on provider internals.
type Gateway interface {
	Name() enums.PaymentGateway
	Initialize(ctx context.Context, input InitializeInput) (*Session, error)
	Confirm(ctx context.Context, reference string) (*Confirmation, error)
}

type paystackGateway struct {
	client *paystack.Client
}

// NewPaystackGateway adapts the Paystack client to the Gateway interface.
func NewPaystackGateway(client *paystack.Client) Gateway {
	return &paystackGateway{client: client}
}

func (g *paystackGateway) Name() enums.PaymentGateway {
	return enums.PaymentGatewayPaystack
}

func (g *paystackGateway) Initialize(ctx context.Context, input InitializeInput) (*Session, error) {
	result, err := g.client.Initialize(ctx, paystack.InitializeRequest{
		AmountCents: input.AmountCents,
		Email:       input.Email,
		Reference:   input.Reference,
		CallbackURL: input.CallbackURL,
		Metadata:    input.Metadata,
	})
	if err != nil {
		return nil, err
	}
	return &Session{
		PaymentURL: result.AuthorizationURL,
		AccessCode: result.AccessCode,
		Reference:  result.Reference,
	}, nil
}

func (g *paystackGateway) Confirm(ctx context.Context, reference string) (*Confirmation, error) {
	result, err := g.client.Verify(ctx, reference)
	if err != nil {
		return nil, err
	}
	confirmation := &Confirmation{
		Paid:        result.Paid(),
		AmountCents: result.AmountCents,
	}
	if result.PaidAt != nil {
		confirmation.PaidAt = *result.PaidAt
	}
	return confirmation, nil
}

type bobpayGateway struct {
	client     *bobpay.Client
	successURL string
	cancelURL  string
	notifyURL  string
}

// NewBobPayGateway adapts the BobPay client to the Gateway interface.
func NewBobPayGateway(client *bobpay.Client, callbackBase string) Gateway {
	return &bobpayGateway{
		client:     client,
		successURL: callbackBase + "/payment/success",
		cancelURL:  callbackBase + "/payment/cancelled",
		notifyURL:  callbackBase + "/api/v1/webhooks/payment",
	}
}

func (g *bobpayGateway) Name() enums.PaymentGateway {
	return enums.PaymentGatewayBobPay
}

func (g *bobpayGateway) Initialize(ctx context.Context, input InitializeInput) (*Session, error) {
	session, err := g.client.CreateSession(ctx, bobpay.SessionRequest{
		AmountCents: input.AmountCents,
		Reference:   input.Reference,
		Description: fmt.Sprintf("Rebook order %s", input.Reference),
		SuccessURL:  g.successURL,
		CancelURL:   g.cancelURL,
		NotifyURL:   g.notifyURL,
	})
	if err != nil {
		return nil, err
	}
	return &Session{PaymentURL: session.PaymentURL, Reference: session.Reference}, nil
}

func (g *bobpayGateway) Confirm(ctx context.Context, reference string) (*Confirmation, error) {
	status, err := g.client.GetStatus(ctx, reference)
	if err != nil {
		return nil, err
	}
	confirmation := &Confirmation{
		Paid:        status.Paid(),
		AmountCents: status.AmountCents,
	}
	if status.PaidAt != nil {
		confirmation.PaidAt = *status.PaidAt
	}
	return confirmation, nil
}

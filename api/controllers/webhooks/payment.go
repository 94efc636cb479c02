package webhooks

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/rebookza/rebook-backend/api/responses"
	checkoutsvc "github.com/rebookza/rebook-backend/internal/checkout"
	"github.com/rebookza/rebook-backend/pkg/enums"
	pkgerrors "github.com/rebookza/rebook-backend/pkg/errors"
	"github.com/rebookza/rebook-backend/pkg/logger"
)

const maxWebhookBody = 1 << 20

// paymentEvent is the normalized shape accepted from both gateways. Paystack
// nests the reference under data; BobPay posts it flat.
type paymentEvent struct {
	Gateway           string `json:"gateway,omitempty"`
	Event             string `json:"event,omitempty"`
	Reference         string `json:"reference,omitempty"`
	MerchantReference string `json:"merchant_reference,omitempty"`
	Data              struct {
		Reference string `json:"reference,omitempty"`
	} `json:"data"`
}

func (e *paymentEvent) reference() string {
	for _, candidate := range []string{e.Reference, e.MerchantReference, e.Data.Reference} {
		if ref := strings.TrimSpace(candidate); ref != "" {
			return ref
		}
	}
	return ""
}

// PaymentWebhook confirms a settled payment with the gateway and flips the
// order to paid. The reference is always re-verified server side, so a forged
// body cannot mark an unpaid order as paid.
func PaymentWebhook(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read webhook body"))
			return
		}

		var event paymentEvent
		if err := json.Unmarshal(body, &event); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook payload"))
			return
		}

		reference := event.reference()
		if reference == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payment reference missing from webhook"))
			return
		}

		input := checkoutsvc.ConfirmPaymentInput{Reference: reference}
		if event.Gateway != "" {
			gateway, err := enums.ParsePaymentGateway(event.Gateway)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown gateway"))
				return
			}
			input.Gateway = gateway
		}

		order, err := svc.ConfirmPayment(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"order_id": order.ID,
			"status":   order.Status,
		})
	}
}

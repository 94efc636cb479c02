package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/rebookza/rebook-backend/api/middleware"
	"github.com/rebookza/rebook-backend/api/responses"
	"github.com/rebookza/rebook-backend/api/validators"
	checkoutsvc "github.com/rebookza/rebook-backend/internal/checkout"
	"github.com/rebookza/rebook-backend/pkg/enums"
	pkgerrors "github.com/rebookza/rebook-backend/pkg/errors"
	"github.com/rebookza/rebook-backend/pkg/logger"
	"github.com/rebookza/rebook-backend/pkg/types"
)

// Checkout creates a pending order for a single listing and opens a hosted
// payment session for it.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		buyerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := checkoutsvc.StartInput{
			BuyerID:       buyerID,
			BookID:        payload.BookID,
			CourierSlug:   payload.CourierSlug,
			ServiceCode:   payload.ServiceCode,
			ShippingCents: payload.ShippingCents,
		}
		if payload.Gateway != "" {
			gateway, err := enums.ParsePaymentGateway(payload.Gateway)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment gateway"))
				return
			}
			input.Gateway = gateway
		}
		if payload.PickupType != "" {
			pickupType, err := enums.ParseTransportType(payload.PickupType)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pickup type"))
				return
			}
			input.PickupType = pickupType
		}
		if payload.DeliveryType != "" {
			deliveryType, err := enums.ParseTransportType(payload.DeliveryType)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery type"))
				return
			}
			input.DeliveryType = deliveryType
		}
		input.ShippingAddress = payload.ShippingAddress
		input.DeliveryLocker = payload.DeliveryLocker

		result, err := svc.Start(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

type checkoutRequest struct {
	BookID          uuid.UUID      `json:"book_id" validate:"required"`
	Gateway         string         `json:"gateway,omitempty" validate:"omitempty,oneof=paystack bobpay"`
	PickupType      string         `json:"pickup_type,omitempty" validate:"omitempty,oneof=door locker"`
	DeliveryType    string         `json:"delivery_type,omitempty" validate:"omitempty,oneof=door locker"`
	CourierSlug     string         `json:"courier_slug,omitempty"`
	ServiceCode     string         `json:"service_code,omitempty"`
	ShippingCents   int            `json:"shipping_cents,omitempty" validate:"omitempty,min=0"`
	ShippingAddress *types.Address `json:"shipping_address,omitempty"`
	DeliveryLocker  *types.Locker  `json:"delivery_locker,omitempty"`
}

func actorID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid caller identity")
	}
	return id, nil
}

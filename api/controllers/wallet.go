package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rebookza/rebook-backend/api/responses"
	"github.com/rebookza/rebook-backend/api/validators"
	"github.com/rebookza/rebook-backend/internal/wallet"
	"github.com/rebookza/rebook-backend/pkg/enums"
	pkgerrors "github.com/rebookza/rebook-backend/pkg/errors"
	"github.com/rebookza/rebook-backend/pkg/logger"
	"github.com/rebookza/rebook-backend/pkg/pagination"
)

// WalletGet returns the caller's wallet balances.
func WalletGet(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// WalletTransactions returns the caller's ledger entries, newest first.
func WalletTransactions(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))

		list, err := svc.ListTransactions(r.Context(), userID, limit, cursor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// RequestPayout reserves available balance and queues a withdrawal for admin
// review.
func RequestPayout(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload payoutRequestBody
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		amount, err := decimal.NewFromString(payload.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "amount must be a decimal string"))
			return
		}

		payout, err := svc.RequestPayout(r.Context(), userID, amount, payload.Notes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, payout)
	}
}

// AdminListPayouts pages pending or decided payout requests for review.
func AdminListPayouts(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var status *enums.PayoutStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParsePayoutStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			status = &parsed
		}

		payouts, err := svc.ListPayouts(r.Context(), status, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payouts)
	}
}

// AdminApprovePayout approves a pending payout request, settling the
// reserved funds.
func AdminApprovePayout(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return adminPayoutDecision(svc, logg, svcApprove)
}

// AdminDenyPayout denies a pending payout request, releasing the reserved
// funds back to the seller.
func AdminDenyPayout(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return adminPayoutDecision(svc, logg, svcDeny)
}

type payoutDecisionFn func(svc wallet.Service, r *http.Request, payoutID uuid.UUID) (any, error)

func svcApprove(svc wallet.Service, r *http.Request, payoutID uuid.UUID) (any, error) {
	return svc.ApprovePayout(r.Context(), payoutID)
}

func svcDeny(svc wallet.Service, r *http.Request, payoutID uuid.UUID) (any, error) {
	return svc.DenyPayout(r.Context(), payoutID)
}

func adminPayoutDecision(svc wallet.Service, logg *logger.Logger, decide payoutDecisionFn) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		payoutID, err := validators.ParsePathUUID(chi.URLParam(r, "payoutId"), "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payout, err := decide(svc, r, payoutID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payout)
	}
}

// AdminMarkPayoutPaid records that an approved payout was transferred.
func AdminMarkPayoutPaid(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		payoutID, err := validators.ParsePathUUID(chi.URLParam(r, "payoutId"), "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payout, err := svc.MarkPayoutPaid(r.Context(), payoutID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payout)
	}
}

type payoutRequestBody struct {
	Amount string  `json:"amount" validate:"required"`
	Notes  *string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

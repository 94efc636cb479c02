package controllers

import (
	"errors"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/rebookza/rebook-backend/api/responses"
	"github.com/rebookza/rebook-backend/api/validators"
	"github.com/rebookza/rebook-backend/internal/checkout"
	"github.com/rebookza/rebook-backend/internal/profiles"
	"github.com/rebookza/rebook-backend/pkg/db/models"
	pkgerrors "github.com/rebookza/rebook-backend/pkg/errors"
	"github.com/rebookza/rebook-backend/pkg/logger"
	"github.com/rebookza/rebook-backend/pkg/types"
)

type profileResponse struct {
	ID          string `json:"id"`
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number,omitempty"`

	HasAddress        bool          `json:"has_address"`
	HasBankingDetails bool          `json:"has_banking_details"`
	PreferredLocker   *types.Locker `json:"preferred_locker,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newProfileResponse(p *models.Profile) profileResponse {
	resp := profileResponse{
		ID:                p.ID.String(),
		FullName:          p.FullName,
		Email:             p.Email,
		PhoneNumber:       p.PhoneNumber,
		HasAddress:        p.AddressEncrypted != nil && *p.AddressEncrypted != "",
		HasBankingDetails: p.BankingDetailsEncrypted != nil && *p.BankingDetailsEncrypted != "",
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
	if p.PreferredDeliveryLockerLocationID != nil && p.PreferredDeliveryLockerProviderSlug != nil {
		locker := types.Locker{
			LocationID:   *p.PreferredDeliveryLockerLocationID,
			ProviderSlug: *p.PreferredDeliveryLockerProviderSlug,
		}
		if p.PreferredDeliveryLockerData != nil {
			locker.Metadata = *p.PreferredDeliveryLockerData
		}
		resp.PreferredLocker = &locker
	}
	return resp
}

// GetProfile returns the caller's profile. Sealed blobs are reported as
// presence flags only, never decrypted for the API surface.
func GetProfile(repo profiles.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "profiles repository unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := repo.FindByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile"))
			return
		}
		responses.WriteSuccess(w, newProfileResponse(profile))
	}
}

type updateProfileRequest struct {
	FullName    *string `json:"full_name,omitempty" validate:"omitempty,min=1,max=200"`
	PhoneNumber *string `json:"phone_number,omitempty" validate:"omitempty,max=32"`

	Address         *types.Address `json:"address,omitempty"`
	PreferredLocker *types.Locker  `json:"preferred_locker,omitempty"`
}

// UpdateProfile upserts the caller's contact details, sealing the posted
// address before it touches the database.
func UpdateProfile(repo profiles.Repository, sealer checkout.Sealer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "profiles repository unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProfileRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updates := map[string]any{}
		if payload.FullName != nil {
			updates["full_name"] = *payload.FullName
		}
		if payload.PhoneNumber != nil {
			updates["phone_number"] = *payload.PhoneNumber
		}
		if payload.Address != nil {
			if sealer == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "address sealer unavailable"))
				return
			}
			if err := payload.Address.Validate(); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address"))
				return
			}
			blob, version, err := sealer.SealAddress(*payload.Address)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "seal address"))
				return
			}
			updates["address_encrypted"] = blob
			updates["address_encryption_version"] = version
		}
		if payload.PreferredLocker != nil {
			if !payload.PreferredLocker.Complete() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "preferred locker location and provider are required"))
				return
			}
			updates["preferred_delivery_locker_location_id"] = payload.PreferredLocker.LocationID
			updates["preferred_delivery_locker_provider_slug"] = payload.PreferredLocker.ProviderSlug
			if len(payload.PreferredLocker.Metadata) > 0 {
				updates["preferred_delivery_locker_data"] = payload.PreferredLocker.Metadata
			}
		}
		if len(updates) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "no updatable fields provided"))
			return
		}
		updates["updated_at"] = time.Now().UTC()

		if err := repo.UpdateFields(r.Context(), userID, updates); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update profile"))
			return
		}

		profile, err := repo.FindByID(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload profile"))
			return
		}
		responses.WriteSuccess(w, newProfileResponse(profile))
	}
}

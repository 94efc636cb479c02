package webhooks

import (
	"net/http"
	"time"

	"github.com/rebookza/rebook-backend/api/responses"
	"github.com/rebookza/rebook-backend/api/validators"
	internalorders "github.com/rebookza/rebook-backend/internal/orders"
	pkgerrors "github.com/rebookza/rebook-backend/pkg/errors"
	"github.com/rebookza/rebook-backend/pkg/logger"
)

type courierEvent struct {
	TrackingNumber string     `json:"tracking_number" validate:"required"`
	Status         string     `json:"status" validate:"required"`
	Description    string     `json:"description,omitempty"`
	Location       string     `json:"location,omitempty"`
	OccurredAt     *time.Time `json:"occurred_at,omitempty"`
}

// CourierWebhook ingests shipment tracking updates and advances the order's
// delivery state.
func CourierWebhook(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var event courierEvent
		if err := validators.DecodeJSONBody(r, &event); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		occurredAt := time.Now().UTC()
		if event.OccurredAt != nil {
			occurredAt = event.OccurredAt.UTC()
		}

		if err := svc.ApplyTrackingEvent(r.Context(), internalorders.TrackingEventInput{
			TrackingNumber: event.TrackingNumber,
			Status:         event.Status,
			Description:    event.Description,
			Location:       event.Location,
			OccurredAt:     occurredAt,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "processed"})
	}
}

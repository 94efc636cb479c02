package types

import "time"

// JSONMap is a free-form JSON object column.
type JSONMap map[string]any

// LineItem is one book inside an order.
type LineItem struct {
	BookID         string `json:"book_id"`
	Title          string `json:"title"`
	UnitPriceCents int    `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
	Condition      string `json:"condition,omitempty"`
}

// LineItems is the ordered list stored on the order row.
type LineItems []LineItem

// TotalCents sums price*quantity across items.
func (items LineItems) TotalCents() int {
	total := 0
	for _, item := range items {
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		total += item.UnitPriceCents * qty
	}
	return total
}

// DeliveryData is the structured blob merged onto the order at commitment:
// courier identifiers, shipment handle, and the resolved leg types.
type DeliveryData struct {
	CourierSlug  string  `json:"courier_slug,omitempty"`
	ServiceCode  string  `json:"service_code,omitempty"`
	ShipmentID   string  `json:"shipment_id,omitempty"`
	WaybillURL   string  `json:"waybill_url,omitempty"`
	PickupType   string  `json:"pickup_type,omitempty"`
	DeliveryType string  `json:"delivery_type,omitempty"`
	Extra        JSONMap `json:"extra,omitempty"`
}

// Merge overlays non-empty fields of other onto a copy of d.
func (d DeliveryData) Merge(other DeliveryData) DeliveryData {
	merged := d
	if other.CourierSlug != "" {
		merged.CourierSlug = other.CourierSlug
	}
	if other.ServiceCode != "" {
		merged.ServiceCode = other.ServiceCode
	}
	if other.ShipmentID != "" {
		merged.ShipmentID = other.ShipmentID
	}
	if other.WaybillURL != "" {
		merged.WaybillURL = other.WaybillURL
	}
	if other.PickupType != "" {
		merged.PickupType = other.PickupType
	}
	if other.DeliveryType != "" {
		merged.DeliveryType = other.DeliveryType
	}
	if len(other.Extra) > 0 {
		// Copy before overlaying so the receiver's map is never mutated.
		extra := make(JSONMap, len(d.Extra)+len(other.Extra))
		for k, v := range d.Extra {
			extra[k] = v
		}
		for k, v := range other.Extra {
			extra[k] = v
		}
		merged.Extra = extra
	}
	return merged
}

// TrackingEvent is one structured courier event appended to the order's
// tracking history.
type TrackingEvent struct {
	Status      string    `json:"status"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// TrackingEvents is the accumulated courier event list.
type TrackingEvents []TrackingEvent

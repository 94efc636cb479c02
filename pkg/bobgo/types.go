package bobgo

import (
	"fmt"
	"time"
)

// Parcel describes one package in a shipment. Dimensions default to the
// nominal textbook profile when the caller has no measured values.
type Parcel struct {
	Description string  `json:"description"`
	ValueCents  int     `json:"declared_value_cents"`
	WeightKG    float64 `json:"submitted_weight_kg"`
	LengthCM    int     `json:"submitted_length_cm"`
	WidthCM     int     `json:"submitted_width_cm"`
	HeightCM    int     `json:"submitted_height_cm"`
}

// NominalBookParcel returns the placeholder parcel profile used when no
// measured dimensions are available upstream.
func NominalBookParcel(description string, valueCents int) Parcel {
	return Parcel{
		Description: description,
		ValueCents:  valueCents,
		WeightKG:    1.5,
		LengthCM:    30,
		WidthCM:     22,
		HeightCM:    6,
	}
}

// Contact identifies the party at one end of a shipment leg.
type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"mobile_number,omitempty"`
	Email string `json:"email"`
}

// AddressFields is the courier's structured street address shape.
type AddressFields struct {
	StreetAddress string `json:"street_address"`
	LocalArea     string `json:"local_area,omitempty"`
	City          string `json:"city"`
	Zone          string `json:"zone"`
	Code          string `json:"code"`
	Country       string `json:"country"`
}

// Leg is the pickup or delivery side of a shipment: either a street address
// or a locker location, always with a contact.
type Leg struct {
	Type               string         `json:"type"`
	Contact            Contact        `json:"contact"`
	Address            *AddressFields `json:"address,omitempty"`
	LockerLocationID   string         `json:"locker_location_id,omitempty"`
	LockerProviderSlug string         `json:"locker_provider_slug,omitempty"`
}

// CreateShipmentRequest is the payload sent to the shipment-creation API.
type CreateShipmentRequest struct {
	Reference   string   `json:"reference"`
	CourierSlug string   `json:"provider_slug"`
	ServiceCode string   `json:"service_level_code"`
	Parcels     []Parcel `json:"parcels"`
	Pickup      Leg      `json:"collection"`
	Delivery    Leg      `json:"delivery"`
}

func (r CreateShipmentRequest) validate() error {
	if r.CourierSlug == "" || r.ServiceCode == "" {
		return fmt.Errorf("courier slug and service code are required")
	}
	if len(r.Parcels) == 0 {
		return fmt.Errorf("at least one parcel is required")
	}
	if err := r.Pickup.validate("collection"); err != nil {
		return err
	}
	return r.Delivery.validate("delivery")
}

func (l Leg) validate(side string) error {
	if l.Contact.Name == "" || l.Contact.Email == "" {
		return fmt.Errorf("%s contact name and email are required", side)
	}
	switch l.Type {
	case "locker":
		if l.LockerLocationID == "" || l.LockerProviderSlug == "" {
			return fmt.Errorf("%s locker location and provider are required", side)
		}
	case "door":
		if l.Address == nil {
			return fmt.Errorf("%s address is required", side)
		}
	default:
		return fmt.Errorf("%s type must be door or locker", side)
	}
	return nil
}

// Shipment holds the courier handles returned on successful creation.
type Shipment struct {
	ShipmentID     string
	TrackingNumber string
	WaybillURL     string
}

type shipmentResponse struct {
	ID                string `json:"id"`
	TrackingReference string `json:"tracking_reference"`
	WaybillURL        string `json:"waybill_url"`
}

// TrackingUpdate is one event in a shipment's history.
type TrackingUpdate struct {
	Status      string    `json:"status"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	OccurredAt  time.Time `json:"date"`
}

type trackingResponse struct {
	Events []TrackingUpdate `json:"events"`
}

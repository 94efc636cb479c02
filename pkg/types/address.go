package types

import (
	"fmt"
	"strings"
)

// Address is a plaintext physical address as stored inside encrypted blobs
// and sent to the courier aggregator.
type Address struct {
	Street     string `json:"street"`
	LocalArea  string `json:"local_area,omitempty"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// Validate checks the fields the courier payload cannot do without.
func (a Address) Validate() error {
	if strings.TrimSpace(a.Street) == "" {
		return fmt.Errorf("address: missing street")
	}
	if strings.TrimSpace(a.City) == "" {
		return fmt.Errorf("address: missing city")
	}
	if strings.TrimSpace(a.Province) == "" {
		return fmt.Errorf("address: missing province")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		return fmt.Errorf("address: missing postal_code")
	}
	return nil
}

// CountryOrDefault returns the country code, defaulting to ZA.
func (a Address) CountryOrDefault() string {
	if c := strings.TrimSpace(a.Country); c != "" {
		return c
	}
	return "ZA"
}

// Locker describes a parcel locker pickup or delivery point.
type Locker struct {
	LocationID   string  `json:"location_id"`
	ProviderSlug string  `json:"provider_slug"`
	Metadata     JSONMap `json:"metadata,omitempty"`
}

// Complete reports whether the descriptor can be sent to the courier.
func (l Locker) Complete() bool {
	return strings.TrimSpace(l.LocationID) != "" && strings.TrimSpace(l.ProviderSlug) != ""
}

// Contact is the denormalized party snapshot captured at order creation.
type Contact struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
}

package bobgo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/rebookza/rebook-backend/pkg/errors"
)

func validRequest() CreateShipmentRequest {
	return CreateShipmentRequest{
		Reference:   "order-123",
		CourierSlug: "courier-guy",
		ServiceCode: "ECO",
		Parcels:     []Parcel{NominalBookParcel("Engineering Mathematics", 24000)},
		Pickup: Leg{
			Type:    "door",
			Contact: Contact{Name: "Sipho K", Email: "sipho@example.com"},
			Address: &AddressFields{
				StreetAddress: "12 Kloof Street",
				City:          "Cape Town",
				Zone:          "WC",
				Code:          "8001",
				Country:       "ZA",
			},
		},
		Delivery: Leg{
			Type:               "locker",
			Contact:            Contact{Name: "Naledi M", Email: "naledi@example.com"},
			LockerLocationID:   "pudo-jhb-042",
			LockerProviderSlug: "pudo",
		},
	}
}

func TestCreateShipment(t *testing.T) {
	var captured CreateShipmentRequest
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/shipments" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"id":                 "SH1",
			"tracking_reference": "TRK1",
			"waybill_url":        "https://bobgo.co.za/waybills/TRK1.pdf",
		})
	}))
	defer server.Close()

	client, err := NewClient("test-key", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	shipment, err := client.CreateShipment(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("CreateShipment: %v", err)
	}
	if shipment.ShipmentID != "SH1" || shipment.TrackingNumber != "TRK1" {
		t.Fatalf("unexpected shipment: %+v", shipment)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if captured.CourierSlug != "courier-guy" || len(captured.Parcels) != 1 {
		t.Fatalf("request payload mangled: %+v", captured)
	}
}

func TestCreateShipment_ValidatesBeforeCalling(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client, err := NewClient("test-key", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	req := validRequest()
	req.Parcels = nil
	if _, err := client.CreateShipment(context.Background(), req); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	req = validRequest()
	req.Pickup.Address = nil
	if _, err := client.CreateShipment(context.Background(), req); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for missing address, got %v", err)
	}
	if called {
		t.Fatal("invalid requests must not reach the API")
	}
}

func TestCreateShipment_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"no rates for service ECO"}`, http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client, err := NewClient("test-key", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = client.CreateShipment(context.Background(), validRequest())
	if !pkgerrors.Is(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestCancelShipment(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewClient("test-key", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if err := client.CancelShipment(context.Background(), "SH1"); err != nil {
		t.Fatalf("CancelShipment: %v", err)
	}
	if path != "/shipments/SH1/cancel" {
		t.Fatalf("unexpected cancel path: %s", path)
	}

	if err := client.CancelShipment(context.Background(), " "); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for empty id, got %v", err)
	}
}

func TestTrackShipment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tracking/TRK1" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"events": []map[string]string{
				{"status": "in_transit", "description": "departed hub", "location": "Cape Town"},
			},
		})
	}))
	defer server.Close()

	client, err := NewClient("test-key", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	events, err := client.TrackShipment(context.Background(), "TRK1")
	if err != nil {
		t.Fatalf("TrackShipment: %v", err)
	}
	if len(events) != 1 || events[0].Status != "in_transit" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	if _, err := NewClient("  "); err == nil {
		t.Fatal("expected error for blank api key")
	}
}

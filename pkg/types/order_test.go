package types

import "testing"

func TestDeliveryDataMerge_OverlaysNonEmpty(t *testing.T) {
	base := DeliveryData{
		CourierSlug:  "courier-guy",
		ServiceCode:  "ECO",
		PickupType:   "address",
		DeliveryType: "locker",
	}
	patch := DeliveryData{
		ServiceCode: "OVN",
		ShipmentID:  "shp_123",
	}

	merged := base.Merge(patch)
	if merged.CourierSlug != "courier-guy" {
		t.Fatalf("courier slug = %q, want courier-guy", merged.CourierSlug)
	}
	if merged.ServiceCode != "OVN" {
		t.Fatalf("service code = %q, want OVN", merged.ServiceCode)
	}
	if merged.ShipmentID != "shp_123" {
		t.Fatalf("shipment id = %q, want shp_123", merged.ShipmentID)
	}
	if merged.DeliveryType != "locker" {
		t.Fatalf("delivery type = %q, want locker", merged.DeliveryType)
	}
}

func TestDeliveryDataMerge_DoesNotMutateReceiverExtra(t *testing.T) {
	base := DeliveryData{
		Extra: JSONMap{"locker_id": "PUDO-001", "note": "front desk"},
	}
	patch := DeliveryData{
		Extra: JSONMap{"locker_id": "PUDO-002"},
	}

	merged := base.Merge(patch)
	if merged.Extra["locker_id"] != "PUDO-002" {
		t.Fatalf("merged locker_id = %v, want PUDO-002", merged.Extra["locker_id"])
	}
	if merged.Extra["note"] != "front desk" {
		t.Fatalf("merged note = %v, want front desk", merged.Extra["note"])
	}
	if base.Extra["locker_id"] != "PUDO-001" {
		t.Fatalf("receiver extra mutated: locker_id = %v", base.Extra["locker_id"])
	}
}

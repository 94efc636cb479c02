package secrets

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/rebookza/rebook-backend/pkg/config"
	"github.com/rebookza/rebook-backend/pkg/types"
)

func testConfig() config.SecretsConfig {
	return config.SecretsConfig{
		AddressKeys: map[string]string{
			"v1": base64.StdEncoding.EncodeToString(make([]byte, 32)),
			"v2": base64.StdEncoding.EncodeToString(append(make([]byte, 31), 1)),
		},
		AddressVersion: "v2",
	}
}

func TestBox_SealOpenAddress(t *testing.T) {
	box, err := NewBox(testConfig())
	if err != nil {
		t.Fatalf("unexpected box error: %v", err)
	}

	addr := types.Address{
		Street:     "1 Main Rd",
		City:       "Cape Town",
		Province:   "WC",
		PostalCode: "8001",
		Country:    "ZA",
	}

	blob, version, err := box.SealAddress(addr)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if version != "v2" {
		t.Fatalf("expected active version v2, got %q", version)
	}
	if !strings.HasPrefix(blob, "v2:") {
		t.Fatalf("blob missing version prefix: %q", blob)
	}

	opened, err := box.OpenAddress(&blob)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if opened != addr {
		t.Fatalf("roundtrip mismatch: %+v != %+v", opened, addr)
	}
}

func TestBox_OpenOldVersion(t *testing.T) {
	cfg := testConfig()
	cfg.AddressVersion = "v1"
	oldBox, err := NewBox(cfg)
	if err != nil {
		t.Fatalf("unexpected box error: %v", err)
	}
	blob, _, err := oldBox.Seal([]byte("banking details"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	// A box rotated to v2 must still open v1 blobs.
	newBox, err := NewBox(testConfig())
	if err != nil {
		t.Fatalf("unexpected box error: %v", err)
	}
	plaintext, err := newBox.Open(blob)
	if err != nil {
		t.Fatalf("open old version: %v", err)
	}
	if string(plaintext) != "banking details" {
		t.Fatalf("unexpected plaintext %q", plaintext)
	}
}

func TestBox_OpenMissing(t *testing.T) {
	box, err := NewBox(testConfig())
	if err != nil {
		t.Fatalf("unexpected box error: %v", err)
	}
	if _, err := box.OpenAddress(nil); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	empty := "  "
	if _, err := box.OpenAddress(&empty); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBox_TamperDetected(t *testing.T) {
	box, err := NewBox(testConfig())
	if err != nil {
		t.Fatalf("unexpected box error: %v", err)
	}
	blob, _, err := box.Seal([]byte("payload"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	tampered := blob[:len(blob)-2] + "AA"
	if _, err := box.Open(tampered); err == nil {
		t.Fatal("expected tampered blob to fail")
	}
}

func TestNewBox_RejectsBadKeyset(t *testing.T) {
	cfg := testConfig()
	cfg.AddressVersion = "v9"
	if _, err := NewBox(cfg); err == nil {
		t.Fatal("expected unknown active version to fail")
	}

	cfg = testConfig()
	cfg.AddressKeys["v3"] = "not-base64!!"
	if _, err := NewBox(cfg); err == nil {
		t.Fatal("expected malformed key to fail")
	}
}

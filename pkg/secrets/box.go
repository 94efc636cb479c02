package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/rebookza/rebook-backend/pkg/config"
	"github.com/rebookza/rebook-backend/pkg/types"
)

// ErrNotFound signals there was nothing to decrypt.
var ErrNotFound = errors.New("secrets: blob not found")

// Box seals and opens address/banking blobs with a versioned keyset.
// New writes use the configured version; any known version stays readable
// so key rotation never strands stored rows.
type Box struct {
	keys    map[string][]byte
	version string
}

// NewBox validates the keyset and returns a ready Box.
func NewBox(cfg config.SecretsConfig) (*Box, error) {
	if len(cfg.AddressKeys) == 0 {
		return nil, errors.New("secrets: at least one address key is required")
	}

	keys := make(map[string][]byte, len(cfg.AddressKeys))
	for version, encoded := range cfg.AddressKeys {
		key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
		if err != nil {
			return nil, fmt.Errorf("secrets: decode key %q: %w", version, err)
		}
		if len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("secrets: key %q must be %d bytes", version, chacha20poly1305.KeySize)
		}
		keys[version] = key
	}

	version := strings.TrimSpace(cfg.AddressVersion)
	if _, ok := keys[version]; !ok {
		return nil, fmt.Errorf("secrets: active key version %q not in keyset", version)
	}

	return &Box{keys: keys, version: version}, nil
}

// Version reports the key version new writes are sealed with.
func (b *Box) Version() string {
	return b.version
}

// Seal encrypts plaintext under the active key. The returned blob embeds the
// key version so Open never needs out-of-band metadata.
func (b *Box) Seal(plaintext []byte) (string, string, error) {
	key := b.keys[b.version]
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", "", fmt.Errorf("secrets: init cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", "", fmt.Errorf("secrets: nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, plaintext, []byte(b.version))
	return b.version + ":" + base64.StdEncoding.EncodeToString(sealed), b.version, nil
}

// Open decrypts a blob produced by Seal, selecting the key by the embedded
// version prefix.
func (b *Box) Open(blob string) ([]byte, error) {
	blob = strings.TrimSpace(blob)
	if blob == "" {
		return nil, ErrNotFound
	}

	version, encoded, found := strings.Cut(blob, ":")
	if !found {
		return nil, errors.New("secrets: malformed blob")
	}
	key, ok := b.keys[version]
	if !ok {
		return nil, fmt.Errorf("secrets: unknown key version %q", version)
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("secrets: decode blob: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("secrets: init cipher: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return nil, errors.New("secrets: blob too short")
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(version))
	if err != nil {
		return nil, fmt.Errorf("secrets: open blob: %w", err)
	}
	return plaintext, nil
}

// SealAddress serializes and seals a physical address.
func (b *Box) SealAddress(addr types.Address) (string, string, error) {
	payload, err := json.Marshal(addr)
	if err != nil {
		return "", "", fmt.Errorf("secrets: marshal address: %w", err)
	}
	return b.Seal(payload)
}

// OpenAddress opens and deserializes a sealed address blob. A nil pointer or
// empty blob returns ErrNotFound so resolvers can fall through.
func (b *Box) OpenAddress(blob *string) (types.Address, error) {
	if blob == nil {
		return types.Address{}, ErrNotFound
	}
	plaintext, err := b.Open(*blob)
	if err != nil {
		return types.Address{}, err
	}
	var addr types.Address
	if err := json.Unmarshal(plaintext, &addr); err != nil {
		return types.Address{}, fmt.Errorf("secrets: unmarshal address: %w", err)
	}
	return addr, nil
}

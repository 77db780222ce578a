// Package credential implements the domain.CredentialProvider port: it
// decrypts a connector's opaque API key using the process SECRET_KEY.
// Encrypted storage itself remains an external collaborator;
// this package only performs the decrypt step the core needs at dispatch
// time.
package credential

import (
	"crypto/cipher"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"

	"comradarr/internal/domain"
)

// Provider decrypts connector API keys with a single process-wide key
// (hex or base64, from SECRET_KEY). Absence of a usable key is fatal at
// startup if any connector is configured; that check happens in the
// caller (internal/app), since only it knows whether any connector exists.
type Provider struct {
	aead cipher.AEAD
}

// New constructs a Provider from the raw SECRET_KEY env value, accepting
// either hex or base64 encoding of a 32-byte key.
func New(secretKey string) (*Provider, error) {
	key, err := decodeKey(secretKey)
	if err != nil {
		return nil, fmt.Errorf("op=credential.new: %w", err)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("op=credential.new.aead: %w", err)
	}
	return &Provider{aead: aead}, nil
}

func decodeKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("secret key is empty")
	}
	if key, err := hex.DecodeString(raw); err == nil && len(key) == chacha20poly1305.KeySize {
		return key, nil
	}
	if key, err := base64.StdEncoding.DecodeString(raw); err == nil && len(key) == chacha20poly1305.KeySize {
		return key, nil
	}
	return nil, fmt.Errorf("secret key must decode to %d bytes (hex or base64)", chacha20poly1305.KeySize)
}

// Decrypt unwraps an opaque API key stored as base64(nonce || ciphertext).
// The encrypted-storage layer (out of this module's scope) is
// responsible for producing that shape when it writes the row.
func (p *Provider) Decrypt(_ domain.Context, encryptedAPIKey string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encryptedAPIKey)
	if err != nil {
		return "", fmt.Errorf("op=credential.decrypt.decode: %w", err)
	}
	if len(raw) < chacha20poly1305.NonceSize {
		return "", fmt.Errorf("op=credential.decrypt: ciphertext too short")
	}
	nonce, ciphertext := raw[:chacha20poly1305.NonceSize], raw[chacha20poly1305.NonceSize:]
	plain, err := p.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("op=credential.decrypt.open: %w", err)
	}
	return string(plain), nil
}

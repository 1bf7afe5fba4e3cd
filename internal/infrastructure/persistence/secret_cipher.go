package persistence

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// sealedPrefix marks values sealed by SecretCipher; version bumps change the prefix
const sealedPrefix = "xc1:"

// ErrSecretUnreadable indicates a sealed value could not be opened with the configured key
var ErrSecretUnreadable = errors.New("persistence: sealed secret cannot be opened")

// SecretCipher seals secrets at rest with XChaCha20-Poly1305.
// A nil *SecretCipher stores values in plain text.
type SecretCipher struct {
	aead cipher.AEAD
}

// NewSecretCipher creates a cipher from a 32-byte key; an empty key returns nil
func NewSecretCipher(key []byte) (*SecretCipher, error) {
	if len(key) == 0 {
		return nil, nil
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret cipher: %w", err)
	}
	return &SecretCipher{aead: aead}, nil
}

// Seal encrypts plain; empty input stays empty so "unset" survives the round trip.
// additional binds the ciphertext to its row (e.g. the setting key).
func (c *SecretCipher) Seal(plain, additional string) (string, error) {
	if c == nil || plain == "" {
		return plain, nil
	}
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plain)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plain), []byte(additional))
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal.
// Values without the sealed prefix are returned as they are, so plain rows written
// before a key was configured stay readable.
func (c *SecretCipher) Open(stored, additional string) (string, error) {
	if !strings.HasPrefix(stored, sealedPrefix) {
		return stored, nil
	}
	if c == nil {
		return "", ErrSecretUnreadable
	}
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil || len(raw) < c.aead.NonceSize() {
		return "", ErrSecretUnreadable
	}
	nonce, ciphertext := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, ciphertext, []byte(additional))
	if err != nil {
		return "", ErrSecretUnreadable
	}
	return string(plain), nil
}

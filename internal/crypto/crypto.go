// Package crypto seals distribution credentials at rest.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// KeySize is the decoded key length required for AES-256.
const KeySize = 32

// ErrCiphertextTooShort is returned when a sealed value cannot hold a nonce.
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// SecretBox seals short secrets with AES-256-GCM.
// Sealed values are base64(nonce || ciphertext).
type SecretBox struct {
	aead cipher.AEAD
}

// NewSecretBox builds a SecretBox from a base64-encoded 32 byte key.
func NewSecretBox(base64Key string) (*SecretBox, error) {
	if base64Key == "" {
		return nil, fmt.Errorf("encryption key is required")
	}

	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encryption key: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes for AES-256, got %d bytes", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher block: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM mode: %w", err)
	}

	return &SecretBox{aead: aead}, nil
}

// Seal encrypts plaintext. Empty input seals to empty output.
func (b *SecretBox) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := b.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal.
func (b *SecretBox) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	nonceSize := b.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", ErrCiphertextTooShort
	}

	plaintext, err := b.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}

// Package vault provides authenticated symmetric encryption for small secret
// values stored in text columns. Ciphertexts are AES-256-GCM sealed under a
// single server-held key and base64-wrapped for storage.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// KeySize is the required encryption key length in bytes (AES-256).
const KeySize = 32

// System encrypts and decrypts secret values.
type System interface {
	// Encrypt seals plaintext and returns a base64-wrapped ciphertext.
	Encrypt(plaintext string) (string, error)
	// Decrypt opens a base64-wrapped ciphertext. Malformed or tampered
	// input returns ErrInvalidCiphertext; it never yields a wrong plaintext.
	Decrypt(ciphertext string) (string, error)
}

type vault struct {
	aead cipher.AEAD
}

// New creates a vault system from the given configuration.
func New(cfg *Config) (System, error) {
	key, err := cfg.KeyBytes()
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	return &vault{aead: aead}, nil
}

func (v *vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (v *vault) Decrypt(ciphertext string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	if len(sealed) < v.aead.NonceSize() {
		return "", ErrInvalidCiphertext
	}

	nonce, data := sealed[:v.aead.NonceSize()], sealed[v.aead.NonceSize():]
	plaintext, err := v.aead.Open(nil, nonce, data, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	return string(plaintext), nil
}

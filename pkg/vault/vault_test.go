package vault_test

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/atelier-run/atelier/pkg/vault"
)

func testConfig(t *testing.T) *vault.Config {
	t.Helper()
	key := make([]byte, vault.KeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &vault.Config{Key: base64.StdEncoding.EncodeToString(key)}
}

func TestNewRejectsBadKeys(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"empty key", ""},
		{"not base64", "!!!not-base64!!!"},
		{"wrong length", base64.StdEncoding.EncodeToString([]byte("short"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := vault.New(&vault.Config{Key: tt.key}); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	sys, err := vault.New(testConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []string{
		"",
		"hunter2",
		"pa$$word with spaces and symbols: !@#%",
		strings.Repeat("long-secret-", 100),
		"unicode: ünïcödé 日本語",
	}

	for _, plaintext := range tests {
		ct, err := sys.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt(%q) error = %v", plaintext, err)
		}

		got, err := sys.Decrypt(ct)
		if err != nil {
			t.Fatalf("Decrypt() error = %v", err)
		}
		if got != plaintext {
			t.Errorf("round trip = %q, want %q", got, plaintext)
		}
	}
}

func TestEncryptProducesDistinctCiphertexts(t *testing.T) {
	sys, err := vault.New(testConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	first, _ := sys.Encrypt("same value")
	second, _ := sys.Encrypt("same value")
	if first == second {
		t.Error("expected distinct ciphertexts for repeated encryption")
	}
}

func TestDecryptFailsClosed(t *testing.T) {
	sys, err := vault.New(testConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	valid, err := sys.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	// Flip one byte of the sealed payload.
	raw, _ := base64.StdEncoding.DecodeString(valid)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name string
		ct   string
	}{
		{"not base64", "%%%"},
		{"empty", ""},
		{"truncated", valid[:8]},
		{"tampered", tampered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sys.Decrypt(tt.ct)
			if !errors.Is(err, vault.ErrInvalidCiphertext) {
				t.Fatalf("Decrypt() error = %v, want ErrInvalidCiphertext", err)
			}
			if got != "" {
				t.Errorf("Decrypt() returned %q on failure, want empty", got)
			}
		})
	}
}

func TestDecryptUnderDifferentKeyFails(t *testing.T) {
	first, err := vault.New(testConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	second, err := vault.New(testConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ct, _ := first.Encrypt("secret")
	if _, err := second.Decrypt(ct); !errors.Is(err, vault.ErrInvalidCiphertext) {
		t.Fatalf("Decrypt() error = %v, want ErrInvalidCiphertext", err)
	}
}

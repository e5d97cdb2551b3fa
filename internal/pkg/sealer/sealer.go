// Package sealer encrypts secrets at rest with AES-256-GCM. Every sealed blob
// is bound to a Scope so it cannot be opened for a different subject or
// purpose.
package sealer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Sealer seals and opens secrets bound to a scope.
type Sealer interface {
	Seal(plaintext []byte, scope Scope) ([]byte, error)
	Open(sealed []byte, scope Scope) ([]byte, error)
}

// KeyProvider provides 32-byte AES keys.
type KeyProvider interface {
	Key(scope Scope) ([]byte, error)
}

// Blob layout: uint16 version | 12-byte nonce | ciphertext+tag.
const (
	blobVersion  uint16 = 1
	gcmNonceSize        = 12
	aesKeyLen           = 32
	headerLen           = 2 + gcmNonceSize
)

var (
	ErrNotConfigured      = errors.New("sealer: key provider not configured")
	ErrPlaintextEmpty     = errors.New("sealer: plaintext is empty")
	ErrInvalidKeyLength   = errors.New("sealer: invalid key length")
	ErrSealedTooShort     = errors.New("sealer: sealed data too short")
	ErrUnsupportedVersion = errors.New("sealer: unsupported sealed data version")
	ErrOpenFailed         = errors.New("sealer: open failed")
	ErrMissingSecret      = errors.New("sealer: missing secret")
)

// AESGCM implements Sealer with AES-256-GCM.
type AESGCM struct {
	keys KeyProvider
}

// NewAESGCM constructs an AES-GCM sealer.
func NewAESGCM(keys KeyProvider) *AESGCM {
	return &AESGCM{keys: keys}
}

// Seal encrypts plaintext, binding the result to scope via AAD.
func (a *AESGCM) Seal(plaintext []byte, scope Scope) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, ErrPlaintextEmpty
	}

	gcm, err := a.aead(scope)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("sealer: nonce generation failed: %w", err)
	}

	out := make([]byte, headerLen, headerLen+len(plaintext)+gcm.Overhead())
	binary.BigEndian.PutUint16(out[0:2], blobVersion)
	copy(out[2:headerLen], nonce)

	return gcm.Seal(out, nonce, plaintext, scope.aad()), nil
}

// Open decrypts a blob produced by Seal under the same scope.
func (a *AESGCM) Open(sealed []byte, scope Scope) ([]byte, error) {
	if len(sealed) < headerLen+1 {
		return nil, ErrSealedTooShort
	}

	if v := binary.BigEndian.Uint16(sealed[0:2]); v != blobVersion {
		return nil, fmt.Errorf("sealer: version %d: %w", v, ErrUnsupportedVersion)
	}

	gcm, err := a.aead(scope)
	if err != nil {
		return nil, err
	}

	plain, err := gcm.Open(nil, sealed[2:headerLen], sealed[headerLen:], scope.aad())
	if err != nil {
		// wrong scope, wrong key and tampering look the same to callers
		return nil, ErrOpenFailed
	}

	return plain, nil
}

func (a *AESGCM) aead(scope Scope) (cipher.AEAD, error) {
	if a == nil || a.keys == nil {
		return nil, ErrNotConfigured
	}

	key, err := a.keys.Key(scope)
	if err != nil {
		return nil, fmt.Errorf("sealer: key provider error: %w", err)
	}
	if len(key) != aesKeyLen {
		return nil, fmt.Errorf("sealer: key length %d (want %d): %w", len(key), aesKeyLen, ErrInvalidKeyLength)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("sealer: aes init failed: %w", err)
	}

	return cipher.NewGCM(block)
}

// StaticKeyProvider returns the same key for every scope.
type StaticKeyProvider struct {
	KeyBytes []byte
}

// NewStaticKeyProvider derives a 32-byte key from a configured secret.
func NewStaticKeyProvider(secret string) (StaticKeyProvider, error) {
	if secret == "" {
		return StaticKeyProvider{}, ErrMissingSecret
	}

	sum := sha256.Sum256([]byte(secret))
	return StaticKeyProvider{KeyBytes: sum[:]}, nil
}

// Key returns a copy of the static key.
func (p StaticKeyProvider) Key(_ Scope) ([]byte, error) {
	if len(p.KeyBytes) == 0 {
		return nil, ErrMissingSecret
	}

	k := make([]byte, len(p.KeyBytes))
	copy(k, p.KeyBytes)
	return k, nil
}

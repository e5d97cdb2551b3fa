package hash

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// HMACSHA256 returns the 32-byte HMAC-SHA256 of data under key.
func HMACSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// Signer signs and verifies request signature bases with per-app secrets.
type Signer struct{}

// NewSigner returns a Signer.
func NewSigner() *Signer {
	return &Signer{}
}

// Sign returns the lowercase hex HMAC-SHA256 of base keyed by secret.
func (s *Signer) Sign(secret, base string) string {
	return hex.EncodeToString(HMACSHA256([]byte(secret), []byte(base)))
}

// Verify checks whether signature matches base under secret.
func (s *Signer) Verify(secret, base, signature string) bool {
	expected := s.Sign(secret, base)
	got := strings.ToLower(strings.TrimSpace(signature))
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}

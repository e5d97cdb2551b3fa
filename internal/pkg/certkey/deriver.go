package certkey

import (
	"context"
	"crypto/sha256"
	"errors"

	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
)

// KeyLength is the size of a derived MAC key in bytes.
const KeyLength = 16

// ErrInvalidIterations is returned for a non-positive PBKDF2 iteration count.
var ErrInvalidIterations = errors.New("certkey: iterations must be positive")

// ModulusFetcher resolves a host's certificate modulus.
type ModulusFetcher interface {
	Modulus(ctx context.Context, hostname string) ([]byte, error)
}

// Deriver derives DSKPP MAC keys from a provisioning password.
type Deriver struct {
	fetcher ModulusFetcher
}

// NewDeriver constructs a Deriver.
func NewDeriver(fetcher ModulusFetcher) *Deriver {
	return &Deriver{fetcher: fetcher}
}

// Derive runs PBKDF2-HMAC-SHA256 over password with the salt
// clientNonce || modulus(hostname) and returns KeyLength bytes.
func (d *Deriver) Derive(ctx context.Context, hostname string, password, clientNonce []byte, iterations int) ([]byte, error) {
	if iterations <= 0 {
		return nil, ErrInvalidIterations
	}

	modulus, err := d.fetcher.Modulus(ctx, hostname)
	if err != nil {
		return nil, err
	}

	salt := make([]byte, 0, len(clientNonce)+len(modulus))
	salt = append(salt, clientNonce...)
	salt = append(salt, modulus...)

	return hash.PBKDF2(password, salt, iterations, KeyLength, sha256.New), nil
}

// Package rsakey decrypts payloads sent to the service under its RSA public
// key.
package rsakey

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

var (
	ErrDecrypt    = errors.New("rsakey: decryption failed")
	ErrNoPEM      = errors.New("rsakey: no PEM block found")
	ErrNotRSA     = errors.New("rsakey: key is not RSA")
	ErrPassphrase = errors.New("rsakey: key is encrypted and no passphrase was given")
)

// Decrypter decrypts PKCS#1 v1.5 ciphertexts with a private key.
type Decrypter struct {
	key *rsa.PrivateKey
}

// NewDecrypter parses a PEM private key in PKCS#1 or PKCS#8 form. Legacy
// passphrase-protected PEM blocks are opened with passphrase.
func NewDecrypter(pemBytes []byte, passphrase string) (*Decrypter, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, ErrNoPEM
	}

	der := block.Bytes
	//nolint:staticcheck // legacy encrypted PEM keys are still issued by the provisioning tooling
	if x509.IsEncryptedPEMBlock(block) {
		if passphrase == "" {
			return nil, ErrPassphrase
		}
		var err error
		//nolint:staticcheck // see above
		der, err = x509.DecryptPEMBlock(block, []byte(passphrase))
		if err != nil {
			return nil, fmt.Errorf("rsakey: decrypt pem: %w", err)
		}
	}

	key, err := parsePrivateKey(der)
	if err != nil {
		return nil, err
	}

	return &Decrypter{key: key}, nil
}

func parsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("rsakey: parse private key: %w", err)
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrNotRSA
	}

	return key, nil
}

// Decrypt opens a PKCS#1 v1.5 ciphertext. Any failure maps to ErrDecrypt.
func (d *Decrypter) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, ErrDecrypt
	}

	plain, err := rsa.DecryptPKCS1v15(rand.Reader, d.key, ciphertext)
	if err != nil {
		return nil, ErrDecrypt
	}

	return plain, nil
}

// PublicKey returns the public half of the key.
func (d *Decrypter) PublicKey() *rsa.PublicKey {
	return &d.key.PublicKey
}

package hash

import (
	"crypto/rand"
	"encoding/hex"
)

// Random returns n bytes from the system CSPRNG.
func Random(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// RandomHex returns n random bytes as a lowercase hex string of length 2n.
func RandomHex(n int) (string, error) {
	b, err := Random(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

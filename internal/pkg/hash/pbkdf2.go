package hash

import (
	"hash"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 derives keyLen bytes from password and salt with the given PRF hash.
func PBKDF2(password, salt []byte, iterations, keyLen int, h func() hash.Hash) []byte {
	return pbkdf2.Key(password, salt, iterations, keyLen, h)
}

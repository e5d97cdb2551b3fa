// Package hash provides the keyed and unkeyed hash primitives used by the
// service: HMAC-SHA256 request signing, SHA-256, the DSKPP pseudo-random
// function, PBKDF2 key derivation and a CSPRNG.
//
// Signatures travel as hex strings; Signer.Verify accepts either case and
// compares in constant time.
package hash

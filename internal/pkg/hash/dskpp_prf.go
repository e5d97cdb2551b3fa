package hash

import "encoding/binary"

const prfBlockLen = 32

// MaxDSKPPPRFLength is the largest output DSKPPPRF can produce.
const MaxDSKPPPRFLength = (prfBlockLen*prfBlockLen - 1) * prfBlockLen

// DSKPPPRF expands key and data into desiredLength bytes by concatenating
// HMAC-SHA256(key, BE32(i) || data) blocks for i = 0, 1, ...
// It returns nil when desiredLength exceeds MaxDSKPPPRFLength.
func DSKPPPRF(key, data []byte, desiredLength int) []byte {
	if desiredLength > MaxDSKPPPRFLength || desiredLength < 0 {
		return nil
	}

	n := (desiredLength + prfBlockLen - 1) / prfBlockLen
	out := make([]byte, 0, n*prfBlockLen)
	block := make([]byte, 4+len(data))
	copy(block[4:], data)

	for i := range n {
		binary.BigEndian.PutUint32(block[:4], uint32(i))
		out = append(out, HMACSHA256(key, block)...)
	}

	return out[:desiredLength]
}

// Package strcase converts Go identifiers to the snake_case names used on the
// wire.
package strcase

import (
	"strings"
	"unicode"
)

// ToLowerSnake turns an identifier such as DeviceSerialNo or RequestID into
// device_serial_no or request_id. A run of capitals counts as one word, so
// OTPCode becomes otp_code.
func ToLowerSnake(s string) string {
	runes := []rune(s)

	var b strings.Builder
	b.Grow(len(s) + 4)

	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && wordStarts(runes, i) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}

	return b.String()
}

// wordStarts reports whether the upper-case rune at i opens a new word.
func wordStarts(runes []rune, i int) bool {
	prev := runes[i-1]
	if unicode.IsLower(prev) || unicode.IsDigit(prev) {
		return true
	}
	return unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
}

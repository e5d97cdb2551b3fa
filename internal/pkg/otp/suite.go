package otp

import (
	"errors"
	"strconv"
	"strings"

	"github.com/pquerna/otp"
)

var (
	// ErrInvalidSuite is returned for a malformed suite descriptor.
	ErrInvalidSuite = errors.New("otp: invalid ocra suite")
	// ErrUnsupportedHash is returned when the crypto function names no supported hash.
	ErrUnsupportedHash = errors.New("otp: unsupported ocra hash")
)

const (
	counterLength   = 8
	questionLength  = 128
	timestampLength = 8
	maxDigits       = 10
)

// Suite is a parsed OCRA suite such as OCRA-1:HOTP-SHA256-8:QN08.
type Suite struct {
	Raw       string
	Algorithm otp.Algorithm
	Digits    otp.Digits

	Counter        bool
	Question       bool
	PasswordLength int
	SessionLength  int
	Timestamp      bool
}

// ParseSuite parses an OCRA suite descriptor. Matching is case-insensitive.
func ParseSuite(s string) (*Suite, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 {
		return nil, ErrInvalidSuite
	}

	cryptoFunction := strings.ToLower(parts[1])
	dataInput := strings.ToLower(parts[2])

	suite := &Suite{Raw: s}

	switch {
	case strings.Contains(cryptoFunction, "sha1"):
		suite.Algorithm = otp.AlgorithmSHA1
	case strings.Contains(cryptoFunction, "sha256"):
		suite.Algorithm = otp.AlgorithmSHA256
	case strings.Contains(cryptoFunction, "sha512"):
		suite.Algorithm = otp.AlgorithmSHA512
	default:
		return nil, ErrUnsupportedHash
	}

	fn := strings.Split(cryptoFunction, "-")
	digits, err := strconv.Atoi(fn[len(fn)-1])
	if err != nil || digits < 1 || digits > maxDigits {
		return nil, ErrInvalidSuite
	}
	suite.Digits = otp.Digits(digits)

	if dataInput == "" {
		return nil, ErrInvalidSuite
	}

	suite.Counter = dataInput[0] == 'c'
	suite.Question = dataInput[0] == 'q' || strings.Contains(dataInput, "-q")
	suite.Timestamp = dataInput[0] == 't' || strings.Contains(dataInput, "-t")

	switch {
	case strings.Contains(dataInput, "psha1"):
		suite.PasswordLength = 20
	case strings.Contains(dataInput, "psha256"):
		suite.PasswordLength = 32
	case strings.Contains(dataInput, "psha512"):
		suite.PasswordLength = 64
	}

	switch {
	case strings.Contains(dataInput, "s064"):
		suite.SessionLength = 64
	case strings.Contains(dataInput, "s128"):
		suite.SessionLength = 128
	case strings.Contains(dataInput, "s256"):
		suite.SessionLength = 256
	case strings.Contains(dataInput, "s512"):
		suite.SessionLength = 512
	}

	return suite, nil
}

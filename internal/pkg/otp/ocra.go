package otp

import (
	"crypto/hmac"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"
)

var (
	// ErrMissingField is returned when the suite requires an input that is empty.
	ErrMissingField = errors.New("otp: missing ocra input")
	// ErrInvalidInput is returned for undecodable key, question or timestamp.
	ErrInvalidInput = errors.New("otp: invalid ocra input")
)

// Input carries the values an OCRA computation may need. Only the fields the
// suite asks for are read.
type Input struct {
	Suite string
	// KeyHex is the shared secret, hex encoded.
	KeyHex string
	// Question is UTF-8 text unless QuestionHex is set.
	Question    string
	QuestionHex bool
	Counter     string
	Password    string
	SessionInfo string
	// Timestamp is base64 encoded.
	Timestamp string
}

// Generator computes and checks OCRA codes.
type Generator interface {
	Generate(in Input) (string, error)
	Verify(in Input, code string) (bool, error)
}

// OCRA implements Generator.
type OCRA struct{}

// NewOCRA returns an OCRA engine.
func NewOCRA() *OCRA {
	return &OCRA{}
}

// Generate returns the OCRA one-time password for in.
func (o *OCRA) Generate(in Input) (string, error) {
	suite, err := ParseSuite(in.Suite)
	if err != nil {
		return "", err
	}

	msg, err := message(suite, in)
	if err != nil {
		return "", err
	}

	key, err := hex.DecodeString(in.KeyHex)
	if err != nil {
		return "", fmt.Errorf("%w: key: %v", ErrInvalidInput, err)
	}

	mac := hmac.New(func() hash.Hash { return suite.Algorithm.Hash() }, key)
	mac.Write(msg)
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	binary := int64(sum[offset]&0x7f)<<24 |
		int64(sum[offset+1])<<16 |
		int64(sum[offset+2])<<8 |
		int64(sum[offset+3])

	mod := int64(1)
	for range int(suite.Digits) {
		mod *= 10
	}

	return suite.Digits.Format(int32(binary % mod)), nil
}

// Verify reports whether code is the OCRA one-time password for in.
func (o *OCRA) Verify(in Input, code string) (bool, error) {
	want, err := o.Generate(in)
	if err != nil {
		return false, err
	}

	return subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1, nil
}

func message(suite *Suite, in Input) ([]byte, error) {
	msg := append([]byte(suite.Raw), 0x00)

	if suite.Counter {
		if in.Counter == "" {
			return nil, fmt.Errorf("%w: counter", ErrMissingField)
		}
		msg = append(msg, leftPadded(hex.EncodeToString([]byte(in.Counter)), counterLength)...)
	}

	if suite.Question {
		if in.Question == "" {
			return nil, fmt.Errorf("%w: question", ErrMissingField)
		}
		q, err := questionBytes(in.Question, in.QuestionHex)
		if err != nil {
			return nil, err
		}
		msg = append(msg, q...)
	}

	if suite.PasswordLength > 0 {
		if in.Password == "" {
			return nil, fmt.Errorf("%w: password", ErrMissingField)
		}
		msg = append(msg, leftPadded(hex.EncodeToString([]byte(in.Password)), suite.PasswordLength)...)
	}

	if suite.SessionLength > 0 {
		if in.SessionInfo == "" {
			return nil, fmt.Errorf("%w: session info", ErrMissingField)
		}
		msg = append(msg, leftPadded(hex.EncodeToString([]byte(in.SessionInfo)), suite.SessionLength)...)
	}

	if suite.Timestamp {
		if in.Timestamp == "" {
			return nil, fmt.Errorf("%w: timestamp", ErrMissingField)
		}
		ts, err := base64.StdEncoding.DecodeString(in.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("%w: timestamp: %v", ErrInvalidInput, err)
		}
		msg = append(msg, leftPadded(hex.EncodeToString(ts), timestampLength)...)
	}

	return msg, nil
}

func questionBytes(question string, isHex bool) ([]byte, error) {
	qHex := question
	if !isHex {
		qHex = hex.EncodeToString([]byte(question))
	}

	qHex = strings.TrimLeft(qHex, "0")
	qHex += strings.Repeat("0", questionLength*2)
	qHex = qHex[:questionLength*2]

	q, err := hex.DecodeString(qHex)
	if err != nil {
		return nil, fmt.Errorf("%w: question: %v", ErrInvalidInput, err)
	}
	return q, nil
}

// leftPadded zero-pads hexValue on the left and keeps its last n bytes.
func leftPadded(hexValue string, n int) []byte {
	padded := strings.Repeat("0", n*2) + hexValue
	b, _ := hex.DecodeString(padded[len(padded)-n*2:])
	return b
}

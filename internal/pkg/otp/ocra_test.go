package otp

import (
	"crypto/sha1"
	"testing"

	"github.com/pquerna/otp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	seed20 = "3132333435363738393031323334353637383930"
	seed32 = "3132333435363738393031323334353637383930313233343536373839303132"
)

func TestOCRA_Generate(t *testing.T) {
	pin := sha1.Sum([]byte("1234"))

	tests := []struct {
		name     string
		suite    string
		key      string
		q        string
		password string
		want     string
	}{
		{name: "sha1 q=00000000", suite: "OCRA-1:HOTP-SHA1-6:QN08", key: seed20, q: "00000000", want: "237653"},
		{name: "sha1 q=00A98AC7", suite: "OCRA-1:HOTP-SHA1-6:QN08", key: seed20, q: "00A98AC7", want: "243178"},
		{name: "sha1 q=153158E", suite: "OCRA-1:HOTP-SHA1-6:QN08", key: seed20, q: "153158E", want: "653583"},
		{name: "sha256 pin q=00000000", suite: "OCRA-1:HOTP-SHA256-8:QN08-PSHA1", key: seed32, q: "00000000", password: string(pin[:]), want: "83238735"},
		{name: "sha256 pin q=A98AC7", suite: "OCRA-1:HOTP-SHA256-8:QN08-PSHA1", key: seed32, q: "A98AC7", password: string(pin[:]), want: "01501458"},
		{name: "sha256 q=00000000", suite: "OCRA-1:HOTP-SHA256-8:QN08", key: seed32, q: "00000000", want: "63523896"},
	}

	o := NewOCRA()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			got, err := o.Generate(Input{Suite: tt.suite, KeyHex: tt.key, Question: tt.q, QuestionHex: true, Password: tt.password})

			// Assert
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOCRA_TextQuestion(t *testing.T) {
	o := NewOCRA()
	suite := "OCRA-1:HOTP-SHA256-8:QN08"

	text, err := o.Generate(Input{Suite: suite, KeyHex: seed32, Question: "abc"})
	require.NoError(t, err)
	asHex, err := o.Generate(Input{Suite: suite, KeyHex: seed32, Question: "616263", QuestionHex: true})
	require.NoError(t, err)
	assert.Equal(t, asHex, text)

	// leading zero nibbles of the encoded question are dropped
	quirk, err := o.Generate(Input{Suite: suite, KeyHex: seed32, Question: "\x01A"})
	require.NoError(t, err)
	stripped, err := o.Generate(Input{Suite: suite, KeyHex: seed32, Question: "141", QuestionHex: true})
	require.NoError(t, err)
	assert.Equal(t, stripped, quirk)
	assert.Len(t, quirk, 8)
}

func TestOCRA_Errors(t *testing.T) {
	o := NewOCRA()

	tests := []struct {
		name string
		in   Input
		want error
	}{
		{name: "short suite", in: Input{Suite: "OCRA-1:HOTP-SHA1-6", KeyHex: seed20, Question: "1"}, want: ErrInvalidSuite},
		{name: "unsupported hash", in: Input{Suite: "OCRA-1:HOTP-MD5-6:QN08", KeyHex: seed20, Question: "1"}, want: ErrUnsupportedHash},
		{name: "missing question", in: Input{Suite: "OCRA-1:HOTP-SHA1-6:QN08", KeyHex: seed20}, want: ErrMissingField},
		{name: "missing counter", in: Input{Suite: "OCRA-1:HOTP-SHA1-6:C-QN08", KeyHex: seed20, Question: "1"}, want: ErrMissingField},
		{name: "missing password", in: Input{Suite: "OCRA-1:HOTP-SHA1-6:QN08-PSHA1", KeyHex: seed20, Question: "1"}, want: ErrMissingField},
		{name: "missing session", in: Input{Suite: "OCRA-1:HOTP-SHA1-6:QN08-S064", KeyHex: seed20, Question: "1"}, want: ErrMissingField},
		{name: "missing timestamp", in: Input{Suite: "OCRA-1:HOTP-SHA1-6:QN08-T1M", KeyHex: seed20, Question: "1"}, want: ErrMissingField},
		{name: "bad key", in: Input{Suite: "OCRA-1:HOTP-SHA1-6:QN08", KeyHex: "zz", Question: "1"}, want: ErrInvalidInput},
		{name: "bad hex question", in: Input{Suite: "OCRA-1:HOTP-SHA1-6:QN08", KeyHex: seed20, Question: "xyz", QuestionHex: true}, want: ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.Generate(tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOCRA_AllFields(t *testing.T) {
	o := NewOCRA()
	in := Input{
		Suite:       "OCRA-1:HOTP-SHA512-8:C-QN08-PSHA1-S064-T1M",
		KeyHex:      seed20,
		Counter:     "1",
		Question:    "hello",
		Password:    "1234",
		SessionInfo: "session",
		Timestamp:   "AAAAAAEqxgA=",
	}

	code, err := o.Generate(in)
	require.NoError(t, err)
	assert.Len(t, code, 8)

	ok, err := o.Verify(in, code)
	require.NoError(t, err)
	assert.True(t, ok)

	in.Counter = "2"
	ok, err = o.Verify(in, code)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseSuite(t *testing.T) {
	s, err := ParseSuite("OCRA-1:HOTP-SHA256-8:QN08")
	require.NoError(t, err)

	assert.Equal(t, otp.AlgorithmSHA256, s.Algorithm)
	assert.Equal(t, otp.DigitsEight, s.Digits)
	assert.True(t, s.Question)
	assert.False(t, s.Counter)
	assert.False(t, s.Timestamp)
	assert.Zero(t, s.PasswordLength)

	s, err = ParseSuite("ocra-1:hotp-sha512-6:c-qa10-psha256-s128-t30s")
	require.NoError(t, err)
	assert.Equal(t, otp.AlgorithmSHA512, s.Algorithm)
	assert.True(t, s.Counter)
	assert.True(t, s.Question)
	assert.True(t, s.Timestamp)
	assert.Equal(t, 32, s.PasswordLength)
	assert.Equal(t, 128, s.SessionLength)

	_, err = ParseSuite("OCRA-1:HOTP-SHA1-x:QN08")
	assert.ErrorIs(t, err, ErrInvalidSuite)
}

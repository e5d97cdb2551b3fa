package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/otpgate/internal/oath/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCallbackURL = "https://bank.example/callback"

func assertStatus(t *testing.T, err error, code int, msg string) {
	t.Helper()

	var gerr *goerror.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, code, gerr.StatusCode())
	if msg != "" {
		assert.Equal(t, msg, gerr.Msg())
	}
}

func TestUsecase_CreateAuthRequest(t *testing.T) {
	// Arrange
	f := newFixture(t, false)

	// Act
	view := f.create(t, CreateAuthRequestInput{
		CallbackURL:   testCallbackURL,
		Challenge:     "Pay 10 EUR",
		SignaturePage: []string{"face", "id_card"},
	})

	// Assert
	assert.Equal(t, entity.AuthRequestType, view.Type)
	assert.Equal(t, testClientID, view.ClientID)
	assert.Equal(t, entity.DefaultOCRASuite, view.OCRASuite)
	assert.Equal(t, "Pay 10 EUR", view.Question)
	assert.Equal(t, entity.DefaultExpiryMs, view.Expires-view.Issued)
	assert.Equal(t, &entity.AppRef{ID: testAppID, Name: "Bank"}, view.App)
	assert.Equal(t, []string{"face", "id_card"}, view.SignaturePage)

	pushes := f.rec.Pushes()
	require.Len(t, pushes, 1)
	assert.Equal(t, testClientID, pushes[0].Channel)
	assert.Equal(t, "New authentication request from Bank", pushes[0].Alert)
	assert.Equal(t, *view, pushes[0].Message)
}

func TestUsecase_CreateAuthRequest_RandomChallenge(t *testing.T) {
	f := newFixture(t, false)

	view := f.create(t, CreateAuthRequestInput{ExpiryMs: ptr(int64(5000))})

	assert.Len(t, view.Question, 16)
	assert.Equal(t, int64(5000), view.Expires-view.Issued)
}

func TestUsecase_CreateAuthRequest_MaxExpiry(t *testing.T) {
	f := newFixture(t, false)

	view := f.create(t, CreateAuthRequestInput{ExpiryMs: ptr(entity.MaxExpiryMs)})

	assert.Equal(t, entity.MaxExpiryMs, view.Expires-view.Issued)
	assert.Positive(t, view.Expires)
}

func TestUsecase_CreateAuthRequest_Errors(t *testing.T) {
	long := make([]byte, entity.MaxChallengeBytes+1)
	for i := range long {
		long[i] = 'a'
	}

	tests := []struct {
		name   string
		strict bool
		in     CreateAuthRequestInput
		code   int
		msg    string
	}{
		{
			name: "MissingClientID",
			in:   CreateAuthRequestInput{AppID: testAppID},
			code: 400,
		},
		{
			name: "NegativeExpiry",
			in:   CreateAuthRequestInput{AppID: testAppID, ClientID: testClientID, ExpiryMs: ptr(int64(-1))},
			code: 400,
		},
		{
			name: "ExpiryOverOneDay",
			in:   CreateAuthRequestInput{AppID: testAppID, ClientID: testClientID, ExpiryMs: ptr(entity.MaxExpiryMs + 1)},
			code: 400,
		},
		{
			name: "ExpiryOverflowsClock",
			in:   CreateAuthRequestInput{AppID: testAppID, ClientID: testClientID, ExpiryMs: ptr(int64(9223372036854775000))},
			code: 400,
		},
		{
			name: "UnknownSignaturePage",
			in:   CreateAuthRequestInput{AppID: testAppID, ClientID: testClientID, SignaturePage: []string{"selfie"}},
			code: 400,
		},
		{
			name: "DuplicateSignaturePage",
			in:   CreateAuthRequestInput{AppID: testAppID, ClientID: testClientID, SignaturePage: []string{"face", "face"}},
			code: 400,
		},
		{
			name:   "InsecureCallbackInStrictMode",
			strict: true,
			in:     CreateAuthRequestInput{AppID: testAppID, ClientID: testClientID, CallbackURL: "http://bank.example/cb"},
			code:   400,
			msg:    "Callback URL must be secure (HTTPS)",
		},
		{
			name: "UnknownClient",
			in:   CreateAuthRequestInput{AppID: testAppID, ClientID: "nobody"},
			code: 400,
			msg:  "Client not found.",
		},
		{
			name: "ClientOfAnotherApp",
			in:   CreateAuthRequestInput{AppID: "app-2", ClientID: testClientID},
			code: 400,
			msg:  "Client not found.",
		},
		{
			name: "CallbackOnForeignHost",
			in:   CreateAuthRequestInput{AppID: testAppID, ClientID: testClientID, CallbackURL: "https://evil.example/cb"},
			code: 400,
			msg:  "Callback URL must be on the registered domain.",
		},
		{
			name: "ChallengeTooLong",
			in:   CreateAuthRequestInput{AppID: testAppID, ClientID: testClientID, Challenge: string(long)},
			code: 400,
			msg:  "The challenge is too long. Max 128 bytes.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.strict)

			view, err := f.uc.CreateAuthRequest(context.Background(), tt.in)

			assert.Nil(t, view)
			assertStatus(t, err, tt.code, tt.msg)
			assert.Empty(t, f.rec.Pushes())
		})
	}
}

func TestUsecase_CreateAuthRequest_ClientWithoutApp(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, f.db.CreateClient(context.Background(), entity.Client{ID: "orphan"}))

	_, err := f.uc.CreateAuthRequest(context.Background(), CreateAuthRequestInput{AppID: testAppID, ClientID: "orphan"})

	assertStatus(t, err, 500, "Client is not connected to an app.")
}

func TestUsecase_ResolveAuthRequest_Approved(t *testing.T) {
	// Arrange
	f := newFixture(t, false)
	view := f.create(t, CreateAuthRequestInput{CallbackURL: testCallbackURL, Challenge: "login"})
	code := f.otp(t, testKeyHex, "login")

	// Act
	out, err := f.uc.ResolveAuthRequest(context.Background(), ResolveAuthRequestInput{
		RequestID:      view.ID,
		OTP:            code,
		DeviceSerialNo: testDevice,
		Approve:        true,
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, &ResolveAuthRequestOutput{Verified: true}, out)

	cbs := f.rec.Callbacks()
	require.Len(t, cbs, 1)
	assert.Equal(t, testCallbackURL, cbs[0].URL)
	assert.Equal(t, map[string]string{
		"approved":   "true",
		"challenge":  "login",
		"client_id":  testClientID,
		"request_id": view.ID,
		"timestamp":  "1700000000000",
		"type":       "authentication",
		"verified":   "true",
	}, cbs[0].Body)

	body, err := CanonicalJSON(cbs[0].Body)
	require.NoError(t, err)
	assert.True(t, hash.NewSigner().Verify(testAppSecret, testCallbackURL+string(body), cbs[0].Signature))
}

func TestUsecase_ResolveAuthRequest_AtMostOnce(t *testing.T) {
	f := newFixture(t, false)
	view := f.create(t, CreateAuthRequestInput{CallbackURL: testCallbackURL, Challenge: "once"})
	in := ResolveAuthRequestInput{
		RequestID:      view.ID,
		OTP:            f.otp(t, testKeyHex, "once"),
		DeviceSerialNo: testDevice,
		Approve:        true,
	}

	_, err := f.uc.ResolveAuthRequest(context.Background(), in)
	require.NoError(t, err)

	_, err = f.uc.ResolveAuthRequest(context.Background(), in)
	assertStatus(t, err, 404, "Auth request not found.")

	assert.Len(t, f.rec.Callbacks(), 1)
}

func TestUsecase_ResolveAuthRequest_SecondKeyMatches(t *testing.T) {
	f := newFixture(t, false)
	secondKey := "0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20"
	require.NoError(t, f.db.CreateKey(context.Background(), entity.Key{
		ID: "key-2", ClientID: testClientID, DeviceSerialNo: testDevice, Secret: secondKey,
	}))
	view := f.create(t, CreateAuthRequestInput{Challenge: "two"})

	out, err := f.uc.ResolveAuthRequest(context.Background(), ResolveAuthRequestInput{
		RequestID:      view.ID,
		OTP:            f.otp(t, secondKey, "two"),
		DeviceSerialNo: testDevice,
		Approve:        true,
	})

	require.NoError(t, err)
	assert.True(t, out.Verified)
}

func TestUsecase_ResolveAuthRequest_Rejections(t *testing.T) {
	t.Run("InvalidOTP", func(t *testing.T) {
		f := newFixture(t, false)
		view := f.create(t, CreateAuthRequestInput{CallbackURL: testCallbackURL, Challenge: "x"})

		out, err := f.uc.ResolveAuthRequest(context.Background(), ResolveAuthRequestInput{
			RequestID: view.ID, OTP: "00000000", DeviceSerialNo: testDevice, Approve: true,
		})

		require.NoError(t, err)
		assert.Equal(t, &ResolveAuthRequestOutput{Verified: false, Description: "Invalid OTP"}, out)

		cbs := f.rec.Callbacks()
		require.Len(t, cbs, 1)
		assert.Equal(t, "false", cbs[0].Body["verified"])
		assert.Equal(t, "true", cbs[0].Body["approved"])

		_, err = f.db.GetAuthRequest(context.Background(), view.ID)
		assert.ErrorIs(t, err, goerror.ErrNotFound)
	})

	t.Run("KeyNotFound", func(t *testing.T) {
		f := newFixture(t, false)
		view := f.create(t, CreateAuthRequestInput{Challenge: "x"})

		out, err := f.uc.ResolveAuthRequest(context.Background(), ResolveAuthRequestInput{
			RequestID: view.ID, OTP: "12345678", DeviceSerialNo: "other-device",
		})

		require.NoError(t, err)
		assert.Equal(t, &ResolveAuthRequestOutput{Verified: false, Description: "Key not found"}, out)
	})

	t.Run("Expired", func(t *testing.T) {
		f := newFixture(t, false)
		view := f.create(t, CreateAuthRequestInput{CallbackURL: testCallbackURL, Challenge: "late", ExpiryMs: ptr(int64(60_000))})
		f.clock.Advance(61 * time.Second)

		out, err := f.uc.ResolveAuthRequest(context.Background(), ResolveAuthRequestInput{
			RequestID: view.ID, OTP: f.otp(t, testKeyHex, "late"), DeviceSerialNo: testDevice, Approve: true,
		})

		require.NoError(t, err)
		assert.Equal(t, &ResolveAuthRequestOutput{Verified: false, Description: "Request expired"}, out)

		cbs := f.rec.Callbacks()
		require.Len(t, cbs, 1)
		assert.Equal(t, "false", cbs[0].Body["verified"])
		assert.Equal(t, "false", cbs[0].Body["approved"])
	})

	t.Run("MissingFields", func(t *testing.T) {
		f := newFixture(t, false)

		_, err := f.uc.ResolveAuthRequest(context.Background(), ResolveAuthRequestInput{RequestID: "r"})

		assertStatus(t, err, 400, "")
	})

	t.Run("UnknownRequest", func(t *testing.T) {
		f := newFixture(t, false)

		_, err := f.uc.ResolveAuthRequest(context.Background(), ResolveAuthRequestInput{
			RequestID: "missing", OTP: "1", DeviceSerialNo: testDevice,
		})

		assertStatus(t, err, 404, "Auth request not found.")
	})
}

func TestUsecase_ResolveAuthRequest_SignatureFields(t *testing.T) {
	f := newFixture(t, false)
	view := f.create(t, CreateAuthRequestInput{CallbackURL: testCallbackURL, Challenge: "sign", SignaturePage: []string{"face"}})

	_, err := f.uc.ResolveAuthRequest(context.Background(), ResolveAuthRequestInput{
		RequestID:      view.ID,
		OTP:            f.otp(t, testKeyHex, "sign"),
		DeviceSerialNo: testDevice,
		Approve:        true,
		Signature:      "c2ln",
		SignaturePage:  "cGRm",
		PublicKey:      "a2V5",
	})
	require.NoError(t, err)

	cbs := f.rec.Callbacks()
	require.Len(t, cbs, 1)
	assert.Equal(t, "c2ln", cbs[0].Body["signature"])
	assert.Equal(t, "cGRm", cbs[0].Body["signature_page"])
	assert.Equal(t, "a2V5", cbs[0].Body["public_key"])
}

func TestUsecase_PollAuthRequests(t *testing.T) {
	// Arrange
	f := newFixture(t, false)
	view := f.create(t, CreateAuthRequestInput{CallbackURL: testCallbackURL, Challenge: "poll"})

	// Act
	got, err := f.uc.PollAuthRequests(context.Background(), PollAuthRequestsInput{DeviceID: testDevice})

	// Assert
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, *view, got[0])

	cbs := f.rec.Callbacks()
	require.Len(t, cbs, 1)
	assert.Equal(t, map[string]string{
		"client_id":  testClientID,
		"request_id": view.ID,
		"timestamp":  "1700000000000",
		"type":       "authentication_start",
	}, cbs[0].Body)

	_, err = f.uc.PollAuthRequests(context.Background(), PollAuthRequestsInput{DeviceID: testDevice})
	require.NoError(t, err)
	assert.Len(t, f.rec.Callbacks(), 1)
}

func TestUsecase_PollAuthRequests_NoKeys(t *testing.T) {
	f := newFixture(t, false)
	f.create(t, CreateAuthRequestInput{Challenge: "poll"})

	got, err := f.uc.PollAuthRequests(context.Background(), PollAuthRequestsInput{DeviceID: "unknown"})

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestUsecase_PollAuthRequests_MissingDevice(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.uc.PollAuthRequests(context.Background(), PollAuthRequestsInput{})

	assertStatus(t, err, 400, "")
}

func TestUsecase_PollAuthRequests_SweepsExpiredOnce(t *testing.T) {
	f := newFixture(t, false)
	f.create(t, CreateAuthRequestInput{CallbackURL: testCallbackURL, Challenge: "zero", ExpiryMs: ptr(int64(0))})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := f.uc.PollAuthRequests(context.Background(), PollAuthRequestsInput{DeviceID: testDevice})
			assert.NoError(t, err)
			assert.Empty(t, got)
		}()
	}
	wg.Wait()

	authCallbacks := func() int {
		n := 0
		for _, cb := range f.rec.Callbacks() {
			if cb.Body["type"] == "authentication" {
				n++
			}
		}
		return n
	}

	assert.Eventually(t, func() bool { return authCallbacks() == 1 }, time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return authCallbacks() > 1 }, 100*time.Millisecond, 10*time.Millisecond)

	for _, cb := range f.rec.Callbacks() {
		assert.NotEqual(t, "authentication_start", cb.Body["type"])
	}
}

func TestUsecase_ExpireAuthRequest(t *testing.T) {
	f := newFixture(t, false)
	view := f.create(t, CreateAuthRequestInput{CallbackURL: testCallbackURL, Challenge: "bye"})

	require.NoError(t, f.uc.ExpireAuthRequest(context.Background(), view.ID))
	require.NoError(t, f.uc.ExpireAuthRequest(context.Background(), view.ID))

	cbs := f.rec.Callbacks()
	require.Len(t, cbs, 1)
	assert.Equal(t, "false", cbs[0].Body["verified"])
	assert.Equal(t, "false", cbs[0].Body["approved"])
	assert.Equal(t, "bye", cbs[0].Body["challenge"])
}

func TestUsecase_ExpireAuthRequest_ByTimer(t *testing.T) {
	f := newFixture(t, false)
	view := f.create(t, CreateAuthRequestInput{CallbackURL: testCallbackURL, ExpiryMs: ptr(int64(20))})

	assert.Eventually(t, func() bool {
		_, err := f.db.GetAuthRequest(context.Background(), view.ID)
		return err != nil && len(f.rec.Callbacks()) == 1
	}, time.Second, 10*time.Millisecond)
}

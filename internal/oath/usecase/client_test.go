package usecase

import (
	"context"
	"testing"

	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsecase_RegisterClient(t *testing.T) {
	f := newFixture(t, true)

	out, err := f.uc.RegisterClient(context.Background(), RegisterClientInput{
		AppID:       testAppID,
		CallbackURL: "https://bank.example/registered",
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.ID)

	c, err := f.db.GetClient(context.Background(), out.ID)
	require.NoError(t, err)
	assert.Equal(t, testAppID, c.AppID)
	assert.Equal(t, "https://bank.example/registered", c.RegCallbackURL)
}

func TestUsecase_RegisterClient_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   RegisterClientInput
		code int
		msg  string
	}{
		{name: "UnknownApp", in: RegisterClientInput{AppID: "nope"}, code: 404, msg: "App not found."},
		{name: "Insecure", in: RegisterClientInput{AppID: testAppID, CallbackURL: "http://bank.example/cb"}, code: 400, msg: "Callback URL must be secure (HTTPS)"},
		{name: "ForeignHost", in: RegisterClientInput{AppID: testAppID, CallbackURL: "https://bank.example:8443/cb"}, code: 400, msg: "Callback URL must be on the registered domain."},
		{name: "MissingApp", in: RegisterClientInput{}, code: 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)

			_, err := f.uc.RegisterClient(context.Background(), tt.in)

			assertStatus(t, err, tt.code, tt.msg)
		})
	}
}

func TestUsecase_DeleteClient(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.uc.DeleteClient(context.Background(), DeleteClientInput{AppID: "app-2", ClientID: testClientID})
	assertStatus(t, err, 404, "Client not found.")

	out, err := f.uc.DeleteClient(context.Background(), DeleteClientInput{AppID: testAppID, ClientID: testClientID})
	require.NoError(t, err)
	assert.Equal(t, testClientID, out.ID)

	keys, err := f.db.ListKeysByClient(context.Background(), testClientID)
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = f.uc.DeleteClient(context.Background(), DeleteClientInput{AppID: testAppID, ClientID: testClientID})
	assertStatus(t, err, 404, "Client not found.")
}

func TestUsecase_FindAppSecret(t *testing.T) {
	f := newFixture(t, false)

	secret, err := f.uc.FindAppSecret(context.Background(), testAppID)
	require.NoError(t, err)
	assert.Equal(t, testAppSecret, secret)

	_, err = f.uc.FindAppSecret(context.Background(), "nope")
	assert.ErrorIs(t, err, goerror.ErrNotFound)
}

func TestUsecase_RevokeDevice(t *testing.T) {
	// Arrange
	f := newFixture(t, false)
	view := f.create(t, CreateAuthRequestInput{CallbackURL: testCallbackURL, Challenge: "revoke"})

	// Act
	out, err := f.uc.RevokeDevice(context.Background(), RevokeDeviceInput{
		RequestID:      view.ID,
		DeviceSerialNo: testDevice,
		OTP:            f.otp(t, testKeyHex, "revoke"),
	})

	// Assert
	require.NoError(t, err)
	assert.True(t, out.Revoked)

	keys, err := f.db.ListKeysByDevice(context.Background(), testDevice)
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = f.db.GetAuthRequest(context.Background(), view.ID)
	assert.ErrorIs(t, err, goerror.ErrNotFound)

	cbs := f.rec.Callbacks()
	require.Len(t, cbs, 1)
	assert.Equal(t, "key_revocation", cbs[0].Body["type"])
	assert.Equal(t, "true", cbs[0].Body["verified"])
	assert.Equal(t, "false", cbs[0].Body["approved"])
}

func TestUsecase_RevokeDevice_Errors(t *testing.T) {
	f := newFixture(t, false)
	view := f.create(t, CreateAuthRequestInput{Challenge: "revoke"})

	_, err := f.uc.RevokeDevice(context.Background(), RevokeDeviceInput{RequestID: view.ID, DeviceSerialNo: testDevice, OTP: "00000000"})
	assertStatus(t, err, 401, "Invalid OTP")

	_, err = f.uc.RevokeDevice(context.Background(), RevokeDeviceInput{RequestID: "missing", DeviceSerialNo: testDevice, OTP: "1"})
	assertStatus(t, err, 404, "")

	_, err = f.uc.RevokeDevice(context.Background(), RevokeDeviceInput{RequestID: view.ID})
	assertStatus(t, err, 400, "")

	keys, err := f.db.ListKeysByDevice(context.Background(), testDevice)
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

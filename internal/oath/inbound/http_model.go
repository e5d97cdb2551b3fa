package inbound

import "github.com/shandysiswandi/otpgate/internal/oath/entity"

type RegisterClientRequest struct {
	CallbackURL string `json:"callback_url"`
}

type ClientResponse struct {
	ID string `json:"id"`
}

type DeleteClientRequest struct {
	ClientID string `json:"client_id"`
}

type CreateAuthRequestRequest struct {
	ClientID      string   `json:"client_id"`
	CallbackURL   string   `json:"callback_url"`
	Challenge     string   `json:"challenge"`
	ExpiryMs      *int64   `json:"expiry_ms"`
	SignaturePage []string `json:"signature_page"`
}

type AppResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type AuthRequestResponse struct {
	ID            string       `json:"id"`
	Type          string       `json:"type"`
	ClientID      string       `json:"client_id"`
	Issued        int64        `json:"issued"`
	Expires       int64        `json:"expires"`
	OCRASuite     string       `json:"ocra_suite"`
	Question      string       `json:"question"`
	App           *AppResponse `json:"app,omitempty"`
	SignaturePage []string     `json:"signature_page,omitempty"`
}

func newAuthRequestResponse(v entity.AuthRequestView) AuthRequestResponse {
	resp := AuthRequestResponse{
		ID:            v.ID,
		Type:          v.Type,
		ClientID:      v.ClientID,
		Issued:        v.Issued,
		Expires:       v.Expires,
		OCRASuite:     v.OCRASuite,
		Question:      v.Question,
		SignaturePage: v.SignaturePage,
	}
	if v.App != nil {
		resp.App = &AppResponse{ID: v.App.ID, Name: v.App.Name}
	}
	return resp
}

type ResolveAuthRequestRequest struct {
	OTP            string `json:"otp"`
	DeviceSerialNo string `json:"device_serial_no"`
	// DeviceID is accepted as an alias of DeviceSerialNo.
	DeviceID      string `json:"device_id"`
	Approve       bool   `json:"approve"`
	Signature     string `json:"signature"`
	SignaturePage string `json:"signature_page"`
	PublicKey     string `json:"public_key"`
}

type ResolveAuthRequestResponse struct {
	Verified    bool   `json:"verified"`
	Description string `json:"description,omitempty"`
}

type RevokeDeviceRequest struct {
	RequestID      string `json:"request_id"`
	DeviceSerialNo string `json:"device_serial_no"`
	OTP            string `json:"otp"`
}

type RevokeDeviceResponse struct {
	Revoked bool `json:"revoked"`
}

package inbound

import (
	"net/url"
	"strings"

	"github.com/shandysiswandi/otpgate/internal/oath/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
)

// HTTPEndpoint exposes the auth request and provisioning handlers.
type HTTPEndpoint struct {
	uc  uc
	cfg config.Config
}

// RegisterClient creates a client slot for the calling app.
// @Summary Register client
// @Description Creates a client bound to the authenticated app. An optional callback URL must be on the app's registered host.
// @Tags Clients
// @Accept json
// @Produce json
// @Param X-Verid-Apikey header string true "App id"
// @Param X-Verid-Signature header string true "Request signature"
// @Param request body RegisterClientRequest false "Client payload"
// @Success 200 {object} ClientResponse "Created client"
// @Failure 400 {object} router.errorResponse "Invalid callback URL"
// @Failure 401 {object} router.errorResponse "Invalid API key or signature"
// @Failure 404 {object} router.errorResponse "App not found"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /clients [post]
func (h *HTTPEndpoint) RegisterClient(r *router.Request) (any, error) {
	var req RegisterClientRequest
	if r.ContentLength != 0 {
		if err := r.DecodeBody(&req); err != nil {
			return nil, err
		}
	}

	resp, err := h.uc.RegisterClient(r.Context(), usecase.RegisterClientInput{
		AppID:       router.GetAppID(r.Context()),
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		return nil, err
	}

	return ClientResponse{ID: resp.ID}, nil
}

// DeleteClient removes a client and its keys.
// @Summary Delete client
// @Description Deletes a client owned by the authenticated app together with its provisioned keys.
// @Tags Clients
// @Accept json
// @Produce json
// @Param X-Verid-Apikey header string true "App id"
// @Param X-Verid-Signature header string true "Request signature"
// @Param request body DeleteClientRequest true "Client to delete"
// @Success 200 {object} ClientResponse "Deleted client"
// @Failure 400 {object} router.errorResponse "Validation error"
// @Failure 401 {object} router.errorResponse "Invalid API key or signature"
// @Failure 404 {object} router.errorResponse "Client not found"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /clients [delete]
func (h *HTTPEndpoint) DeleteClient(r *router.Request) (any, error) {
	var req DeleteClientRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.DeleteClient(r.Context(), usecase.DeleteClientInput{
		AppID:    router.GetAppID(r.Context()),
		ClientID: req.ClientID,
	})
	if err != nil {
		return nil, err
	}

	return ClientResponse{ID: resp.ID}, nil
}

// CreateAuthRequest issues an auth request and notifies the client's devices.
// @Summary Create auth request
// @Description Creates a pending authentication or signing request for a client and pushes it to the client's devices.
// @Tags Auth Requests
// @Accept json
// @Produce json
// @Param X-Verid-Apikey header string true "App id"
// @Param X-Verid-Signature header string true "Request signature"
// @Param request body CreateAuthRequestRequest true "Auth request payload"
// @Success 200 {object} AuthRequestResponse "Created auth request"
// @Failure 400 {object} router.errorResponse "Validation error"
// @Failure 401 {object} router.errorResponse "Invalid API key or signature"
// @Failure 406 {object} router.errorResponse "Not acceptable"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /auth_requests [post]
func (h *HTTPEndpoint) CreateAuthRequest(r *router.Request) (any, error) {
	var req CreateAuthRequestRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.CreateAuthRequest(r.Context(), usecase.CreateAuthRequestInput{
		AppID:         router.GetAppID(r.Context()),
		ClientID:      req.ClientID,
		CallbackURL:   req.CallbackURL,
		Challenge:     req.Challenge,
		ExpiryMs:      req.ExpiryMs,
		SignaturePage: req.SignaturePage,
	})
	if err != nil {
		return nil, err
	}

	return newAuthRequestResponse(*resp), nil
}

// PollAuthRequests lists the live auth requests for a device.
// @Summary Poll auth requests
// @Description Returns the pending auth requests addressed to clients provisioned on the device.
// @Tags Auth Requests
// @Produce json
// @Param device_id query string true "Device serial number"
// @Success 200 {array} AuthRequestResponse "Pending auth requests"
// @Failure 400 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /auth_requests [get]
func (h *HTTPEndpoint) PollAuthRequests(r *router.Request) (any, error) {
	resp, err := h.uc.PollAuthRequests(r.Context(), usecase.PollAuthRequestsInput{
		DeviceID: r.GetQuery("device_id"),
	})
	if err != nil {
		return nil, err
	}

	result := make([]AuthRequestResponse, 0, len(resp))
	for _, v := range resp {
		result = append(result, newAuthRequestResponse(v))
	}

	return result, nil
}

// ResolveAuthRequest answers an auth request with a device OTP.
// @Summary Resolve auth request
// @Description Verifies the OTP computed over the request challenge and reports the outcome to the app.
// @Tags Auth Requests
// @Accept json
// @Produce json
// @Param id path string true "Auth request id"
// @Param request body ResolveAuthRequestRequest true "Device answer"
// @Success 200 {object} ResolveAuthRequestResponse "Verification result"
// @Failure 400 {object} router.errorResponse "Validation error"
// @Failure 404 {object} router.errorResponse "Auth request not found"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /auth_request/{id} [post]
func (h *HTTPEndpoint) ResolveAuthRequest(r *router.Request) (any, error) {
	var req ResolveAuthRequestRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	device := req.DeviceSerialNo
	if device == "" {
		device = req.DeviceID
	}

	resp, err := h.uc.ResolveAuthRequest(r.Context(), usecase.ResolveAuthRequestInput{
		RequestID:      r.GetParam("id"),
		OTP:            req.OTP,
		DeviceSerialNo: device,
		Approve:        req.Approve,
		Signature:      req.Signature,
		SignaturePage:  req.SignaturePage,
		PublicKey:      req.PublicKey,
	})
	if err != nil {
		return nil, err
	}

	return ResolveAuthRequestResponse{
		Verified:    resp.Verified,
		Description: resp.Description,
	}, nil
}

// RevokeDevice deletes the device key proven by an OTP.
// @Summary Revoke device
// @Description Deletes the key of a device after it answers a pending auth request, and reports the revocation to the app.
// @Tags Devices
// @Accept json
// @Produce json
// @Param request body RevokeDeviceRequest true "Revocation proof"
// @Success 200 {object} RevokeDeviceResponse "Revocation result"
// @Failure 400 {object} router.errorResponse "Validation error"
// @Failure 401 {object} router.errorResponse "Invalid OTP"
// @Failure 404 {object} router.errorResponse "Auth request not found"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /device [delete]
func (h *HTTPEndpoint) RevokeDevice(r *router.Request) (any, error) {
	var req RevokeDeviceRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.RevokeDevice(r.Context(), usecase.RevokeDeviceInput{
		RequestID:      req.RequestID,
		DeviceSerialNo: req.DeviceSerialNo,
		OTP:            req.OTP,
	})
	if err != nil {
		return nil, err
	}

	return RevokeDeviceResponse{Revoked: resp.Revoked}, nil
}

// IssueAuthCode renders the provisioning QR code of a client.
// @Summary Provisioning QR code
// @Description Returns a PNG QR code carrying the activation code, app identity and API endpoint. The app signs origin, path and nonce.
// @Tags Provisioning
// @Produce png
// @Param file path string true "Client id followed by .png"
// @Param nonce query string true "Nonce"
// @Param signature query string true "Signature over origin, path and nonce"
// @Success 200 {file} binary "QR code"
// @Failure 400 {object} router.errorResponse "Missing client id"
// @Failure 401 {object} router.errorResponse "Missing or invalid signature"
// @Failure 404 {object} router.errorResponse "Client not found"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /qr_code/{file} [get]
func (h *HTTPEndpoint) IssueAuthCode(r *router.Request) (any, error) {
	resp, err := h.uc.IssueAuthCode(r.Context(), usecase.IssueAuthCodeInput{
		ClientID:  strings.TrimSuffix(r.GetParam("file"), ".png"),
		Nonce:     r.GetQuery("nonce"),
		Signature: r.GetQuery("signature"),
		Origin:    router.Origin(r.Request, h.cfg.GetBool("app.strict_mode"), h.cfg.GetString("app.server.public_port")),
		Path:      r.URL.Path,
		Host:      (&url.URL{Host: r.Host}).Hostname(),
	})
	if err != nil {
		return nil, err
	}

	return router.Raw{ContentType: resp.ContentType, Body: resp.PNG}, nil
}

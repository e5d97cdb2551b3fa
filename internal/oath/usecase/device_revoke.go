package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/otpgate/internal/oath/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

type RevokeDeviceInput struct {
	RequestID      string `validate:"required"`
	DeviceSerialNo string `validate:"required"`
	OTP            string `validate:"required"`
}

type RevokeDeviceOutput struct {
	Revoked bool
}

// RevokeDevice deletes the device key that answers a pending request. The
// request is consumed and the app is told with a key_revocation callback.
func (s *Usecase) RevokeDevice(ctx context.Context, in RevokeDeviceInput) (*RevokeDeviceOutput, error) {
	ctx, span := s.startSpan(ctx, "RevokeDevice")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.WarnContext(ctx, "invalid revoke device input", "error", err)
		return nil, goerror.NewInvalidInput(err)
	}

	errNotFound := goerror.NewBusiness("Auth request not found.", goerror.CodeNotFound)

	req, err := s.repoDB.GetAuthRequest(ctx, in.RequestID)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, errNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get auth request", "request_id", in.RequestID, "error", err)
		return nil, goerror.NewServer(err)
	}

	now := clock.Millis(s.clock)
	if req.IsExpired(now) {
		return nil, errNotFound
	}

	key, _, err := s.matchKey(ctx, req, in.DeviceSerialNo, in.OTP)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, goerror.NewBusiness("Invalid OTP", goerror.CodeUnauthorized)
	}

	if err := s.consume(ctx, req.ID); err != nil {
		return nil, err
	}

	err = s.repoDB.DeleteKey(ctx, key.ID)
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to repo delete key", "key_id", key.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if req.CallbackURL != "" {
		cb := authCallback(*req, entity.CallbackKeyRevocation, false, true, now)
		s.dispatch(ctx, entity.Effect{Callback: &cb})
	}

	slog.InfoContext(ctx, "device key revoked", "request_id", req.ID, "key_id", key.ID, "client_id", req.ClientID)

	return &RevokeDeviceOutput{Revoked: true}, nil
}

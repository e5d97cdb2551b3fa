package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/shandysiswandi/otpgate/internal/oath/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/otp"
)

type ResolveAuthRequestInput struct {
	RequestID      string `validate:"required"`
	OTP            string `validate:"required"`
	DeviceSerialNo string `validate:"required"`
	Approve        bool

	// Signature, SignaturePage and PublicKey are forwarded to the app only
	// when all three are present.
	Signature     string
	SignaturePage string
	PublicKey     string
}

type ResolveAuthRequestOutput struct {
	Verified    bool
	Description string
}

// ResolveAuthRequest answers a pending request with a device OTP. The request
// is consumed whatever the outcome.
func (s *Usecase) ResolveAuthRequest(ctx context.Context, in ResolveAuthRequestInput) (*ResolveAuthRequestOutput, error) {
	ctx, span := s.startSpan(ctx, "ResolveAuthRequest")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.WarnContext(ctx, "invalid resolve auth request input", "error", err)
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
		if err := s.consume(ctx, req.ID); err != nil {
			return nil, err
		}
		s.dispatch(ctx, s.expiredEffects(*req)...)

		return &ResolveAuthRequestOutput{Verified: false, Description: "Request expired"}, nil
	}

	matched, found, err := s.matchKey(ctx, req, in.DeviceSerialNo, in.OTP)
	if err != nil {
		return nil, err
	}

	if err := s.consume(ctx, req.ID); err != nil {
		return nil, err
	}

	verified := matched != nil
	cb := authCallback(*req, entity.CallbackAuthentication, in.Approve, verified, now)
	if in.Signature != "" && in.SignaturePage != "" && in.PublicKey != "" {
		cb.Payload["signature"] = in.Signature
		cb.Payload["signature_page"] = in.SignaturePage
		cb.Payload["public_key"] = in.PublicKey
	}
	if req.CallbackURL != "" {
		s.dispatch(ctx, entity.Effect{Callback: &cb})
	}

	slog.InfoContext(ctx, "auth request resolved",
		"request_id", req.ID,
		"verified", strconv.FormatBool(verified),
		"approved", strconv.FormatBool(in.Approve),
	)

	switch {
	case verified:
		return &ResolveAuthRequestOutput{Verified: true}, nil
	case found == 0:
		return &ResolveAuthRequestOutput{Verified: false, Description: "Key not found"}, nil
	default:
		return &ResolveAuthRequestOutput{Verified: false, Description: "Invalid OTP"}, nil
	}
}

// consume deletes a request as the single terminal transition. Losing the
// race to another resolution surfaces as not found.
func (s *Usecase) consume(ctx context.Context, id string) error {
	_, err := s.repoDB.DeleteAuthRequest(ctx, id)
	if errors.Is(err, goerror.ErrNotFound) {
		return goerror.NewBusiness("Auth request not found.", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo delete auth request", "request_id", id, "error", err)
		return goerror.NewServer(err)
	}

	s.tracker.Forget(id)

	return nil
}

// matchKey returns the first key of the device, bound to the request's
// client, whose OCRA response equals code. found is the number of candidate
// keys.
func (s *Usecase) matchKey(ctx context.Context, req *entity.AuthRequest, deviceSerialNo, code string) (*entity.Key, int, error) {
	keys, err := s.repoDB.ListKeysByDevice(ctx, deviceSerialNo)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo list keys by device", "device_id", deviceSerialNo, "error", err)
		return nil, 0, goerror.NewServer(err)
	}

	found := 0
	for i := range keys {
		k := keys[i]
		if k.ClientID != req.ClientID {
			continue
		}
		found++

		ok, err := s.ocra.Verify(otp.Input{
			Suite:    req.OCRASuite,
			KeyHex:   k.Secret,
			Question: req.Question,
		}, code)
		if err != nil {
			slog.WarnContext(ctx, "failed to verify ocra", "key_id", k.ID, "error", err)
			continue
		}
		if ok {
			return &k, found, nil
		}
	}

	return nil, found, nil
}

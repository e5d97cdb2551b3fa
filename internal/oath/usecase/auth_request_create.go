package usecase

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/shandysiswandi/otpgate/internal/oath/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
)

type CreateAuthRequestInput struct {
	AppID         string
	ClientID      string `validate:"required"`
	CallbackURL   string
	Challenge     string
	ExpiryMs      *int64   `validate:"omitnil,gte=0,lte=86400000"`
	SignaturePage []string `validate:"omitempty,signature_page"`
}

func (s *Usecase) CreateAuthRequest(ctx context.Context, in CreateAuthRequestInput) (*entity.AuthRequestView, error) {
	ctx, span := s.startSpan(ctx, "CreateAuthRequest")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.WarnContext(ctx, "invalid create auth request input", "error", err)
		return nil, goerror.NewInvalidInput(err)
	}

	var callback *url.URL
	if in.CallbackURL != "" {
		u, err := s.parseCallbackURL(in.CallbackURL)
		if err != nil {
			return nil, err
		}
		callback = u
	}

	client, app, err := s.clientOfApp(ctx, in.AppID, in.ClientID)
	if err != nil {
		return nil, err
	}

	if callback != nil && !onRegisteredHost(callback, app) {
		return nil, goerror.NewInvalidFormat("Callback URL must be on the registered domain.")
	}

	if len(in.Challenge) > entity.MaxChallengeBytes {
		return nil, goerror.NewInvalidFormat("The challenge is too long. Max 128 bytes.")
	}

	question := in.Challenge
	if question == "" {
		question, err = hash.RandomHex(8)
		if err != nil {
			slog.ErrorContext(ctx, "failed to generate challenge", "error", err)
			return nil, goerror.NewServer(err)
		}
	}

	expiryMs := s.defaultExpiryMs()
	if in.ExpiryMs != nil {
		expiryMs = *in.ExpiryMs
	}

	now := clock.Millis(s.clock)
	req := entity.AuthRequest{
		ID:            s.uuid.Generate(),
		ClientID:      client.ID,
		Issued:        now,
		Expires:       now + expiryMs,
		OCRASuite:     entity.DefaultOCRASuite,
		Question:      question,
		CallbackURL:   in.CallbackURL,
		SignaturePage: in.SignaturePage,
	}

	if err := s.repoDB.CreateAuthRequest(ctx, req); err != nil {
		slog.ErrorContext(ctx, "failed to repo create auth request", "client_id", client.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	id := req.ID
	expireCtx := context.WithoutCancel(ctx)
	s.tracker.Track(id, time.Duration(expiryMs)*time.Millisecond, func() {
		if err := s.ExpireAuthRequest(expireCtx, id); err != nil {
			slog.WarnContext(expireCtx, "failed to expire auth request", "request_id", id, "error", err)
		}
	})

	view := entity.NewAuthRequestView(req, &entity.AppRef{ID: app.ID, Name: app.Name})

	s.dispatch(ctx, entity.Effect{Push: &entity.Push{
		Channel: client.ID,
		Alert:   "New authentication request from " + app.Name,
		Message: view,
	}})

	slog.InfoContext(ctx, "auth request created", "request_id", id, "client_id", client.ID, "expires", req.Expires)

	return &view, nil
}

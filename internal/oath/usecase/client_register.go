package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/otpgate/internal/oath/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

type RegisterClientInput struct {
	AppID       string `validate:"required"`
	CallbackURL string
}

type RegisterClientOutput struct {
	ID string
}

func (s *Usecase) RegisterClient(ctx context.Context, in RegisterClientInput) (*RegisterClientOutput, error) {
	ctx, span := s.startSpan(ctx, "RegisterClient")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.WarnContext(ctx, "invalid register client input", "error", err)
		return nil, goerror.NewInvalidInput(err)
	}

	app, err := s.repoDB.GetApp(ctx, in.AppID)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, goerror.NewBusiness("App not found.", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get app", "app_id", in.AppID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if in.CallbackURL != "" {
		u, err := s.parseCallbackURL(in.CallbackURL)
		if err != nil {
			return nil, err
		}
		if !onRegisteredHost(u, app) {
			return nil, goerror.NewInvalidFormat("Callback URL must be on the registered domain.")
		}
	}

	client := entity.Client{
		ID:             s.oid.Generate(),
		AppID:          app.ID,
		RegCallbackURL: in.CallbackURL,
	}
	if err := s.repoDB.CreateClient(ctx, client); err != nil {
		slog.ErrorContext(ctx, "failed to repo create client", "app_id", app.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	slog.InfoContext(ctx, "client registered", "app_id", app.ID, "client_id", client.ID)

	return &RegisterClientOutput{ID: client.ID}, nil
}

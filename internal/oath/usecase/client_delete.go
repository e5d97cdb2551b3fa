package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

type DeleteClientInput struct {
	AppID    string `validate:"required"`
	ClientID string `validate:"required"`
}

type DeleteClientOutput struct {
	ID string
}

// DeleteClient removes a client owned by the calling app together with its
// keys.
func (s *Usecase) DeleteClient(ctx context.Context, in DeleteClientInput) (*DeleteClientOutput, error) {
	ctx, span := s.startSpan(ctx, "DeleteClient")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.WarnContext(ctx, "invalid delete client input", "error", err)
		return nil, goerror.NewInvalidInput(err)
	}

	errNotFound := goerror.NewBusiness("Client not found.", goerror.CodeNotFound)

	client, err := s.repoDB.GetClient(ctx, in.ClientID)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, errNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get client", "client_id", in.ClientID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if client.AppID != in.AppID {
		slog.WarnContext(ctx, "client belongs to another app", "client_id", in.ClientID, "app_id", in.AppID)
		return nil, errNotFound
	}

	err = s.repoDB.DeleteClient(ctx, client.ID)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, errNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo delete client", "client_id", client.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	slog.InfoContext(ctx, "client deleted", "app_id", in.AppID, "client_id", client.ID)

	return &DeleteClientOutput{ID: client.ID}, nil
}

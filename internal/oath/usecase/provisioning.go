package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

// ErrNoProvisioningPassword is returned when a client has not been issued an
// auth code yet.
var ErrNoProvisioningPassword = errors.New("client has no provisioning password")

// ProvisioningPassword returns the transient password issued with the
// client's auth code.
func (s *Usecase) ProvisioningPassword(ctx context.Context, clientID string) (string, error) {
	ctx, span := s.startSpan(ctx, "ProvisioningPassword")
	defer span.End()

	client, err := s.repoDB.GetClient(ctx, clientID)
	if errors.Is(err, goerror.ErrNotFound) {
		return "", goerror.NewBusiness("Client not found.", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get client", "client_id", clientID, "error", err)
		return "", goerror.NewServer(err)
	}

	if client.Password == "" {
		return "", ErrNoProvisioningPassword
	}

	return client.Password, nil
}

// ClearProvisioningPassword forgets the password once a device finished
// provisioning.
func (s *Usecase) ClearProvisioningPassword(ctx context.Context, clientID string) error {
	ctx, span := s.startSpan(ctx, "ClearProvisioningPassword")
	defer span.End()

	err := s.repoDB.UpdateClientPassword(ctx, clientID, "")
	if errors.Is(err, goerror.ErrNotFound) {
		return nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo clear client password", "client_id", clientID, "error", err)
		return goerror.NewServer(err)
	}

	return nil
}

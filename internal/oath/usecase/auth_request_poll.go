package usecase

import (
	"context"
	"log/slog"

	"github.com/samber/lo"
	"github.com/shandysiswandi/otpgate/internal/oath/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

type PollAuthRequestsInput struct {
	DeviceID string `validate:"required"`
}

// PollAuthRequests sweeps expired requests and returns the live ones addressed
// to the clients provisioned on a device.
func (s *Usecase) PollAuthRequests(ctx context.Context, in PollAuthRequestsInput) ([]entity.AuthRequestView, error) {
	ctx, span := s.startSpan(ctx, "PollAuthRequests")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.WarnContext(ctx, "invalid poll auth requests input", "error", err)
		return nil, goerror.NewInvalidInput(err)
	}

	now := clock.Millis(s.clock)

	expired, err := s.repoDB.DeleteExpiredAuthRequests(ctx, now)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo delete expired auth requests", "error", err)
		return nil, goerror.NewServer(err)
	}
	for _, r := range expired {
		s.tracker.Forget(r.ID)
	}
	if len(expired) > 0 {
		slog.InfoContext(ctx, "expired auth requests swept", "count", len(expired))
		s.dispatch(ctx, s.expiredEffects(expired...)...)
	}

	keys, err := s.repoDB.ListKeysByDevice(ctx, in.DeviceID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo list keys by device", "device_id", in.DeviceID, "error", err)
		return nil, goerror.NewServer(err)
	}

	result := []entity.AuthRequestView{}
	if len(keys) == 0 {
		return result, nil
	}

	clientIDs := lo.Uniq(lo.Map(keys, func(k entity.Key, _ int) string { return k.ClientID }))

	appIDs, err := s.repoDB.ListClientAppIDs(ctx, clientIDs)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo list client app ids", "error", err)
		return nil, goerror.NewServer(err)
	}

	apps, err := s.repoDB.ListAppsByIDs(ctx, lo.Uniq(lo.Values(appIDs)))
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo list apps", "error", err)
		return nil, goerror.NewServer(err)
	}
	appByID := lo.KeyBy(apps, func(a entity.App) string { return a.ID })

	reqs, err := s.repoDB.ListAuthRequestsByClients(ctx, clientIDs)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo list auth requests", "error", err)
		return nil, goerror.NewServer(err)
	}

	var effects []entity.Effect
	for _, r := range reqs {
		if r.IsExpired(now) {
			continue
		}

		var ref *entity.AppRef
		if app, ok := appByID[appIDs[r.ClientID]]; ok {
			ref = &entity.AppRef{ID: app.ID, Name: app.Name}
		}
		result = append(result, entity.NewAuthRequestView(r, ref))

		if r.CallbackURL != "" && s.tracker.Take(r.ID) {
			cb := startCallback(r, now)
			effects = append(effects, entity.Effect{Callback: &cb})
		}
	}

	s.dispatch(ctx, effects...)

	return result, nil
}

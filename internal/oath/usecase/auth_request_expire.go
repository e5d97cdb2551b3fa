package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/otpgate/internal/oath/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

// ExpireAuthRequest ends a request whose lifetime ran out. It does nothing
// when the request was already resolved or swept.
func (s *Usecase) ExpireAuthRequest(ctx context.Context, id string) error {
	ctx, span := s.startSpan(ctx, "ExpireAuthRequest")
	defer span.End()

	req, err := s.repoDB.DeleteAuthRequest(ctx, id)
	if errors.Is(err, goerror.ErrNotFound) {
		s.tracker.Forget(id)
		return nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo delete auth request", "request_id", id, "error", err)
		return goerror.NewServer(err)
	}

	s.tracker.Forget(id)

	slog.InfoContext(ctx, "auth request expired", "request_id", id, "client_id", req.ClientID)

	s.dispatch(ctx, s.expiredEffects(*req)...)

	return nil
}

func (s *Usecase) expiredEffects(reqs ...entity.AuthRequest) []entity.Effect {
	now := clock.Millis(s.clock)

	effects := make([]entity.Effect, 0, len(reqs))
	for _, r := range reqs {
		if r.CallbackURL == "" {
			continue
		}
		cb := authCallback(r, entity.CallbackAuthentication, false, false, now)
		effects = append(effects, entity.Effect{Callback: &cb})
	}

	return effects
}

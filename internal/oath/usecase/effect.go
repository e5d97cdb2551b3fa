package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/otpgate/internal/oath/entity"
)

// dispatch runs effects in the background once the state transition that
// produced them is committed. The context is detached from the caller so a
// finished HTTP request does not cancel delivery.
func (s *Usecase) dispatch(ctx context.Context, effects ...entity.Effect) {
	if len(effects) == 0 {
		return
	}

	dctx := context.WithoutCancel(ctx)
	for _, e := range effects {
		s.goroutine.Go(dctx, func(ctx context.Context) error {
			s.runEffect(ctx, e)
			return nil
		})
	}
}

func (s *Usecase) runEffect(ctx context.Context, e entity.Effect) {
	switch {
	case e.Push != nil:
		if err := s.repoPush.Publish(ctx, *e.Push); err != nil {
			slog.WarnContext(ctx, "failed to publish push notification", "channel", e.Push.Channel, "error", err)
		}

	case e.Callback != nil:
		if err := s.postAuthCallback(ctx, *e.Callback); err != nil {
			slog.WarnContext(ctx, "failed to post callback",
				"request_id", e.Callback.RequestID,
				"type", e.Callback.Type.String(),
				"error", err,
			)
		}
	}
}

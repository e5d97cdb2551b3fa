package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

// FindAppSecret returns the signing secret of appID. Unknown apps, and apps
// without a secret, are reported as goerror.ErrNotFound.
func (s *Usecase) FindAppSecret(ctx context.Context, appID string) (string, error) {
	ctx, span := s.startSpan(ctx, "FindAppSecret")
	defer span.End()

	app, err := s.repoDB.GetApp(ctx, appID)
	if errors.Is(err, goerror.ErrNotFound) {
		return "", goerror.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get app %s: %w", appID, err)
	}

	if app.Secret == "" {
		return "", goerror.ErrNotFound
	}

	return app.Secret, nil
}

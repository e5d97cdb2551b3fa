package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/shandysiswandi/otpgate/internal/oath/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/idempotency"
)

var (
	errClientWithoutApp = errors.New("client is not connected to an app")
	errAppWithoutSecret = errors.New("app has no secret")
)

// authCallback builds the authentication callback for r. The approved and
// verified flags are set by the caller.
func authCallback(r entity.AuthRequest, typ entity.CallbackType, approved, verified bool, nowMs int64) entity.Callback {
	return entity.Callback{
		URL:       r.CallbackURL,
		ClientID:  r.ClientID,
		RequestID: r.ID,
		Type:      typ,
		Payload: map[string]string{
			"approved":   strconv.FormatBool(approved),
			"challenge":  r.Question,
			"client_id":  r.ClientID,
			"request_id": r.ID,
			"timestamp":  strconv.FormatInt(nowMs, 10),
			"type":       typ.String(),
			"verified":   strconv.FormatBool(verified),
		},
	}
}

func startCallback(r entity.AuthRequest, nowMs int64) entity.Callback {
	return entity.Callback{
		URL:       r.CallbackURL,
		ClientID:  r.ClientID,
		RequestID: r.ID,
		Type:      entity.CallbackAuthenticationStart,
		Payload: map[string]string{
			"client_id":  r.ClientID,
			"request_id": r.ID,
			"timestamp":  strconv.FormatInt(nowMs, 10),
			"type":       entity.CallbackAuthenticationStart.String(),
		},
	}
}

// CanonicalJSON encodes payload with sorted keys and no HTML escaping. The
// same bytes are signed and sent.
func CanonicalJSON(payload map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, err
	}

	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// postAuthCallback delivers cb at most once per request and callback type.
// Delivery is best effort.
func (s *Usecase) postAuthCallback(ctx context.Context, cb entity.Callback) error {
	ctx, span := s.startSpan(ctx, "postAuthCallback")
	defer span.End()

	if cb.ClientID == "" || cb.URL == "" {
		return nil
	}

	key := fmt.Sprintf("callback:%s:%s", cb.RequestID, cb.Type)
	err := s.idemp.Exec(ctx, key, func(ctx context.Context) error {
		return s.deliverCallback(ctx, cb)
	})
	if dup := new(idempotency.DuplicateError); errors.As(err, &dup) {
		slog.DebugContext(ctx, "callback already handled", "request_id", cb.RequestID, "type", cb.Type.String(), "state", string(dup.State))
		return nil
	}

	return err
}

func (s *Usecase) deliverCallback(ctx context.Context, cb entity.Callback) error {
	client, err := s.repoDB.GetClient(ctx, cb.ClientID)
	if err != nil {
		return fmt.Errorf("get client %s: %w", cb.ClientID, err)
	}
	if client.AppID == "" {
		return errClientWithoutApp
	}

	app, err := s.repoDB.GetApp(ctx, client.AppID)
	if err != nil {
		return fmt.Errorf("get app %s: %w", client.AppID, err)
	}
	if app.Secret == "" {
		return errAppWithoutSecret
	}

	body, err := CanonicalJSON(cb.Payload)
	if err != nil {
		return err
	}

	signature := s.signer.Sign(app.Secret, cb.URL+string(body))

	return s.repoWebhook.Post(ctx, cb.URL, signature, body)
}

package db

import (
	"context"

	"github.com/shandysiswandi/otpgate/internal/oath/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/sealer"
)

func (s *DB) UpsertApp(ctx context.Context, app entity.App) (err error) {
	ctx, span := s.startSpan(ctx, "UpsertApp")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx,
		`INSERT INTO oath_apps (id, name, url, secret) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, url = EXCLUDED.url, secret = EXCLUDED.secret`,
		app.ID, app.Name, app.URL, app.Secret)
	return s.mapError(err)
}

func (s *DB) CreateClient(ctx context.Context, in entity.Client) (err error) {
	ctx, span := s.startSpan(ctx, "CreateClient")
	defer func() { s.endSpan(span, err) }()

	password, err := s.sealPassword(in.ID, in.Password)
	if err != nil {
		return err
	}

	var appID *string
	if in.AppID != "" {
		appID = &in.AppID
	}

	_, err = s.conn.Exec(ctx,
		`INSERT INTO oath_clients (id, app_id, reg_callback_url, password) VALUES ($1, $2, $3, $4)`,
		in.ID, appID, in.RegCallbackURL, password)
	return s.mapError(err)
}

// CreateKey stores key material provisioned to a device. The secret is
// sealed before it is written.
func (s *DB) CreateKey(ctx context.Context, key entity.Key) (err error) {
	ctx, span := s.startSpan(ctx, "CreateKey")
	defer func() { s.endSpan(span, err) }()

	sealed, err := s.sealer.Seal([]byte(key.Secret), sealer.Scope{Subject: key.ID, Purpose: sealer.PurposeKeyMaterial})
	if err != nil {
		return err
	}

	_, err = s.conn.Exec(ctx,
		`INSERT INTO oath_keys (id, client_id, device_manufacturer, device_serial_no, secret, revision)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		key.ID, key.ClientID, key.DeviceManufacturer, key.DeviceSerialNo, sealed, key.Revision)
	return s.mapError(err)
}

func (s *DB) CreateAuthRequest(ctx context.Context, in entity.AuthRequest) (err error) {
	ctx, span := s.startSpan(ctx, "CreateAuthRequest")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx,
		`INSERT INTO oath_auth_requests (`+authRequestColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		in.ID, in.ClientID, in.Issued, in.Expires, in.OCRASuite, in.Question, in.CallbackURL, in.SignaturePage)
	return s.mapError(err)
}

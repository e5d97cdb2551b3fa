package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shandysiswandi/otpgate/internal/oath/entity"
)

const authRequestColumns = `id, client_id, issued, expires, ocra_suite, question, callback_url, signature_page`

func (s *DB) GetApp(ctx context.Context, id string) (_ *entity.App, err error) {
	ctx, span := s.startSpan(ctx, "GetApp")
	defer func() { s.endSpan(span, err) }()

	var app entity.App
	err = s.conn.QueryRow(ctx,
		`SELECT id, name, url, secret FROM oath_apps WHERE id = $1`, id,
	).Scan(&app.ID, &app.Name, &app.URL, &app.Secret)
	if err != nil {
		return nil, s.mapError(err)
	}

	return &app, nil
}

func (s *DB) GetClient(ctx context.Context, id string) (_ *entity.Client, err error) {
	ctx, span := s.startSpan(ctx, "GetClient")
	defer func() { s.endSpan(span, err) }()

	var (
		client   entity.Client
		appID    *string
		password []byte
	)
	err = s.conn.QueryRow(ctx,
		`SELECT id, app_id, reg_callback_url, password FROM oath_clients WHERE id = $1`, id,
	).Scan(&client.ID, &appID, &client.RegCallbackURL, &password)
	if err != nil {
		return nil, s.mapError(err)
	}

	if appID != nil {
		client.AppID = *appID
	}

	client.Password, err = s.openPassword(client.ID, password)
	if err != nil {
		return nil, err
	}

	return &client, nil
}

func (s *DB) GetAuthRequest(ctx context.Context, id string) (_ *entity.AuthRequest, err error) {
	ctx, span := s.startSpan(ctx, "GetAuthRequest")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx,
		`SELECT `+authRequestColumns+` FROM oath_auth_requests WHERE id = $1`, id)
	if err != nil {
		return nil, s.mapError(err)
	}

	req, err := pgx.CollectExactlyOneRow(rows, scanAuthRequest)
	if err != nil {
		return nil, s.mapError(err)
	}

	return &req, nil
}

func (s *DB) ListKeysByDevice(ctx context.Context, deviceSerialNo string) (_ []entity.Key, err error) {
	ctx, span := s.startSpan(ctx, "ListKeysByDevice")
	defer func() { s.endSpan(span, err) }()

	return s.listKeys(ctx, `WHERE device_serial_no = $1`, deviceSerialNo)
}

func (s *DB) ListKeysByClient(ctx context.Context, clientID string) (_ []entity.Key, err error) {
	ctx, span := s.startSpan(ctx, "ListKeysByClient")
	defer func() { s.endSpan(span, err) }()

	return s.listKeys(ctx, `WHERE client_id = $1`, clientID)
}

func (s *DB) listKeys(ctx context.Context, where string, arg any) ([]entity.Key, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT id, client_id, device_manufacturer, device_serial_no, secret, revision
		FROM oath_keys `+where+` ORDER BY seq`, arg)
	if err != nil {
		return nil, s.mapError(err)
	}

	keys, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.Key, error) {
		var (
			k      entity.Key
			sealed []byte
		)
		if err := row.Scan(&k.ID, &k.ClientID, &k.DeviceManufacturer, &k.DeviceSerialNo, &sealed, &k.Revision); err != nil {
			return entity.Key{}, err
		}

		secret, err := s.openKeySecret(k.ID, sealed)
		if err != nil {
			return entity.Key{}, err
		}
		k.Secret = secret

		return k, nil
	})
	if err != nil {
		return nil, s.mapError(err)
	}

	return keys, nil
}

func (s *DB) ListClientAppIDs(ctx context.Context, clientIDs []string) (_ map[string]string, err error) {
	ctx, span := s.startSpan(ctx, "ListClientAppIDs")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx,
		`SELECT id, app_id FROM oath_clients WHERE id = ANY($1) AND app_id IS NOT NULL`, clientIDs)
	if err != nil {
		return nil, s.mapError(err)
	}
	defer rows.Close()

	result := make(map[string]string, len(clientIDs))
	for rows.Next() {
		var id, appID string
		if err := rows.Scan(&id, &appID); err != nil {
			return nil, err
		}
		result[id] = appID
	}

	return result, rows.Err()
}

func (s *DB) ListAppsByIDs(ctx context.Context, ids []string) (_ []entity.App, err error) {
	ctx, span := s.startSpan(ctx, "ListAppsByIDs")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx,
		`SELECT id, name, url, secret FROM oath_apps WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, s.mapError(err)
	}

	apps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.App, error) {
		var a entity.App
		err := row.Scan(&a.ID, &a.Name, &a.URL, &a.Secret)
		return a, err
	})
	if err != nil {
		return nil, s.mapError(err)
	}

	return apps, nil
}

func (s *DB) ListAuthRequestsByClients(ctx context.Context, clientIDs []string) (_ []entity.AuthRequest, err error) {
	ctx, span := s.startSpan(ctx, "ListAuthRequestsByClients")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx,
		`SELECT `+authRequestColumns+` FROM oath_auth_requests WHERE client_id = ANY($1) ORDER BY seq`, clientIDs)
	if err != nil {
		return nil, s.mapError(err)
	}

	reqs, err := pgx.CollectRows(rows, scanAuthRequest)
	if err != nil {
		return nil, s.mapError(err)
	}

	return reqs, nil
}

func scanAuthRequest(row pgx.CollectableRow) (entity.AuthRequest, error) {
	var r entity.AuthRequest
	err := row.Scan(&r.ID, &r.ClientID, &r.Issued, &r.Expires, &r.OCRASuite, &r.Question, &r.CallbackURL, &r.SignaturePage)
	return r, err
}

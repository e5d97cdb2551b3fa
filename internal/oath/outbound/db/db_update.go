package db

import (
	"context"

	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

func (s *DB) UpdateClientPassword(ctx context.Context, clientID, password string) (err error) {
	ctx, span := s.startSpan(ctx, "UpdateClientPassword")
	defer func() { s.endSpan(span, err) }()

	sealed, err := s.sealPassword(clientID, password)
	if err != nil {
		return err
	}

	tag, err := s.conn.Exec(ctx, `UPDATE oath_clients SET password = $2 WHERE id = $1`, clientID, sealed)
	if err != nil {
		return s.mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return goerror.ErrNotFound
	}

	return nil
}

// SetClientPasswordIfEmpty stores password only when the client has none and
// returns whichever password the client holds afterwards.
func (s *DB) SetClientPasswordIfEmpty(ctx context.Context, clientID, password string) (_ string, err error) {
	ctx, span := s.startSpan(ctx, "SetClientPasswordIfEmpty")
	defer func() { s.endSpan(span, err) }()

	sealed, err := s.sealPassword(clientID, password)
	if err != nil {
		return "", err
	}

	_, err = s.conn.Exec(ctx,
		`UPDATE oath_clients SET password = $2 WHERE id = $1 AND (password IS NULL OR octet_length(password) = 0)`,
		clientID, sealed)
	if err != nil {
		return "", s.mapError(err)
	}

	client, err := s.GetClient(ctx, clientID)
	if err != nil {
		return "", err
	}

	return client.Password, nil
}

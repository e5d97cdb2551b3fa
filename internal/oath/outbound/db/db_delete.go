package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shandysiswandi/otpgate/internal/oath/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

// DeleteAuthRequest removes and returns a request. Concurrent callers race on
// the row; the losers see goerror.ErrNotFound.
func (s *DB) DeleteAuthRequest(ctx context.Context, id string) (_ *entity.AuthRequest, err error) {
	ctx, span := s.startSpan(ctx, "DeleteAuthRequest")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx,
		`DELETE FROM oath_auth_requests WHERE id = $1 RETURNING `+authRequestColumns, id)
	if err != nil {
		return nil, s.mapError(err)
	}

	req, err := pgx.CollectExactlyOneRow(rows, scanAuthRequest)
	if err != nil {
		return nil, s.mapError(err)
	}

	return &req, nil
}

func (s *DB) DeleteExpiredAuthRequests(ctx context.Context, nowMs int64) (_ []entity.AuthRequest, err error) {
	ctx, span := s.startSpan(ctx, "DeleteExpiredAuthRequests")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx,
		`DELETE FROM oath_auth_requests WHERE expires <= $1 RETURNING `+authRequestColumns, nowMs)
	if err != nil {
		return nil, s.mapError(err)
	}

	reqs, err := pgx.CollectRows(rows, scanAuthRequest)
	if err != nil {
		return nil, s.mapError(err)
	}

	return reqs, nil
}

// DeleteClient removes a client. Its keys go with it through the foreign key
// cascade.
func (s *DB) DeleteClient(ctx context.Context, id string) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteClient")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `DELETE FROM oath_clients WHERE id = $1`, id)
	if err != nil {
		return s.mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return goerror.ErrNotFound
	}

	return nil
}

func (s *DB) DeleteKey(ctx context.Context, id string) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteKey")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `DELETE FROM oath_keys WHERE id = $1`, id)
	if err != nil {
		return s.mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return goerror.ErrNotFound
	}

	return nil
}

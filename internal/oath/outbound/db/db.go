package db

import (
	"context"
	_ "embed"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/sealer"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

//go:embed schema.sql
var schema string

type DB struct {
	conn   *pgxpool.Pool
	sealer sealer.Sealer
	ins    instrument.Instrumentation
}

func NewDB(conn *pgxpool.Pool, s sealer.Sealer, ins instrument.Instrumentation) *DB {
	return &DB{
		conn:   conn,
		sealer: s,
		ins:    ins,
	}
}

// Migrate creates the tables when they do not exist yet.
func (s *DB) Migrate(ctx context.Context) (err error) {
	ctx, span := s.startSpan(ctx, "Migrate")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, schema)
	return err
}

// - 23505 unique violation → goerror.ErrConflict
// - 23503 foreign_key_violation → goerror.ErrNotFound
func (s *DB) mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return goerror.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return goerror.ErrConflict
		case "23503":
			return goerror.ErrNotFound
		}
	}

	return err
}

func (s *DB) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("oath.outbound.db").Start(ctx, name)
}

func (s *DB) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) && !errors.Is(err, goerror.ErrConflict) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *DB) sealPassword(clientID, password string) ([]byte, error) {
	if password == "" {
		return nil, nil
	}
	return s.sealer.Seal([]byte(password), sealer.Scope{Subject: clientID, Purpose: sealer.PurposeProvisioningPassword})
}

func (s *DB) openPassword(clientID string, sealed []byte) (string, error) {
	if len(sealed) == 0 {
		return "", nil
	}
	b, err := s.sealer.Open(sealed, sealer.Scope{Subject: clientID, Purpose: sealer.PurposeProvisioningPassword})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *DB) openKeySecret(keyID string, sealed []byte) (string, error) {
	b, err := s.sealer.Open(sealed, sealer.Scope{Subject: keyID, Purpose: sealer.PurposeKeyMaterial})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

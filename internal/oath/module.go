package oath

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/otpgate/internal/oath/entity"
	"github.com/shandysiswandi/otpgate/internal/oath/inbound"
	"github.com/shandysiswandi/otpgate/internal/oath/outbound/db"
	"github.com/shandysiswandi/otpgate/internal/oath/outbound/memdb"
	"github.com/shandysiswandi/otpgate/internal/oath/outbound/push"
	"github.com/shandysiswandi/otpgate/internal/oath/outbound/webhook"
	"github.com/shandysiswandi/otpgate/internal/oath/tracker"
	"github.com/shandysiswandi/otpgate/internal/oath/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/otp"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
	"github.com/shandysiswandi/otpgate/internal/pkg/sealer"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

var (
	ErrDBConnRequired = errors.New("oath: postgres store needs a database connection")
	ErrUnknownStore   = errors.New("oath: unknown store")
	ErrInvalidAppSeed = errors.New("oath: app seed must be id;name;host;secret")
)

type Dependency struct {
	DBConn      *pgxpool.Pool
	Sealer      sealer.Sealer              `validate:"required"`
	Goroutine   goroutine.Runner           `validate:"required"`
	Router      *router.Router             `validate:"required"`
	Idempotency idempotency.Idempotency    `validate:"required"`
	Messaging   messaging.Publisher        `validate:"required"`
	Config      config.Config              `validate:"required"`
	Instrument  instrument.Instrumentation `validate:"required"`
	UUID        uid.StringID               `validate:"required"`
	OID         uid.StringID               `validate:"required"`
	Signer      *hash.Signer               `validate:"required"`
	OCRA        otp.Generator              `validate:"required"`
	Clock       clock.Clocker              `validate:"required"`
	Validator   validator.Validator        `validate:"required"`
}

type store interface {
	UpsertApp(ctx context.Context, app entity.App) error
}

func New(ctx context.Context, dep Dependency) (*usecase.Usecase, error) {
	if err := dep.Validator.Validate(dep); err != nil {
		return nil, err
	}

	var repoDB store

	trk := tracker.New()
	ucDep := usecase.Dependency{
		RepoPush:    push.New(dep.Messaging, dep.Instrument, dep.Config.GetString("modules.oath.push_prefix")),
		RepoWebhook: webhook.New(nil, dep.Instrument),
		Idempotency: dep.Idempotency,
		Validator:   dep.Validator,
		Config:      dep.Config,
		Signer:      dep.Signer,
		OCRA:        dep.OCRA,
		UUID:        dep.UUID,
		OID:         dep.OID,
		Clock:       dep.Clock,
		Instrument:  dep.Instrument,
		Goroutine:   dep.Goroutine,
		Tracker:     trk,
	}

	switch driver := strings.TrimSpace(dep.Config.GetString("modules.oath.store")); driver {
	case StorePostgres:
		if dep.DBConn == nil {
			return nil, ErrDBConnRequired
		}
		pg := db.NewDB(dep.DBConn, dep.Sealer, dep.Instrument)
		if err := pg.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate oath store: %w", err)
		}
		ucDep.RepoDB = pg
		repoDB = pg
	case StoreMemory, "":
		mem := memdb.New()
		ucDep.RepoDB = mem
		repoDB = mem
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStore, driver)
	}

	apps, err := parseAppSeeds(dep.Config.GetArray("modules.oath.apps"))
	if err != nil {
		return nil, err
	}
	for _, app := range apps {
		if err := repoDB.UpsertApp(ctx, app); err != nil {
			return nil, fmt.Errorf("seed app %s: %w", app.ID, err)
		}
		slog.InfoContext(ctx, "app seeded", "app_id", app.ID, "name", app.Name)
	}

	uc := usecase.New(ucDep)

	inbound.RegisterHTTPEndpoint(dep.Router, uc, router.Signature(uc, dep.Signer, dep.Config), dep.Config)

	return uc, nil
}

// parseAppSeeds reads apps declared in configuration as "id;name;host;secret".
func parseAppSeeds(raw []string) ([]entity.App, error) {
	apps := make([]entity.App, 0, len(raw))
	for _, line := range raw {
		parts := strings.Split(line, ";")
		if len(parts) != 4 {
			return nil, ErrInvalidAppSeed
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if parts[0] == "" || parts[3] == "" {
			return nil, ErrInvalidAppSeed
		}
		apps = append(apps, entity.App{ID: parts[0], Name: parts[1], URL: parts[2], Secret: parts[3]})
	}
	return apps, nil
}

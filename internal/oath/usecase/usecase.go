package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"github.com/shandysiswandi/otpgate/internal/oath/entity"
	"github.com/shandysiswandi/otpgate/internal/oath/tracker"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/otp"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
	"go.opentelemetry.io/otel/trace"
)

type repoDB interface {
	GetApp(ctx context.Context, id string) (*entity.App, error)
	GetClient(ctx context.Context, id string) (*entity.Client, error)
	GetAuthRequest(ctx context.Context, id string) (*entity.AuthRequest, error)

	ListKeysByDevice(ctx context.Context, deviceSerialNo string) ([]entity.Key, error)
	ListKeysByClient(ctx context.Context, clientID string) ([]entity.Key, error)
	ListClientAppIDs(ctx context.Context, clientIDs []string) (map[string]string, error)
	ListAppsByIDs(ctx context.Context, ids []string) ([]entity.App, error)
	ListAuthRequestsByClients(ctx context.Context, clientIDs []string) ([]entity.AuthRequest, error)

	CreateClient(ctx context.Context, in entity.Client) error
	CreateAuthRequest(ctx context.Context, in entity.AuthRequest) error
	UpdateClientPassword(ctx context.Context, clientID, password string) error
	SetClientPasswordIfEmpty(ctx context.Context, clientID, password string) (string, error)

	DeleteAuthRequest(ctx context.Context, id string) (*entity.AuthRequest, error)
	DeleteExpiredAuthRequests(ctx context.Context, nowMs int64) ([]entity.AuthRequest, error)
	DeleteClient(ctx context.Context, id string) error
	DeleteKey(ctx context.Context, id string) error
}

type repoPush interface {
	Publish(ctx context.Context, msg entity.Push) error
}

type repoWebhook interface {
	Post(ctx context.Context, url, signature string, body []byte) error
}

type Usecase struct {
	repoDB      repoDB
	repoPush    repoPush
	repoWebhook repoWebhook
	idemp       idempotency.Idempotency
	validator   validator.Validator
	cfg         config.Config
	signer      *hash.Signer
	ocra        otp.Generator
	uuid        uid.StringID
	oid         uid.StringID
	clock       clock.Clocker
	ins         instrument.Instrumentation
	goroutine   goroutine.Runner
	tracker     *tracker.Tracker
}

type Dependency struct {
	RepoDB      repoDB
	RepoPush    repoPush
	RepoWebhook repoWebhook
	Idempotency idempotency.Idempotency
	Validator   validator.Validator
	Config      config.Config
	Signer      *hash.Signer
	OCRA        otp.Generator
	UUID        uid.StringID
	OID         uid.StringID
	Clock       clock.Clocker
	Instrument  instrument.Instrumentation
	Goroutine   goroutine.Runner
	Tracker     *tracker.Tracker
}

func New(dep Dependency) *Usecase {
	return &Usecase{
		repoDB:      dep.RepoDB,
		repoPush:    dep.RepoPush,
		repoWebhook: dep.RepoWebhook,
		idemp:       dep.Idempotency,
		validator:   dep.Validator,
		cfg:         dep.Config,
		signer:      dep.Signer,
		ocra:        dep.OCRA,
		uuid:        dep.UUID,
		oid:         dep.OID,
		clock:       dep.Clock,
		ins:         dep.Instrument,
		goroutine:   dep.Goroutine,
		tracker:     dep.Tracker,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("oath.usecase").Start(ctx, name)
}

// defaultExpiryMs applies when a create request omits expiry_ms.
func (s *Usecase) defaultExpiryMs() int64 {
	if d := s.cfg.GetMillisecond("modules.oath.default_expiry_ms"); d > 0 {
		return min(d.Milliseconds(), entity.MaxExpiryMs)
	}
	return entity.DefaultExpiryMs
}

func (s *Usecase) strictMode() bool {
	return s.cfg.GetBool("app.strict_mode")
}

// parseCallbackURL validates the shape of a callback URL. In strict mode only
// https is accepted.
func (s *Usecase) parseCallbackURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, goerror.NewInvalidFormat("Invalid callback URL.")
	}

	if s.strictMode() && u.Scheme != "https" {
		return nil, goerror.NewInvalidFormat("Callback URL must be secure (HTTPS)")
	}

	return u, nil
}

// onRegisteredHost reports whether u points at the app's registered
// host[:port].
func onRegisteredHost(u *url.URL, app *entity.App) bool {
	host := u.Hostname()
	if port := u.Port(); port != "" {
		host += ":" + port
	}

	return host == app.URL
}

// clientOfApp loads a client and its app, requiring the client to belong to
// appID.
func (s *Usecase) clientOfApp(ctx context.Context, appID, clientID string) (*entity.Client, *entity.App, error) {
	client, err := s.repoDB.GetClient(ctx, clientID)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, nil, goerror.NewInvalidFormat("Client not found.")
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get client", "client_id", clientID, "error", err)
		return nil, nil, goerror.NewServer(err)
	}

	if client.AppID == "" {
		slog.ErrorContext(ctx, "client has no app", "client_id", clientID)
		return nil, nil, goerror.NewBusiness("Client is not connected to an app.", goerror.CodeInternal)
	}

	if client.AppID != appID {
		slog.WarnContext(ctx, "client belongs to another app", "client_id", clientID, "app_id", appID)
		return nil, nil, goerror.NewInvalidFormat("Client not found.")
	}

	app, err := s.repoDB.GetApp(ctx, client.AppID)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "client app is missing", "client_id", clientID, "app_id", client.AppID)
		return nil, nil, goerror.NewBusiness("Client app not found.", goerror.CodeInternal)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get app", "app_id", client.AppID, "error", err)
		return nil, nil, goerror.NewServer(err)
	}

	return client, app, nil
}

// Close stops pending expiry timers.
func (s *Usecase) Close() error {
	return s.tracker.Close()
}

package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/otpgate/internal/oath/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/cache"
	"github.com/shandysiswandi/otpgate/internal/pkg/certkey"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/otp"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
	"github.com/shandysiswandi/otpgate/internal/pkg/rsakey"
	"github.com/shandysiswandi/otpgate/internal/pkg/sealer"
	"github.com/shandysiswandi/otpgate/internal/pkg/storage"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

// App owns every long lived dependency and the HTTP server.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	config config.Config
	ins    instrument.Instrumentation

	// libraries
	goroutine *goroutine.Manager
	validator validator.Validator
	clock     clock.Clocker
	signer    *hash.Signer
	oid       uid.StringID
	uuid      uid.StringID
	ocra      otp.Generator
	sealer    sealer.Sealer

	// resources
	dbConn     *pgxpool.Pool
	cache      cache.Cache
	idemp      idempotency.Idempotency
	messaging  messaging.Publisher
	storage    storage.Storage
	decrypter  *rsakey.Decrypter
	keyDeriver *certkey.Deriver

	// modules
	oath *usecase.Usecase

	// server
	router     *router.Router
	httpServer *http.Server

	// released in reverse registration order by Stop
	closers []closer
}

type closer struct {
	name string
	fn   func(context.Context) error
}

// New wires every dependency and exits the process when one cannot start.
func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{ctx: ctx, cancel: cancel}

	for _, step := range []func(){
		app.initConfig,
		app.initInstrument,
		app.initLibraries,
		app.initDatabase,
		app.initCache,
		app.initStorage,
		app.initMessaging,
		app.initCrypto,
		app.initHTTPServer,
		app.initModules,
	} {
		step()
	}

	return app
}

// onClose registers a shutdown step. Later registrations run first.
func (a *App) onClose(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// fatal logs and exits. Only used while wiring, before the server starts.
func fatal(msg string, err error, attrs ...any) {
	slog.Error(msg, append([]any{"error", err}, attrs...)...)
	os.Exit(1)
}

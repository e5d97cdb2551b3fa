package app

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/otpgate/internal/oath"
	"github.com/shandysiswandi/otpgate/internal/pkg/cache"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/otp"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
	"github.com/shandysiswandi/otpgate/internal/pkg/sealer"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

const pingTimeout = 5 * time.Second

// configPath is CONFIG_PATH, else ./config/config.yaml when LOCAL=true, else
// the container mount.
func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	if os.Getenv("LOCAL") == "true" {
		return "./config/config.yaml"
	}
	return "/config/config.yaml"
}

func (a *App) initConfig() {
	cfg, err := config.NewViper(configPath())
	if err != nil {
		fatal("failed to load config", err, "path", configPath())
	}

	if tz := cfg.GetString("app.tz"); tz != "" {
		//nolint:errcheck,gosec // TZ is advisory
		os.Setenv("TZ", tz)
	}

	a.config = cfg
	a.onClose("config", func(context.Context) error { return cfg.Close() })
}

func (a *App) initInstrument() {
	ins, err := instrument.New(a.ctx, &instrument.Config{
		Enabled:          a.config.GetBool("instrument.enabled"),
		ServiceName:      a.config.GetString("instrument.service_name"),
		ServiceVersion:   a.config.GetString("instrument.service_version"),
		Environment:      a.config.GetString("instrument.env"),
		OTLPEndpoint:     a.config.GetString("instrument.otlp_endpoint"),
		OTLPSecure:       a.config.GetBool("instrument.otlp_secure"),
		TraceSampleRatio: a.config.GetFloat64("instrument.trace_sample_ratio"),
		MetricsInterval:  a.config.GetSecond("instrument.metric_interval_seconds"),
		MaskFields:       a.config.GetArray("instrument.log_mask_fields"),
	})
	if err != nil {
		fatal("failed to init instrumentation", err)
	}

	a.ins = ins
	a.onClose("instrument", ins.Shutdown)
}

func (a *App) initLibraries() {
	a.clock = clock.New()
	a.uuid = uid.NewUUID()
	a.goroutine = goroutine.NewManager(a.config.GetInt("app.server.max_goroutine"))
	a.signer = hash.NewSigner()
	a.ocra = otp.NewOCRA()

	v, err := validator.NewV10Validator()
	if err != nil {
		fatal("failed to init validator", err)
	}
	a.validator = v

	oid, err := uid.NewObjectIDGenerator()
	if err != nil {
		fatal("failed to init client id generator", err)
	}
	a.oid = oid

	keys, err := sealer.NewStaticKeyProvider(a.config.GetString("crypto.sealer.secret"))
	if err != nil {
		fatal("failed to init sealer key", err)
	}
	a.sealer = sealer.NewAESGCM(keys)
}

// initDatabase connects only when the oath store is postgres.
func (a *App) initDatabase() {
	if strings.TrimSpace(a.config.GetString("modules.oath.store")) != oath.StorePostgres {
		return
	}

	pc, err := pgxpool.ParseConfig(a.config.GetString("database.url"))
	if err != nil {
		fatal("invalid database.url", err)
	}
	pc.MaxConns = a.config.GetInt32("database.pool.max_conns")
	pc.MinConns = a.config.GetInt32("database.pool.min_conns")
	pc.MaxConnLifetime = a.config.GetSecond("database.pool.max_conn_lifetime_seconds")
	pc.MaxConnIdleTime = a.config.GetSecond("database.pool.max_conn_idle_seconds")
	pc.HealthCheckPeriod = a.config.GetSecond("database.pool.health_check_period_seconds")

	pool, err := pgxpool.NewWithConfig(a.ctx, pc)
	if err != nil {
		fatal("failed to create database pool", err)
	}

	// compose may start postgres after us
	backoff := retry.WithMaxRetries(uint64(max(a.config.GetInt("database.connect_retries"), 0)),
		retry.WithCappedDuration(5*time.Second, retry.NewFibonacci(200*time.Millisecond)))

	err = retry.Do(a.ctx, backoff, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()

		if err := pool.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		fatal("database unreachable", err)
	}

	a.dbConn = pool
	a.onClose("database", func(context.Context) error {
		pool.Close()
		return nil
	})
}

// initCache builds the cache behind idempotency marks and the certificate
// modulus cache. Closing the redis cache closes its client.
func (a *App) initCache() {
	driver := strings.TrimSpace(a.config.GetString("cache.driver"))

	var rdb *redis.Client
	if strings.EqualFold(driver, cache.DriverRedis) {
		opt, err := redis.ParseURL(a.config.GetString("redis.url"))
		if err != nil {
			fatal("invalid redis.url", err)
		}
		rdb = redis.NewClient(opt)

		ctx, cancel := context.WithTimeout(a.ctx, pingTimeout)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			fatal("redis unreachable", err)
		}
	}

	c, err := cache.New(cache.Config{
		Driver: driver,
		Redis:  rdb,
		Prefix: a.config.GetString("cache.prefix"),
	})
	if err != nil {
		fatal("failed to init cache", err, "driver", driver)
	}

	a.cache = c
	a.idemp = idempotency.New(c)
	a.onClose("cache", func(context.Context) error { return c.Close() })
}

func (a *App) initHTTPServer() {
	a.router = router.NewRouter(router.Config{
		Config:     a.config,
		UUID:       a.uuid,
		Instrument: a.ins,
	})

	a.router.GET("/health", func(*router.Request) (any, error) {
		return map[string]string{"status": "ok"}, nil
	})

	handler := cors.New(cors.Options{
		AllowedOrigins:   a.config.GetArray("app.server.cors"),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{router.HeaderCorrelationID},
		AllowCredentials: true,
	}).Handler(a.router)

	a.httpServer = &http.Server{
		Addr:              a.config.GetString("app.server.http.address"),
		Handler:           handler,
		ReadTimeout:       a.config.GetSecond("app.server.http.read_timeout_seconds"),
		ReadHeaderTimeout: a.config.GetSecond("app.server.http.read_header_timeout_seconds"),
		WriteTimeout:      a.config.GetSecond("app.server.http.write_timeout_seconds"),
		IdleTimeout:       a.config.GetSecond("app.server.http.idle_timeout_seconds"),
	}
}

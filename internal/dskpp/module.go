package dskpp

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/certkey"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
	"github.com/shandysiswandi/otpgate/internal/pkg/rsakey"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// Path is where devices post their DSKPP messages.
	Path = "/dskpp"

	defaultIterations = 100
	defaultTimeout    = 30 * time.Second
)

var ErrUpstreamRequired = errors.New("dskpp: modules.dskpp.upstream_url is required")

type Dependency struct {
	Router       *router.Router             `validate:"required"`
	Config       config.Config              `validate:"required"`
	Instrument   instrument.Instrumentation `validate:"required"`
	Validator    validator.Validator        `validate:"required"`
	Decrypter    *rsakey.Decrypter          `validate:"required"`
	Deriver      *certkey.Deriver           `validate:"required"`
	Provisioning provisioning               `validate:"required"`
}

// New registers the forwarder when the module is enabled. A disabled module
// registers nothing.
func New(dep Dependency) error {
	if !dep.Config.GetBool("modules.dskpp.enabled") {
		return nil
	}

	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	upstream := strings.TrimSpace(dep.Config.GetString("modules.dskpp.upstream_url"))
	if upstream == "" {
		return ErrUpstreamRequired
	}

	iterations := dep.Config.GetInt("modules.dskpp.iterations")
	if iterations <= 0 {
		iterations = defaultIterations
	}

	timeout := dep.Config.GetSecond("modules.dskpp.timeout_seconds")
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	fwd := NewForwarder(ForwarderConfig{
		UpstreamURL: upstream,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		Decrypter:    dep.Decrypter,
		Deriver:      dep.Deriver,
		Provisioning: dep.Provisioning,
		ErrorWriter:  dep.Router,
		Instrument:   dep.Instrument,
		Hostname:     strings.TrimSpace(dep.Config.GetString("modules.dskpp.cert_hostname")),
		Iterations:   iterations,
	})

	dep.Router.Handle(http.MethodPost, Path, fwd)

	return nil
}

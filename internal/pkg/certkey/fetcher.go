// Package certkey reads the RSA modulus from a host's TLS certificate and
// derives DSKPP MAC keys salted with it.
package certkey

import (
	"context"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/cache"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
)

const (
	// DefaultTimeout bounds a single certificate fetch.
	DefaultTimeout = 30 * time.Second
	defaultPort    = "443"
	cacheKeyPrefix = "certkey:"
)

var (
	ErrTimeout       = errors.New("Request timed out") //nolint:staticcheck,revive // surfaced verbatim to clients
	ErrNotRSA        = errors.New("certkey: certificate key is not RSA")
	ErrNoCertificate = errors.New("certkey: peer sent no certificate")
)

// Config configures a Fetcher.
type Config struct {
	Cache   cache.Cache
	Clock   clock.Clocker
	Timeout time.Duration
	// Port is used when the hostname carries none.
	Port string
	// RootCAs overrides the system pool; nil means system roots.
	RootCAs *x509.CertPool
}

// Fetcher resolves and caches the public modulus of a host's leaf certificate.
type Fetcher struct {
	cache   cache.Cache
	clock   clock.Clocker
	timeout time.Duration
	port    string
	rootCAs *x509.CertPool
}

type cachedModulus struct {
	Modulus  string `json:"modulus"`
	ValidTo  int64  `json:"valid_to"`
	Hostname string `json:"hostname"`
}

// NewFetcher constructs a Fetcher, filling unset fields with defaults.
func NewFetcher(cfg Config) *Fetcher {
	f := &Fetcher{
		cache:   cfg.Cache,
		clock:   cfg.Clock,
		timeout: cfg.Timeout,
		port:    cfg.Port,
		rootCAs: cfg.RootCAs,
	}
	if f.clock == nil {
		f.clock = clock.New()
	}
	if f.timeout <= 0 {
		f.timeout = DefaultTimeout
	}
	if f.port == "" {
		f.port = defaultPort
	}

	return f
}

// Modulus returns the big-endian RSA modulus of hostname's certificate. A
// cached value is served only while the certificate is still valid.
func (f *Fetcher) Modulus(ctx context.Context, hostname string) ([]byte, error) {
	if m, ok := f.lookup(ctx, hostname); ok {
		return m, nil
	}

	cert, err := f.fetch(ctx, hostname)
	if err != nil {
		return nil, err
	}

	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, ErrNotRSA
	}

	modulus := pub.N.Bytes()
	f.store(ctx, hostname, modulus, cert.NotAfter)

	return modulus, nil
}

func (f *Fetcher) fetch(ctx context.Context, hostname string) (*x509.Certificate, error) {
	host, port, err := net.SplitHostPort(hostname)
	if err != nil {
		host, port = hostname, f.port
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			ServerName: host,
			RootCAs:    f.rootCAs,
			MinVersion: tls.VersionTLS12,
		},
	}

	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("certkey: dial %s: %w", hostname, err)
	}
	defer func() { _ = conn.Close() }()

	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return nil, ErrNoCertificate
	}

	certs := tlsConn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return nil, ErrNoCertificate
	}

	return certs[0], nil
}

func (f *Fetcher) lookup(ctx context.Context, hostname string) ([]byte, bool) {
	if f.cache == nil {
		return nil, false
	}

	raw, ok, err := f.cache.Get(ctx, cacheKeyPrefix+hostname)
	if err != nil {
		slog.WarnContext(ctx, "failed to read cached modulus", "hostname", hostname, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var entry cachedModulus
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false
	}
	if f.clock.Now().UnixMilli() >= entry.ValidTo {
		return nil, false
	}

	m, err := hex.DecodeString(entry.Modulus)
	if err != nil || len(m) == 0 {
		return nil, false
	}

	return m, true
}

func (f *Fetcher) store(ctx context.Context, hostname string, modulus []byte, notAfter time.Time) {
	if f.cache == nil {
		return
	}

	ttl := notAfter.Sub(f.clock.Now())
	if ttl <= 0 {
		return
	}

	raw, err := json.Marshal(cachedModulus{
		Modulus:  hex.EncodeToString(modulus),
		ValidTo:  notAfter.UnixMilli(),
		Hostname: hostname,
	})
	if err != nil {
		return
	}

	if err := f.cache.Set(ctx, cacheKeyPrefix+hostname, raw, ttl); err != nil {
		slog.WarnContext(ctx, "failed to cache modulus", "hostname", hostname, "error", err)
	}
}

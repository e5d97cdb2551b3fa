// Package dskpp relays DSKPP provisioning traffic to the key provisioning
// server. When a request names a client and carries its encrypted nonce, the
// MAC key and key material for that client are derived here and handed
// upstream.
package dskpp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/shandysiswandi/otpgate/internal/oath/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/certkey"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"go.opentelemetry.io/otel/codes"
)

const (
	HeaderClientID       = "X-Dskpp-Client-Id"
	HeaderEncryptedNonce = "X-Dskpp-Encrypted-Nonce"
	HeaderMACKey         = "X-Dskpp-Mac-Key"
	HeaderKeyMaterial    = "X-Dskpp-Key-Material"
	HeaderStatus         = "X-Dskpp-Status"

	ContentType = "application/dskpp+xml"

	// KeyMaterialLength is the size of the derived OCRA key in bytes.
	KeyMaterialLength = 32

	statusSuccess = "Success"
)

var keyGenerationLabel = []byte("Key generation")

type decrypter interface {
	Decrypt(ciphertext []byte) ([]byte, error)
}

type deriver interface {
	Derive(ctx context.Context, hostname string, password, clientNonce []byte, iterations int) ([]byte, error)
}

type provisioning interface {
	ProvisioningPassword(ctx context.Context, clientID string) (string, error)
	ClearProvisioningPassword(ctx context.Context, clientID string) error
}

type errorWriter interface {
	WriteError(w http.ResponseWriter, req *http.Request, err error)
}

type Forwarder struct {
	upstream     string
	client       *http.Client
	decrypter    decrypter
	deriver      deriver
	provisioning provisioning
	errWriter    errorWriter
	ins          instrument.Instrumentation
	// hostname whose certificate salts the MAC key; empty means the request host.
	hostname   string
	iterations int
}

type ForwarderConfig struct {
	UpstreamURL  string
	Client       *http.Client
	Decrypter    decrypter
	Deriver      deriver
	Provisioning provisioning
	ErrorWriter  errorWriter
	Instrument   instrument.Instrumentation
	Hostname     string
	Iterations   int
}

func NewForwarder(cfg ForwarderConfig) *Forwarder {
	return &Forwarder{
		upstream:     cfg.UpstreamURL,
		client:       cfg.Client,
		decrypter:    cfg.Decrypter,
		deriver:      cfg.Deriver,
		provisioning: cfg.Provisioning,
		errWriter:    cfg.ErrorWriter,
		ins:          cfg.Instrument,
		hostname:     cfg.Hostname,
		iterations:   cfg.Iterations,
	}
}

func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := f.ins.Tracer("dskpp.forwarder").Start(r.Context(), "Forward")
	defer span.End()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		f.errWriter.WriteError(w, r, goerror.NewInvalidFormat())
		return
	}

	upReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.upstream, bytes.NewReader(body))
	if err != nil {
		slog.ErrorContext(ctx, "failed to build upstream request", "error", err)
		f.errWriter.WriteError(w, r, goerror.NewServer(err))
		return
	}
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = ContentType
	}
	upReq.Header.Set("Content-Type", contentType)
	if cID := instrument.GetCorrelationID(ctx); cID != "" {
		upReq.Header.Set(instrument.CorrelationIDHeader, cID)
	}

	clientID := strings.TrimSpace(r.Header.Get(HeaderClientID))
	encNonce := strings.TrimSpace(r.Header.Get(HeaderEncryptedNonce))
	if clientID != "" && encNonce != "" {
		hostname := f.hostname
		if hostname == "" {
			hostname = (&url.URL{Host: r.Host}).Hostname()
		}

		macKey, keyMaterial, err := f.deriveKeys(ctx, hostname, clientID, encNonce)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			f.errWriter.WriteError(w, r, err)
			return
		}
		upReq.Header.Set(HeaderClientID, clientID)
		upReq.Header.Set(HeaderMACKey, hex.EncodeToString(macKey))
		upReq.Header.Set(HeaderKeyMaterial, hex.EncodeToString(keyMaterial))
	}

	resp, err := f.client.Do(upReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.ErrorContext(ctx, "failed to reach dskpp upstream", "error", err)
		f.errWriter.WriteError(w, r, goerror.NewServer(err))
		return
	}
	defer resp.Body.Close()

	success := resp.StatusCode >= 200 && resp.StatusCode <= 299 && resp.Header.Get(HeaderStatus) == statusSuccess
	if success && clientID != "" {
		if err := f.provisioning.ClearProvisioningPassword(ctx, clientID); err != nil {
			slog.WarnContext(ctx, "failed to clear provisioning password", "client_id", clientID, "error", err)
		}
	}

	for _, h := range []string{"Content-Type", HeaderStatus} {
		if v := resp.Header.Get(h); v != "" {
			w.Header().Set(h, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		slog.WarnContext(ctx, "failed to relay dskpp response", "error", err)
	}
}

// deriveKeys recovers the client nonce and derives the MAC key and the key
// material the provisioning server must use for clientID.
func (f *Forwarder) deriveKeys(ctx context.Context, hostname, clientID, encNonce string) (macKey, keyMaterial []byte, err error) {
	ct, err := base64.StdEncoding.DecodeString(encNonce)
	if err != nil {
		return nil, nil, goerror.NewInvalidFormat("Invalid encrypted nonce")
	}

	nonce, err := f.decrypter.Decrypt(ct)
	if err != nil {
		slog.WarnContext(ctx, "failed to decrypt client nonce", "client_id", clientID, "error", err)
		return nil, nil, goerror.NewInvalidFormat("Invalid encrypted nonce")
	}

	password, err := f.provisioning.ProvisioningPassword(ctx, clientID)
	if errors.Is(err, usecase.ErrNoProvisioningPassword) {
		return nil, nil, goerror.NewBusiness("Client is not awaiting provisioning", goerror.CodeUnauthorized)
	}
	if err != nil {
		return nil, nil, err
	}

	macKey, err = f.deriver.Derive(ctx, hostname, []byte(password), nonce, f.iterations)
	if errors.Is(err, certkey.ErrTimeout) {
		return nil, nil, goerror.NewBusiness(certkey.ErrTimeout.Error(), goerror.CodeTimeout)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to derive mac key", "client_id", clientID, "hostname", hostname, "error", err)
		return nil, nil, goerror.NewServer(err)
	}

	data := make([]byte, 0, len(keyGenerationLabel)+len(clientID)+len(nonce))
	data = append(data, keyGenerationLabel...)
	data = append(data, clientID...)
	data = append(data, nonce...)

	return macKey, hash.DSKPPPRF(macKey, data, KeyMaterialLength), nil
}

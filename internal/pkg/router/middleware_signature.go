package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
)

const (
	// HeaderAPIKey carries the calling app id.
	HeaderAPIKey = "X-Verid-Apikey"
	// HeaderSignature carries the hex HMAC-SHA256 request signature.
	HeaderSignature = "X-Verid-Signature"
)

// AppSecretFinder resolves an app id to its signing secret. It returns an
// error wrapping goerror.ErrNotFound for unknown apps.
type AppSecretFinder interface {
	FindAppSecret(ctx context.Context, appID string) (string, error)
}

// Origin returns scheme://host[:port] of r as used in signature bases.
// Strict mode forces https and never appends a port; otherwise http is used
// and publicPort, when set, is appended.
func Origin(r *http.Request, strict bool, publicPort string) string {
	host := (&url.URL{Host: r.Host}).Hostname()

	if strict {
		return "https://" + host
	}

	if publicPort = strings.TrimSpace(publicPort); publicPort != "" && publicPort != "0" {
		host += ":" + publicPort
	}
	return "http://" + host
}

// Signature authenticates consumer apps by their HMAC request signature.
//
// A JSON body with a non-empty request_id skips the check; the device
// endpoints that send it authenticate with an OTP instead.
func Signature(finder AppSecretFinder, signer *hash.Signer, cfg config.Config) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body []byte
			if r.Body != nil {
				b, err := io.ReadAll(r.Body)
				if err != nil {
					var maxErr *http.MaxBytesError
					if errors.As(err, &maxErr) {
						writeError(w, "Request body too large", http.StatusRequestEntityTooLarge)
						return
					}
					writeError(w, "Invalid request body", http.StatusBadRequest)
					return
				}
				body = b
				r.Body = io.NopCloser(bytes.NewReader(body))
			}

			if hasRequestID(body) {
				next.ServeHTTP(w, r)
				return
			}

			if !acceptsJSON(r.Header.Get("Accept")) {
				writeError(w, "Not Acceptable", http.StatusNotAcceptable)
				return
			}

			apiKey := r.Header.Get(HeaderAPIKey)
			signature := r.Header.Get(HeaderSignature)
			if apiKey == "" || signature == "" {
				writeError(w, "Missing API key or signature header", http.StatusUnauthorized)
				return
			}

			base := Origin(r, cfg.GetBool("app.strict_mode"), cfg.GetString("app.server.public_port")) + r.RequestURI
			if r.Method == http.MethodPost || r.Method == http.MethodPut {
				base += string(body)
			}

			secret, err := finder.FindAppSecret(r.Context(), apiKey)
			if err != nil {
				if !errors.Is(err, goerror.ErrNotFound) {
					slog.ErrorContext(r.Context(), "failed to find app secret", "app_id", apiKey, "error", err)
				}
				writeError(w, "Invalid API key or signature", http.StatusUnauthorized)
				return
			}

			if !signer.Verify(secret, base, signature) {
				writeError(w, "Invalid API key or signature", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(SetAppID(r.Context(), apiKey)))
		})
	}
}

func hasRequestID(body []byte) bool {
	if len(body) == 0 {
		return false
	}

	var probe struct {
		RequestID any `json:"request_id"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}

	switch v := probe.RequestID.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case bool:
		return v
	case float64:
		return v != 0
	default:
		return true
	}
}

func acceptsJSON(accept string) bool {
	if strings.TrimSpace(accept) == "" {
		return true
	}

	for _, part := range strings.Split(accept, ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		switch mt {
		case "application/json", "application/*", "*/*":
			return true
		}
	}
	return false
}

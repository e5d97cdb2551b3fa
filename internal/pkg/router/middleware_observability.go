package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	maxLoggedBodyBytes  = 32 * 1024
	maxLoggedValueBytes = 256
	masked              = "***"
)

// Bodies of these content types are never captured for logs.
var opaqueContentTypes = []string{"image/", "application/dskpp+xml", "application/octet-stream"}

// Fields summarised instead of logged. Signature pages are base64 documents.
var summarisedFields = map[string]struct{}{"signature_page": {}}

type bodyLogger struct {
	maskKeys map[string]struct{}
}

func newBodyLogger(cfg config.Config) bodyLogger {
	keys := map[string]struct{}{}
	if cfg != nil {
		for _, field := range cfg.GetArray("instrument.log_mask_fields") {
			if field = strings.ToLower(strings.TrimSpace(field)); field != "" {
				keys[field] = struct{}{}
			}
		}
	}
	return bodyLogger{maskKeys: keys}
}

func (l bodyLogger) masks(key string) bool {
	_, ok := l.maskKeys[strings.ToLower(key)]
	return ok
}

func (l bodyLogger) headers(h http.Header) http.Header {
	if len(l.maskKeys) == 0 {
		return h
	}

	out := h.Clone()
	for key := range out {
		if l.masks(key) {
			out.Set(key, masked)
		}
	}
	return out
}

func (l bodyLogger) value(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			switch {
			case l.masks(k):
				out[k] = masked
			case isSummarised(k):
				out[k] = summarise(inner)
			default:
				out[k] = l.value(inner)
			}
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = l.value(inner)
		}
		return out
	case string:
		if len(val) > maxLoggedValueBytes {
			return val[:maxLoggedValueBytes] + "...(truncated)"
		}
		return val
	default:
		return v
	}
}

func isSummarised(key string) bool {
	_, ok := summarisedFields[strings.ToLower(key)]
	return ok
}

func summarise(v any) string {
	if items, ok := v.([]any); ok {
		return fmt.Sprintf("<%d pages>", len(items))
	}
	return "<omitted>"
}

// body renders a captured body for logs. JSON is masked, text is cut at
// maxLoggedBodyBytes and anything else is omitted.
func (l bodyLogger) body(contentType string, raw []byte, capped bool) any {
	if len(raw) == 0 {
		return nil
	}
	if isOpaque(contentType) {
		return fmt.Sprintf("<%s body omitted>", contentType)
	}

	var out any
	var decoded any
	switch {
	case json.Unmarshal(raw, &decoded) == nil:
		out = l.value(decoded)
	case !utf8.Valid(raw):
		out = "<binary body omitted>"
	default:
		out = string(raw)
	}

	if capped {
		return map[string]any{"body": out, "truncated": true}
	}
	return out
}

func isOpaque(contentType string) bool {
	ct := strings.ToLower(contentType)
	for _, prefix := range opaqueContentTypes {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}
	return false
}

// captureRequestBody peeks at most maxLoggedBodyBytes of the request body and
// leaves r.Body readable from the start.
func captureRequestBody(r *http.Request) ([]byte, bool) {
	if r.Body == nil || isOpaque(r.Header.Get("Content-Type")) {
		return nil, false
	}

	//nolint:errcheck // best effort for logging only
	head, _ := io.ReadAll(io.LimitReader(r.Body, maxLoggedBodyBytes+1))
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(head), r.Body))
	if len(head) > maxLoggedBodyBytes {
		return head[:maxLoggedBodyBytes], true
	}
	return head, false
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	body   bytes.Buffer
	capped bool
	err    error
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}

	if !w.capped && !isOpaque(w.Header().Get("Content-Type")) {
		room := maxLoggedBodyBytes - w.body.Len()
		if len(p) > room {
			w.body.Write(p[:room])
			w.capped = true
		} else {
			w.body.Write(p)
		}
	}

	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

func (w *statusRecorder) SetError(err error) {
	w.err = err
}

func (w *statusRecorder) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func matchedRoutePath(r *http.Request) string {
	if pattern := httprouter.ParamsFromContext(r.Context()).MatchedRoutePath(); pattern != "" {
		return pattern
	}
	return r.URL.Path
}

type httpMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func newHTTPMetrics(meter metric.Meter) httpMetrics {
	var m httpMetrics
	var err error

	m.requests, err = meter.Int64Counter("http.server.requests", metric.WithDescription("Number of HTTP requests received"))
	if err != nil {
		slog.Error("failed to create http request counter", "error", err)
	}

	m.duration, err = meter.Float64Histogram("http.server.duration", metric.WithDescription("HTTP request duration in milliseconds"), metric.WithUnit("ms"))
	if err != nil {
		slog.Error("failed to create http duration histogram", "error", err)
	}

	return m
}

func (m httpMetrics) record(ctx context.Context, elapsed time.Duration, attrs []attribute.KeyValue) {
	if m.requests != nil {
		m.requests.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if m.duration != nil {
		m.duration.Record(ctx, float64(elapsed.Milliseconds()), metric.WithAttributes(attrs...))
	}
}

func middlewareObservability(cfg config.Config, ins instrument.Instrumentation) Middleware {
	logs := newBodyLogger(cfg)
	tracer := ins.Tracer("http.server")
	metrics := newHTTPMetrics(ins.Meter("http.server"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := matchedRoutePath(r)
			start := time.Now()

			ctx, span := tracer.Start(r.Context(), r.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.HTTPRouteKey.String(route),
				),
			)
			defer span.End()

			reqBody, reqCapped := captureRequestBody(r)
			slog.InfoContext(ctx, "request received",
				"method", r.Method,
				"path", route,
				"uri", r.RequestURI,
				"headers", logs.headers(r.Header),
				"body", logs.body(r.Header.Get("Content-Type"), reqBody, reqCapped),
			)

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(ctx))

			status := rec.Status()
			elapsed := time.Since(start)
			attrs := []attribute.KeyValue{
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.HTTPRouteKey.String(route),
				semconv.HTTPResponseStatusCodeKey.Int(status),
			}

			if rec.err != nil {
				span.RecordError(rec.err)
			}
			switch {
			case status < http.StatusInternalServerError:
				span.SetStatus(codes.Ok, "")
			case rec.err != nil:
				span.SetStatus(codes.Error, rec.err.Error())
			default:
				span.SetStatus(codes.Error, http.StatusText(status))
			}

			span.SetAttributes(attrs...)
			span.SetAttributes(
				semconv.NetworkProtocolVersionKey.String(r.Proto),
				semconv.ServerAddressKey.String(r.Host),
				attribute.String("http.user_agent", r.UserAgent()),
				attribute.Int("http.response_content_length", rec.bytes),
			)
			metrics.record(ctx, elapsed, attrs)

			slog.InfoContext(ctx, "response sent",
				"method", r.Method,
				"path", route,
				"status", status,
				"bytes", rec.bytes,
				"latency_ms", elapsed.Milliseconds(),
				"body", logs.body(rec.Header().Get("Content-Type"), rec.body.Bytes(), rec.capped),
			)
		})
	}
}

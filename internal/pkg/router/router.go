// Package router serves the JSON API on httprouter. Handlers return a value
// or an error, and the router owns encoding, error rendering and the common
// middleware chain.
package router

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

// Handler returns a JSON encodable value, a Raw, nil for 204, or an error.
type Handler func(r *Request) (any, error)

// Raw is written verbatim, e.g. a QR code PNG.
type Raw struct {
	ContentType string
	Body        []byte
}

type errorBody struct {
	Description string            `json:"description" example:"Client not found."`
	Fields      map[string]string `json:"fields,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type Config struct {
	Config     config.Config
	UUID       uid.StringID // correlation ids for requests without one
	Instrument instrument.Instrumentation
}

type Router struct {
	hr  *httprouter.Router
	mws []Middleware
}

// NewRouter installs, outermost first: panic recovery, client IP, correlation
// id, body limit, logs/traces/metrics and the maintenance switch.
func NewRouter(cfg Config) *Router {
	return &Router{
		hr: &httprouter.Router{
			RedirectTrailingSlash:  true,
			RedirectFixedPath:      true,
			HandleMethodNotAllowed: true,
			HandleOPTIONS:          true,
			SaveMatchedRoutePath:   true,
			NotFound: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				writeError(w, "Endpoint not found", http.StatusNotFound)
			}),
			MethodNotAllowed: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
			}),
		},
		mws: []Middleware{
			middlewareRecoverer,
			middlewareClientIP(cfg.Config),
			middlewareCorrelationID(cfg.UUID),
			middlewareBodyLimit(MaxBodyBytes),
			middlewareObservability(cfg.Config, cfg.Instrument),
			middlewareMaintenance(cfg.Config),
		},
	}
}

func (r *Router) GET(path string, h Handler, mws ...Middleware) {
	r.endpoint(http.MethodGet, path, h, mws)
}

func (r *Router) POST(path string, h Handler, mws ...Middleware) {
	r.endpoint(http.MethodPost, path, h, mws)
}

func (r *Router) DELETE(path string, h Handler, mws ...Middleware) {
	r.endpoint(http.MethodDelete, path, h, mws)
}

// Handle mounts a plain http.Handler behind the common chain. The DSKPP
// relay uses it because it streams upstream responses as they are.
func (r *Router) Handle(method, path string, h http.Handler, mws ...Middleware) {
	r.hr.Handler(method, path, Chain(h, append(r.mws, mws...)...))
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.hr.ServeHTTP(w, req)
}

func (r *Router) endpoint(method, path string, h Handler, mws []Middleware) {
	r.Handle(method, path, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		resp, err := h(&Request{Request: req})
		if err != nil {
			r.WriteError(w, req, err)
			return
		}
		writeResult(w, req, resp)
	}), mws...)
}

// WriteError renders err like an endpoint error and hands it to the
// observability middleware for the span.
func (r *Router) WriteError(w http.ResponseWriter, _ *http.Request, err error) {
	if rec, ok := w.(interface{ SetError(error) }); ok {
		rec.SetError(err)
	}

	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	body := errorBody{Description: gerr.Msg(), Fields: gerr.Fields()}
	if fields := (validator.FieldErrors{}); errors.As(err, &fields) {
		body.Fields = fields.Values()
	}
	writeJSON(w, errorResponse{Error: body}, gerr.StatusCode())
}

func writeResult(w http.ResponseWriter, req *http.Request, resp any) {
	switch v := resp.(type) {
	case nil:
		w.WriteHeader(http.StatusNoContent)
	case Raw:
		w.Header().Set("Content-Type", v.ContentType)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(v.Body); err != nil {
			slog.WarnContext(req.Context(), "failed to write raw response", "error", err)
		}
	default:
		writeJSON(w, v, http.StatusOK)
	}
}

// writeJSON encodes before writing the header so an encoding failure can
// still become a 500.
func writeJSON(w http.ResponseWriter, data any, code int) {
	body, err := json.Marshal(data)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
		body, code = []byte(`{"error":{"description":"Internal server error"}}`), http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, description string, code int) {
	writeJSON(w, errorResponse{Error: errorBody{Description: description}}, code)
}

package router

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

// Request is what a Handler receives.
type Request struct {
	*http.Request
}

// GetParam returns the :name segment matched by the route.
func (r *Request) GetParam(key string) string {
	return httprouter.ParamsFromContext(r.Context()).ByName(key)
}

func (r *Request) GetQuery(key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

// AppID is the caller authenticated by the Signature middleware.
func (r *Request) AppID() string {
	return GetAppID(r.Context())
}

// DecodeBody reads exactly one JSON value into dst. Unknown fields are
// ignored so clients can send attributes this server does not use yet.
func (r *Request) DecodeBody(dst any) error {
	if r == nil || r.Body == nil || r.Body == http.NoBody {
		return goerror.NewInvalidFormat()
	}

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return bodyError(err)
	}

	switch err := dec.Decode(&struct{}{}); {
	case errors.Is(err, io.EOF):
		return nil
	case err != nil:
		return bodyError(err)
	default:
		return goerror.NewInvalidFormat("Request body must hold a single JSON object")
	}
}

func bodyError(err error) error {
	if mbe := new(http.MaxBytesError); errors.As(err, &mbe) {
		return goerror.NewBusiness("Request body too large", goerror.CodeTooLarge)
	}
	return goerror.NewInvalidFormat()
}

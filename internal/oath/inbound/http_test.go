package inbound

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shandysiswandi/otpgate/internal/oath/entity"
	"github.com/shandysiswandi/otpgate/internal/oath/outbound/memdb"
	"github.com/shandysiswandi/otpgate/internal/oath/outbound/push"
	"github.com/shandysiswandi/otpgate/internal/oath/outbound/webhook"
	"github.com/shandysiswandi/otpgate/internal/oath/tracker"
	"github.com/shandysiswandi/otpgate/internal/oath/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/cache"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/otp"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	appID     = "app-1"
	appSecret = "0123456789abcdef0123456789abcdef"
	clientID  = "client-1"
	deviceID  = "device-1"
	keyHex    = "3132333435363738393031323334353637383930313233343536373839303132"
	apiHost   = "api.example"
)

type server struct {
	router *router.Router
	mq     *messaging.Memory
}

func newServer(t *testing.T) *server {
	t.Helper()
	ctx := context.Background()

	cfg, err := config.NewViperFromBytes("yaml", []byte("app:\n  strict_mode: false\n  server:\n    base_path: /oath\n"))
	require.NoError(t, err)
	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	db := memdb.New()
	require.NoError(t, db.UpsertApp(ctx, entity.App{ID: appID, Name: "Bank", URL: "bank.example", Secret: appSecret}))
	require.NoError(t, db.CreateClient(ctx, entity.Client{ID: clientID, AppID: appID}))
	require.NoError(t, db.CreateKey(ctx, entity.Key{ID: "key-1", ClientID: clientID, DeviceSerialNo: deviceID, Secret: keyHex}))

	ins := instrument.NewNoop()
	mq := messaging.NewMemory()
	trk := tracker.New()
	t.Cleanup(func() { _ = trk.Close() })
	signer := hash.NewSigner()

	uc := usecase.New(usecase.Dependency{
		RepoDB:      db,
		RepoPush:    push.New(mq, ins, ""),
		RepoWebhook: webhook.New(nil, ins),
		Idempotency: idempotency.New(cache.NewMemory()),
		Validator:   v,
		Config:      cfg,
		Signer:      signer,
		OCRA:        otp.NewOCRA(),
		UUID:        uid.NewUUID(),
		OID:         uid.NewUUID(),
		Clock:       clock.New(),
		Instrument:  ins,
		Goroutine:   goroutine.NewManager(4),
		Tracker:     trk,
	})

	r := router.NewRouter(router.Config{Config: cfg, UUID: uid.NewUUID(), Instrument: ins})
	RegisterHTTPEndpoint(r, uc, router.Signature(uc, signer, cfg), cfg)

	return &server{router: r, mq: mq}
}

func (s *server) do(t *testing.T, method, target, body string, signed bool) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Host = apiHost
	req.Header.Set("Content-Type", "application/json")
	if signed {
		base := "http://" + apiHost + target
		if method == http.MethodPost {
			base += body
		}
		req.Header.Set(router.HeaderAPIKey, appID)
		req.Header.Set(router.HeaderSignature, hash.NewSigner().Sign(appSecret, base))
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHTTPEndpoint_AuthRequestFlow(t *testing.T) {
	s := newServer(t)

	// create
	rec := s.do(t, http.MethodPost, "/auth_requests", `{"client_id":"client-1","challenge":"hello"}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var created AuthRequestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "auth_request", created.Type)
	assert.Equal(t, "hello", created.Question)
	assert.Equal(t, &AppResponse{ID: appID, Name: "Bank"}, created.App)

	assert.Eventually(t, func() bool { return len(s.mq.Messages(clientID)) == 1 }, time.Second, 10*time.Millisecond)

	// poll
	rec = s.do(t, http.MethodGet, "/auth_requests?device_id="+deviceID, "", false)
	require.Equal(t, http.StatusOK, rec.Code)

	var polled []AuthRequestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &polled))
	require.Len(t, polled, 1)
	assert.Equal(t, created.ID, polled[0].ID)

	// resolve
	code, err := otp.NewOCRA().Generate(otp.Input{Suite: created.OCRASuite, KeyHex: keyHex, Question: "hello"})
	require.NoError(t, err)

	rec = s.do(t, http.MethodPost, "/auth_request/"+created.ID, `{"otp":"`+code+`","device_id":"`+deviceID+`","approve":true}`, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"verified":true}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/auth_request/"+created.ID, `{"otp":"`+code+`","device_id":"`+deviceID+`","approve":true}`, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPEndpoint_SignatureRequired(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/auth_requests", `{"client_id":"client-1"}`, false)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":{"description":"Missing API key or signature header"}}`, rec.Body.String())
}

func TestHTTPEndpoint_PollWithoutDevice(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/auth_requests", "", false)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTPEndpoint_Clients(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/clients", `{"callback_url":"https://bank.example/cb"}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var created ClientResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	rec = s.do(t, http.MethodDelete, "/clients", `{"client_id":"`+created.ID+`"}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"id":"`+created.ID+`"}`, rec.Body.String())
}

func TestHTTPEndpoint_QRCode(t *testing.T) {
	s := newServer(t)
	path := "/qr_code/" + clientID + ".png"
	nonce := "abc123"
	sig := hash.NewSigner().Sign(appSecret, "http://"+apiHost+path+nonce)

	rec := s.do(t, http.MethodGet, path+"?nonce="+nonce+"&signature="+sig, "", false)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))

	rec = s.do(t, http.MethodGet, path+"?nonce="+nonce+"&signature=00", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

package dskpp

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shandysiswandi/otpgate/internal/oath/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/certkey"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/rsakey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testClientID   = "client-1"
	testPassword   = "0a1b2c3d4e5f6a7b"
	testIterations = 10
	testHostname   = "provisioning.example"
)

var testModulus = []byte{0xc0, 0xff, 0xee, 0x01, 0x02}

type fakeFetcher struct {
	err error
}

func (f *fakeFetcher) Modulus(_ context.Context, _ string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return testModulus, nil
}

type fakeProvisioning struct {
	mu        sync.Mutex
	passwords map[string]string
	cleared   []string
}

func (p *fakeProvisioning) ProvisioningPassword(_ context.Context, clientID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pw, ok := p.passwords[clientID]
	if !ok {
		return "", usecase.ErrNoProvisioningPassword
	}
	return pw, nil
}

func (p *fakeProvisioning) ClearProvisioningPassword(_ context.Context, clientID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.passwords, clientID)
	p.cleared = append(p.cleared, clientID)
	return nil
}

type statusWriter struct{}

func (statusWriter) WriteError(w http.ResponseWriter, _ *http.Request, err error) {
	var gerr *goerror.Error
	if errors.As(err, &gerr) {
		http.Error(w, gerr.Msg(), gerr.StatusCode())
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

type upstreamCall struct {
	header http.Header
	body   string
}

type fixture struct {
	pub      *rsa.PublicKey
	prov     *fakeProvisioning
	fetcher  *fakeFetcher
	calls    chan upstreamCall
	status   string
	upstream *httptest.Server
	fwd      *Forwarder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	dec, err := rsakey.NewDecrypter(pemBytes, "")
	require.NoError(t, err)

	f := &fixture{
		pub:     &key.PublicKey,
		prov:    &fakeProvisioning{passwords: map[string]string{testClientID: testPassword}},
		fetcher: &fakeFetcher{},
		calls:   make(chan upstreamCall, 4),
		status:  statusSuccess,
	}

	f.upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.calls <- upstreamCall{header: r.Header.Clone(), body: string(body)}
		w.Header().Set("Content-Type", ContentType)
		w.Header().Set(HeaderStatus, f.status)
		_, _ = io.WriteString(w, "<KeyProvServerFinished/>")
	}))
	t.Cleanup(f.upstream.Close)

	f.fwd = NewForwarder(ForwarderConfig{
		UpstreamURL:  f.upstream.URL,
		Client:       f.upstream.Client(),
		Decrypter:    dec,
		Deriver:      certkey.NewDeriver(f.fetcher),
		Provisioning: f.prov,
		ErrorWriter:  statusWriter{},
		Instrument:   instrument.NewNoop(),
		Hostname:     testHostname,
		Iterations:   testIterations,
	})

	return f
}

func (f *fixture) encryptNonce(t *testing.T, nonce []byte) string {
	t.Helper()

	ct, err := rsa.EncryptPKCS1v15(rand.Reader, f.pub, nonce)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(ct)
}

func (f *fixture) post(headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, Path, strings.NewReader("<KeyProvClientHello/>"))
	req.Header.Set("Content-Type", ContentType)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.fwd.ServeHTTP(rec, req)
	return rec
}

func TestForwarder_PlainRelay(t *testing.T) {
	f := newFixture(t)

	rec := f.post(nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<KeyProvServerFinished/>", rec.Body.String())
	assert.Equal(t, ContentType, rec.Header().Get("Content-Type"))

	call := <-f.calls
	assert.Equal(t, "<KeyProvClientHello/>", call.body)
	assert.Empty(t, call.header.Get(HeaderMACKey))
	assert.Empty(t, f.prov.cleared)
}

func TestForwarder_DerivesKeys(t *testing.T) {
	// Arrange
	f := newFixture(t)
	nonce := []byte("0123456789abcdef")

	mac := hash.PBKDF2([]byte(testPassword), append(append([]byte{}, nonce...), testModulus...), testIterations, certkey.KeyLength, sha256.New)
	material := hash.DSKPPPRF(mac, append(append([]byte("Key generation"), testClientID...), nonce...), KeyMaterialLength)

	// Act
	rec := f.post(map[string]string{
		HeaderClientID:       testClientID,
		HeaderEncryptedNonce: f.encryptNonce(t, nonce),
	})

	// Assert
	require.Equal(t, http.StatusOK, rec.Code)
	call := <-f.calls
	assert.Equal(t, hex.EncodeToString(mac), call.header.Get(HeaderMACKey))
	assert.Equal(t, hex.EncodeToString(material), call.header.Get(HeaderKeyMaterial))
	assert.Len(t, material, KeyMaterialLength)
	assert.Equal(t, testClientID, call.header.Get(HeaderClientID))
	assert.Equal(t, []string{testClientID}, f.prov.cleared)
}

func TestForwarder_KeepsPasswordUntilSuccess(t *testing.T) {
	f := newFixture(t)
	f.status = "Abort"

	rec := f.post(map[string]string{
		HeaderClientID:       testClientID,
		HeaderEncryptedNonce: f.encryptNonce(t, []byte("nonce")),
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Abort", rec.Header().Get(HeaderStatus))
	assert.Empty(t, f.prov.cleared)
}

func TestForwarder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *fixture) map[string]string
		code    int
		message string
	}{
		{
			name: "nonce not base64",
			setup: func(*fixture) map[string]string {
				return map[string]string{HeaderClientID: testClientID, HeaderEncryptedNonce: "%%%"}
			},
			code:    http.StatusBadRequest,
			message: "Invalid encrypted nonce",
		},
		{
			name: "nonce not decryptable",
			setup: func(*fixture) map[string]string {
				return map[string]string{
					HeaderClientID:       testClientID,
					HeaderEncryptedNonce: base64.StdEncoding.EncodeToString([]byte("garbage")),
				}
			},
			code:    http.StatusBadRequest,
			message: "Invalid encrypted nonce",
		},
		{
			name: "client not provisioning",
			setup: func(f *fixture) map[string]string {
				return map[string]string{HeaderClientID: "other", HeaderEncryptedNonce: f.encryptNonce(t, []byte("n"))}
			},
			code:    http.StatusUnauthorized,
			message: "Client is not awaiting provisioning",
		},
		{
			name: "certificate fetch timeout",
			setup: func(f *fixture) map[string]string {
				f.fetcher.err = certkey.ErrTimeout
				return map[string]string{HeaderClientID: testClientID, HeaderEncryptedNonce: f.encryptNonce(t, []byte("n"))}
			},
			code:    http.StatusRequestTimeout,
			message: "Request timed out",
		},
		{
			name: "certificate fetch failure",
			setup: func(f *fixture) map[string]string {
				f.fetcher.err = certkey.ErrNotRSA
				return map[string]string{HeaderClientID: testClientID, HeaderEncryptedNonce: f.encryptNonce(t, []byte("n"))}
			},
			code: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			rec := f.post(tt.setup(f))

			assert.Equal(t, tt.code, rec.Code)
			if tt.message != "" {
				assert.Contains(t, rec.Body.String(), tt.message)
			}
			assert.Empty(t, f.calls)
			assert.Empty(t, f.prov.cleared)
		})
	}
}

func TestForwarder_UpstreamDown(t *testing.T) {
	f := newFixture(t)
	f.upstream.Close()

	rec := f.post(nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

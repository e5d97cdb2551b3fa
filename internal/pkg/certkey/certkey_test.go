package certkey

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/pbkdf2"

	"github.com/shandysiswandi/otpgate/internal/pkg/cache"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
)

func newTLSServer(t *testing.T) (*httptest.Server, *x509.CertPool, []byte) {
	t.Helper()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())

	pub, ok := srv.Certificate().PublicKey.(*rsa.PublicKey)
	require.True(t, ok)

	return srv, pool, pub.N.Bytes()
}

func TestFetcher_Modulus(t *testing.T) {
	srv, pool, want := newTLSServer(t)
	addr := srv.Listener.Addr().String()

	store, err := cache.New(cache.Config{})
	require.NoError(t, err)
	clk := clock.NewManual(time.Now())

	f := NewFetcher(Config{Cache: store, Clock: clk, RootCAs: pool, Timeout: 5 * time.Second})

	got, err := f.Modulus(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	t.Run("ServedFromCacheWhileValid", func(t *testing.T) {
		srv.Close()

		got, err := f.Modulus(context.Background(), addr)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("RefetchedAfterNotAfter", func(t *testing.T) {
		clk.Set(srv.Certificate().NotAfter.Add(time.Second))

		_, err := f.Modulus(context.Background(), addr)
		assert.Error(t, err)
	})
}

func TestFetcher_UntrustedCertificate(t *testing.T) {
	srv, _, _ := newTLSServer(t)

	f := NewFetcher(Config{Timeout: 5 * time.Second})
	_, err := f.Modulus(context.Background(), srv.Listener.Addr().String())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestFetcher_Timeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	// accept and stay silent so the handshake never completes
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		<-done
		_ = conn.Close()
	}()

	f := NewFetcher(Config{Timeout: 100 * time.Millisecond})
	_, err = f.Modulus(context.Background(), ln.Addr().String())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, "Request timed out", err.Error())
}

type staticModulus struct {
	modulus []byte
	err     error
}

func (s staticModulus) Modulus(context.Context, string) ([]byte, error) {
	return s.modulus, s.err
}

func TestDeriver_Derive(t *testing.T) {
	modulus := []byte{0xBB, 0x99, 0x69, 0xA9}
	nonce := []byte{0x01, 0x02, 0x03}
	password := []byte("provisioning-password")

	d := NewDeriver(staticModulus{modulus: modulus})

	got, err := d.Derive(context.Background(), "verid.example.com", password, nonce, 1000)
	require.NoError(t, err)
	assert.Len(t, got, KeyLength)

	want := pbkdf2.Key(password, []byte{0x01, 0x02, 0x03, 0xBB, 0x99, 0x69, 0xA9}, 1000, 16, sha256.New)
	assert.Equal(t, want, got)

	_, err = d.Derive(context.Background(), "h", password, nonce, 0)
	assert.ErrorIs(t, err, ErrInvalidIterations)

	boom := errors.New("boom")
	_, err = NewDeriver(staticModulus{err: boom}).Derive(context.Background(), "h", password, nonce, 1)
	assert.ErrorIs(t, err, boom)
}

func TestDeriver_WithFetcher(t *testing.T) {
	srv, pool, modulus := newTLSServer(t)
	d := NewDeriver(NewFetcher(Config{RootCAs: pool, Timeout: 5 * time.Second}))

	got, err := d.Derive(context.Background(), srv.Listener.Addr().String(), []byte("pw"), []byte("nonce"), 10)
	require.NoError(t, err)

	salt := append([]byte("nonce"), modulus...)
	assert.Equal(t, pbkdf2.Key([]byte("pw"), salt, 10, 16, sha256.New), got)
}

package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/otpgate/internal/oath/entity"
	"github.com/shandysiswandi/otpgate/internal/oath/outbound/memdb"
	"github.com/shandysiswandi/otpgate/internal/oath/tracker"
	"github.com/shandysiswandi/otpgate/internal/pkg/cache"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/otp"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
	"github.com/stretchr/testify/require"
)

const (
	testAppID     = "app-1"
	testAppSecret = "a1b2c3d4e5f60718293a4b5c6d7e8f90"
	testClientID  = "client-1"
	testDevice    = "device-1"
	testKeyHex    = "3132333435363738393031323334353637383930313233343536373839303132"
)

type sentCallback struct {
	URL       string
	Signature string
	Body      map[string]string
}

type recorder struct {
	mu        sync.Mutex
	pushes    []entity.Push
	callbacks []sentCallback
}

func (r *recorder) Publish(_ context.Context, msg entity.Push) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pushes = append(r.pushes, msg)
	return nil
}

func (r *recorder) Post(_ context.Context, url, signature string, body []byte) error {
	var payload map[string]string
	if err := json.Unmarshal(body, &payload); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.callbacks = append(r.callbacks, sentCallback{URL: url, Signature: signature, Body: payload})
	return nil
}

func (r *recorder) Pushes() []entity.Push {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]entity.Push(nil), r.pushes...)
}

func (r *recorder) Callbacks() []sentCallback {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]sentCallback(nil), r.callbacks...)
}

type syncRunner struct{}

func (syncRunner) Go(ctx context.Context, f func(ctx context.Context) error) {
	_ = f(ctx)
}

type fixture struct {
	uc    *Usecase
	db    *memdb.MemDB
	rec   *recorder
	clock *clock.Manual
}

func newFixture(t *testing.T, strict bool) *fixture {
	t.Helper()

	yaml := "app:\n  strict_mode: false\n  server:\n    base_path: /oath\n"
	if strict {
		yaml = "app:\n  strict_mode: true\n  server:\n    base_path: /oath\n"
	}
	cfg, err := config.NewViperFromBytes("yaml", []byte(yaml))
	require.NoError(t, err)

	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	db := memdb.New()
	rec := &recorder{}
	clk := clock.NewManual(time.UnixMilli(1_700_000_000_000))
	trk := tracker.New()
	t.Cleanup(func() { _ = trk.Close() })

	ctx := context.Background()
	require.NoError(t, db.UpsertApp(ctx, entity.App{ID: testAppID, Name: "Bank", URL: "bank.example", Secret: testAppSecret}))
	require.NoError(t, db.CreateClient(ctx, entity.Client{ID: testClientID, AppID: testAppID}))
	require.NoError(t, db.CreateKey(ctx, entity.Key{ID: "key-1", ClientID: testClientID, DeviceSerialNo: testDevice, Secret: testKeyHex}))

	uc := New(Dependency{
		RepoDB:      db,
		RepoPush:    rec,
		RepoWebhook: rec,
		Idempotency: idempotency.New(cache.NewMemory()),
		Validator:   v,
		Config:      cfg,
		Signer:      hash.NewSigner(),
		OCRA:        otp.NewOCRA(),
		UUID:        uid.NewUUID(),
		OID:         uid.NewUUID(),
		Clock:       clk,
		Instrument:  instrument.NewNoop(),
		Goroutine:   syncRunner{},
		Tracker:     trk,
	})

	return &fixture{uc: uc, db: db, rec: rec, clock: clk}
}

func (f *fixture) otp(t *testing.T, keyHex, question string) string {
	t.Helper()

	code, err := otp.NewOCRA().Generate(otp.Input{
		Suite:    entity.DefaultOCRASuite,
		KeyHex:   keyHex,
		Question: question,
	})
	require.NoError(t, err)
	return code
}

func (f *fixture) create(t *testing.T, in CreateAuthRequestInput) *entity.AuthRequestView {
	t.Helper()

	if in.AppID == "" {
		in.AppID = testAppID
	}
	if in.ClientID == "" {
		in.ClientID = testClientID
	}

	view, err := f.uc.CreateAuthRequest(context.Background(), in)
	require.NoError(t, err)
	return view
}

func ptr[T any](v T) *T {
	return &v
}

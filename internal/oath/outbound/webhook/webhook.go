// Package webhook posts signed callbacks to consumer apps.
package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"
)

// DefaultTimeout bounds one callback delivery.
const DefaultTimeout = 10 * time.Second

var ErrUnexpectedStatus = errors.New("webhook: unexpected status")

type Webhook struct {
	client *http.Client
	ins    instrument.Instrumentation
}

// New returns a Webhook. A nil client gets an instrumented client with
// DefaultTimeout.
func New(client *http.Client, ins instrument.Instrumentation) *Webhook {
	if client == nil {
		client = &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	return &Webhook{client: client, ins: ins}
}

func (w *Webhook) Post(ctx context.Context, url, signature string, body []byte) (err error) {
	ctx, span := w.ins.Tracer("oath.outbound.webhook").Start(ctx, "Post")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(router.HeaderSignature, signature)
	if cID := instrument.GetCorrelationID(ctx); cID != "" {
		req.Header.Set(instrument.CorrelationIDHeader, cID)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	return nil
}

// Package push publishes auth request notifications for devices on the
// client's channel.
package push

import (
	"context"
	"encoding/json"

	"github.com/shandysiswandi/otpgate/internal/oath/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"go.opentelemetry.io/otel/codes"
)

const keyOfCorrelationID string = "cID"

type aps struct {
	Alert string `json:"alert"`
}

type apns struct {
	APS aps `json:"aps"`
}

type appRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type authRequestMessage struct {
	ID            string   `json:"id"`
	Type          string   `json:"type"`
	ClientID      string   `json:"client_id"`
	Issued        int64    `json:"issued"`
	Expires       int64    `json:"expires"`
	OCRASuite     string   `json:"ocra_suite"`
	Question      string   `json:"question"`
	App           *appRef  `json:"app,omitempty"`
	SignaturePage []string `json:"signature_page,omitempty"`
}

type notification struct {
	APNS    apns               `json:"pn_apns"`
	Message authRequestMessage `json:"message"`
}

type Push struct {
	client messaging.Publisher
	ins    instrument.Instrumentation
	// prefix is prepended to the channel to form the destination.
	prefix string
}

func New(client messaging.Publisher, ins instrument.Instrumentation, prefix string) *Push {
	return &Push{client: client, ins: ins, prefix: prefix}
}

func (p *Push) Publish(ctx context.Context, msg entity.Push) error {
	ctx, span := p.ins.Tracer("oath.outbound.push").Start(ctx, "Publish")
	defer span.End()

	view := msg.Message
	body := authRequestMessage{
		ID:            view.ID,
		Type:          view.Type,
		ClientID:      view.ClientID,
		Issued:        view.Issued,
		Expires:       view.Expires,
		OCRASuite:     view.OCRASuite,
		Question:      view.Question,
		SignaturePage: view.SignaturePage,
	}
	if view.App != nil {
		body.App = &appRef{ID: view.App.ID, Name: view.App.Name}
	}

	raw, err := json.Marshal(notification{
		APNS:    apns{APS: aps{Alert: msg.Alert}},
		Message: body,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	out := messaging.Message{Body: raw, Key: []byte(msg.Channel)}
	if cID := instrument.GetCorrelationID(ctx); cID != "" {
		out.Headers = map[string]string{keyOfCorrelationID: cID}
	}
	if err := p.client.Publish(ctx, p.prefix+msg.Channel, out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

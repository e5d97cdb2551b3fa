package push

import (
	"context"
	"testing"

	"github.com/shandysiswandi/otpgate/internal/oath/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPush_Publish(t *testing.T) {
	mem := messaging.NewMemory()
	p := New(mem, instrument.NewNoop(), "oath.")

	ctx := instrument.SetCorrelationID(context.Background(), "cid-1")
	err := p.Publish(ctx, entity.Push{
		Channel: "client-1",
		Alert:   "New authentication request from Bank",
		Message: entity.AuthRequestView{
			ID:        "req-1",
			Type:      entity.AuthRequestType,
			ClientID:  "client-1",
			Issued:    1000,
			Expires:   121000,
			OCRASuite: entity.DefaultOCRASuite,
			Question:  "hello",
			App:       &entity.AppRef{ID: "app-1", Name: "Bank"},
		},
	})
	require.NoError(t, err)

	msgs := mem.Messages("oath.client-1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "client-1", string(msgs[0].Key))
	assert.Equal(t, "cid-1", msgs[0].Headers[keyOfCorrelationID])
	assert.JSONEq(t, `{
		"pn_apns": {"aps": {"alert": "New authentication request from Bank"}},
		"message": {
			"id": "req-1",
			"type": "auth_request",
			"client_id": "client-1",
			"issued": 1000,
			"expires": 121000,
			"ocra_suite": "OCRA-1:HOTP-SHA256-8:QN08",
			"question": "hello",
			"app": {"id": "app-1", "name": "Bank"}
		}
	}`, string(msgs[0].Body))
}

func TestPush_Publish_Closed(t *testing.T) {
	mem := messaging.NewMemory()
	require.NoError(t, mem.Close())
	p := New(mem, instrument.NewNoop(), "")

	err := p.Publish(context.Background(), entity.Push{Channel: "c"})
	assert.Error(t, err)
}

package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthRequest_IsExpired(t *testing.T) {
	r := AuthRequest{Expires: 1000}

	assert.False(t, r.IsExpired(999))
	assert.True(t, r.IsExpired(1000))
	assert.True(t, r.IsExpired(1001))
}

func TestNewAuthRequestView(t *testing.T) {
	r := AuthRequest{
		ID:            "req-1",
		ClientID:      "client-1",
		Issued:        1,
		Expires:       2,
		OCRASuite:     DefaultOCRASuite,
		Question:      "q",
		CallbackURL:   "https://app.example.com/cb",
		SignaturePage: []string{"face"},
	}

	v := NewAuthRequestView(r, &AppRef{ID: "app-1", Name: "App"})
	assert.Equal(t, AuthRequestType, v.Type)
	assert.Equal(t, "req-1", v.ID)
	assert.Equal(t, "client-1", v.ClientID)
	assert.Equal(t, []string{"face"}, v.SignaturePage)
	assert.Equal(t, "App", v.App.Name)
}

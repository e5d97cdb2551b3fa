package entity

// CallbackType identifies what a callback reports.
type CallbackType string

const (
	CallbackAuthentication      CallbackType = "authentication"
	CallbackAuthenticationStart CallbackType = "authentication_start"
	CallbackKeyRevocation       CallbackType = "key_revocation"
)

func (t CallbackType) String() string {
	return string(t)
}

// Callback is a signed notification posted to a consumer app. Payload holds
// the already stringified fields.
type Callback struct {
	URL       string
	ClientID  string
	RequestID string
	Type      CallbackType
	Payload   map[string]string
}

// Push is a notification published to a client's devices.
type Push struct {
	Channel string
	Alert   string
	Message AuthRequestView
}

// Effect is a side effect produced by a state transition. Exactly one field
// is set.
type Effect struct {
	Push     *Push
	Callback *Callback
}

package entity

const (
	// DefaultOCRASuite is the suite new auth requests are issued with.
	DefaultOCRASuite = "OCRA-1:HOTP-SHA256-8:QN08"

	// DefaultExpiryMs is the auth request lifetime when the caller sets none.
	DefaultExpiryMs int64 = 120000

	// MaxExpiryMs caps a caller supplied lifetime at one day. Keep the
	// lte bound on CreateAuthRequestInput.ExpiryMs in step.
	MaxExpiryMs int64 = 86400000

	// MaxChallengeBytes caps a caller supplied challenge.
	MaxChallengeBytes = 128

	// AuthRequestType tags auth request messages sent to devices.
	AuthRequestType = "auth_request"
)

// App is a consumer application registered with the service.
type App struct {
	ID   string
	Name string
	// URL is the registered callback host[:port].
	URL string
	// Secret is the hex HMAC key shared with the app.
	Secret string
}

// Client is an app's end user slot, bound to one App.
type Client struct {
	ID             string
	AppID          string
	RegCallbackURL string
	// Password is the transient DSKPP provisioning password.
	Password string
}

// Key is OCRA key material provisioned to a device for a client.
type Key struct {
	ID                 string
	ClientID           string
	DeviceManufacturer string
	DeviceSerialNo     string
	// Secret is hex key material.
	Secret   string
	Revision int
}

// AuthRequest is a pending authentication or signing request.
// Issued and Expires are epoch milliseconds.
type AuthRequest struct {
	ID            string
	ClientID      string
	Issued        int64
	Expires       int64
	OCRASuite     string
	Question      string
	CallbackURL   string
	SignaturePage []string
}

// IsExpired reports whether the request is no longer answerable at now.
func (r AuthRequest) IsExpired(nowMs int64) bool {
	return r.Expires <= nowMs
}

// AppRef is the public part of an App shown to devices.
type AppRef struct {
	ID   string
	Name string
}

// AuthRequestView is an auth request as delivered to devices, both in push
// messages and in poll results.
type AuthRequestView struct {
	ID            string
	Type          string
	ClientID      string
	Issued        int64
	Expires       int64
	OCRASuite     string
	Question      string
	App           *AppRef
	SignaturePage []string
}

// NewAuthRequestView builds the device facing view of r.
func NewAuthRequestView(r AuthRequest, app *AppRef) AuthRequestView {
	return AuthRequestView{
		ID:            r.ID,
		Type:          AuthRequestType,
		ClientID:      r.ClientID,
		Issued:        r.Issued,
		Expires:       r.Expires,
		OCRASuite:     r.OCRASuite,
		Question:      r.Question,
		App:           app,
		SignaturePage: r.SignaturePage,
	}
}

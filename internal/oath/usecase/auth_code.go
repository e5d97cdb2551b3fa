package usecase

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	qrcode "github.com/skip2/go-qrcode"
)

// QRCodeSize is the side of the rendered provisioning QR code in pixels.
const QRCodeSize = 256

type IssueAuthCodeInput struct {
	ClientID  string
	Nonce     string
	Signature string
	// Origin is scheme://host[:port] of the request as signed by the app.
	Origin string
	// Path is the request path without query.
	Path string
	// Host is the request hostname used in the advertised endpoint.
	Host string
}

type IssueAuthCodeOutput struct {
	ContentType string
	PNG         []byte
}

type qrPayload struct {
	AC          string `json:"AC"`
	Name        string `json:"name"`
	Identifier  string `json:"identifier"`
	APIEndPoint string `json:"apiEndPoint"`
}

// maxAuthCodeValue is the longest value a one byte TLV length can describe.
const maxAuthCodeValue = 0xff

// ErrAuthCodeValueTooLong is returned by AuthCode when a value does not fit
// its one byte length.
var ErrAuthCodeValueTooLong = errors.New("auth code value longer than 255 bytes")

// AuthCode encodes the provisioning activation code as a TLV string: tag 1
// holds the client id, tag 2 the password. Values are hex encoded and
// prefixed with their byte length as two hex digits.
func AuthCode(clientID, password string) (string, error) {
	var b strings.Builder
	for i, v := range []string{clientID, password} {
		if len(v) > maxAuthCodeValue {
			return "", fmt.Errorf("%w: tag %d", ErrAuthCodeValueTooLong, i+1)
		}
		fmt.Fprintf(&b, "%d%02x%s", i+1, len(v), hex.EncodeToString([]byte(v)))
	}
	return b.String(), nil
}

// IssueAuthCode renders the provisioning QR code for a client. The caller
// proves ownership with a signature over the request origin, path and nonce.
func (s *Usecase) IssueAuthCode(ctx context.Context, in IssueAuthCodeInput) (*IssueAuthCodeOutput, error) {
	ctx, span := s.startSpan(ctx, "IssueAuthCode")
	defer span.End()

	if in.Nonce == "" || in.Signature == "" {
		return nil, goerror.NewBusiness("Missing nonce or signature", goerror.CodeUnauthorized)
	}
	if in.ClientID == "" {
		return nil, goerror.NewInvalidFormat("Missing client id")
	}

	errNotFound := goerror.NewBusiness("Client not found.", goerror.CodeNotFound)

	client, err := s.repoDB.GetClient(ctx, in.ClientID)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, errNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get client", "client_id", in.ClientID, "error", err)
		return nil, goerror.NewServer(err)
	}
	if client.AppID == "" {
		return nil, errNotFound
	}

	app, err := s.repoDB.GetApp(ctx, client.AppID)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, goerror.NewBusiness("App not found.", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get app", "app_id", client.AppID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if !s.signer.Verify(app.Secret, in.Origin+in.Path+in.Nonce, in.Signature) {
		slog.WarnContext(ctx, "invalid auth code signature", "client_id", client.ID, "app_id", app.ID)
		return nil, goerror.NewBusiness("Invalid signature", goerror.CodeUnauthorized)
	}

	password := client.Password
	if password == "" {
		password, err = hash.RandomHex(8)
		if err != nil {
			slog.ErrorContext(ctx, "failed to generate provisioning password", "error", err)
			return nil, goerror.NewServer(err)
		}
		// a concurrent issue may have stored its password first
		password, err = s.repoDB.SetClientPasswordIfEmpty(ctx, client.ID, password)
		if err != nil {
			slog.ErrorContext(ctx, "failed to repo set client password", "client_id", client.ID, "error", err)
			return nil, goerror.NewServer(err)
		}
	}

	ac, err := AuthCode(client.ID, password)
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode auth code", "client_id", client.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	payload, err := json.Marshal(qrPayload{
		AC:          ac,
		Name:        app.Name,
		Identifier:  app.ID,
		APIEndPoint: "https://" + in.Host + s.cfg.GetString("app.server.base_path"),
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal qr payload", "error", err)
		return nil, goerror.NewServer(err)
	}

	png, err := qrcode.Encode(string(payload), qrcode.Medium, QRCodeSize)
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode qr code", "client_id", client.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	slog.InfoContext(ctx, "auth code issued", "client_id", client.ID, "app_id", app.ID)

	return &IssueAuthCodeOutput{ContentType: "image/png", PNG: png}, nil
}

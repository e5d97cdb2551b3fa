package inbound

import (
	"context"

	"github.com/shandysiswandi/otpgate/internal/oath/entity"
	"github.com/shandysiswandi/otpgate/internal/oath/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
)

type uc interface {
	RegisterClient(ctx context.Context, in usecase.RegisterClientInput) (*usecase.RegisterClientOutput, error)
	DeleteClient(ctx context.Context, in usecase.DeleteClientInput) (*usecase.DeleteClientOutput, error)

	CreateAuthRequest(ctx context.Context, in usecase.CreateAuthRequestInput) (*entity.AuthRequestView, error)
	PollAuthRequests(ctx context.Context, in usecase.PollAuthRequestsInput) ([]entity.AuthRequestView, error)
	ResolveAuthRequest(ctx context.Context, in usecase.ResolveAuthRequestInput) (*usecase.ResolveAuthRequestOutput, error)

	RevokeDevice(ctx context.Context, in usecase.RevokeDeviceInput) (*usecase.RevokeDeviceOutput, error)
	IssueAuthCode(ctx context.Context, in usecase.IssueAuthCodeInput) (*usecase.IssueAuthCodeOutput, error)
}

func RegisterHTTPEndpoint(r *router.Router, uc uc, signature router.Middleware, cfg config.Config) {
	end := &HTTPEndpoint{uc: uc, cfg: cfg}

	// Consumer apps (request signature)
	r.POST("/clients", end.RegisterClient, signature)
	r.DELETE("/clients", end.DeleteClient, signature)
	r.POST("/auth_requests", end.CreateAuthRequest, signature)

	// Devices (OTP)
	r.GET("/auth_requests", end.PollAuthRequests)
	r.POST("/auth_request/:id", end.ResolveAuthRequest)
	r.DELETE("/device", end.RevokeDevice)

	// Provisioning (nonce signature)
	r.GET("/qr_code/:file", end.IssueAuthCode)
}

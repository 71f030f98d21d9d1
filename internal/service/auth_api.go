package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/groceryplus/admin-console/internal/domain"
	"github.com/groceryplus/admin-console/internal/http/client"
)

// AuthAPI talks to the primary backend's /auth endpoints. None of these calls
// run under a live session, so their 401s never start session recovery.
type AuthAPI struct {
	api    API
	logger *slog.Logger
}

func NewAuthAPI(api API, logger *slog.Logger) *AuthAPI {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthAPI{api: api, logger: logger}
}

func (a *AuthAPI) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
	var resp domain.LoginResponse
	if err := a.api.PostJSON(client.WithRetry(ctx), "/auth/login", req, &resp); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &resp, nil
}

// Logout is best effort; the caller clears local state regardless.
func (a *AuthAPI) Logout(ctx context.Context) error {
	if err := a.api.PostJSON(client.WithRetry(ctx), "/auth/logout", struct{}{}, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (a *AuthAPI) Register(ctx context.Context, req domain.RegisterRequest) (*domain.LoginResponse, error) {
	var resp domain.LoginResponse
	if err := a.api.PostJSON(client.WithRetry(ctx), "/auth/register", req, &resp); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &resp, nil
}

func (a *AuthAPI) ForgotPassword(ctx context.Context, req domain.ForgotPasswordRequest) (*domain.ForgotPasswordResponse, error) {
	var resp domain.ForgotPasswordResponse
	if err := a.api.PostJSON(client.WithRetry(ctx), "/auth/forgot-password", req, &resp); err != nil {
		return nil, fmt.Errorf("forgot password: %w", err)
	}
	return &resp, nil
}

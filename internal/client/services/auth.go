// Package services contains the application services of the back-office
// console. This file defines the auth gateway: backend calls that keep the
// session store in step with what the server said.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophadmin/internal/client/client"
	"github.com/dmitrijs2005/gophadmin/internal/client/models"
	"github.com/dmitrijs2005/gophadmin/internal/client/session"
	"github.com/dmitrijs2005/gophadmin/internal/client/token"
	"github.com/dmitrijs2005/gophadmin/internal/logging"
)

// AuthService defines the authentication operations of the console.
//
// Contract:
//   - Login: authenticate as an admin operator; on success the token and user
//     are written to the store before returning.
//   - Register, ChangePassword: same write-through as Login.
//   - CurrentUser: refuse to call the backend with a token that is missing,
//     malformed or expired; such a token is cleared and ErrInvalidLocalToken
//     returned. Otherwise fetch the user. The cached copy is left alone; only
//     the caller knows whether the answer is still wanted.
//   - UpdateProfile: persist the user the server returns.
//   - CreateAdmin: admin-only backend call, no local effect.
//   - Logout: tell the server (best effort) and always clear local state,
//     passing reason on to the store.
//
// All methods must honor context cancellation/timeouts.
type AuthService interface {
	Login(ctx context.Context, identifier, password string) (*client.AuthResponse, error)
	Register(ctx context.Context, req client.RegisterRequest) (*client.AuthResponse, error)
	CurrentUser(ctx context.Context) (*models.User, error)
	UpdateProfile(ctx context.Context, patch models.UserPatch) (*models.User, error)
	ChangePassword(ctx context.Context, current, next string) (*client.AuthResponse, error)
	CreateAdmin(ctx context.Context, req client.RegisterRequest) (*models.User, error)
	Logout(ctx context.Context, reason string) error
}

type authService struct {
	client client.Client
	store  session.Store
	log    logging.Logger
}

// NewAuthService constructs an AuthService bound to the given API client and
// session store.
func NewAuthService(c client.Client, s session.Store, log logging.Logger) AuthService {
	return &authService{client: c, store: s, log: log}
}

// Login always asks for the admin role; the backend refuses operators that
// don't have it.
func (a *authService) Login(ctx context.Context, identifier, password string) (*client.AuthResponse, error) {
	resp, err := a.client.Login(ctx, client.LoginRequest{
		Identifier: identifier,
		Password:   password,
		Role:       models.RoleAdmin,
	})
	if err != nil {
		return nil, fmt.Errorf("login error: %w", err)
	}
	if err := a.writeThrough(ctx, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (a *authService) Register(ctx context.Context, req client.RegisterRequest) (*client.AuthResponse, error) {
	resp, err := a.client.Register(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("register error: %w", err)
	}
	if err := a.writeThrough(ctx, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (a *authService) ChangePassword(ctx context.Context, current, next string) (*client.AuthResponse, error) {
	resp, err := a.client.ChangePassword(ctx, client.ChangePasswordRequest{CurrentPassword: current, NewPassword: next})
	if err != nil {
		return nil, fmt.Errorf("change password error: %w", err)
	}
	if err := a.writeThrough(ctx, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (a *authService) writeThrough(ctx context.Context, resp *client.AuthResponse) error {
	if !resp.HasSession() {
		return nil
	}
	if err := a.store.SaveSession(ctx, resp.Data.AccessToken, resp.Data.User); err != nil {
		return fmt.Errorf("session saving error: %w", err)
	}
	return nil
}

func (a *authService) CurrentUser(ctx context.Context) (*models.User, error) {
	tok, err := a.store.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", client.ErrLocalDataNotAvailable, err)
	}

	switch {
	case tok == "":
		a.clearQuietly(ctx, "missing token")
		return nil, client.ErrInvalidLocalToken
	case !token.IsValidFormat(tok):
		a.clearQuietly(ctx, "malformed token")
		return nil, client.ErrInvalidLocalToken
	case token.IsExpired(tok):
		a.clearQuietly(ctx, "token expired")
		return nil, client.ErrInvalidLocalToken
	}

	user, err := a.client.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("current user error: %w", err)
	}
	return user, nil
}

func (a *authService) UpdateProfile(ctx context.Context, patch models.UserPatch) (*models.User, error) {
	user, err := a.client.UpdateProfile(ctx, patch)
	if err != nil {
		return nil, fmt.Errorf("update profile error: %w", err)
	}
	if err := a.store.SetUser(ctx, user); err != nil {
		return nil, fmt.Errorf("user saving error: %w", err)
	}
	return user, nil
}

func (a *authService) CreateAdmin(ctx context.Context, req client.RegisterRequest) (*models.User, error) {
	user, err := a.client.CreateAdmin(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create admin error: %w", err)
	}
	return user, nil
}

// Logout never fails because of the network: the server call is a courtesy,
// the local clear is what signs the operator out.
func (a *authService) Logout(ctx context.Context, reason string) error {
	if err := a.client.Logout(ctx); err != nil {
		level := a.log.Warn
		if errors.Is(err, client.ErrUnauthorized) {
			level = a.log.Debug
		}
		level(ctx, "server logout failed, clearing local session anyway", "error", err)
	}
	return a.store.Clear(ctx, reason)
}

func (a *authService) clearQuietly(ctx context.Context, reason string) {
	if err := a.store.Clear(ctx, reason); err != nil {
		a.log.Error(ctx, "failed to clear invalid session", "reason", reason, "error", err)
	}
}

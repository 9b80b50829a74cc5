package client

import (
	"context"

	"github.com/dmitrijs2005/gophadmin/internal/client/models"
)

// Client is the back-office REST API as seen by the session layer.
type Client interface {
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Me(ctx context.Context) (*models.User, error)
	UpdateProfile(ctx context.Context, patch models.UserPatch) (*models.User, error)
	ChangePassword(ctx context.Context, req ChangePasswordRequest) (*AuthResponse, error)
	CreateAdmin(ctx context.Context, req RegisterRequest) (*models.User, error)
	Logout(ctx context.Context) error
}

type LoginRequest struct {
	Identifier string      `json:"identifier"`
	Password   string      `json:"password"`
	Role       models.Role `json:"role"`
}

type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// AuthResponse is the envelope returned by login, register and password
// change.
type AuthResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Data    *AuthData `json:"data,omitempty"`
}

type AuthData struct {
	User        *models.User `json:"user,omitempty"`
	AccessToken string       `json:"accessToken,omitempty"`
}

// HasSession reports whether the response carries both halves of a session.
func (r *AuthResponse) HasSession() bool {
	return r != nil && r.Data != nil && r.Data.User != nil && r.Data.AccessToken != ""
}

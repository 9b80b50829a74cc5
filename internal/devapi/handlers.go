package devapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophadmin/internal/devapi/users"
	"github.com/labstack/echo/v4"
)

const (
	msgInvalidCredentials = "Invalid credentials"
	msgAdminRequired      = "Access denied. Admin privileges required."
	msgNotAuthenticated   = "Not authenticated"
	msgInvalidToken       = "Invalid or expired token"
	msgInvalidRequest     = "Invalid request"
	msgInternal           = "Internal server error"
)

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// userView is the wire shape of a user.
type userView struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Role      string     `json:"role"`
	IsActive  bool       `json:"isActive"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func viewOf(u *users.User) *userView {
	return &userView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		IsActive:  u.IsActive,
		LastLogin: u.LastLogin,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type sessionData struct {
	User        *userView `json:"user"`
	AccessToken string    `json:"accessToken,omitempty"`
}

type userData struct {
	User *userView `json:"user"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	Role       string `json:"role"`
}

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (r registerRequest) newUser() users.NewUser {
	return users.NewUser{
		Username:  r.Username,
		Email:     r.Email,
		Password:  r.Password,
		FirstName: r.FirstName,
		LastName:  r.LastName,
	}
}

type profileRequest struct {
	Username  *string `json:"username"`
	Email     *string `json:"email"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func respond(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

func fail(c echo.Context, status int, message string) error {
	return c.JSON(status, envelope{Success: false, Message: message})
}

// failWith maps a service error to a status and a client-safe message.
func (s *Server) failWith(c echo.Context, err error) error {
	switch {
	case errors.Is(err, users.ErrInvalidCredentials):
		return fail(c, http.StatusUnauthorized, msgInvalidCredentials)
	case errors.Is(err, users.ErrAdminRequired):
		return fail(c, http.StatusForbidden, msgAdminRequired)
	case errors.Is(err, users.ErrInactive):
		return fail(c, http.StatusForbidden, "Account is disabled")
	case errors.Is(err, users.ErrInvalidInput):
		return fail(c, http.StatusBadRequest, "Username, email and password are required")
	case errors.Is(err, users.ErrWeakPassword):
		return fail(c, http.StatusBadRequest, "Password must be at least 8 characters")
	case errors.Is(err, users.ErrWrongPassword):
		return fail(c, http.StatusBadRequest, "Current password is incorrect")
	case errors.Is(err, users.ErrAlreadyExists):
		return fail(c, http.StatusConflict, "Username or email already exists")
	case errors.Is(err, users.ErrNotFound):
		return fail(c, http.StatusNotFound, "User not found")
	default:
		s.log.Error(c.Request().Context(), "request failed", "error", err)
		return fail(c, http.StatusInternalServerError, msgInternal)
	}
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, msgInvalidRequest)
	}
	if strings.TrimSpace(req.Identifier) == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "Identifier and password are required")
	}

	sess, err := s.users.Login(c.Request().Context(), req.Identifier, req.Password, req.Role)
	if err != nil {
		return s.failWith(c, err)
	}

	s.log.Info(c.Request().Context(), "user logged in", "user_id", sess.User.ID, "role", sess.User.Role)
	return respond(c, http.StatusOK, "Login successful", sessionData{User: viewOf(sess.User), AccessToken: sess.AccessToken})
}

func (s *Server) handleRegister(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, msgInvalidRequest)
	}

	ctx := c.Request().Context()
	user, err := s.users.Register(ctx, req.newUser())
	if err != nil {
		return s.failWith(c, err)
	}
	s.log.Info(ctx, "user registered", "user_id", user.ID)

	if !s.registerIssuesToken {
		return respond(c, http.StatusCreated, "Registration successful", userData{User: viewOf(user)})
	}

	sess, err := s.users.IssueSession(ctx, user)
	if err != nil {
		return s.failWith(c, err)
	}
	return respond(c, http.StatusCreated, "Registration successful", sessionData{User: viewOf(sess.User), AccessToken: sess.AccessToken})
}

func (s *Server) handleMe(c echo.Context) error {
	return respond(c, http.StatusOK, "", userData{User: viewOf(currentUser(c))})
}

func (s *Server) handleUpdateProfile(c echo.Context) error {
	var req profileRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, msgInvalidRequest)
	}

	user, err := s.users.UpdateProfile(c.Request().Context(), currentUser(c).ID, users.Profile{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return s.failWith(c, err)
	}
	return respond(c, http.StatusOK, "Profile updated", userData{User: viewOf(user)})
}

func (s *Server) handleChangePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, msgInvalidRequest)
	}

	sess, err := s.users.ChangePassword(c.Request().Context(), currentClaims(c), req.CurrentPassword, req.NewPassword)
	if err != nil {
		return s.failWith(c, err)
	}
	return respond(c, http.StatusOK, "Password changed", sessionData{User: viewOf(sess.User), AccessToken: sess.AccessToken})
}

func (s *Server) handleCreateAdmin(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, msgInvalidRequest)
	}

	ctx := c.Request().Context()
	user, err := s.users.CreateAdmin(ctx, req.newUser())
	if err != nil {
		return s.failWith(c, err)
	}
	s.log.Info(ctx, "admin created", "user_id", user.ID, "by", currentUser(c).ID)
	return respond(c, http.StatusCreated, "Admin created", userData{User: viewOf(user)})
}

func (s *Server) handleLogout(c echo.Context) error {
	s.users.Revoke(currentClaims(c))
	return respond(c, http.StatusOK, "Logged out", nil)
}

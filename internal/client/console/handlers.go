package console

import (
	"net/http"

	"github.com/dmitrijs2005/gophadmin/internal/client/client"
	"github.com/dmitrijs2005/gophadmin/internal/client/models"
	"github.com/dmitrijs2005/gophadmin/internal/client/services"
	"github.com/labstack/echo/v4"
)

const defaultLanding = "/dashboard"

type signInRequest struct {
	Identifier string `json:"identifier" form:"identifier"`
	Password   string `json:"password" form:"password"`
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword" form:"currentPassword"`
	NewPassword     string `json:"newPassword" form:"newPassword"`
}

type activityRequest struct {
	Event string `json:"event" form:"event"`
}

type sessionResponse struct {
	User          *models.User `json:"user"`
	Authenticated bool         `json:"isAuthenticated"`
	Admin         bool         `json:"isAdmin"`
	Loading       bool         `json:"isLoading"`
	IdleRemaining float64      `json:"idleRemainingSeconds"`
	Pending       int64        `json:"pending"`
	Notice        *Notice      `json:"notice,omitempty"`
}

func badRequest(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}

// statusFor picks the HTTP status a failed Result is reported with.
func statusFor(r services.Result) int {
	if r.Success {
		return http.StatusOK
	}
	switch r.Code {
	case services.CodeInProgress:
		return http.StatusConflict
	case services.CodeNetwork:
		return http.StatusBadGateway
	case services.CodeAuth, services.CodeNotAuthenticated, services.CodeLocalValidation:
		return http.StatusUnauthorized
	case services.CodeAdminRequired:
		return http.StatusForbidden
	case services.CodeServer:
		return http.StatusUnprocessableEntity
	case services.CodeSuperseded:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func result(c echo.Context, r services.Result) error {
	return c.JSON(statusFor(r), r)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSignInPage(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"flash":           s.guard.Flash(c),
		"isAuthenticated": s.mgr.IsAuthenticated(),
	})
}

func (s *Server) handleSignIn(c echo.Context) error {
	if !s.limiter.Allow() {
		c.Response().Header().Set("Retry-After", "1")
		return echo.NewHTTPError(http.StatusTooManyRequests, "Too many sign-in attempts, slow down")
	}

	var req signInRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid sign-in request")
	}
	if req.Identifier == "" || req.Password == "" {
		return badRequest("identifier and password are required")
	}

	res := s.mgr.Login(c.Request().Context(), req.Identifier, req.Password)
	if !res.Success {
		return result(c, res)
	}
	return c.Redirect(http.StatusSeeOther, s.guard.PopReturnTo(c, defaultLanding))
}

func (s *Server) handleSignOut(c echo.Context) error {
	return result(c, s.mgr.Logout(c.Request().Context()))
}

func (s *Server) handleSession(c echo.Context) error {
	st := s.mgr.State()
	resp := sessionResponse{
		User:          st.User,
		Authenticated: st.User != nil,
		Admin:         st.User.IsAdmin(),
		Loading:       st.IsLoading,
		IdleRemaining: s.mgr.IdleRemaining().Seconds(),
		Notice:        s.notices.Take(),
	}
	if s.pending != nil {
		resp.Pending = s.pending.Pending()
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleActivity(c echo.Context) error {
	var req activityRequest
	if err := c.Bind(&req); err != nil || req.Event == "" {
		return badRequest("event is required")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"accepted":             s.mgr.RecordActivity(req.Event),
		"idleRemainingSeconds": s.mgr.IdleRemaining().Seconds(),
	})
}

func (s *Server) handleDashboard(c echo.Context) error {
	u := s.mgr.State().User
	return c.JSON(http.StatusOK, map[string]any{
		"greeting": "Welcome, " + u.DisplayName(),
		"user":     u,
	})
}

func (s *Server) handleProfile(c echo.Context) error {
	return c.JSON(http.StatusOK, s.mgr.State().User)
}

func (s *Server) handleUpdateProfile(c echo.Context) error {
	var patch models.UserPatch
	if err := c.Bind(&patch); err != nil {
		return badRequest("invalid profile update")
	}
	if patch.IsEmpty() {
		return badRequest("nothing to update")
	}
	return result(c, s.mgr.UpdateUserProfile(c.Request().Context(), patch))
}

func (s *Server) handleChangePassword(c echo.Context) error {
	var req passwordRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid password change")
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return badRequest("current and new password are required")
	}
	return result(c, s.mgr.ChangePassword(c.Request().Context(), req.CurrentPassword, req.NewPassword))
}

func (s *Server) handleRefresh(c echo.Context) error {
	return result(c, s.mgr.Refresh(c.Request().Context()))
}

func (s *Server) handleProfileData(c echo.Context) error {
	d := s.mgr.ProfileData(c.Request().Context())
	if d == nil {
		d = &models.ProfileData{}
	}
	return c.JSON(http.StatusOK, d)
}

func (s *Server) handleSaveProfileData(c echo.Context) error {
	var d models.ProfileData
	if err := c.Bind(&d); err != nil {
		return badRequest("invalid profile data")
	}
	if !s.mgr.SaveProfileData(c.Request().Context(), &d) {
		return echo.NewHTTPError(http.StatusInternalServerError, "profile data could not be saved")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleClearProfileData(c echo.Context) error {
	if !s.mgr.ClearProfileData(c.Request().Context()) {
		return echo.NewHTTPError(http.StatusInternalServerError, "profile data could not be removed")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleCreateAdmin(c echo.Context) error {
	var req client.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid admin request")
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return badRequest("username, email and password are required")
	}
	return result(c, s.mgr.CreateAdmin(c.Request().Context(), req))
}

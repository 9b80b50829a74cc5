// Package console serves the operator console over HTTP on a local address.
// Protected routes sit behind the route guard; the JSON endpoints under
// /api let a front end poll the session state and report activity.
package console

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophadmin/internal/client/client"
	"github.com/dmitrijs2005/gophadmin/internal/client/guard"
	"github.com/dmitrijs2005/gophadmin/internal/client/models"
	"github.com/dmitrijs2005/gophadmin/internal/client/services"
	"github.com/dmitrijs2005/gophadmin/internal/logging"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// Manager is what the console needs from the session manager.
type Manager interface {
	guard.Session

	State() services.State
	Login(ctx context.Context, identifier, password string) services.Result
	Logout(ctx context.Context) services.Result
	Refresh(ctx context.Context) services.Result
	UpdateUserProfile(ctx context.Context, patch models.UserPatch) services.Result
	ChangePassword(ctx context.Context, current, next string) services.Result
	CreateAdmin(ctx context.Context, req client.RegisterRequest) services.Result
	ProfileData(ctx context.Context) *models.ProfileData
	SaveProfileData(ctx context.Context, d *models.ProfileData) bool
	ClearProfileData(ctx context.Context) bool
	RecordActivity(event string) bool
	IdleRemaining() time.Duration
}

// Pending reports in-flight backend calls.
type Pending interface {
	Pending() int64
}

type Server struct {
	addr    string
	mgr     Manager
	guard   *guard.Guard
	notices *NoticeBoard
	pending Pending
	limiter *rate.Limiter
	log     logging.Logger
	echo    *echo.Echo
}

type Option func(*Server)

func WithPending(p Pending) Option {
	return func(s *Server) { s.pending = p }
}

// WithSignInLimit throttles sign-in attempts to r per second with the
// given burst.
func WithSignInLimit(r rate.Limit, burst int) Option {
	return func(s *Server) { s.limiter = rate.NewLimiter(r, burst) }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Server) { s.log = l }
}

func New(addr string, mgr Manager, g *guard.Guard, notices *NoticeBoard, opts ...Option) *Server {
	s := &Server{
		addr:    addr,
		mgr:     mgr,
		guard:   g,
		notices: notices,
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
		log:     logging.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("module", "console")
	s.setupEcho()
	return s
}

func (s *Server) setupEcho() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(s.requestLogger)
	e.Use(middleware.Recover())

	e.GET("/healthz", s.handleHealth)

	e.GET("/signin", s.handleSignInPage)
	e.POST("/signin", s.handleSignIn)
	e.POST("/signout", s.handleSignOut)

	api := e.Group("/api")
	api.GET("/session", s.handleSession)
	api.POST("/activity", s.handleActivity)

	protected := e.Group("", s.guard.RequireAuth())
	protected.GET("/dashboard", s.handleDashboard)
	protected.GET("/profile", s.handleProfile)
	protected.PUT("/profile", s.handleUpdateProfile)
	protected.PUT("/profile/password", s.handleChangePassword)
	protected.POST("/profile/refresh", s.handleRefresh)
	protected.GET("/profile/extra", s.handleProfileData)
	protected.PUT("/profile/extra", s.handleSaveProfileData)
	protected.DELETE("/profile/extra", s.handleClearProfileData)

	admin := e.Group("/admin", s.guard.RequireAdmin())
	admin.POST("/admins", s.handleCreateAdmin)

	s.echo = e
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		req, res := c.Request(), c.Response()
		s.log.Info(req.Context(), "HTTP request",
			"method", req.Method,
			"uri", req.RequestURI,
			"status", res.Status,
			"size", res.Size,
			"duration", time.Since(start).String(),
			"request_id", res.Header().Get(echo.HeaderXRequestID))
		return nil
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "Starting console", "address", s.addr)
		errCh <- s.echo.Start(s.addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info(ctx, "Stopping console...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}

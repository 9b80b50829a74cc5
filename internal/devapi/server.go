// Package devapi is a small in-memory implementation of the back-office
// REST API used by the console during development and in end-to-end tests.
//
// Every response uses the envelope
//
//	{"success": bool, "message": string, "data": {...}}
//
// and authenticated routes expect "Authorization: Bearer <token>".
package devapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophadmin/internal/devapi/users"
	"github.com/dmitrijs2005/gophadmin/internal/logging"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	echo                *echo.Echo
	addr                string
	users               *users.Service
	log                 logging.Logger
	registerIssuesToken bool
}

func NewServer(addr string, svc *users.Service, log logging.Logger, registerIssuesToken bool) *Server {
	s := &Server{
		echo:                echo.New(),
		addr:                addr,
		users:               svc,
		log:                 log,
		registerIssuesToken: registerIssuesToken,
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.Use(middleware.RequestID())
	s.echo.Use(s.requestLogger)
	s.echo.Use(middleware.Recover())

	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := s.echo.Group("/api/auth")
	api.POST("/login", s.handleLogin)
	api.POST("/register", s.handleRegister)

	authed := api.Group("", s.requireToken)
	authed.GET("/me", s.handleMe)
	authed.PUT("/update-profile", s.handleUpdateProfile)
	authed.PUT("/change-password", s.handleChangePassword)
	authed.POST("/logout", s.handleLogout)
	authed.POST("/create-admin", s.handleCreateAdmin, requireAdmin)
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		req, res := c.Request(), c.Response()
		s.log.Info(req.Context(), "request",
			"method", req.Method,
			"uri", req.RequestURI,
			"status", res.Status,
			"duration", time.Since(start).String(),
			"request_id", res.Header().Get(echo.HeaderXRequestID),
		)
		return nil
	}
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "development API listening", "addr", s.addr)
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

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

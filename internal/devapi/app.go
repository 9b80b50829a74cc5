package devapi

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gophadmin/internal/devapi/config"
	"github.com/dmitrijs2005/gophadmin/internal/devapi/users"
	"github.com/dmitrijs2005/gophadmin/internal/logging"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	userService *users.Service
}

func NewApp(c *config.Config) *App {
	logger := logging.New(c.Environment, c.LogLevel, os.Stdout)
	us := users.NewService(users.NewMemoryRepository(), c)
	return &App{config: c, logger: logger, userService: us}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run seeds the admin account and serves until a termination signal or
// ctx is cancelled.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	admin, err := app.userService.EnsureAdmin(ctx, users.NewUser{
		Username: app.config.AdminUsername,
		Email:    app.config.AdminEmail,
		Password: app.config.AdminPassword,
	})
	if err != nil {
		app.logger.Error(ctx, "seeding admin failed", "error", err)
		return err
	}
	app.logger.Info(ctx, "admin account ready", "username", admin.Username)

	s := NewServer(app.config.ListenAddr, app.userService, app.logger, app.config.RegisterIssuesToken)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		return err
	}
	return nil
}

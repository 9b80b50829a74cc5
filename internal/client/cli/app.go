package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/gophadmin/internal/client/client"
	"github.com/dmitrijs2005/gophadmin/internal/client/config"
	"github.com/dmitrijs2005/gophadmin/internal/client/console"
	"github.com/dmitrijs2005/gophadmin/internal/client/guard"
	"github.com/dmitrijs2005/gophadmin/internal/client/services"
	"github.com/dmitrijs2005/gophadmin/internal/client/session"
	"github.com/dmitrijs2005/gophadmin/internal/common"
	"github.com/dmitrijs2005/gophadmin/internal/logging"
	"golang.org/x/time/rate"
)

// Mode selects how the App reports session notices.
type Mode string

const (
	ModeREPL    Mode = "repl"
	ModeServe   Mode = "serve"
	ModeOneShot Mode = "oneshot"
)

type App struct {
	config  *config.Config
	log     logging.Logger
	db      *sql.DB
	store   session.Store
	loading *client.LoadingCounter
	manager *services.SessionManager
	notices *console.NoticeBoard
	reader  *bufio.Reader
	out     io.Writer
}

// NewApp opens the local session database and wires the backend client,
// the auth gateway and the session manager.
func NewApp(ctx context.Context, cfg *config.Config, mode Mode) (*App, error) {
	log := logging.New(cfg.Environment, cfg.LogLevel, os.Stderr)

	db, err := client.InitDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		log.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}

	store := session.NewSQLiteStore(db, log)
	loading := &client.LoadingCounter{}
	api := client.NewHTTPClient(cfg.APIBaseURL,
		client.WithTokenSource(store.Token),
		client.WithLoadingNotifier(loading),
		client.WithTimeout(cfg.RequestTimeout),
	)

	app, err := assemble(cfg, log, store, api, mode, os.Stdin, os.Stdout)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	app.db = db
	app.loading = loading
	return app, nil
}

// assemble builds everything above the transport.
func assemble(cfg *config.Config, log logging.Logger, store session.Store, api client.Client, mode Mode, in io.Reader, out io.Writer) (*App, error) {
	a := &App{
		config:  cfg,
		log:     log,
		store:   store,
		loading: &client.LoadingCounter{},
		reader:  bufio.NewReader(in),
		out:     out,
	}

	idleCfg := cfg.IdleConfig()
	var notifier services.Notifier
	switch mode {
	case ModeServe:
		a.notices = console.NewNoticeBoard(nil)
		notifier = a.notices
	case ModeREPL:
		notifier = &terminalNotifier{w: out}
	default:
		idleCfg.Enabled = false
		notifier = &terminalNotifier{w: out}
	}

	auth := services.NewAuthService(api, store, log)
	mgr, err := services.NewSessionManager(auth, store,
		services.WithLogger(log),
		services.WithNotifier(notifier),
		services.WithIdleConfig(idleCfg),
		services.WithRevalidateInterval(cfg.RevalidateInterval),
	)
	if err != nil {
		return nil, fmt.Errorf("session manager: %w", err)
	}
	a.manager = mgr
	return a, nil
}

// Close stops the session timers and closes the database.
func (a *App) Close() error {
	a.manager.Close()
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// restore loads the previous session and waits for the backend check, at
// most the request timeout plus a grace second.
func (a *App) restore(ctx context.Context) {
	a.manager.Start(ctx)
	select {
	case <-a.manager.Ready():
	case <-time.After(a.config.RequestTimeout + time.Second):
		a.log.Warn(ctx, "session check still running, continuing with cached session")
	case <-ctx.Done():
	}
}

func (a *App) isLoggedIn() bool {
	return a.manager.IsAuthenticated()
}

func (a *App) isAdmin() bool {
	return a.manager.IsAdmin()
}

func (a *App) recordActivity(event string) {
	a.manager.RecordActivity(event)
}

func (a *App) getStatus() string {
	st := a.manager.State()
	switch {
	case st.IsLoading:
		return "(loading)"
	case st.User == nil:
		return "(signed out)"
	default:
		return fmt.Sprintf("(%s %s)", st.User.Username, st.User.Role)
	}
}

// RunREPL restores the session and runs the interactive loop.
func (a *App) RunREPL(ctx context.Context) error {
	fmt.Fprintln(a.out, "Back-office console (type 'help' for commands)")
	a.restore(ctx)
	runREPL(ctx, a, a.getStatus, a.reader)
	return nil
}

// Serve runs the HTTP console until SIGINT/SIGTERM.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	initSignalHandler(cancel)

	secret := a.config.SessionSecret
	if secret == "" {
		s, err := common.MakeRandHexString(32)
		if err != nil {
			return err
		}
		secret = s
		a.log.Info(ctx, "no cookie secret configured, using an ephemeral one")
	}

	g := guard.New(a.manager, guard.NewCookieStore([]byte(secret), a.config.SecureCookies), guard.WithLogger(a.log))
	srv := console.New(a.config.ListenAddr, a.manager, g, a.notices,
		console.WithPending(a.loading),
		console.WithSignInLimit(rate.Limit(a.config.SignInRate), a.config.SignInBurst),
		console.WithLogger(a.log),
	)

	// the guard answers 503 until the restored session settles
	a.manager.Start(ctx)
	return srv.Run(ctx)
}

// ShowStatus restores the session and prints its status.
func (a *App) ShowStatus(ctx context.Context) error {
	a.restore(ctx)
	return a.Status(ctx)
}

// SignOut restores the session, if any, and ends it.
func (a *App) SignOut(ctx context.Context) error {
	a.restore(ctx)
	return a.Logout(ctx)
}

func initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// terminalNotifier prints session notices between REPL prompts.
type terminalNotifier struct {
	w io.Writer
}

func (n *terminalNotifier) IdleWarning(remaining time.Duration) {
	fmt.Fprintf(n.w, "\n! You will be signed out in %s due to inactivity. Type any command to stay signed in.\n", remaining.Round(time.Second))
}

func (n *terminalNotifier) SessionEnded(_ services.EndReason, message string) {
	fmt.Fprintf(n.w, "\n! %s\n", message)
}

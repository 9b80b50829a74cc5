// Package guard gates the console's protected routes on the session state.
//
// A protected request goes through three checks in order. While the session
// manager is still restoring a previous session the request gets a neutral
// 503 with Retry-After, so no redirect decision is made on half-loaded state.
// Once settled, the store is checked against memory and a mismatch signs the
// operator out. Finally an anonymous request is redirected to the sign-in
// page with the requested location remembered, and a non-admin request to an
// admin route is redirected with its own message.
package guard

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/gophadmin/internal/logging"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
)

const (
	DefaultSignInPath = "/signin"

	MsgSignIn        = "Please sign in to continue"
	MsgAdminRequired = "Admin access required"

	cookieName  = "backoffice_guard"
	keyReturnTo = "return_to"
)

// Session is the part of the session manager the guard reads.
type Session interface {
	IsLoading() bool
	IsAuthenticated() bool
	IsAdmin() bool
	CheckConsistency(ctx context.Context) bool
}

type Guard struct {
	session    Session
	cookies    sessions.Store
	signInPath string
	log        logging.Logger
}

type Option func(*Guard)

func WithSignInPath(p string) Option {
	return func(g *Guard) { g.signInPath = p }
}

func WithLogger(l logging.Logger) Option {
	return func(g *Guard) { g.log = l }
}

func New(s Session, cookies sessions.Store, opts ...Option) *Guard {
	g := &Guard{
		session:    s,
		cookies:    cookies,
		signInPath: DefaultSignInPath,
		log:        logging.NewNop(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// NewCookieStore returns the cookie store used for the return location and
// the flash message. The cookie only has to survive one redirect.
func NewCookieStore(secret []byte, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// RequireAuth lets signed-in operators through.
func (g *Guard) RequireAuth() echo.MiddlewareFunc {
	return g.require(false)
}

// RequireAdmin lets signed-in admins through.
func (g *Guard) RequireAdmin() echo.MiddlewareFunc {
	return g.require(true)
}

func (g *Guard) require(admin bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			if g.session.IsLoading() {
				c.Response().Header().Set("Retry-After", "1")
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "loading"})
			}

			g.session.CheckConsistency(ctx)

			if !g.session.IsAuthenticated() {
				return g.redirect(c, MsgSignIn)
			}
			if admin && !g.session.IsAdmin() {
				g.log.Info(ctx, "admin route refused", "path", c.Request().URL.Path)
				return g.redirect(c, MsgAdminRequired)
			}
			return next(c)
		}
	}
}

func (g *Guard) redirect(c echo.Context, msg string) error {
	sess, err := g.cookies.Get(c.Request(), cookieName)
	if err != nil {
		// a cookie signed with an old secret; start over with a fresh one
		g.log.Debug(c.Request().Context(), "discarding unreadable guard cookie", "error", err)
	}

	if c.Request().Method == http.MethodGet {
		sess.Values[keyReturnTo] = c.Request().URL.RequestURI()
	}
	sess.AddFlash(msg)

	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, g.signInPath)
}

// Flash pops the message left by the last redirect, if any.
func (g *Guard) Flash(c echo.Context) string {
	sess, err := g.cookies.Get(c.Request(), cookieName)
	if err != nil {
		return ""
	}
	flashes := sess.Flashes()
	if len(flashes) == 0 {
		return ""
	}
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		g.log.Warn(c.Request().Context(), "failed to save guard cookie", "error", err)
	}
	msg, _ := flashes[len(flashes)-1].(string)
	return msg
}

// PopReturnTo returns where the operator was headed before sign-in, or
// fallback. Only same-site paths are honoured.
func (g *Guard) PopReturnTo(c echo.Context, fallback string) string {
	sess, err := g.cookies.Get(c.Request(), cookieName)
	if err != nil {
		return fallback
	}
	v, _ := sess.Values[keyReturnTo].(string)
	delete(sess.Values, keyReturnTo)
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		g.log.Warn(c.Request().Context(), "failed to save guard cookie", "error", err)
	}

	if !isLocalPath(v) {
		return fallback
	}
	return v
}

func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.HasPrefix(p, "/\\")
}

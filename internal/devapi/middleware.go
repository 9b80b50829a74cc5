package devapi

import (
	"net/http"
	"strings"

	"github.com/dmitrijs2005/gophadmin/internal/devapi/auth"
	"github.com/dmitrijs2005/gophadmin/internal/devapi/users"
	"github.com/labstack/echo/v4"
)

const (
	userKey   = "user"
	claimsKey = "claims"
)

// requireToken resolves the bearer token to a user and stores both the user
// and the token claims on the context.
func (s *Server) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			return fail(c, http.StatusUnauthorized, msgNotAuthenticated)
		}

		user, claims, err := s.users.Authenticate(c.Request().Context(), strings.TrimSpace(token))
		if err != nil {
			s.log.Debug(c.Request().Context(), "token rejected", "error", err)
			return fail(c, http.StatusUnauthorized, msgInvalidToken)
		}

		c.Set(userKey, user)
		c.Set(claimsKey, claims)
		return next(c)
	}
}

func requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if currentUser(c).Role != users.RoleAdmin {
			return fail(c, http.StatusForbidden, msgAdminRequired)
		}
		return next(c)
	}
}

func currentUser(c echo.Context) *users.User {
	u, _ := c.Get(userKey).(*users.User)
	return u
}

func currentClaims(c echo.Context) *auth.Claims {
	cl, _ := c.Get(claimsKey).(*auth.Claims)
	return cl
}

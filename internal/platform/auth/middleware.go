package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// CookieName is the cookie carrying the session token.
const CookieName = "clinic_session"

// TokensFromRequest returns the session token candidates carried by r: the
// session cookie first, then an Authorization: Bearer header.
func TokensFromRequest(r *http.Request) []string {
	var tokens []string
	if ck, err := r.Cookie(CookieName); err == nil && ck.Value != "" {
		tokens = append(tokens, ck.Value)
	}

	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		if tok := strings.TrimSpace(parts[1]); tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// SessionMiddleware binds the caller of the first valid session token to the
// request context. A stale cookie does not hide a valid bearer token.
// Requests without a valid token continue as anonymous.
func SessionMiddleware(authority *SessionAuthority) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			for _, token := range TokensFromRequest(c.Request()) {
				sess, err := authority.Resolve(ctx, token)
				if err != nil {
					continue
				}
				c.SetRequest(c.Request().WithContext(WithPrincipal(ctx, sess.Principal(), sess.ID)))
				break
			}
			return next(c)
		}
	}
}

// RequireLogin rejects anonymous callers with ErrUnauthenticated. Requests
// for which skipper returns true pass through.
func RequireLogin(skipper echomw.Skipper) echo.MiddlewareFunc {
	if skipper == nil {
		skipper = echomw.DefaultSkipper
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper(c) {
				return next(c)
			}
			if _, err := RequireAuthenticated(c.Request().Context()); err != nil {
				return apperr.ErrUnauthenticated
			}
			return next(c)
		}
	}
}

// SetSessionCookie writes the session token cookie.
func SetSessionCookie(c echo.Context, token string, expires time.Time, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session token cookie.
func ClearSessionCookie(c echo.Context, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

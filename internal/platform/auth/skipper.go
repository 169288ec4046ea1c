package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists route paths reachable without a session: infrastructure
// endpoints and the pages that establish a session.
var publicPaths = map[string]bool{
	"/":          true,
	"/health":    true,
	"/health/db": true,
	"/metrics":   true,
	"/register":  true,
	"/login":     true,
}

// AuthSkipper returns true for requests whose matched route needs no session.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether path is reachable without a session.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
